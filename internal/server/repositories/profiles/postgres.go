package profiles

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/buildingkeeper/internal/common"
	"github.com/dmitrijs2005/buildingkeeper/internal/dbx"
	"github.com/dmitrijs2005/buildingkeeper/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Get(ctx context.Context, userID string) (*models.Profile, error) {
	query := `
		SELECT user_id, display_name, first_name, last_name, phone, avatar_url, timezone, meta, updated_at
		FROM user_profiles
		WHERE user_id = $1
	`
	p := &models.Profile{}
	var meta []byte
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&p.UserID, &p.DisplayName, &p.FirstName,
		&p.LastName, &p.Phone, &p.AvatarURL, &p.Timezone, &meta, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	p.Meta = meta
	return p, nil
}

func (r *PostgresRepository) Upsert(ctx context.Context, p *models.Profile) error {
	query := `
		INSERT INTO user_profiles (user_id, display_name, first_name, last_name, phone, avatar_url, timezone, meta, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
		ON CONFLICT (user_id) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			phone = EXCLUDED.phone,
			avatar_url = EXCLUDED.avatar_url,
			timezone = EXCLUDED.timezone,
			meta = EXCLUDED.meta,
			updated_at = now()
		RETURNING updated_at
	`
	meta := string(p.Meta)
	if meta == "" {
		meta = "{}"
	}

	err := r.db.QueryRowContext(ctx, query, p.UserID, p.DisplayName, p.FirstName, p.LastName,
		p.Phone, p.AvatarURL, p.Timezone, meta).Scan(&p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
