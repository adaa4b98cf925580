package buildings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/buildingkeeper/internal/common"
	"github.com/dmitrijs2005/buildingkeeper/internal/dbx"
	"github.com/dmitrijs2005/buildingkeeper/internal/server/models"
)

// PostgresRepository implements building storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, b *models.Building) error {
	query := `
		INSERT INTO buildings (id, name, owner_id, gml_key, texture_key, upload_status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`
	var owner any
	if b.OwnerID != "" {
		owner = b.OwnerID
	}
	err := r.db.QueryRowContext(ctx, query, b.ID, b.Name, owner, b.GMLKey, b.TextureKey, b.UploadStatus).
		Scan(&b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.Building, error) {
	query := `
		SELECT id, name, COALESCE(owner_id::text, ''), gml_key, texture_key, upload_status, created_at, updated_at
		FROM buildings
		WHERE id = $1
	`
	b := &models.Building{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&b.ID, &b.Name, &b.OwnerID, &b.GMLKey, &b.TextureKey,
		&b.UploadStatus, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return b, nil
}

func (r *PostgresRepository) List(ctx context.Context) ([]*models.Building, error) {
	query := `
		SELECT id, name, COALESCE(owner_id::text, ''), gml_key, texture_key, upload_status, created_at, updated_at
		FROM buildings
		ORDER BY created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to select buildings: %w", err)
	}
	defer rows.Close()

	var result []*models.Building
	for rows.Next() {
		var item models.Building
		if err := rows.Scan(&item.ID, &item.Name, &item.OwnerID, &item.GMLKey, &item.TextureKey,
			&item.UploadStatus, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// MarkUploaded sets upload_status='completed' on a pending building.
// Exactly one row must be affected.
func (r *PostgresRepository) MarkUploaded(ctx context.Context, id string) error {
	query := `UPDATE buildings SET upload_status = 'completed', updated_at = now() WHERE id = $1 AND upload_status = 'pending'`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to mark uploaded: %w", err)
	}
	return oneRow(result)
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM buildings WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return oneRow(result)
}

func oneRow(result sql.Result) error {
	ra, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	switch ra {
	case 1:
		return nil
	case 0:
		return common.ErrorNotFound
	default:
		return fmt.Errorf("wrong rows affected count: %d", ra)
	}
}
