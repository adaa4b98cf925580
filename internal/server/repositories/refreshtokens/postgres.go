package refreshtokens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/buildingkeeper/internal/common"
	"github.com/dmitrijs2005/buildingkeeper/internal/dbx"
	"github.com/dmitrijs2005/buildingkeeper/internal/server/models"
)

// PostgresRepository implements Repository over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const columns = `id, user_id, jti, token_hash, family_id, revoked, revoked_reason, revoked_at,
		replaced_by, issued_at, expires_at, user_agent, ip_address, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanToken(row scanner) (*models.RefreshToken, error) {
	t := &models.RefreshToken{}
	err := row.Scan(&t.ID, &t.UserID, &t.JTI, &t.TokenHash, &t.FamilyID, &t.Revoked, &t.RevokedReason,
		&t.RevokedAt, &t.ReplacedBy, &t.IssuedAt, &t.ExpiresAt, &t.UserAgent, &t.IPAddress, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Create inserts a new refresh token record.
func (r *PostgresRepository) Create(ctx context.Context, token *models.RefreshToken) error {
	query := `
		INSERT INTO refresh_tokens (id, user_id, jti, token_hash, family_id, issued_at, expires_at, user_agent, ip_address)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at
	`
	err := r.db.QueryRowContext(ctx, query, token.ID, token.UserID, token.JTI, token.TokenHash, token.FamilyID,
		token.IssuedAt, token.ExpiresAt, token.UserAgent, token.IPAddress).Scan(&token.CreatedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return common.ErrorAlreadyExists
		}
		return fmt.Errorf("error performing sql request: %w", err)
	}
	return nil
}

// FindByJTI returns the record for jti and locks it (SELECT ... FOR UPDATE).
// If not found, it returns common.ErrorNotFound.
func (r *PostgresRepository) FindByJTI(ctx context.Context, jti string) (*models.RefreshToken, error) {
	query := `
		SELECT ` + columns + `
		FROM refresh_tokens
		WHERE jti = $1
		FOR UPDATE
	`
	token, err := scanToken(r.db.QueryRowContext(ctx, query, jti))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return token, nil
}

// Revoke is a compare-and-set on revoked: only an unrevoked row is updated.
func (r *PostgresRepository) Revoke(ctx context.Context, jti, reason string, replacedBy *string) (bool, error) {
	query := `
		UPDATE refresh_tokens
		SET revoked = TRUE, revoked_reason = $2, revoked_at = now(), replaced_by = $3
		WHERE jti = $1 AND revoked = FALSE
	`
	res, err := r.db.ExecContext(ctx, query, jti, reason, replacedBy)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n == 1, nil
}

func (r *PostgresRepository) RevokeFamily(ctx context.Context, familyID, reason string) (int64, error) {
	query := `
		UPDATE refresh_tokens
		SET revoked = TRUE, revoked_reason = $2, revoked_at = now()
		WHERE family_id = $1 AND revoked = FALSE
	`
	return r.bulkRevoke(ctx, query, familyID, reason)
}

func (r *PostgresRepository) RevokeAllForUser(ctx context.Context, userID, reason string) (int64, error) {
	query := `
		UPDATE refresh_tokens
		SET revoked = TRUE, revoked_reason = $2, revoked_at = now()
		WHERE user_id = $1 AND revoked = FALSE
	`
	return r.bulkRevoke(ctx, query, userID, reason)
}

func (r *PostgresRepository) bulkRevoke(ctx context.Context, query, key, reason string) (int64, error) {
	res, err := r.db.ExecContext(ctx, query, key, reason)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) ListByFamily(ctx context.Context, familyID string) ([]*models.RefreshToken, error) {
	query := `
		SELECT ` + columns + `
		FROM refresh_tokens
		WHERE family_id = $1
		ORDER BY issued_at, created_at
	`
	rows, err := r.db.QueryContext(ctx, query, familyID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.RefreshToken
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}
