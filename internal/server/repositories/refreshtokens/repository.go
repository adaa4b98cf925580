// Package refreshtokens declares the repository contract for issued refresh
// tokens, grouped into rotation families, and its PostgreSQL implementation.
package refreshtokens

import (
	"context"

	"github.com/dmitrijs2005/buildingkeeper/internal/server/models"
)

// Repository persists refresh token records. Records are never deleted and
// a revoked record is never un-revoked.
type Repository interface {
	// Create stores a new, unrevoked record. The jti must be unique.
	Create(ctx context.Context, token *models.RefreshToken) error

	// FindByJTI returns the record for jti, locking the row for the rest of
	// the surrounding transaction. Missing records yield common.ErrorNotFound.
	FindByJTI(ctx context.Context, jti string) (*models.RefreshToken, error)

	// Revoke flips revoked from false to true for jti. It reports whether
	// this call performed the flip; false means the record was already
	// revoked (or absent) and nothing changed.
	Revoke(ctx context.Context, jti, reason string, replacedBy *string) (bool, error)

	// RevokeFamily revokes every unrevoked record of the family and returns
	// how many were flipped.
	RevokeFamily(ctx context.Context, familyID, reason string) (int64, error)

	// RevokeAllForUser revokes every unrevoked record owned by userID.
	RevokeAllForUser(ctx context.Context, userID, reason string) (int64, error)

	// ListByFamily returns the family's records oldest first.
	ListByFamily(ctx context.Context, familyID string) ([]*models.RefreshToken, error)
}
