// Package profiles stores the user-editable profile attached to an account.
package profiles

import (
	"context"

	"github.com/dmitrijs2005/buildingkeeper/internal/server/models"
)

type Repository interface {
	// Get returns common.ErrorNotFound when the user never saved a profile.
	Get(ctx context.Context, userID string) (*models.Profile, error)

	// Upsert writes every field of p, creating the row on first use.
	Upsert(ctx context.Context, p *models.Profile) error
}
