// Package users declares the account repository and its PostgreSQL
// implementation.
package users

import (
	"context"
	"time"

	"github.com/dmitrijs2005/buildingkeeper/internal/server/models"
)

// Repository stores accounts and their role assignments. Every lookup
// returns the live role set.
type Repository interface {
	// Create inserts user and fills in its ID and timestamps. A duplicate
	// email yields common.ErrorAlreadyExists.
	Create(ctx context.Context, user *models.User) (*models.User, error)

	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context) ([]*models.User, error)

	// Update persists the account columns of user (email, password hash,
	// active and ban state). Roles and profile are not touched.
	Update(ctx context.Context, user *models.User) error

	// SetRoles replaces the user's roles. Unknown role names are ignored.
	SetRoles(ctx context.Context, userID string, roles []string) error

	TouchLastLogin(ctx context.Context, userID string, at time.Time) error
}
