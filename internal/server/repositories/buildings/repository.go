// Package buildings stores the building catalog. Only metadata and object
// keys live here; the model and texture files live in object storage.
package buildings

import (
	"context"

	"github.com/dmitrijs2005/buildingkeeper/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, b *models.Building) error
	Get(ctx context.Context, id string) (*models.Building, error)
	List(ctx context.Context) ([]*models.Building, error)

	// MarkUploaded moves a pending building to completed. A building that
	// is missing or not pending yields common.ErrorNotFound.
	MarkUploaded(ctx context.Context, id string) error

	Delete(ctx context.Context, id string) error
}
