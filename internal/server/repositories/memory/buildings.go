package memory

import (
	"context"
	"sort"

	"github.com/dmitrijs2005/buildingkeeper/internal/common"
	"github.com/dmitrijs2005/buildingkeeper/internal/dbx"
	"github.com/dmitrijs2005/buildingkeeper/internal/server/models"
)

// Buildings implements buildings.Repository.
type Buildings struct {
	s  *Store
	db dbx.DBTX
}

func (s *Store) Buildings(db dbx.DBTX) *Buildings {
	return &Buildings{s: s, db: db}
}

func (r *Buildings) Create(_ context.Context, b *models.Building) error {
	defer r.s.lock(r.db)()
	if err := r.s.fault("buildings.Create"); err != nil {
		return err
	}
	if _, exists := r.s.state.buildings[b.ID]; exists {
		return common.ErrorAlreadyExists
	}
	now := r.s.now()
	b.CreatedAt = now
	b.UpdatedAt = now
	stored := *b
	r.s.state.buildings[b.ID] = &stored
	return nil
}

func (r *Buildings) Get(_ context.Context, id string) (*models.Building, error) {
	defer r.s.lock(r.db)()
	if err := r.s.fault("buildings.Get"); err != nil {
		return nil, err
	}
	b, ok := r.s.state.buildings[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *b
	return &c, nil
}

func (r *Buildings) List(_ context.Context) ([]*models.Building, error) {
	defer r.s.lock(r.db)()
	if err := r.s.fault("buildings.List"); err != nil {
		return nil, err
	}
	result := make([]*models.Building, 0, len(r.s.state.buildings))
	for _, b := range r.s.state.buildings {
		c := *b
		result = append(result, &c)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (r *Buildings) MarkUploaded(_ context.Context, id string) error {
	defer r.s.lock(r.db)()
	if err := r.s.fault("buildings.MarkUploaded"); err != nil {
		return err
	}
	b, ok := r.s.state.buildings[id]
	if !ok || b.UploadStatus != models.UploadStatusPending {
		return common.ErrorNotFound
	}
	b.UploadStatus = models.UploadStatusCompleted
	b.UpdatedAt = r.s.now()
	return nil
}

func (r *Buildings) Delete(_ context.Context, id string) error {
	defer r.s.lock(r.db)()
	if err := r.s.fault("buildings.Delete"); err != nil {
		return err
	}
	if _, ok := r.s.state.buildings[id]; !ok {
		return common.ErrorNotFound
	}
	delete(r.s.state.buildings, id)
	return nil
}
