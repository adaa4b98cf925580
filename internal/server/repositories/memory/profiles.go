package memory

import (
	"context"

	"github.com/dmitrijs2005/buildingkeeper/internal/common"
	"github.com/dmitrijs2005/buildingkeeper/internal/dbx"
	"github.com/dmitrijs2005/buildingkeeper/internal/server/models"
)

// Profiles implements profiles.Repository.
type Profiles struct {
	s  *Store
	db dbx.DBTX
}

func (s *Store) Profiles(db dbx.DBTX) *Profiles {
	return &Profiles{s: s, db: db}
}

func (r *Profiles) Get(_ context.Context, userID string) (*models.Profile, error) {
	defer r.s.lock(r.db)()
	if err := r.s.fault("profiles.Get"); err != nil {
		return nil, err
	}
	p, ok := r.s.state.profiles[userID]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return copyProfile(p), nil
}

func (r *Profiles) Upsert(_ context.Context, p *models.Profile) error {
	defer r.s.lock(r.db)()
	if err := r.s.fault("profiles.Upsert"); err != nil {
		return err
	}
	p.UpdatedAt = r.s.now()
	stored := copyProfile(p)
	if len(stored.Meta) == 0 {
		stored.Meta = []byte("{}")
	}
	r.s.state.profiles[p.UserID] = stored
	return nil
}
