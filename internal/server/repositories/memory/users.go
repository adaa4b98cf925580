package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/buildingkeeper/internal/common"
	"github.com/dmitrijs2005/buildingkeeper/internal/dbx"
	"github.com/dmitrijs2005/buildingkeeper/internal/server/models"
)

// Users implements users.Repository.
type Users struct {
	s  *Store
	db dbx.DBTX
}

func (s *Store) Users(db dbx.DBTX) *Users {
	return &Users{s: s, db: db}
}

func (r *Users) withRoles(u *models.User) *models.User {
	c := copyUser(u)
	c.Roles = append([]string{}, r.s.state.userRoles[u.ID]...)
	sort.Strings(c.Roles)
	return c
}

func (r *Users) emailTaken(email, exceptID string) bool {
	for _, u := range r.s.state.users {
		if u.Email == email && u.ID != exceptID {
			return true
		}
	}
	return false
}

func (r *Users) Create(_ context.Context, user *models.User) (*models.User, error) {
	defer r.s.lock(r.db)()
	if err := r.s.fault("users.Create"); err != nil {
		return nil, err
	}
	if r.emailTaken(user.Email, "") {
		return nil, common.ErrorAlreadyExists
	}

	now := r.s.now()
	user.ID = uuid.NewString()
	user.CreatedAt = now
	user.UpdatedAt = now
	r.s.state.users[user.ID] = copyUser(user)
	return user, nil
}

func (r *Users) GetByID(_ context.Context, id string) (*models.User, error) {
	defer r.s.lock(r.db)()
	if err := r.s.fault("users.GetByID"); err != nil {
		return nil, err
	}
	u, ok := r.s.state.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return r.withRoles(u), nil
}

func (r *Users) GetByEmail(_ context.Context, email string) (*models.User, error) {
	defer r.s.lock(r.db)()
	if err := r.s.fault("users.GetByEmail"); err != nil {
		return nil, err
	}
	for _, u := range r.s.state.users {
		if u.Email == email {
			return r.withRoles(u), nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *Users) List(_ context.Context) ([]*models.User, error) {
	defer r.s.lock(r.db)()
	if err := r.s.fault("users.List"); err != nil {
		return nil, err
	}
	result := make([]*models.User, 0, len(r.s.state.users))
	for _, u := range r.s.state.users {
		result = append(result, r.withRoles(u))
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (r *Users) Update(_ context.Context, user *models.User) error {
	defer r.s.lock(r.db)()
	if err := r.s.fault("users.Update"); err != nil {
		return err
	}
	cur, ok := r.s.state.users[user.ID]
	if !ok {
		return common.ErrorNotFound
	}
	if r.emailTaken(user.Email, user.ID) {
		return common.ErrorAlreadyExists
	}

	next := copyUser(user)
	next.CreatedAt = cur.CreatedAt
	next.LastLoginAt = copyTime(cur.LastLoginAt)
	next.UpdatedAt = r.s.now()
	next.Roles = nil
	r.s.state.users[user.ID] = next
	return nil
}

func (r *Users) SetRoles(_ context.Context, userID string, roles []string) error {
	defer r.s.lock(r.db)()
	if err := r.s.fault("users.SetRoles"); err != nil {
		return err
	}
	var kept []string
	for _, role := range roles {
		if _, ok := r.s.state.roles[role]; ok && !common.ContainsString(kept, role) {
			kept = append(kept, role)
		}
	}
	r.s.state.userRoles[userID] = kept
	return nil
}

func (r *Users) TouchLastLogin(_ context.Context, userID string, at time.Time) error {
	defer r.s.lock(r.db)()
	if err := r.s.fault("users.TouchLastLogin"); err != nil {
		return err
	}
	u, ok := r.s.state.users[userID]
	if !ok {
		return common.ErrorNotFound
	}
	u.LastLoginAt = &at
	return nil
}
