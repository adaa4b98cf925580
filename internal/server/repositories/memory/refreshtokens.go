package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/dmitrijs2005/buildingkeeper/internal/common"
	"github.com/dmitrijs2005/buildingkeeper/internal/dbx"
	"github.com/dmitrijs2005/buildingkeeper/internal/server/models"
)

// RefreshTokens implements refreshtokens.Repository.
type RefreshTokens struct {
	s  *Store
	db dbx.DBTX
}

func (s *Store) RefreshTokens(db dbx.DBTX) *RefreshTokens {
	return &RefreshTokens{s: s, db: db}
}

func (r *RefreshTokens) Create(_ context.Context, token *models.RefreshToken) error {
	defer r.s.lock(r.db)()
	if err := r.s.fault("refreshtokens.Create"); err != nil {
		return err
	}
	if _, exists := r.s.state.tokens[token.JTI]; exists {
		return fmt.Errorf("duplicate jti %q: %w", token.JTI, common.ErrorAlreadyExists)
	}
	if !token.ExpiresAt.After(token.IssuedAt) {
		return errors.New("expires_at must be after issued_at")
	}
	token.CreatedAt = r.s.now()
	stored := copyToken(token)
	stored.Revoked = false
	stored.RevokedReason = nil
	stored.RevokedAt = nil
	stored.ReplacedBy = nil
	r.s.state.tokens[token.JTI] = stored
	return nil
}

func (r *RefreshTokens) FindByJTI(_ context.Context, jti string) (*models.RefreshToken, error) {
	defer r.s.lock(r.db)()
	if err := r.s.fault("refreshtokens.FindByJTI"); err != nil {
		return nil, err
	}
	t, ok := r.s.state.tokens[jti]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return copyToken(t), nil
}

func (r *RefreshTokens) revoke(t *models.RefreshToken, reason string, replacedBy *string) {
	now := r.s.now()
	t.Revoked = true
	t.RevokedReason = &reason
	t.RevokedAt = &now
	t.ReplacedBy = copyString(replacedBy)
}

func (r *RefreshTokens) Revoke(_ context.Context, jti, reason string, replacedBy *string) (bool, error) {
	defer r.s.lock(r.db)()
	if err := r.s.fault("refreshtokens.Revoke"); err != nil {
		return false, err
	}
	t, ok := r.s.state.tokens[jti]
	if !ok || t.Revoked {
		return false, nil
	}
	r.revoke(t, reason, replacedBy)
	return true, nil
}

func (r *RefreshTokens) RevokeFamily(_ context.Context, familyID, reason string) (int64, error) {
	defer r.s.lock(r.db)()
	if err := r.s.fault("refreshtokens.RevokeFamily"); err != nil {
		return 0, err
	}
	return r.revokeWhere(func(t *models.RefreshToken) bool { return t.FamilyID == familyID }, reason), nil
}

func (r *RefreshTokens) RevokeAllForUser(_ context.Context, userID, reason string) (int64, error) {
	defer r.s.lock(r.db)()
	if err := r.s.fault("refreshtokens.RevokeAllForUser"); err != nil {
		return 0, err
	}
	return r.revokeWhere(func(t *models.RefreshToken) bool { return t.UserID == userID }, reason), nil
}

func (r *RefreshTokens) revokeWhere(match func(*models.RefreshToken) bool, reason string) int64 {
	var n int64
	for _, t := range r.s.state.tokens {
		if !t.Revoked && match(t) {
			r.revoke(t, reason, nil)
			n++
		}
	}
	return n
}

func (r *RefreshTokens) ListByFamily(_ context.Context, familyID string) ([]*models.RefreshToken, error) {
	defer r.s.lock(r.db)()
	if err := r.s.fault("refreshtokens.ListByFamily"); err != nil {
		return nil, err
	}
	var result []*models.RefreshToken
	for _, t := range r.s.state.tokens {
		if t.FamilyID == familyID {
			result = append(result, copyToken(t))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].IssuedAt.Equal(result[j].IssuedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].IssuedAt.Before(result[j].IssuedAt)
	})
	return result, nil
}
