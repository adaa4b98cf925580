package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/buildingkeeper/internal/common"
	"github.com/dmitrijs2005/buildingkeeper/internal/cryptox"
	"github.com/dmitrijs2005/buildingkeeper/internal/logging"
	"github.com/dmitrijs2005/buildingkeeper/internal/server/auth"
	"github.com/dmitrijs2005/buildingkeeper/internal/server/models"
	"github.com/dmitrijs2005/buildingkeeper/internal/server/repositories/memory"
	"github.com/dmitrijs2005/buildingkeeper/internal/server/repositories/repomanager"
)

const testPassword = "correct horse"

type harness struct {
	store  *memory.Store
	rm     *repomanager.MemoryRepositoryManager
	codec  *auth.Codec
	tokens *TokenService
	gate   *AccessGate
	users  *UserService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := memory.NewStore()
	rm := repomanager.NewMemoryRepositoryManager(store)

	codec, err := auth.NewCodec(auth.CodecConfig{Algorithm: "RS256", Secret: []byte("test-secret")}, logging.Nop())
	require.NoError(t, err)

	tokens := NewTokenService(rm, codec, 15*time.Minute, 24*time.Hour, logging.Nop())
	return &harness{
		store:  store,
		rm:     rm,
		codec:  codec,
		tokens: tokens,
		gate:   NewAccessGate(rm, codec, logging.Nop()),
		users:  NewUserService(rm, tokens, logging.Nop()),
	}
}

// addUser stores an active user with the given roles.
func (h *harness) addUser(t *testing.T, email string, roles ...string) *models.User {
	t.Helper()
	ctx := context.Background()
	hash, err := cryptox.HashPassword(testPassword)
	require.NoError(t, err)

	repo := h.rm.Users(h.rm.Transactor().Conn())
	u, err := repo.Create(ctx, &models.User{Email: email, PasswordHash: hash, IsActive: true})
	require.NoError(t, err)
	if len(roles) == 0 {
		roles = []string{common.RoleUser}
	}
	require.NoError(t, repo.SetRoles(ctx, u.ID, roles))

	u, err = repo.GetByID(ctx, u.ID)
	require.NoError(t, err)
	return u
}

func (h *harness) updateUser(t *testing.T, id string, fn func(u *models.User)) {
	t.Helper()
	ctx := context.Background()
	repo := h.rm.Users(h.rm.Transactor().Conn())
	u, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	fn(u)
	require.NoError(t, repo.Update(ctx, u))
}

func (h *harness) record(t *testing.T, refresh string) *models.RefreshToken {
	t.Helper()
	ctx := context.Background()
	claims, err := h.codec.Verify(ctx, refresh)
	require.NoError(t, err)
	rec, err := h.rm.RefreshTokens(h.rm.Transactor().Conn()).FindByJTI(ctx, claims.ID)
	require.NoError(t, err)
	return rec
}

func (h *harness) family(t *testing.T, refresh string) []*models.RefreshToken {
	t.Helper()
	ctx := context.Background()
	claims, err := h.codec.Verify(ctx, refresh)
	require.NoError(t, err)
	fam, err := h.rm.RefreshTokens(h.rm.Transactor().Conn()).ListByFamily(ctx, claims.FamilyID)
	require.NoError(t, err)
	return fam
}

func (h *harness) claims(t *testing.T, token string) *auth.Claims {
	t.Helper()
	c, err := h.codec.Verify(context.Background(), token)
	require.NoError(t, err)
	return c
}
