package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/buildingkeeper/internal/common"
	"github.com/dmitrijs2005/buildingkeeper/internal/dbx"
	"github.com/dmitrijs2005/buildingkeeper/internal/server/models"
)

func token(jti, family, user string) *models.RefreshToken {
	now := time.Now()
	return &models.RefreshToken{ID: "id-" + jti, UserID: user, JTI: jti, TokenHash: "h-" + jti,
		FamilyID: family, IssuedAt: now, ExpiresAt: now.Add(time.Hour)}
}

func TestWithTx_CommitAndRollback(t *testing.T) {
	s := NewStore()
	tr := s.Transactor()
	ctx := context.Background()

	err := tr.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		return s.RefreshTokens(tx).Create(ctx, token("j1", "f1", "u1"))
	})
	require.NoError(t, err)

	err = tr.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.RefreshTokens(tx)
		flipped, err := repo.Revoke(ctx, "j1", "rotated", nil)
		require.NoError(t, err)
		require.True(t, flipped)
		require.NoError(t, repo.Create(ctx, token("j2", "f1", "u1")))
		return errors.New("abort")
	})
	require.Error(t, err)

	got, err := s.RefreshTokens(tr.Conn()).FindByJTI(ctx, "j1")
	require.NoError(t, err)
	assert.False(t, got.Revoked, "rollback restores the revoked flag")

	_, err = s.RefreshTokens(tr.Conn()).FindByJTI(ctx, "j2")
	assert.ErrorIs(t, err, common.ErrorNotFound, "rollback drops inserted rows")
}

func TestWithTx_PanicRollsBack(t *testing.T) {
	s := NewStore()
	tr := s.Transactor()
	ctx := context.Background()

	assert.Panics(t, func() {
		_ = tr.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
			_ = s.RefreshTokens(tx).Create(ctx, token("j1", "f1", "u1"))
			panic("boom")
		})
	})

	_, err := s.RefreshTokens(tr.Conn()).FindByJTI(ctx, "j1")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestWithTx_CanceledContext(t *testing.T) {
	s := NewStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := s.Transactor().WithTx(ctx, func(context.Context, dbx.DBTX) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestWithTx_Serialized(t *testing.T) {
	s := NewStore()
	tr := s.Transactor()
	ctx := context.Background()
	require.NoError(t, s.RefreshTokens(tr.Conn()).Create(ctx, token("j1", "f1", "u1")))

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = tr.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
				repo := s.RefreshTokens(tx)
				rec, err := repo.FindByJTI(ctx, "j1")
				if err != nil || rec.Revoked {
					return err
				}
				flipped, err := repo.Revoke(ctx, "j1", "rotated", nil)
				if err != nil {
					return err
				}
				if flipped {
					mu.Lock()
					wins++
					mu.Unlock()
				}
				return nil
			})
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestRefreshTokens(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	repo := s.RefreshTokens(s.Transactor().Conn())

	require.NoError(t, repo.Create(ctx, token("a", "f1", "u1")))
	require.NoError(t, repo.Create(ctx, token("b", "f1", "u1")))
	require.NoError(t, repo.Create(ctx, token("c", "f2", "u1")))
	require.NoError(t, repo.Create(ctx, token("d", "f3", "u2")))
	assert.ErrorIs(t, repo.Create(ctx, token("a", "f1", "u1")), common.ErrorAlreadyExists)

	bad := token("e", "f1", "u1")
	bad.ExpiresAt = bad.IssuedAt
	assert.Error(t, repo.Create(ctx, bad))

	next := "b"
	flipped, err := repo.Revoke(ctx, "a", "rotated", &next)
	require.NoError(t, err)
	assert.True(t, flipped)
	flipped, err = repo.Revoke(ctx, "a", "logout", nil)
	require.NoError(t, err)
	assert.False(t, flipped, "second revoke is a no-op")
	flipped, err = repo.Revoke(ctx, "missing", "logout", nil)
	require.NoError(t, err)
	assert.False(t, flipped)

	a, err := repo.FindByJTI(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "rotated", *a.RevokedReason, "reason is kept from the first revoke")
	assert.Equal(t, "b", *a.ReplacedBy)
	assert.NotNil(t, a.RevokedAt)

	n, err := repo.RevokeFamily(ctx, "f1", "reuse_detected")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	fam, err := repo.ListByFamily(ctx, "f1")
	require.NoError(t, err)
	require.Len(t, fam, 2)
	for _, r := range fam {
		assert.True(t, r.Revoked)
	}

	n, err = repo.RevokeAllForUser(ctx, "u1", "logout_all")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	n, err = repo.RevokeAllForUser(ctx, "u1", "logout_all")
	require.NoError(t, err)
	assert.Zero(t, n)

	d, err := repo.FindByJTI(ctx, "d")
	require.NoError(t, err)
	assert.False(t, d.Revoked, "other users untouched")
}

func TestRefreshTokens_ReturnsCopies(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	repo := s.RefreshTokens(s.Transactor().Conn())
	require.NoError(t, repo.Create(ctx, token("a", "f1", "u1")))

	got, err := repo.FindByJTI(ctx, "a")
	require.NoError(t, err)
	got.Revoked = true

	again, err := repo.FindByJTI(ctx, "a")
	require.NoError(t, err)
	assert.False(t, again.Revoked)
}

func TestFaults(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	repo := s.RefreshTokens(s.Transactor().Conn())
	boom := errors.New("boom")

	s.SetFault("refreshtokens.Create", boom)
	assert.ErrorIs(t, repo.Create(ctx, token("a", "f", "u")), boom)

	s.SetFault("refreshtokens.Create", nil)
	assert.NoError(t, repo.Create(ctx, token("a", "f", "u")))
}

func TestUsers(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	repo := s.Users(s.Transactor().Conn())

	u, err := repo.Create(ctx, &models.User{Email: "a@example.com", PasswordHash: "h", IsActive: true})
	require.NoError(t, err)
	require.NotEmpty(t, u.ID)

	_, err = repo.Create(ctx, &models.User{Email: "a@example.com"})
	assert.ErrorIs(t, err, common.ErrorAlreadyExists)

	require.NoError(t, repo.SetRoles(ctx, u.ID, []string{"user", "ghost", "admin", "user"}))
	got, err := repo.GetByEmail(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, []string{"admin", "user"}, got.Roles)

	got.IsBanned = true
	require.NoError(t, repo.Update(ctx, got))
	at := time.Now()
	require.NoError(t, repo.TouchLastLogin(ctx, u.ID, at))

	again, err := repo.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, again.IsBanned)
	assert.Equal(t, at, *again.LastLoginAt)

	b, err := repo.Create(ctx, &models.User{Email: "b@example.com"})
	require.NoError(t, err)
	b.Email = "a@example.com"
	assert.ErrorIs(t, repo.Update(ctx, b), common.ErrorAlreadyExists)
	assert.ErrorIs(t, repo.Update(ctx, &models.User{ID: "ghost"}), common.ErrorNotFound)
	assert.ErrorIs(t, repo.TouchLastLogin(ctx, "ghost", at), common.ErrorNotFound)

	all, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = repo.GetByID(ctx, "ghost")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestProfilesAndBuildings(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	conn := s.Transactor().Conn()

	profiles := s.Profiles(conn)
	_, err := profiles.Get(ctx, "u1")
	assert.ErrorIs(t, err, common.ErrorNotFound)
	name := "Ann"
	require.NoError(t, profiles.Upsert(ctx, &models.Profile{UserID: "u1", DisplayName: &name}))
	p, err := profiles.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Ann", *p.DisplayName)
	assert.JSONEq(t, `{}`, string(p.Meta))

	buildings := s.Buildings(conn)
	require.NoError(t, buildings.Create(ctx, &models.Building{ID: "b1", Name: "A", UploadStatus: models.UploadStatusPending}))
	assert.ErrorIs(t, buildings.Create(ctx, &models.Building{ID: "b1"}), common.ErrorAlreadyExists)
	require.NoError(t, buildings.MarkUploaded(ctx, "b1"))
	assert.ErrorIs(t, buildings.MarkUploaded(ctx, "b1"), common.ErrorNotFound, "only pending buildings move")
	list, err := buildings.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, models.UploadStatusCompleted, list[0].UploadStatus)
	require.NoError(t, buildings.Delete(ctx, "b1"))
	assert.ErrorIs(t, buildings.Delete(ctx, "b1"), common.ErrorNotFound)
	_, err = buildings.Get(ctx, "b1")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}
