package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/buildingkeeper/internal/common"
	"github.com/dmitrijs2005/buildingkeeper/internal/cryptox"
	"github.com/dmitrijs2005/buildingkeeper/internal/dbx"
	"github.com/dmitrijs2005/buildingkeeper/internal/logging"
	"github.com/dmitrijs2005/buildingkeeper/internal/server/models"
	"github.com/dmitrijs2005/buildingkeeper/internal/server/repositories/repomanager"
)

// NewUser describes an account created by an administrator.
type NewUser struct {
	Email string

	// TempPassword is generated when empty and returned to the caller.
	TempPassword string

	// Roles defaults to the "user" role when nil.
	Roles   []string
	Profile *models.ProfileUpdate
}

// AdminUserUpdate lists the account fields an administrator may change.
// Nil fields are left untouched.
type AdminUserUpdate struct {
	Email    *string
	Roles    []string
	IsActive *bool
}

// UserService handles sign-in, profiles and user administration.
type UserService struct {
	repomanager repomanager.RepositoryManager
	tx          dbx.Transactor
	tokens      *TokenService
	logger      logging.Logger
	now         func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

// NewUserService constructs a UserService issuing tokens through tokens.
func NewUserService(m repomanager.RepositoryManager, tokens *TokenService, logger logging.Logger) *UserService {
	return &UserService{
		repomanager: m,
		tx:          m.Transactor(),
		tokens:      tokens,
		logger:      logger.With("module", "services.users"),
		now:         time.Now,
	}
}

// Login checks the credentials and starts a new token family. Unknown
// emails and wrong passwords both yield common.ErrorUnauthorized.
func (s *UserService) Login(ctx context.Context, email, password string, meta RequestMeta) (*TokenPair, error) {
	repo := s.repomanager.Users(s.tx.Conn())
	user, err := repo.GetByEmail(ctx, common.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			// Spend the same time as a real check so absent emails don't stand out.
			_, _ = cryptox.VerifyPassword(password, s.dummy())
			return nil, common.ErrorUnauthorized
		}
		return nil, storeErr(err)
	}

	ok, err := cryptox.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		s.logger.Error(ctx, "stored password hash is unusable", "user_id", user.ID, "error", err)
		return nil, common.ErrorUnauthorized
	}
	if !ok {
		return nil, common.ErrorUnauthorized
	}
	if user.IsBanned {
		return nil, common.ErrPrincipalBanned
	}
	if !user.IsActive {
		return nil, common.ErrPrincipalInactive
	}

	if err := repo.TouchLastLogin(ctx, user.ID, s.now()); err != nil {
		return nil, storeErr(err)
	}
	return s.tokens.IssueTokens(ctx, user, meta)
}

func (s *UserService) dummy() string {
	s.dummyOnce.Do(func() {
		pw, err := common.MakeRandHexString(16)
		if err == nil {
			s.dummyHash, _ = cryptox.HashPassword(pw)
		}
	})
	return s.dummyHash
}

// Get returns the user with live roles and, when one was saved, the profile.
func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	conn := s.tx.Conn()
	user, err := s.repomanager.Users(conn).GetByID(ctx, id)
	if err != nil {
		return nil, storeErr(err)
	}
	if err := s.attachProfile(ctx, conn, user); err != nil {
		return nil, storeErr(err)
	}
	return user, nil
}

// attachProfile sets user.Profile when a profile row exists.
func (s *UserService) attachProfile(ctx context.Context, db dbx.DBTX, user *models.User) error {
	profile, err := s.repomanager.Profiles(db).Get(ctx, user.ID)
	switch {
	case errors.Is(err, common.ErrorNotFound):
		return nil
	case err != nil:
		return err
	}
	user.Profile = profile
	return nil
}

// List returns every user, oldest first.
func (s *UserService) List(ctx context.Context) ([]*models.User, error) {
	users, err := s.repomanager.Users(s.tx.Conn()).List(ctx)
	if err != nil {
		return nil, storeErr(err)
	}
	return users, nil
}

// UpdateProfile applies the allow-listed fields of upd, creating the
// profile on first use.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, upd models.ProfileUpdate) (*models.Profile, error) {
	if err := validateMeta(upd.Meta); err != nil {
		return nil, err
	}

	var profile *models.Profile
	err := s.tx.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := s.repomanager.Users(tx).GetByID(ctx, userID); err != nil {
			return err
		}
		var err error
		profile, err = s.upsertProfile(ctx, tx, userID, upd)
		return err
	})
	if err != nil {
		return nil, storeErr(err)
	}
	return profile, nil
}

func (s *UserService) upsertProfile(ctx context.Context, tx dbx.DBTX, userID string, upd models.ProfileUpdate) (*models.Profile, error) {
	repo := s.repomanager.Profiles(tx)
	profile, err := repo.Get(ctx, userID)
	switch {
	case errors.Is(err, common.ErrorNotFound):
		profile = &models.Profile{UserID: userID}
	case err != nil:
		return nil, err
	}

	upd.Apply(profile)
	if err := repo.Upsert(ctx, profile); err != nil {
		return nil, err
	}
	return profile, nil
}

func validateMeta(meta json.RawMessage) error {
	if meta == nil {
		return nil
	}
	var obj map[string]any
	if err := json.Unmarshal(meta, &obj); err != nil || obj == nil {
		return fmt.Errorf("%w: meta must be a JSON object", common.ErrorValidation)
	}
	return nil
}

func validateEmail(email string) error {
	local, domain, ok := strings.Cut(email, "@")
	if !ok || local == "" || domain == "" || strings.ContainsAny(email, " \t") {
		return fmt.Errorf("%w: invalid email %q", common.ErrorValidation, email)
	}
	return nil
}

// CreateUser creates an active account and returns it together with the
// temporary password it was given.
func (s *UserService) CreateUser(ctx context.Context, in NewUser) (*models.User, string, error) {
	email := common.NormalizeEmail(in.Email)
	if err := validateEmail(email); err != nil {
		return nil, "", err
	}
	if in.Profile != nil {
		if err := validateMeta(in.Profile.Meta); err != nil {
			return nil, "", err
		}
	}

	password := in.TempPassword
	if password == "" {
		var err error
		if password, err = common.MakeRandHexString(8); err != nil {
			return nil, "", fmt.Errorf("%w: %w", common.ErrorInternal, err)
		}
	}
	hash, err := cryptox.HashPassword(password)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", common.ErrorInternal, err)
	}

	roles := in.Roles
	if roles == nil {
		roles = []string{common.RoleUser}
	}

	var user *models.User
	err = s.tx.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Users(tx)
		created, err := repo.Create(ctx, &models.User{Email: email, PasswordHash: hash, IsActive: true})
		if err != nil {
			return err
		}
		if err := repo.SetRoles(ctx, created.ID, roles); err != nil {
			return err
		}
		var profile *models.Profile
		if in.Profile != nil {
			if profile, err = s.upsertProfile(ctx, tx, created.ID, *in.Profile); err != nil {
				return err
			}
		}
		if user, err = repo.GetByID(ctx, created.ID); err != nil {
			return err
		}
		user.Profile = profile
		return nil
	})
	if err != nil {
		return nil, "", storeErr(err)
	}

	s.logger.Info(ctx, "user created", "user_id", user.ID, "roles", user.Roles)
	return user, password, nil
}

// AdminUpdate changes email, roles or the active flag of a user.
func (s *UserService) AdminUpdate(ctx context.Context, id string, upd AdminUserUpdate) (*models.User, error) {
	var email string
	if upd.Email != nil {
		email = common.NormalizeEmail(*upd.Email)
		if err := validateEmail(email); err != nil {
			return nil, err
		}
	}

	var user *models.User
	err := s.tx.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Users(tx)
		cur, err := repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if upd.Email != nil {
			cur.Email = email
		}
		if upd.IsActive != nil {
			cur.IsActive = *upd.IsActive
		}
		if err := repo.Update(ctx, cur); err != nil {
			return err
		}
		if upd.Roles != nil {
			if err := repo.SetRoles(ctx, id, upd.Roles); err != nil {
				return err
			}
		}
		if user, err = repo.GetByID(ctx, id); err != nil {
			return err
		}
		return s.attachProfile(ctx, tx, user)
	})
	if err != nil {
		return nil, storeErr(err)
	}
	return user, nil
}

// Ban blocks the user and revokes every refresh token it holds in the
// same transaction. Access tokens stop working at the next gate check.
func (s *UserService) Ban(ctx context.Context, actorID, id, reason string) (*models.User, error) {
	var user *models.User
	err := s.tx.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Users(tx)
		cur, err := repo.GetByID(ctx, id)
		if err != nil {
			return err
		}

		now := s.now()
		cur.IsBanned = true
		cur.BannedReason = optional(reason)
		cur.BannedBy = optional(actorID)
		cur.BannedAt = &now
		if err := repo.Update(ctx, cur); err != nil {
			return err
		}

		n, err := s.repomanager.RefreshTokens(tx).RevokeAllForUser(ctx, id, common.RevokeReasonBanned)
		if err != nil {
			return err
		}
		s.logger.Info(ctx, "user banned", "user_id", id, "actor_id", actorID, "revoked", n)
		user = cur
		return s.attachProfile(ctx, tx, user)
	})
	if err != nil {
		return nil, storeErr(err)
	}
	return user, nil
}

// Unban clears the ban. Tokens revoked by the ban stay revoked.
func (s *UserService) Unban(ctx context.Context, id string) (*models.User, error) {
	var user *models.User
	err := s.tx.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Users(tx)
		cur, err := repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		cur.IsBanned = false
		cur.BannedReason = nil
		cur.BannedBy = nil
		cur.BannedAt = nil
		if err := repo.Update(ctx, cur); err != nil {
			return err
		}
		user = cur
		return s.attachProfile(ctx, tx, user)
	})
	if err != nil {
		return nil, storeErr(err)
	}
	return user, nil
}
