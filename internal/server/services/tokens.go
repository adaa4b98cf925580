// Package services contains server-side business logic: the refresh token
// lifecycle, the access gate guarding protected calls, user administration
// and the building catalog.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/dmitrijs2005/buildingkeeper/internal/common"
	"github.com/dmitrijs2005/buildingkeeper/internal/cryptox"
	"github.com/dmitrijs2005/buildingkeeper/internal/dbx"
	"github.com/dmitrijs2005/buildingkeeper/internal/logging"
	"github.com/dmitrijs2005/buildingkeeper/internal/server/auth"
	"github.com/dmitrijs2005/buildingkeeper/internal/server/models"
	"github.com/dmitrijs2005/buildingkeeper/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/buildingkeeper/internal/server/repositories/repomanager"
)

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// RequestMeta is stored with every refresh token for audit.
type RequestMeta struct {
	UserAgent string
	IPAddress string
}

// TokenCodec signs and verifies bearer tokens. *auth.Codec implements it.
type TokenCodec interface {
	Sign(ctx context.Context, claims auth.Claims, ttl time.Duration) (string, error)
	Verify(ctx context.Context, token string) (*auth.Claims, error)
}

// TokenService issues token pairs and runs the refresh token rotation
// protocol. Every refresh token belongs to a family started at login; a
// token may rotate successfully once, and presenting it again revokes the
// whole family.
type TokenService struct {
	repomanager repomanager.RepositoryManager
	tx          dbx.Transactor
	codec       TokenCodec
	accessTTL   time.Duration
	refreshTTL  time.Duration
	logger      logging.Logger
	now         func() time.Time
}

// NewTokenService constructs a TokenService.
func NewTokenService(m repomanager.RepositoryManager, codec TokenCodec, accessTTL, refreshTTL time.Duration, logger logging.Logger) *TokenService {
	return &TokenService{
		repomanager: m,
		tx:          m.Transactor(),
		codec:       codec,
		accessTTL:   accessTTL,
		refreshTTL:  refreshTTL,
		logger:      logger.With("module", "services.tokens"),
		now:         time.Now,
	}
}

// IssueTokens starts a new family for user and returns its first pair.
func (s *TokenService) IssueTokens(ctx context.Context, user *models.User, meta RequestMeta) (*TokenPair, error) {
	pair, record, err := s.mint(ctx, user, uuid.NewString(), uuid.NewString(), meta)
	if err != nil {
		return nil, err
	}

	repo := s.repomanager.RefreshTokens(s.tx.Conn())
	if err := repo.Create(ctx, record); err != nil {
		return nil, storeErr(err)
	}
	return pair, nil
}

// Rotate exchanges a refresh token for a new pair in the same family.
//
// A token whose record is missing or already revoked is a replay: the whole
// family is revoked and ErrRefreshTokenReuse returned. A user who is gone,
// banned or inactive gets ErrUserNotAllowed and the presented token stays
// revoked; this takes precedence over replay detection for tokens revoked
// by a ban. Both outcomes are committed before the error is returned. Store
// failures roll everything back and yield ErrStoreUnavailable.
func (s *TokenService) Rotate(ctx context.Context, presented string, meta RequestMeta) (*TokenPair, error) {
	claims, err := s.codec.Verify(ctx, presented)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrInvalidRefreshToken, err)
	}
	if claims.Type != auth.TokenTypeRefresh {
		return nil, fmt.Errorf("%w: got %q token", common.ErrInvalidRefreshToken, claims.Type)
	}

	var (
		pair    *TokenPair
		outcome error
	)
	err = s.tx.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		pair, outcome = nil, nil
		repo := s.repomanager.RefreshTokens(tx)

		record, err := repo.FindByJTI(ctx, claims.ID)
		switch {
		case errors.Is(err, common.ErrorNotFound):
			if err := s.revokeFamily(ctx, repo, claims, claims.FamilyID); err != nil {
				return err
			}
			outcome = common.ErrRefreshTokenReuse
			return nil
		case err != nil:
			return err
		}

		if record.UserID != claims.Subject || record.FamilyID != claims.FamilyID ||
			!cryptox.TokenHashEqual(presented, record.TokenHash) {
			s.logger.Warn(ctx, "refresh token does not match its record", "jti", claims.ID, "user_id", claims.Subject)
			outcome = common.ErrInvalidRefreshToken
			return nil
		}

		user, err := s.repomanager.Users(tx).GetByID(ctx, claims.Subject)
		if err != nil && !errors.Is(err, common.ErrorNotFound) {
			return err
		}
		allowed := err == nil && user.IsActive && !user.IsBanned

		if record.Revoked {
			if err := s.revokeFamily(ctx, repo, claims, record.FamilyID); err != nil {
				return err
			}
			// A ban revokes every token; report the ban rather than a replay.
			outcome = common.ErrRefreshTokenReuse
			if !allowed {
				outcome = common.ErrUserNotAllowed
			}
			return nil
		}

		nextJTI := uuid.NewString()
		var replacedBy *string
		if allowed {
			replacedBy = &nextJTI
		}
		flipped, err := repo.Revoke(ctx, record.JTI, common.RevokeReasonRotated, replacedBy)
		if err != nil {
			return err
		}
		if !flipped {
			// A concurrent rotation won the compare-and-set.
			if err := s.revokeFamily(ctx, repo, claims, record.FamilyID); err != nil {
				return err
			}
			outcome = common.ErrRefreshTokenReuse
			return nil
		}
		if !allowed {
			s.logger.Warn(ctx, "rotation denied", "user_id", claims.Subject, "family_id", record.FamilyID)
			outcome = common.ErrUserNotAllowed
			return nil
		}

		next, nextRecord, err := s.mint(ctx, user, record.FamilyID, nextJTI, meta)
		if err != nil {
			return err
		}
		if err := repo.Create(ctx, nextRecord); err != nil {
			return err
		}
		pair = next
		return nil
	})
	if err != nil {
		return nil, storeErr(err)
	}
	if outcome != nil {
		return nil, outcome
	}
	return pair, nil
}

// revokeFamily handles a replayed refresh token.
func (s *TokenService) revokeFamily(ctx context.Context, repo refreshtokens.Repository, claims *auth.Claims, familyID string) error {
	n, err := repo.RevokeFamily(ctx, familyID, common.RevokeReasonReuseDetected)
	if err != nil {
		return err
	}
	s.logger.Warn(ctx, "refresh token reuse detected",
		"family_id", familyID, "user_id", claims.Subject, "jti", claims.ID, "revoked", n)
	return nil
}

// Revoke marks the record of a presented refresh token revoked. Tokens that
// fail to verify, and access tokens, are ignored.
func (s *TokenService) Revoke(ctx context.Context, presented, reason string) error {
	claims, err := s.codec.Verify(ctx, presented)
	if err != nil {
		s.logger.Debug(ctx, "ignoring revoke of undecodable token", "reason", auth.ReasonOf(err))
		return nil
	}
	if claims.Type != auth.TokenTypeRefresh {
		return nil
	}

	repo := s.repomanager.RefreshTokens(s.tx.Conn())
	if _, err := repo.Revoke(ctx, claims.ID, reason, nil); err != nil {
		return storeErr(err)
	}
	return nil
}

// RevokeAllForUser revokes every live refresh token of userID and reports
// how many were revoked. Calling it again is a no-op.
func (s *TokenService) RevokeAllForUser(ctx context.Context, userID, reason string) (int64, error) {
	repo := s.repomanager.RefreshTokens(s.tx.Conn())
	n, err := repo.RevokeAllForUser(ctx, userID, reason)
	if err != nil {
		return 0, storeErr(err)
	}
	return n, nil
}

// mint signs an access and a refresh token for user and builds the record
// persisted for the refresh token.
func (s *TokenService) mint(ctx context.Context, user *models.User, familyID, jti string, meta RequestMeta) (*TokenPair, *models.RefreshToken, error) {
	access, err := s.codec.Sign(ctx, auth.Claims{
		Type:  auth.TokenTypeAccess,
		Roles: append([]string(nil), user.Roles...),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: user.ID,
			ID:      uuid.NewString(),
		},
	}, s.accessTTL)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: sign access token: %w", common.ErrorInternal, err)
	}

	refresh, err := s.codec.Sign(ctx, auth.Claims{
		Type:     auth.TokenTypeRefresh,
		FamilyID: familyID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: user.ID,
			ID:      jti,
		},
	}, s.refreshTTL)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: sign refresh token: %w", common.ErrorInternal, err)
	}

	issuedAt := s.now()
	record := &models.RefreshToken{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		JTI:       jti,
		TokenHash: cryptox.HashToken(refresh),
		FamilyID:  familyID,
		IssuedAt:  issuedAt,
		ExpiresAt: issuedAt.Add(s.refreshTTL),
		UserAgent: optional(meta.UserAgent),
		IPAddress: optional(meta.IPAddress),
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, record, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// storeErr marks err as a storage failure unless it already carries a
// meaning of its own.
func storeErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, common.ErrStoreUnavailable),
		errors.Is(err, common.ErrorNotFound),
		errors.Is(err, common.ErrorAlreadyExists),
		errors.Is(err, common.ErrorValidation),
		errors.Is(err, common.ErrorInternal):
		return err
	}
	return fmt.Errorf("%w: %w", common.ErrStoreUnavailable, err)
}
