package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/buildingkeeper/internal/common"
	"github.com/dmitrijs2005/buildingkeeper/internal/logging"
	"github.com/dmitrijs2005/buildingkeeper/internal/server/auth"
	"github.com/dmitrijs2005/buildingkeeper/internal/server/models"
	"github.com/dmitrijs2005/buildingkeeper/internal/server/repositories/repomanager"
)

// Principal is the caller of a protected operation: the user as currently
// stored and the claims of the access token that authenticated it.
type Principal struct {
	User   *models.User
	Claims *auth.Claims
}

// AccessGate authenticates access tokens and checks roles. The user is
// reloaded on every call so bans and role changes apply immediately.
type AccessGate struct {
	repomanager repomanager.RepositoryManager
	codec       TokenCodec
	logger      logging.Logger
}

func NewAccessGate(m repomanager.RepositoryManager, codec TokenCodec, logger logging.Logger) *AccessGate {
	return &AccessGate{
		repomanager: m,
		codec:       codec,
		logger:      logger.With("module", "services.gate"),
	}
}

// Authenticate resolves the principal behind a raw access token.
func (g *AccessGate) Authenticate(ctx context.Context, token string) (*Principal, error) {
	if strings.TrimSpace(token) == "" {
		return nil, common.ErrMissingToken
	}

	claims, err := g.codec.Verify(ctx, token)
	if err != nil {
		g.logger.Debug(ctx, "access token rejected", "reason", auth.ReasonOf(err))
		return nil, err
	}
	if claims.Type != auth.TokenTypeAccess {
		return nil, &auth.InvalidTokenError{
			Reason: auth.ReasonInvalidClaims,
			Err:    fmt.Errorf("expected %s token, got %s", auth.TokenTypeAccess, claims.Type),
		}
	}

	user, err := g.repomanager.Users(g.repomanager.Transactor().Conn()).GetByID(ctx, claims.Subject)
	switch {
	case errors.Is(err, common.ErrorNotFound):
		return nil, common.ErrPrincipalNotFound
	case err != nil:
		return nil, storeErr(err)
	case user.IsBanned:
		return nil, common.ErrPrincipalBanned
	case !user.IsActive:
		return nil, common.ErrPrincipalInactive
	}

	return &Principal{User: user, Claims: claims}, nil
}

// RequireRole checks the live roles of p, never the token snapshot.
func (g *AccessGate) RequireRole(p *Principal, role string) error {
	if p == nil || p.User == nil {
		return common.ErrMissingToken
	}
	if !p.User.HasRole(role) {
		return common.ErrInsufficientPrivileges
	}
	return nil
}

// Authorize is Authenticate followed by RequireRole.
func (g *AccessGate) Authorize(ctx context.Context, token, role string) (*Principal, error) {
	p, err := g.Authenticate(ctx, token)
	if err != nil {
		return nil, err
	}
	if err := g.RequireRole(p, role); err != nil {
		return nil, err
	}
	return p, nil
}

type principalKey struct{}

// WithPrincipal stores p in ctx for handlers behind the gate.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the principal stored by WithPrincipal.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	return p, ok && p != nil
}
