// Package httpapi exposes the server over HTTP with gin. Browser clients
// keep the refresh token in an HttpOnly cookie; machine clients may send it
// as a bearer token instead.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dmitrijs2005/buildingkeeper/internal/logging"
	"github.com/dmitrijs2005/buildingkeeper/internal/server/models"
	"github.com/dmitrijs2005/buildingkeeper/internal/server/services"
)

// TokenManager is the part of services.TokenService used by the handlers.
type TokenManager interface {
	Rotate(ctx context.Context, presented string, meta services.RequestMeta) (*services.TokenPair, error)
	Revoke(ctx context.Context, presented, reason string) error
	RevokeAllForUser(ctx context.Context, userID, reason string) (int64, error)
}

// Gate authenticates requests. *services.AccessGate implements it.
type Gate interface {
	Authenticate(ctx context.Context, token string) (*services.Principal, error)
	Authorize(ctx context.Context, token, role string) (*services.Principal, error)
}

// UserManager is implemented by *services.UserService.
type UserManager interface {
	Login(ctx context.Context, email, password string, meta services.RequestMeta) (*services.TokenPair, error)
	Get(ctx context.Context, id string) (*models.User, error)
	List(ctx context.Context) ([]*models.User, error)
	UpdateProfile(ctx context.Context, userID string, upd models.ProfileUpdate) (*models.Profile, error)
	CreateUser(ctx context.Context, in services.NewUser) (*models.User, string, error)
	AdminUpdate(ctx context.Context, id string, upd services.AdminUserUpdate) (*models.User, error)
	Ban(ctx context.Context, actorID, id, reason string) (*models.User, error)
	Unban(ctx context.Context, id string) (*models.User, error)
}

// BuildingCatalog is implemented by *services.BuildingService.
type BuildingCatalog interface {
	Create(ctx context.Context, ownerID, name string) (*services.BuildingUpload, error)
	MarkUploaded(ctx context.Context, id string) error
	List(ctx context.Context) ([]*models.Building, error)
	Get(ctx context.Context, id string) (*services.BuildingView, error)
	Delete(ctx context.Context, id string) error
}

// CookieConfig describes the refresh token cookie.
type CookieConfig struct {
	Name     string
	Path     string
	Secure   bool
	SameSite http.SameSite
	MaxAge   time.Duration
}

// ParseSameSite maps "lax", "strict" and "none" to http.SameSite.
func ParseSameSite(s string) http.SameSite {
	switch strings.ToLower(s) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

type Server struct {
	address         string
	shutdownTimeout time.Duration

	router    *gin.Engine
	tokens    TokenManager
	gate      Gate
	users     UserManager
	buildings BuildingCatalog
	cookie    CookieConfig
	logger    logging.Logger
}

// Deps groups the collaborators of the HTTP server.
type Deps struct {
	Tokens    TokenManager
	Gate      Gate
	Users     UserManager
	Buildings BuildingCatalog
}

func NewServer(address string, shutdownTimeout time.Duration, deps Deps, cookie CookieConfig, logger logging.Logger) *Server {
	s := &Server{
		address:         address,
		shutdownTimeout: shutdownTimeout,
		tokens:          deps.Tokens,
		gate:            deps.Gate,
		users:           deps.Users,
		buildings:       deps.Buildings,
		cookie:          cookie,
		logger:          logger.With("module", "http_server"),
	}
	s.router = s.routes()
	return s
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "HTTP shutdown", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
