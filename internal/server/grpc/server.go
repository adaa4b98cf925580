package grpc

import (
	"context"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/dmitrijs2005/buildingkeeper/internal/logging"
	"github.com/dmitrijs2005/buildingkeeper/internal/server/models"
	"github.com/dmitrijs2005/buildingkeeper/internal/server/services"
	"github.com/dmitrijs2005/buildingkeeper/internal/tokenapi"
)

// TokenManager is implemented by *services.TokenService.
type TokenManager interface {
	Rotate(ctx context.Context, presented string, meta services.RequestMeta) (*services.TokenPair, error)
	Revoke(ctx context.Context, presented, reason string) error
	RevokeAllForUser(ctx context.Context, userID, reason string) (int64, error)
}

// Authenticator is implemented by *services.UserService.
type Authenticator interface {
	Login(ctx context.Context, email, password string, meta services.RequestMeta) (*services.TokenPair, error)
	Get(ctx context.Context, id string) (*models.User, error)
}

// Gate is implemented by *services.AccessGate.
type Gate interface {
	Authenticate(ctx context.Context, token string) (*services.Principal, error)
}

type GRPCServer struct {
	address string
	tokens  TokenManager
	users   Authenticator
	gate    Gate
	health  *health.Server
	logger  logging.Logger
}

func NewGRPCServer(a string, l logging.Logger, tokens TokenManager, users Authenticator, gate Gate) *GRPCServer {
	return &GRPCServer{
		address: a,
		logger:  l.With("module", "grpc_server"),
		tokens:  tokens,
		users:   users,
		gate:    gate,
		health:  health.NewServer(),
	}
}

func (s *GRPCServer) newServer() *grpc.Server {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.loggingInterceptor, s.accessTokenInterceptor))

	tokenapi.RegisterTokenServiceServer(srv, &tokenService{s: s})
	healthpb.RegisterHealthServer(srv, s.health)
	s.health.SetServingStatus(tokenapi.ServiceName, healthpb.HealthCheckResponse_SERVING)

	return srv
}

func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	return s.Serve(ctx, listen)
}

// Serve accepts connections on lis until ctx is canceled.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := s.newServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		s.health.Shutdown()
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	// starts accepting incoming connections
	if err := srv.Serve(lis); err != nil {
		return err
	}

	return nil
}
