package grpc

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/dmitrijs2005/buildingkeeper/internal/common"
	"github.com/dmitrijs2005/buildingkeeper/internal/server/auth"
	"github.com/dmitrijs2005/buildingkeeper/internal/server/services"
	"github.com/dmitrijs2005/buildingkeeper/internal/tokenapi"
)

// protectedMethods require an access token.
var protectedMethods = map[string]bool{
	tokenapi.MethodLogoutAll: true,
	tokenapi.MethodWhoAmI:    true,
}

// accessToken returns the token from "authorization: Bearer <token>" or,
// failing that, the bare access_token metadata key.
func accessToken(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if values := md.Get(common.AuthorizationHeaderName); len(values) > 0 {
		if token := auth.BearerToken(values[0]); token != "" {
			return token
		}
	}
	if values := md.Get(common.AccessTokenHeaderName); len(values) > 0 {
		return values[0]
	}
	return ""
}

func (s *GRPCServer) accessTokenInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {

	if protectedMethods[info.FullMethod] {

		p, err := s.gate.Authenticate(ctx, accessToken(ctx))
		if err != nil {
			return nil, toStatus(err)
		}

		ctx = services.WithPrincipal(ctx, p)

	}

	return handler(ctx, req)
}

func (s *GRPCServer) loggingInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	s.logger.Debug(ctx, "rpc",
		"method", info.FullMethod,
		"code", status.Code(err).String(),
		"duration", time.Since(start),
	)
	return resp, err
}
