package grpc

import (
	"context"
	"net"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/dmitrijs2005/buildingkeeper/internal/common"
	"github.com/dmitrijs2005/buildingkeeper/internal/server/auth"
	"github.com/dmitrijs2005/buildingkeeper/internal/server/models"
	"github.com/dmitrijs2005/buildingkeeper/internal/server/services"
)

// tokenService adapts GRPCServer to TokenServiceServer.
type tokenService struct {
	s *GRPCServer
}

func requestMeta(ctx context.Context) services.RequestMeta {
	var meta services.RequestMeta
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if ua := md.Get("user-agent"); len(ua) > 0 {
			meta.UserAgent = ua[0]
		}
	}
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		addr := p.Addr.String()
		if host, _, err := net.SplitHostPort(addr); err == nil {
			addr = host
		}
		meta.IPAddress = addr
	}
	return meta
}

func tokenPair(pair *services.TokenPair) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"access":  structpb.NewStringValue(pair.AccessToken),
		"refresh": structpb.NewStringValue(pair.RefreshToken),
	}}
}

func (t *tokenService) Login(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()
	email := fields["email"].GetStringValue()
	password := fields["password"].GetStringValue()
	if email == "" || password == "" {
		return nil, status.Error(codes.InvalidArgument, "email and password are required")
	}

	pair, err := t.s.users.Login(ctx, email, password, requestMeta(ctx))
	if err != nil {
		return nil, toStatus(err)
	}

	return tokenPair(pair), nil
}

// refreshToken prefers the request value and falls back to the bearer token
// in metadata.
func refreshToken(ctx context.Context, req *wrapperspb.StringValue) string {
	if v := req.GetValue(); v != "" {
		return v
	}
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get(common.AuthorizationHeaderName); len(values) > 0 {
			return auth.BearerToken(values[0])
		}
	}
	return ""
}

func (t *tokenService) Refresh(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	token := refreshToken(ctx, req)
	if token == "" {
		return nil, toStatus(common.ErrMissingToken)
	}

	pair, err := t.s.tokens.Rotate(ctx, token, requestMeta(ctx))
	if err != nil {
		return nil, toStatus(err)
	}

	return tokenPair(pair), nil
}

func (t *tokenService) Logout(ctx context.Context, req *wrapperspb.StringValue) (*emptypb.Empty, error) {
	token := refreshToken(ctx, req)
	if token == "" {
		return nil, status.Error(codes.InvalidArgument, "missing refresh token")
	}

	if err := t.s.tokens.Revoke(ctx, token, common.RevokeReasonLogout); err != nil {
		return nil, toStatus(err)
	}

	return &emptypb.Empty{}, nil
}

func (t *tokenService) LogoutAll(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	p, ok := services.PrincipalFromContext(ctx)
	if !ok {
		return nil, toStatus(common.ErrMissingToken)
	}

	n, err := t.s.tokens.RevokeAllForUser(ctx, p.User.ID, common.RevokeReasonLogoutAll)
	if err != nil {
		return nil, toStatus(err)
	}

	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"detail":  structpb.NewStringValue("logged_out_all"),
		"revoked": structpb.NewNumberValue(float64(n)),
	}}, nil
}

func (t *tokenService) WhoAmI(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	p, ok := services.PrincipalFromContext(ctx)
	if !ok {
		return nil, toStatus(common.ErrMissingToken)
	}

	u, err := t.s.users.Get(ctx, p.User.ID)
	if err != nil {
		return nil, toStatus(err)
	}

	return userStruct(u), nil
}

func userStruct(u *models.User) *structpb.Struct {
	roles := make([]*structpb.Value, 0, len(u.Roles))
	for _, r := range u.Roles {
		roles = append(roles, structpb.NewStringValue(r))
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"id":        structpb.NewStringValue(u.ID),
		"email":     structpb.NewStringValue(u.Email),
		"is_active": structpb.NewBoolValue(u.IsActive),
		"is_banned": structpb.NewBoolValue(u.IsBanned),
		"roles":     structpb.NewListValue(&structpb.ListValue{Values: roles}),
	}}
}
