// Package tokenapi describes the gRPC token service shared by the server and
// the command-line client.
package tokenapi

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified name of the token service. Messages are
// protobuf well-known types, so clients need no generated stubs.
const ServiceName = "buildingkeeper.auth.v1.TokenService"

const (
	MethodLogin     = "/" + ServiceName + "/Login"
	MethodRefresh   = "/" + ServiceName + "/Refresh"
	MethodLogout    = "/" + ServiceName + "/Logout"
	MethodLogoutAll = "/" + ServiceName + "/LogoutAll"
	MethodWhoAmI    = "/" + ServiceName + "/WhoAmI"
)

// TokenServiceServer is the server API of the token service.
//
// Login takes {"email", "password"} and, like Refresh, answers with
// {"access", "refresh"}. WhoAmI answers with the authenticated user.
type TokenServiceServer interface {
	Login(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Refresh(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	Logout(context.Context, *wrapperspb.StringValue) (*emptypb.Empty, error)
	LogoutAll(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	WhoAmI(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

func unary[Req, Resp proto.Message](name string, newReq func() Req, call func(TokenServiceServer, context.Context, Req) (Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := newReq()
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(TokenServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + name}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(TokenServiceServer), ctx, req.(Req))
			})
		},
	}
}

var tokenServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*TokenServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Login", func() *structpb.Struct { return new(structpb.Struct) }, TokenServiceServer.Login),
		unary("Refresh", func() *wrapperspb.StringValue { return new(wrapperspb.StringValue) }, TokenServiceServer.Refresh),
		unary("Logout", func() *wrapperspb.StringValue { return new(wrapperspb.StringValue) }, TokenServiceServer.Logout),
		unary("LogoutAll", func() *emptypb.Empty { return new(emptypb.Empty) }, TokenServiceServer.LogoutAll),
		unary("WhoAmI", func() *emptypb.Empty { return new(emptypb.Empty) }, TokenServiceServer.WhoAmI),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "buildingkeeper/auth/v1/token_service.proto",
}

// RegisterTokenServiceServer registers srv on s.
func RegisterTokenServiceServer(s grpc.ServiceRegistrar, srv TokenServiceServer) {
	s.RegisterService(&tokenServiceDesc, srv)
}

// TokenServiceClient calls the token service over cc.
type TokenServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewTokenServiceClient(cc grpc.ClientConnInterface) *TokenServiceClient {
	return &TokenServiceClient{cc: cc}
}

func (c *TokenServiceClient) Login(ctx context.Context, email, password string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(map[string]any{"email": email, "password": password})
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, MethodLogin, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *TokenServiceClient) Refresh(ctx context.Context, refresh string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, MethodRefresh, wrapperspb.String(refresh), out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *TokenServiceClient) Logout(ctx context.Context, refresh string, opts ...grpc.CallOption) error {
	return c.cc.Invoke(ctx, MethodLogout, wrapperspb.String(refresh), new(emptypb.Empty), opts...)
}

func (c *TokenServiceClient) LogoutAll(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, MethodLogoutAll, new(emptypb.Empty), out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *TokenServiceClient) WhoAmI(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, MethodWhoAmI, new(emptypb.Empty), out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
