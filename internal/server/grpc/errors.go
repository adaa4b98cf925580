package grpc

import (
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dmitrijs2005/buildingkeeper/internal/common"
)

var codeTable = []struct {
	err  error
	code codes.Code
	msg  string
}{
	{common.ErrMissingToken, codes.Unauthenticated, "missing token"},
	{common.ErrRefreshTokenReuse, codes.Unauthenticated, "refresh token reuse detected"},
	{common.ErrInvalidRefreshToken, codes.Unauthenticated, "invalid refresh token"},
	{common.ErrInvalidToken, codes.Unauthenticated, "invalid token"},
	{common.ErrPrincipalNotFound, codes.Unauthenticated, "user not found"},
	{common.ErrorUnauthorized, codes.Unauthenticated, "invalid credentials"},
	{common.ErrUserNotAllowed, codes.PermissionDenied, "user not allowed"},
	{common.ErrPrincipalBanned, codes.PermissionDenied, "user banned"},
	{common.ErrPrincipalInactive, codes.PermissionDenied, "user inactive"},
	{common.ErrInsufficientPrivileges, codes.PermissionDenied, "insufficient privileges"},
	{common.ErrorNotFound, codes.NotFound, "not found"},
	{common.ErrorAlreadyExists, codes.AlreadyExists, "already exists"},
	{common.ErrorValidation, codes.InvalidArgument, ""},
	{common.ErrStoreUnavailable, codes.Unavailable, "service temporarily unavailable"},
}

// toStatus converts a service error into a gRPC status error.
func toStatus(err error) error {
	for _, e := range codeTable {
		if errors.Is(err, e.err) {
			msg := e.msg
			if msg == "" {
				msg = err.Error()
			}
			return status.Error(e.code, msg)
		}
	}
	return status.Error(codes.Internal, "internal error")
}
