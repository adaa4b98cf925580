// Package common defines shared constants and sentinel errors used across
// the server layers of buildingkeeper. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorValidation   = errors.New("validation error")

	// ErrStoreUnavailable marks a transient storage failure. It is never
	// reported as "not found" or "not revoked".
	ErrStoreUnavailable = errors.New("store unavailable")

	// Token decoding errors.
	ErrMissingToken        = errors.New("missing token")
	ErrInvalidToken        = errors.New("invalid token")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")

	// Token lifecycle errors.
	ErrRefreshTokenReuse = errors.New("refresh token reuse detected")
	ErrUserNotAllowed    = errors.New("user not allowed")

	// Principal resolution errors.
	ErrPrincipalNotFound      = errors.New("principal not found")
	ErrPrincipalBanned        = errors.New("principal banned")
	ErrPrincipalInactive      = errors.New("principal inactive")
	ErrInsufficientPrivileges = errors.New("insufficient privileges")
)
