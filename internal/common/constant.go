// Package common contains shared constants and sentinel errors used across
// buildingkeeper components.
package common

// AccessTokenHeaderName is the gRPC metadata key that may carry a bare
// access token when the authorization header is not used.
const AccessTokenHeaderName = "access_token"

// AuthorizationHeaderName carries "Bearer <token>" over HTTP and gRPC.
const AuthorizationHeaderName = "authorization"

// Refresh token revocation reasons.
const (
	RevokeReasonRotated       = "rotated"
	RevokeReasonLogout        = "logout"
	RevokeReasonLogoutAll     = "logout_all"
	RevokeReasonBanned        = "banned"
	RevokeReasonReuseDetected = "reuse_detected"
)

// Built-in role names.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)
