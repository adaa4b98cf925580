package auth

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dmitrijs2005/buildingkeeper/internal/common"
)

// Reason classifies why a token was rejected.
type Reason string

const (
	ReasonExpired       Reason = "expired"
	ReasonNotYetValid   Reason = "not_yet_valid"
	ReasonMalformed     Reason = "malformed"
	ReasonBadSignature  Reason = "bad_signature"
	ReasonInvalidClaims Reason = "invalid_claims"
)

// InvalidTokenError is returned by Codec.Verify. It matches
// common.ErrInvalidToken as well as the underlying jwt error.
type InvalidTokenError struct {
	Reason Reason
	Err    error
}

func (e *InvalidTokenError) Error() string {
	if e.Err == nil {
		return "invalid token: " + string(e.Reason)
	}
	return "invalid token: " + string(e.Reason) + ": " + e.Err.Error()
}

func (e *InvalidTokenError) Unwrap() []error {
	if e.Err == nil {
		return []error{common.ErrInvalidToken}
	}
	return []error{common.ErrInvalidToken, e.Err}
}

// ReasonOf returns the rejection reason carried by err, or "" when err is
// not an InvalidTokenError.
func ReasonOf(err error) Reason {
	var ite *InvalidTokenError
	if errors.As(err, &ite) {
		return ite.Reason
	}
	return ""
}

func classify(err error) Reason {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ReasonExpired
	case errors.Is(err, jwt.ErrTokenNotValidYet), errors.Is(err, jwt.ErrTokenUsedBeforeIssued):
		return ReasonNotYetValid
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ReasonMalformed
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return ReasonBadSignature
	default:
		return ReasonInvalidClaims
	}
}

// authentic reports whether the signature checked out and only the claims
// were rejected. Such a token must not be retried with another key.
func authentic(r Reason) bool {
	return r == ReasonExpired || r == ReasonNotYetValid || r == ReasonInvalidClaims
}
