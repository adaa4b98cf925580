// Package auth signs and verifies the bearer tokens handed to clients.
//
// Tokens are JWTs signed with a configured asymmetric algorithm (RS256,
// RS384, RS512 or EdDSA) when a key pair is available, and with HS256 over
// the shared secret otherwise. Verification accepts either, so both
// algorithms may be live at the same time.
package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// Claims is the payload of every token. Access tokens carry a snapshot of
// the principal's roles at issuance; refresh tokens carry the family id
// shared by every token rotated from the same login.
type Claims struct {
	Type     string   `json:"type"`
	FamilyID string   `json:"family_id,omitempty"`
	Roles    []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// Validate is called by the jwt parser after the registered claims checks.
func (c Claims) Validate() error {
	if c.Subject == "" {
		return errors.New("missing sub")
	}
	if c.ID == "" {
		return errors.New("missing jti")
	}
	switch c.Type {
	case TokenTypeAccess:
	case TokenTypeRefresh:
		if c.FamilyID == "" {
			return errors.New("refresh token without family_id")
		}
	default:
		return fmt.Errorf("unknown token type %q", c.Type)
	}
	return nil
}
