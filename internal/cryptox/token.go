package cryptox

import (
	"crypto/subtle"
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// HashToken returns the hex BLAKE3-256 digest of a raw token string. Refresh
// tokens are persisted only in this form.
func HashToken(raw string) string {
	sum := blake3.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// TokenHashEqual compares a raw token against a stored digest in constant time.
func TokenHashEqual(raw, stored string) bool {
	return subtle.ConstantTimeCompare([]byte(HashToken(raw)), []byte(stored)) == 1
}
