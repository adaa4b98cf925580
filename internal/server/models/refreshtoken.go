package models

import "time"

// RefreshToken is the stored record of one issued refresh token. The raw
// token never reaches the database, only its hash. Revoked only moves from
// false to true.
type RefreshToken struct {
	ID            string
	UserID        string
	JTI           string
	TokenHash     string
	FamilyID      string
	Revoked       bool
	RevokedReason *string
	RevokedAt     *time.Time
	// ReplacedBy is the jti of the successor minted when this token was rotated.
	ReplacedBy *string
	IssuedAt   time.Time
	ExpiresAt  time.Time
	UserAgent  *string
	IPAddress  *string
	CreatedAt  time.Time
}
