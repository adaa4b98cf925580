// Package models defines server-side data models persisted in the database.
package models

import (
	"encoding/json"
	"time"
)

// User is an account able to sign in. Roles are always the live set loaded
// from user_roles, never the snapshot embedded in an access token.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	IsActive     bool
	IsBanned     bool

	BannedReason *string
	BannedBy     *string
	BannedAt     *time.Time
	LastLoginAt  *time.Time

	Roles   []string
	Profile *Profile

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasRole reports whether name is among the user's roles.
func (u *User) HasRole(name string) bool {
	for _, r := range u.Roles {
		if r == name {
			return true
		}
	}
	return false
}

// Profile holds the user-editable part of an account.
type Profile struct {
	UserID      string
	DisplayName *string
	FirstName   *string
	LastName    *string
	Phone       *string
	AvatarURL   *string
	Timezone    *string
	Meta        json.RawMessage
	UpdatedAt   time.Time
}

// ProfileUpdate lists the profile fields a caller may change. Nil fields are
// left untouched.
type ProfileUpdate struct {
	DisplayName *string
	FirstName   *string
	LastName    *string
	Phone       *string
	AvatarURL   *string
	Timezone    *string
	Meta        json.RawMessage
}

// Apply copies the non-nil fields of u onto p.
func (u ProfileUpdate) Apply(p *Profile) {
	set := func(dst **string, src *string) {
		if src != nil {
			v := *src
			*dst = &v
		}
	}
	set(&p.DisplayName, u.DisplayName)
	set(&p.FirstName, u.FirstName)
	set(&p.LastName, u.LastName)
	set(&p.Phone, u.Phone)
	set(&p.AvatarURL, u.AvatarURL)
	set(&p.Timezone, u.Timezone)
	if u.Meta != nil {
		p.Meta = append(json.RawMessage(nil), u.Meta...)
	}
}

// Empty reports whether the update changes nothing.
func (u ProfileUpdate) Empty() bool {
	return u.DisplayName == nil && u.FirstName == nil && u.LastName == nil &&
		u.Phone == nil && u.AvatarURL == nil && u.Timezone == nil && u.Meta == nil
}
