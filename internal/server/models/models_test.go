package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func ptr(s string) *string { return &s }

func TestProfileUpdate_Apply(t *testing.T) {
	p := &Profile{UserID: "u1", FirstName: ptr("Ann"), Phone: ptr("1")}

	upd := ProfileUpdate{DisplayName: ptr("annie"), Phone: ptr("2"), Meta: json.RawMessage(`{"a":1}`)}
	assert.False(t, upd.Empty())
	upd.Apply(p)

	assert.Equal(t, "annie", *p.DisplayName)
	assert.Equal(t, "Ann", *p.FirstName, "nil fields untouched")
	assert.Equal(t, "2", *p.Phone)
	assert.Nil(t, p.LastName)
	assert.JSONEq(t, `{"a":1}`, string(p.Meta))

	*upd.Phone = "3"
	assert.Equal(t, "2", *p.Phone, "apply copies values")
}

func TestProfileUpdate_Empty(t *testing.T) {
	assert.True(t, ProfileUpdate{}.Empty())
}

func TestUser_HasRole(t *testing.T) {
	u := &User{Roles: []string{"user", "admin"}}
	assert.True(t, u.HasRole("admin"))
	assert.False(t, u.HasRole("root"))
	assert.False(t, (&User{}).HasRole("user"))
}
