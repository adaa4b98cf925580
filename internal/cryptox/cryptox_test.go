package cryptox

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPassword_RoundTrip(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$m=65536,t=1,p=4$"))

	ok, err := VerifyPassword("correct horse battery staple", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyPassword("wrong", hash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHashPassword_SaltedPerCall(t *testing.T) {
	h1, err := HashPassword("same-password")
	require.NoError(t, err)
	h2, err := HashPassword("same-password")
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)
}

func TestHashPassword_Empty(t *testing.T) {
	_, err := HashPassword("")
	assert.ErrorIs(t, err, ErrEmptyPassword)
}

func TestVerifyPassword_MalformedHash(t *testing.T) {
	valid, err := HashPassword("pw")
	require.NoError(t, err)
	parts := strings.Split(valid, "$")

	cases := map[string]string{
		"empty":         "",
		"wrong algo":    "$bcrypt$v=19$m=65536,t=1,p=4$c2FsdA$aGFzaA",
		"wrong version": "$argon2id$v=16$" + strings.Join(parts[3:], "$"),
		"bad params":    "$argon2id$v=19$m=x,t=1,p=4$" + strings.Join(parts[4:], "$"),
		"zero params":   "$argon2id$v=19$m=0,t=1,p=4$" + strings.Join(parts[4:], "$"),
		"bad salt":      "$argon2id$v=19$" + parts[3] + "$!!$" + parts[5],
		"bad key":       "$argon2id$v=19$" + parts[3] + "$" + parts[4] + "$!!",
		"too few parts": "$argon2id$v=19$m=65536,t=1,p=4",
	}

	for name, encoded := range cases {
		t.Run(name, func(t *testing.T) {
			ok, err := VerifyPassword("pw", encoded)
			assert.False(t, ok)
			assert.ErrorIs(t, err, ErrInvalidHash)
		})
	}
}

func TestHashToken(t *testing.T) {
	h1 := HashToken("token-a")
	h2 := HashToken("token-a")
	h3 := HashToken("token-b")

	assert.Equal(t, h1, h2, "deterministic")
	assert.NotEqual(t, h1, h3)
	assert.Len(t, h1, 64)
	assert.NotContains(t, h1, "token-a")

	assert.True(t, TokenHashEqual("token-a", h1))
	assert.False(t, TokenHashEqual("token-b", h1))
}
