package auth_test

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"lora-studio-backend/internal/auth"
)

func TestTokenRoundTrip(t *testing.T) {
	svc := auth.NewTokenService("secret", 7*24*time.Hour)

	for _, identity := range []auth.Identity{
		{ID: "user-1", Email: "alice@example.com"},
		{ID: "7f8a6f0e-0000-4000-8000-000000000000", Email: ""},
	} {
		token, err := svc.Issue(identity)
		require.NoError(t, err)

		got, err := svc.Verify(token)
		require.NoError(t, err)
		assert.Equal(t, identity, got)
	}
}

func TestTokenExpires(t *testing.T) {
	issued := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	svc := auth.NewTokenService("secret", time.Hour).WithClock(func() time.Time { return issued })

	token, err := svc.Issue(auth.Identity{ID: "u1", Email: "a@b.c"})
	require.NoError(t, err)

	_, err = svc.WithClock(func() time.Time { return issued.Add(59 * time.Minute) }).Verify(token)
	assert.NoError(t, err)

	_, err = svc.WithClock(func() time.Time { return issued.Add(2 * time.Hour) }).Verify(token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestVerifyFailsUniformly(t *testing.T) {
	svc := auth.NewTokenService("secret", time.Hour)
	other := auth.NewTokenService("other-secret", time.Hour)

	foreign, err := other.Issue(auth.Identity{ID: "u1"})
	require.NoError(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub": "u1",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	noExp := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "u1"})
	noExpToken, err := noExp.SignedString([]byte("secret"))
	require.NoError(t, err)

	valid, err := svc.Issue(auth.Identity{ID: "u1"})
	require.NoError(t, err)
	tampered := valid[:strings.LastIndex(valid, ".")] + ".AAAA"

	for name, token := range map[string]string{
		"empty":       "",
		"garbage":     "not-a-token",
		"foreign key": foreign,
		"alg none":    unsigned,
		"no expiry":   noExpToken,
		"tampered":    tampered,
	} {
		_, err := svc.Verify(token)
		assert.ErrorIs(t, err, auth.ErrInvalidToken, name)
	}
}

func TestIssueRequiresID(t *testing.T) {
	_, err := auth.NewTokenService("secret", time.Hour).Issue(auth.Identity{Email: "x@y.z"})
	assert.Error(t, err)
}
