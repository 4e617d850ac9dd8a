package auth_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"lora-studio-backend/internal/auth"
)

func TestPasswordHashAndVerify(t *testing.T) {
	hasher := auth.NewPasswordHasher(bcrypt.MinCost)

	for _, password := range []string{"password123", "correct horse battery staple", "ünïcødé-pässwörd"} {
		digest, err := hasher.Hash(password)
		require.NoError(t, err)
		assert.NotEqual(t, password, digest)

		assert.True(t, hasher.Verify(password, digest))
		assert.False(t, hasher.Verify(password+"x", digest))
	}
}

func TestPasswordHashIsSalted(t *testing.T) {
	hasher := auth.NewPasswordHasher(bcrypt.MinCost)

	a, err := hasher.Hash("password123")
	require.NoError(t, err)
	b, err := hasher.Hash("password123")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestVerifyMalformedDigest(t *testing.T) {
	hasher := auth.NewPasswordHasher(bcrypt.MinCost)
	assert.False(t, hasher.Verify("password123", "not-a-bcrypt-digest"))
	assert.False(t, hasher.Verify("password123", ""))
}
