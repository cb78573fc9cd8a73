package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestPasswordHasher_HashAndVerify(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)

	hash, err := h.Hash("secret1")
	require.NoError(t, err)
	assert.NotEqual(t, "secret1", hash)

	assert.True(t, h.Verify("secret1", hash))
	assert.False(t, h.Verify("secret2", hash))
}

func TestPasswordHasher_SaltsEachHash(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)

	a, err := h.Hash("same-password")
	require.NoError(t, err)
	b, err := h.Hash("same-password")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestPasswordHasher_MalformedHashIsMismatch(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)

	assert.False(t, h.Verify("secret1", ""))
	assert.False(t, h.Verify("secret1", "not-a-bcrypt-hash"))
	assert.False(t, h.Verify("secret1", "$2a$10$short"))
}

func TestPasswordHasher_LongPasswords(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)
	long := strings.Repeat("p", 128)

	hash, err := h.Hash(long)
	require.NoError(t, err)
	assert.True(t, h.Verify(long, hash))
}

func TestNewPasswordHasher_InvalidCostFallsBack(t *testing.T) {
	assert.Equal(t, bcrypt.DefaultCost, NewPasswordHasher(0).cost)
	assert.Equal(t, bcrypt.DefaultCost, NewPasswordHasher(bcrypt.MaxCost+1).cost)
	assert.Equal(t, bcrypt.MinCost, NewPasswordHasher(bcrypt.MinCost).cost)
}
