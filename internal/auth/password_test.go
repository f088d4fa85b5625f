package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestBcryptPasswordHasher(t *testing.T) {
	hasher := NewBcryptPasswordHasher(bcrypt.MinCost)

	hash, err := hasher.Hash("secret")
	require.NoError(t, err)
	require.NotEqual(t, "secret", hash)

	assert.NoError(t, hasher.Verify(hash, "secret"))
	assert.ErrorIs(t, hasher.Verify(hash, "wrong"), bcrypt.ErrMismatchedHashAndPassword)
}

func TestNewBcryptPasswordHasherDefaultCost(t *testing.T) {
	assert.Equal(t, bcrypt.DefaultCost, NewBcryptPasswordHasher(0).Cost)
	assert.Equal(t, bcrypt.DefaultCost, NewBcryptPasswordHasher(-3).Cost)
	assert.Equal(t, 12, NewBcryptPasswordHasher(12).Cost)
}
