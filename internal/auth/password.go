package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/corvid-dev/authd/services"
)

// BcryptPasswordHasher implements services.PasswordHasher using bcrypt.
type BcryptPasswordHasher struct {
	Cost int
}

// NewBcryptPasswordHasher creates a hasher with the given cost, falling back
// to bcrypt.DefaultCost when cost <= 0.
func NewBcryptPasswordHasher(cost int) *BcryptPasswordHasher {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	return &BcryptPasswordHasher{Cost: cost}
}

// Hash generates a bcrypt hash for the given password.
func (h *BcryptPasswordHasher) Hash(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), h.Cost)
	if err != nil {
		return "", fmt.Errorf("bcrypt hash generation failed: %w", err)
	}
	return string(hashed), nil
}

// Verify compares a bcrypt hash with a plaintext candidate. Returns nil on
// match, bcrypt.ErrMismatchedHashAndPassword otherwise.
func (h *BcryptPasswordHasher) Verify(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

var _ services.PasswordHasher = (*BcryptPasswordHasher)(nil)
