package services

import (
	"crypto/rsa"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidKeyID = errors.New("invalid key id")

type TokenSignerFunc func(claims jwt.Claims) (string, error)

// TokenSigner holds the signing functions available to the token service,
// keyed by key ID. Verification never goes through the signer; it only
// needs the public half of the key material.
type TokenSigner struct {
	keys map[string]TokenSignerFunc
}

// NewTokenSigner creates an empty signer registry.
func NewTokenSigner() *TokenSigner {
	return &TokenSigner{
		keys: make(map[string]TokenSignerFunc),
	}
}

// AddRSAKeySigner registers an RS256 signer under the given key ID. An empty
// keyID registers the default key.
func (s *TokenSigner) AddRSAKeySigner(keyID string, key *rsa.PrivateKey) {
	if keyID == "" {
		keyID = "default"
	}
	s.keys[keyID] = func(claims jwt.Claims) (string, error) {
		token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)

		tokenString, err := token.SignedString(key)
		if err != nil {
			return "", fmt.Errorf("failed to sign token: %w", err)
		}

		return tokenString, nil
	}
}

// Sign signs the claims with the key registered under keyID. When keyID is
// empty, any registered key is used as the default.
func (s *TokenSigner) Sign(claims jwt.Claims, keyID string) (string, error) {
	if keyID == "" {
		for _, val := range s.keys {
			if val != nil {
				return val(claims)
			}
		}

		return "", ErrInvalidKeyID
	}

	if signer, ok := s.keys[keyID]; ok {
		return signer(claims)
	}

	return "", ErrInvalidKeyID
}
