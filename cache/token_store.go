// Package cache holds verified access-token claims keyed by the raw token
// string, so hot request paths skip the RSA signature check. Entries are
// bounded by the token's own expiry; a cache outage only costs CPU, never
// correctness.
package cache

import (
	"context"
	"time"
)

// TokenEntry is the cached result of a successful access-token verification.
type TokenEntry struct {
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Scope     string    `json:"scope"`
	ExpiresAt time.Time `json:"expires_at"`
}

// TokenStore is the cache contract. Implementations must never return an
// entry past its ExpiresAt.
type TokenStore interface {
	Set(ctx context.Context, token string, entry *TokenEntry) error
	Get(ctx context.Context, token string) (*TokenEntry, bool)
	Delete(ctx context.Context, token string) error
}
