package cache

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// MemoryTokenStore is an in-process TokenStore for single-instance
// deployments and tests. TTL handling and expiry eviction are delegated to
// ttlcache.
type MemoryTokenStore struct {
	cache *ttlcache.Cache[string, *TokenEntry]
}

// NewMemoryTokenStore creates the store and starts its eviction loop.
func NewMemoryTokenStore() *MemoryTokenStore {
	c := ttlcache.New[string, *TokenEntry]()
	go c.Start()
	return &MemoryTokenStore{cache: c}
}

func (s *MemoryTokenStore) Set(_ context.Context, token string, entry *TokenEntry) error {
	ttl := time.Until(entry.ExpiresAt)
	if ttl <= 0 {
		return nil // already expired, nothing worth caching
	}
	s.cache.Set(token, entry, ttl)
	return nil
}

func (s *MemoryTokenStore) Get(_ context.Context, token string) (*TokenEntry, bool) {
	item := s.cache.Get(token)
	if item == nil {
		return nil, false
	}
	entry := item.Value()
	if !entry.ExpiresAt.After(time.Now()) {
		s.cache.Delete(token)
		return nil, false
	}
	return entry, true
}

func (s *MemoryTokenStore) Delete(_ context.Context, token string) error {
	s.cache.Delete(token)
	return nil
}

// Close stops the eviction loop.
func (s *MemoryTokenStore) Close() {
	s.cache.Stop()
}

var _ TokenStore = (*MemoryTokenStore)(nil)
