// Package redis provides the Redis-backed token cache for multi-instance
// deployments, where a token verified by one instance should be a cache hit
// on all of them.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/corvid-dev/authd/cache"
)

// TokenStore implements cache.TokenStore using Redis. Entries carry a Redis
// TTL equal to the token's remaining lifetime, so Redis itself enforces
// expiry.
type TokenStore struct {
	client *redis.Client
	prefix string
}

// NewTokenStore creates a TokenStore. prefix namespaces the keys.
func NewTokenStore(client *redis.Client, prefix string) *TokenStore {
	return &TokenStore{
		client: client,
		prefix: prefix,
	}
}

func (r *TokenStore) redisKey(token string) string {
	return fmt.Sprintf("%s:token:%s", r.prefix, token)
}

func (r *TokenStore) Set(ctx context.Context, token string, entry *cache.TokenEntry) error {
	ttl := time.Until(entry.ExpiresAt)
	if ttl <= 0 {
		return nil
	}

	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal token entry: %w", err)
	}

	if err := r.client.Set(ctx, r.redisKey(token), payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set token in redis: %w", err)
	}
	return nil
}

func (r *TokenStore) Get(ctx context.Context, token string) (*cache.TokenEntry, bool) {
	payload, err := r.client.Get(ctx, r.redisKey(token)).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Warn().Err(err).Msg("redis token cache read failed")
		}
		return nil, false
	}

	var entry cache.TokenEntry
	if err := json.Unmarshal(payload, &entry); err != nil {
		log.Warn().Err(err).Msg("corrupt token cache entry, dropping")
		_ = r.client.Del(ctx, r.redisKey(token)).Err()
		return nil, false
	}

	if !entry.ExpiresAt.After(time.Now()) {
		_ = r.client.Del(ctx, r.redisKey(token)).Err()
		return nil, false
	}
	return &entry, true
}

func (r *TokenStore) Delete(ctx context.Context, token string) error {
	return r.client.Del(ctx, r.redisKey(token)).Err()
}

var _ cache.TokenStore = (*TokenStore)(nil)
