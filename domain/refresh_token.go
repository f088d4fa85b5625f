package domain

import (
	"context"
	"time"
)

// RefreshToken is the persisted record behind a single client session.
// Token is the bearer secret delivered to the client as a cookie; the
// remaining fields exist for rotation bookkeeping and theft detection.
type RefreshToken struct {
	ID              string     `bson:"_id,omitempty"`
	Token           string     `bson:"token"` // unique across all records
	UserID          string     `bson:"user_id"`
	UserAgent       string     `bson:"user_agent,omitempty"`
	IPAddress       string     `bson:"ip_address,omitempty"`
	ExpiresAt       time.Time  `bson:"expires_at"`
	CreatedAt       time.Time  `bson:"created_at"`
	LastAccessedAt  *time.Time `bson:"last_accessed_at,omitempty"`
	Revoked         bool       `bson:"revoked"`
	ReplacedByToken string     `bson:"replaced_by_token,omitempty"`
}

// Active reports whether the token can still mint access tokens.
func (t *RefreshToken) Active(now time.Time) bool {
	return !t.Revoked && t.ExpiresAt.After(now)
}

// RefreshTokenRepository is the persistence contract for refresh tokens.
// Revocation is one-way: implementations must never flip Revoked back to
// false once set.
type RefreshTokenRepository interface {
	// Store persists a new token record. The Token value must be unique.
	Store(ctx context.Context, token *RefreshToken) error

	// FindByToken looks a record up by its token value regardless of state.
	// Returns errors.ErrTokenNotFound when no record exists.
	FindByToken(ctx context.Context, token string) (*RefreshToken, error)

	// FindActiveByToken looks a record up filtered to revoked == false.
	// Returns errors.ErrTokenNotFound for both absent and revoked records.
	FindActiveByToken(ctx context.Context, token string) (*RefreshToken, error)

	// ListActiveByUserID returns all non-revoked tokens for a user. Expired
	// but not yet purged records are included; callers filter if they care.
	ListActiveByUserID(ctx context.Context, userID string) ([]*RefreshToken, error)

	// Revoke marks a single record revoked. Absent or already-revoked
	// records are a no-op, not an error.
	Revoke(ctx context.Context, token string) error

	// RevokeAllByUserID marks every non-revoked record of a user revoked as
	// a single batch write. Returns the number of records modified.
	RevokeAllByUserID(ctx context.Context, userID string) (int64, error)

	// SetReplacedBy records the rotation link on the old record. Absent
	// records are a no-op.
	SetReplacedBy(ctx context.Context, oldToken, newToken string) error

	// TouchLastAccessed updates the usage timestamp on a record.
	TouchLastAccessed(ctx context.Context, token string, at time.Time) error

	// DeleteExpiredBefore removes every record whose expiry has passed the
	// cutoff. Returns the number of records deleted.
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// ClientContext carries the request attributes a refresh token is
// fingerprinted against.
type ClientContext struct {
	UserAgent string
	IPAddress string
}
