package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/corvid-dev/authd/domain"
)

// RefreshTokenManager owns the lifecycle of stored refresh tokens. Every
// method is a discrete unit of work against the repository; the manager
// holds no state of its own.
type RefreshTokenManager struct {
	repo       domain.RefreshTokenRepository
	tokens     *TokenService
	refreshTTL time.Duration
}

// NewRefreshTokenManager creates a manager issuing tokens with the given
// lifetime.
func NewRefreshTokenManager(repo domain.RefreshTokenRepository, tokens *TokenService, refreshTTL time.Duration) *RefreshTokenManager {
	return &RefreshTokenManager{
		repo:       repo,
		tokens:     tokens,
		refreshTTL: refreshTTL,
	}
}

// RefreshTTL returns the configured refresh-token lifetime.
func (m *RefreshTokenManager) RefreshTTL() time.Duration {
	return m.refreshTTL
}

// Create persists a new refresh token for the user, capturing the client
// fingerprint at issuance.
func (m *RefreshTokenManager) Create(ctx context.Context, userID string, client domain.ClientContext) (*domain.RefreshToken, error) {
	now := time.Now().UTC()

	token := &domain.RefreshToken{
		Token:     m.tokens.GenerateRefreshToken(),
		UserID:    userID,
		UserAgent: client.UserAgent,
		IPAddress: client.IPAddress,
		ExpiresAt: now.Add(m.refreshTTL),
		CreatedAt: now,
	}

	if err := m.repo.Store(ctx, token); err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}

	log.Debug().Str("user_id", userID).Msg("created refresh token")
	return token, nil
}

// Revoke marks a token revoked. Revoking an absent or already-revoked token
// is a successful no-op.
func (m *RefreshTokenManager) Revoke(ctx context.Context, token string) error {
	if err := m.repo.Revoke(ctx, token); err != nil {
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	return nil
}

// RevokeAll revokes every active token of the user as a single batch. Used
// for "log out everywhere" and for the suspicious-activity lockout.
func (m *RefreshTokenManager) RevokeAll(ctx context.Context, userID string) error {
	count, err := m.repo.RevokeAllByUserID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to revoke user tokens: %w", err)
	}
	if count > 0 {
		log.Info().Int64("count", count).Str("user_id", userID).Msg("revoked user refresh tokens")
	}
	return nil
}

// LinkReplacement records the rotation link old -> new. This runs as a
// separate step after revocation: if it fails, only the audit chain is
// degraded, not security.
func (m *RefreshTokenManager) LinkReplacement(ctx context.Context, oldToken, newToken string) error {
	if err := m.repo.SetReplacedBy(ctx, oldToken, newToken); err != nil {
		return fmt.Errorf("failed to link replacement token: %w", err)
	}
	return nil
}

// Touch updates lastAccessedAt best-effort. Failures are logged and
// swallowed; bookkeeping must never block an authentication flow.
func (m *RefreshTokenManager) Touch(ctx context.Context, token string) {
	if err := m.repo.TouchLastAccessed(ctx, token, time.Now().UTC()); err != nil {
		log.Warn().Err(err).Msg("failed to update refresh token last access time")
	}
}

// ListActive returns the user's non-revoked tokens. Expired but not yet
// purged tokens are included; callers filter on expiry if they need to.
func (m *RefreshTokenManager) ListActive(ctx context.Context, userID string) ([]*domain.RefreshToken, error) {
	return m.repo.ListActiveByUserID(ctx, userID)
}

// PurgeExpired deletes every token whose expiry has passed. Driven by an
// external timer, never by a request path.
func (m *RefreshTokenManager) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	count, err := m.repo.DeleteExpiredBefore(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired refresh tokens: %w", err)
	}
	log.Debug().Int64("count", count).Msg("purged expired refresh tokens")
	return count, nil
}
