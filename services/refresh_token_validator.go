package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/corvid-dev/authd/domain"
	serrors "github.com/corvid-dev/authd/errors"
	"github.com/corvid-dev/authd/internal/fingerprint"
)

// RefreshTokenValidator checks that a presented refresh token is current,
// non-revoked and fingerprint-matched. Read path only; it never mutates the
// store, so it is safe to call repeatedly.
type RefreshTokenValidator struct {
	repo        domain.RefreshTokenRepository
	fingerprint *fingerprint.Validator
	cfg         fingerprint.Config
}

// NewRefreshTokenValidator creates a validator with the given fingerprint
// policy.
func NewRefreshTokenValidator(repo domain.RefreshTokenRepository, fp *fingerprint.Validator, cfg fingerprint.Config) *RefreshTokenValidator {
	return &RefreshTokenValidator{
		repo:        repo,
		fingerprint: fp,
		cfg:         cfg,
	}
}

// Validate returns the stored record when the token is active and matches
// the presenting client. Absent and expired tokens both surface
// ErrTokenExpired so callers cannot probe for token existence; a fingerprint
// mismatch surfaces ErrFingerprintMismatch, the suspicious-activity signal.
func (v *RefreshTokenValidator) Validate(ctx context.Context, token string, client domain.ClientContext) (*domain.RefreshToken, error) {
	stored, err := v.repo.FindActiveByToken(ctx, token)
	if err != nil {
		if errors.Is(err, serrors.ErrTokenNotFound) {
			log.Warn().Msg("invalid or expired refresh token attempted")
			return nil, serrors.ErrTokenExpired
		}
		// Transient store failure: fail closed, but do not dress it up as a
		// security decision.
		return nil, err
	}

	if !stored.ExpiresAt.After(time.Now()) {
		log.Warn().Msg("invalid or expired refresh token attempted")
		return nil, serrors.ErrTokenExpired
	}

	storedClient := domain.ClientContext{
		UserAgent: stored.UserAgent,
		IPAddress: stored.IPAddress,
	}
	if !v.fingerprint.Validate(storedClient, client, v.cfg) {
		return nil, serrors.ErrFingerprintMismatch
	}

	return stored, nil
}
