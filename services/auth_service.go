package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/corvid-dev/authd/domain"
	serrors "github.com/corvid-dev/authd/errors"
	"github.com/corvid-dev/authd/internal/audit"
)

// PasswordHasher abstracts credential hashing so the auth service never
// touches bcrypt directly.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(hashedPassword, password string) error
}

// TokenPair is the result of a successful login or refresh: a signed access
// token plus the stored refresh-token record backing the session, and the
// user both were issued for.
type TokenPair struct {
	AccessToken  string
	RefreshToken *domain.RefreshToken
	User         *domain.User
}

// AuthService orchestrates the session state machine: login, refresh with
// rotation, logout and bulk revocation. All collaborators come in through
// the constructor so tests substitute fakes without any reflection.
type AuthService struct {
	users     domain.UserRepository
	hasher    PasswordHasher
	tokens    *TokenService
	manager   *RefreshTokenManager
	validator *RefreshTokenValidator
	audit     audit.Logger
}

// NewAuthService creates the session/authentication service.
func NewAuthService(
	users domain.UserRepository,
	hasher PasswordHasher,
	tokens *TokenService,
	manager *RefreshTokenManager,
	validator *RefreshTokenValidator,
	auditLogger audit.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		hasher:    hasher,
		tokens:    tokens,
		manager:   manager,
		validator: validator,
		audit:     auditLogger,
	}
}

// Login verifies credentials and, on success, issues an access token and
// creates a refresh token capturing the client fingerprint. Credential
// failures never reveal which part was wrong.
func (s *AuthService) Login(ctx context.Context, username, password string, client domain.ClientContext) (*TokenPair, error) {
	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		log.Warn().Str("username", username).Msg("login: user not found")
		s.auditLoginFailure(username, "user not found", client)
		return nil, serrors.ErrInvalidCredentials
	}

	if err := s.hasher.Verify(user.PasswordHash, password); err != nil {
		log.Warn().Str("username", username).Msg("login: incorrect password")
		s.auditLoginFailure(username, "invalid credentials", client)
		return nil, serrors.ErrInvalidCredentials
	}

	if !user.Enabled {
		log.Warn().Str("username", username).Msg("login: account disabled")
		s.auditLoginFailure(username, "account disabled", client)
		return nil, serrors.ErrAccountDisabled
	}

	accessToken, err := s.tokens.IssueAccessToken(user, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to issue access token: %w", err)
	}

	refreshToken, err := s.manager.Create(ctx, user.ID, client)
	if err != nil {
		return nil, err
	}

	log.Debug().Str("username", username).Msg("user authenticated successfully")
	s.audit.LogEvent(username, audit.EventAuthentication, map[string]string{
		audit.KeyAction: audit.ActionLogin,
		audit.KeyStatus: audit.StatusSuccess,
	}, client)

	return &TokenPair{AccessToken: accessToken, RefreshToken: refreshToken, User: user}, nil
}

// Refresh rotates a refresh token: validate, revoke the old record, create
// its replacement, link the two, and sign a new access token from the user's
// current roles. Roles are always reloaded from the user store; claims from
// the original login are never trusted. On a fingerprint mismatch every
// token of the implicated user is revoked before the error propagates.
//
// Callers must treat any returned error as a forced logout.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string, client domain.ClientContext) (*TokenPair, error) {
	if refreshToken == "" {
		return nil, serrors.ErrInvalidToken
	}

	stored, err := s.validator.Validate(ctx, refreshToken, client)
	if err != nil {
		if errors.Is(err, serrors.ErrFingerprintMismatch) {
			s.handleSuspiciousActivity(ctx, refreshToken)
		}
		return nil, err
	}

	s.manager.Touch(ctx, stored.Token)

	// Revoke before creating the replacement: a stolen copy of the old
	// token must not be able to mint a second descendant after a
	// legitimate rotation.
	if err := s.manager.Revoke(ctx, stored.Token); err != nil {
		return nil, err
	}

	fresh, err := s.manager.Create(ctx, stored.UserID, client)
	if err != nil {
		return nil, err
	}

	if err := s.manager.LinkReplacement(ctx, stored.Token, fresh.Token); err != nil {
		// The revoke already committed; a missing link only degrades the
		// rotation audit chain.
		log.Warn().Err(err).Msg("failed to link replacement token")
	}

	user, err := s.users.FindByID(ctx, stored.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload user %s: %w", stored.UserID, err)
	}

	accessToken, err := s.tokens.IssueAccessToken(user, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to issue access token: %w", err)
	}

	log.Debug().Str("user_id", user.ID).Msg("token refreshed successfully")
	return &TokenPair{AccessToken: accessToken, RefreshToken: fresh, User: user}, nil
}

// Logout revokes the presented refresh token best-effort and records the
// audit event. It always succeeds from the caller's perspective: an absent
// or already-revoked token is not an error.
func (s *AuthService) Logout(ctx context.Context, refreshToken string, principal *domain.Principal, client domain.ClientContext) {
	if refreshToken != "" {
		if err := s.manager.Revoke(ctx, refreshToken); err != nil {
			log.Warn().Err(err).Msg("failed to revoke refresh token during logout")
		}
	}

	username := "anonymous"
	if principal != nil {
		username = principal.Username
	}

	log.Debug().Str("username", username).Msg("user logged out")
	s.audit.LogEvent(username, audit.EventAuthentication, map[string]string{
		audit.KeyAction: audit.ActionLogout,
	}, client)
}

// RevokeAllSessions revokes every refresh token of the user.
func (s *AuthService) RevokeAllSessions(ctx context.Context, userID string) error {
	if err := s.manager.RevokeAll(ctx, userID); err != nil {
		return err
	}
	log.Debug().Str("user_id", userID).Msg("revoked all sessions")
	return nil
}

// ListSessions returns the user's active sessions for display.
func (s *AuthService) ListSessions(ctx context.Context, userID string) ([]*domain.RefreshToken, error) {
	return s.manager.ListActive(ctx, userID)
}

// handleSuspiciousActivity responds to a fingerprint mismatch. The token
// itself is valid and current, so its owner is known: treat the mismatch as
// possible token theft and revoke every session of that user, not just the
// one token.
func (s *AuthService) handleSuspiciousActivity(ctx context.Context, refreshToken string) {
	stored, err := s.manager.repo.FindByToken(ctx, refreshToken)
	if err != nil {
		log.Warn().Msg("suspicious token activity detected for unknown token")
		return
	}

	log.Warn().Str("user_id", stored.UserID).Msg("suspicious token activity detected, revoking all user sessions")
	if err := s.manager.RevokeAll(ctx, stored.UserID); err != nil {
		log.Error().Err(err).Str("user_id", stored.UserID).Msg("failed to revoke user sessions after suspicious activity")
	}
}

func (s *AuthService) auditLoginFailure(username, reason string, client domain.ClientContext) {
	s.audit.LogEvent(username, audit.EventAuthentication, map[string]string{
		audit.KeyAction: audit.ActionLogin,
		audit.KeyStatus: audit.StatusFailure,
		audit.KeyReason: reason,
	}, client)
}
