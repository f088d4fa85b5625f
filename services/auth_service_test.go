package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/corvid-dev/authd/domain"
	serrors "github.com/corvid-dev/authd/errors"
	"github.com/corvid-dev/authd/internal/fingerprint"
)

type authFixture struct {
	users  *mockUserRepository
	hasher *mockPasswordHasher
	audit  *mockAuditLogger
	repo   *fakeTokenRepo
	tokens *TokenService
	svc    *AuthService
}

func newAuthFixture(t *testing.T, fpCfg fingerprint.Config) *authFixture {
	t.Helper()

	tokens, _ := newTestTokenService(t, time.Hour, 5*time.Second)
	repo := newFakeTokenRepo()
	users := new(mockUserRepository)
	hasher := new(mockPasswordHasher)
	auditLogger := new(mockAuditLogger)

	manager := NewRefreshTokenManager(repo, tokens, 24*time.Hour)
	validator := NewRefreshTokenValidator(repo, fingerprint.NewValidator(), fpCfg)

	return &authFixture{
		users:  users,
		hasher: hasher,
		audit:  auditLogger,
		repo:   repo,
		tokens: tokens,
		svc:    NewAuthService(users, hasher, tokens, manager, validator, auditLogger),
	}
}

var testClient = domain.ClientContext{
	UserAgent: "Mozilla/5.0 Chrome/120.0",
	IPAddress: "192.168.1.10",
}

func TestLoginSuccess(t *testing.T) {
	f := newAuthFixture(t, fingerprint.Config{})
	user := testUser()
	user.PasswordHash = "$hashed"

	f.users.On("FindByUsername", mock.Anything, "alice").Return(user, nil)
	f.hasher.On("Verify", "$hashed", "secret").Return(nil)
	f.audit.On("LogEvent", "alice", mock.Anything, mock.Anything, testClient).Return()

	pair, err := f.svc.Login(context.Background(), "alice", "secret", testClient)
	require.NoError(t, err)
	require.NotNil(t, pair)

	claims, err := f.tokens.VerifyAccessToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Subject)
	assert.Equal(t, "user-1", claims.UserID)

	require.NotNil(t, pair.RefreshToken)
	stored := f.repo.get(pair.RefreshToken.Token)
	require.NotNil(t, stored)
	assert.Equal(t, "user-1", stored.UserID)
	assert.Equal(t, testClient.UserAgent, stored.UserAgent)
	assert.Equal(t, testClient.IPAddress, stored.IPAddress)
	assert.False(t, stored.Revoked)
	assert.True(t, stored.ExpiresAt.After(time.Now()))

	assert.Equal(t, user, pair.User)
	f.audit.AssertCalled(t, "LogEvent", "alice", "AUTHENTICATION", mock.MatchedBy(func(data map[string]string) bool {
		return data["action"] == "LOGIN" && data["status"] == "SUCCESS"
	}), testClient)
}

func TestLoginUnknownUser(t *testing.T) {
	f := newAuthFixture(t, fingerprint.Config{})

	f.users.On("FindByUsername", mock.Anything, "nobody").Return(nil, serrors.ErrUserNotFound)
	f.audit.On("LogEvent", "nobody", mock.Anything, mock.Anything, testClient).Return()

	_, err := f.svc.Login(context.Background(), "nobody", "secret", testClient)
	assert.ErrorIs(t, err, serrors.ErrInvalidCredentials)
	f.hasher.AssertNotCalled(t, "Verify", mock.Anything, mock.Anything)
}

func TestLoginWrongPassword(t *testing.T) {
	f := newAuthFixture(t, fingerprint.Config{})
	user := testUser()
	user.PasswordHash = "$hashed"

	f.users.On("FindByUsername", mock.Anything, "alice").Return(user, nil)
	f.hasher.On("Verify", "$hashed", "wrong").Return(serrors.ErrInvalidCredentials)
	f.audit.On("LogEvent", "alice", mock.Anything, mock.Anything, testClient).Return()

	_, err := f.svc.Login(context.Background(), "alice", "wrong", testClient)
	assert.ErrorIs(t, err, serrors.ErrInvalidCredentials)
	assert.Empty(t, f.repo.records)
}

func TestLoginDisabledAccount(t *testing.T) {
	f := newAuthFixture(t, fingerprint.Config{})
	user := testUser()
	user.PasswordHash = "$hashed"
	user.Enabled = false

	f.users.On("FindByUsername", mock.Anything, "alice").Return(user, nil)
	f.hasher.On("Verify", "$hashed", "secret").Return(nil)
	f.audit.On("LogEvent", "alice", mock.Anything, mock.Anything, testClient).Return()

	_, err := f.svc.Login(context.Background(), "alice", "secret", testClient)
	assert.ErrorIs(t, err, serrors.ErrAccountDisabled)
	assert.Empty(t, f.repo.records)
}

func seedToken(t *testing.T, f *authFixture, userID string, client domain.ClientContext, expiresAt time.Time) *domain.RefreshToken {
	t.Helper()

	token := &domain.RefreshToken{
		Token:     f.tokens.GenerateRefreshToken(),
		UserID:    userID,
		UserAgent: client.UserAgent,
		IPAddress: client.IPAddress,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, f.repo.Store(context.Background(), token))
	return token
}

func TestRefreshRotatesToken(t *testing.T) {
	f := newAuthFixture(t, fingerprint.Config{})
	user := testUser()
	old := seedToken(t, f, user.ID, testClient, time.Now().Add(time.Hour))

	f.users.On("FindByID", mock.Anything, user.ID).Return(user, nil)

	pair, err := f.svc.Refresh(context.Background(), old.Token, testClient)
	require.NoError(t, err)
	require.NotNil(t, pair.RefreshToken)
	assert.NotEqual(t, old.Token, pair.RefreshToken.Token)

	oldStored := f.repo.get(old.Token)
	require.NotNil(t, oldStored)
	assert.True(t, oldStored.Revoked)
	assert.Equal(t, pair.RefreshToken.Token, oldStored.ReplacedByToken)
	assert.NotNil(t, oldStored.LastAccessedAt)

	newStored := f.repo.get(pair.RefreshToken.Token)
	require.NotNil(t, newStored)
	assert.False(t, newStored.Revoked)
	assert.Equal(t, user.ID, newStored.UserID)

	claims, err := f.tokens.VerifyAccessToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
}

func TestRefreshRejectsReusedToken(t *testing.T) {
	f := newAuthFixture(t, fingerprint.Config{})
	user := testUser()
	old := seedToken(t, f, user.ID, testClient, time.Now().Add(time.Hour))

	f.users.On("FindByID", mock.Anything, user.ID).Return(user, nil)

	_, err := f.svc.Refresh(context.Background(), old.Token, testClient)
	require.NoError(t, err)

	// Replaying the consumed token must fail like any dead token.
	_, err = f.svc.Refresh(context.Background(), old.Token, testClient)
	assert.ErrorIs(t, err, serrors.ErrTokenExpired)
}

func TestRefreshEmptyToken(t *testing.T) {
	f := newAuthFixture(t, fingerprint.Config{})

	_, err := f.svc.Refresh(context.Background(), "", testClient)
	assert.ErrorIs(t, err, serrors.ErrInvalidToken)
}

func TestRefreshUnknownToken(t *testing.T) {
	f := newAuthFixture(t, fingerprint.Config{})

	_, err := f.svc.Refresh(context.Background(), "no-such-token", testClient)
	assert.ErrorIs(t, err, serrors.ErrTokenExpired)
}

func TestRefreshExpiredToken(t *testing.T) {
	f := newAuthFixture(t, fingerprint.Config{})
	old := seedToken(t, f, "user-1", testClient, time.Now().Add(-time.Minute))

	_, err := f.svc.Refresh(context.Background(), old.Token, testClient)
	assert.ErrorIs(t, err, serrors.ErrTokenExpired)

	// Expired tokens are not revoked by the attempt, only rejected.
	assert.False(t, f.repo.get(old.Token).Revoked)
}

func TestRefreshFingerprintMismatchRevokesAllSessions(t *testing.T) {
	f := newAuthFixture(t, fingerprint.Config{CheckIPAddress: true})
	user := testUser()

	first := seedToken(t, f, user.ID, testClient, time.Now().Add(time.Hour))
	second := seedToken(t, f, user.ID, testClient, time.Now().Add(time.Hour))
	other := seedToken(t, f, "user-2", testClient, time.Now().Add(time.Hour))

	attacker := domain.ClientContext{
		UserAgent: testClient.UserAgent,
		IPAddress: "10.99.99.99",
	}

	_, err := f.svc.Refresh(context.Background(), first.Token, attacker)
	assert.ErrorIs(t, err, serrors.ErrFingerprintMismatch)

	assert.True(t, f.repo.get(first.Token).Revoked)
	assert.True(t, f.repo.get(second.Token).Revoked)
	assert.False(t, f.repo.get(other.Token).Revoked, "other users' sessions must survive")
}

func TestLogoutRevokesToken(t *testing.T) {
	f := newAuthFixture(t, fingerprint.Config{})
	token := seedToken(t, f, "user-1", testClient, time.Now().Add(time.Hour))

	principal := &domain.Principal{UserID: "user-1", Username: "alice"}
	f.audit.On("LogEvent", "alice", mock.Anything, mock.Anything, testClient).Return()

	f.svc.Logout(context.Background(), token.Token, principal, testClient)

	assert.True(t, f.repo.get(token.Token).Revoked)
	f.audit.AssertCalled(t, "LogEvent", "alice", "AUTHENTICATION", mock.MatchedBy(func(data map[string]string) bool {
		return data["action"] == "LOGOUT"
	}), testClient)
}

func TestLogoutWithoutTokenStillAudits(t *testing.T) {
	f := newAuthFixture(t, fingerprint.Config{})
	f.audit.On("LogEvent", "anonymous", mock.Anything, mock.Anything, testClient).Return()

	f.svc.Logout(context.Background(), "", nil, testClient)

	f.audit.AssertCalled(t, "LogEvent", "anonymous", "AUTHENTICATION", mock.Anything, testClient)
}

func TestRevokeAllSessions(t *testing.T) {
	f := newAuthFixture(t, fingerprint.Config{})
	first := seedToken(t, f, "user-1", testClient, time.Now().Add(time.Hour))
	second := seedToken(t, f, "user-1", testClient, time.Now().Add(time.Hour))

	require.NoError(t, f.svc.RevokeAllSessions(context.Background(), "user-1"))

	assert.True(t, f.repo.get(first.Token).Revoked)
	assert.True(t, f.repo.get(second.Token).Revoked)
}

func TestListSessionsSkipsRevoked(t *testing.T) {
	f := newAuthFixture(t, fingerprint.Config{})
	active := seedToken(t, f, "user-1", testClient, time.Now().Add(time.Hour))
	revoked := seedToken(t, f, "user-1", testClient, time.Now().Add(time.Hour))
	require.NoError(t, f.repo.Revoke(context.Background(), revoked.Token))

	sessions, err := f.svc.ListSessions(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, active.Token, sessions[0].Token)
}
