package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/corvid-dev/authd/domain"
	serrors "github.com/corvid-dev/authd/errors"
)

type mockUserRepository struct {
	mock.Mock
}

func (m *mockUserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepository) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepository) Store(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

type mockPasswordHasher struct {
	mock.Mock
}

func (m *mockPasswordHasher) Hash(password string) (string, error) {
	args := m.Called(password)
	return args.String(0), args.Error(1)
}

func (m *mockPasswordHasher) Verify(hashedPassword, password string) error {
	args := m.Called(hashedPassword, password)
	return args.Error(0)
}

type mockAuditLogger struct {
	mock.Mock
}

func (m *mockAuditLogger) LogEvent(principal, eventType string, data map[string]string, client domain.ClientContext) {
	m.Called(principal, eventType, data, client)
}

// fakeTokenRepo is an in-memory RefreshTokenRepository with real semantics:
// one-way revocation, active filtering and batch operations. Rotation-flow
// tests use it instead of a mock so the test asserts outcomes, not call
// sequences.
type fakeTokenRepo struct {
	mu      sync.Mutex
	records map[string]*domain.RefreshToken
}

func newFakeTokenRepo() *fakeTokenRepo {
	return &fakeTokenRepo{records: make(map[string]*domain.RefreshToken)}
}

func (r *fakeTokenRepo) Store(ctx context.Context, token *domain.RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if token.ID == "" {
		token.ID = uuid.NewString()
	}
	copied := *token
	r.records[token.Token] = &copied
	return nil
}

func (r *fakeTokenRepo) FindByToken(ctx context.Context, token string) (*domain.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.records[token]
	if !ok {
		return nil, serrors.ErrTokenNotFound
	}
	copied := *record
	return &copied, nil
}

func (r *fakeTokenRepo) FindActiveByToken(ctx context.Context, token string) (*domain.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.records[token]
	if !ok || record.Revoked {
		return nil, serrors.ErrTokenNotFound
	}
	copied := *record
	return &copied, nil
}

func (r *fakeTokenRepo) ListActiveByUserID(ctx context.Context, userID string) ([]*domain.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*domain.RefreshToken
	for _, record := range r.records {
		if record.UserID == userID && !record.Revoked {
			copied := *record
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *fakeTokenRepo) Revoke(ctx context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if record, ok := r.records[token]; ok {
		record.Revoked = true
	}
	return nil
}

func (r *fakeTokenRepo) RevokeAllByUserID(ctx context.Context, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var count int64
	for _, record := range r.records {
		if record.UserID == userID && !record.Revoked {
			record.Revoked = true
			count++
		}
	}
	return count, nil
}

func (r *fakeTokenRepo) SetReplacedBy(ctx context.Context, oldToken, newToken string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if record, ok := r.records[oldToken]; ok {
		record.ReplacedByToken = newToken
	}
	return nil
}

func (r *fakeTokenRepo) TouchLastAccessed(ctx context.Context, token string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if record, ok := r.records[token]; ok {
		record.LastAccessedAt = &at
	}
	return nil
}

func (r *fakeTokenRepo) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var count int64
	for token, record := range r.records {
		if record.ExpiresAt.Before(cutoff) {
			delete(r.records, token)
			count++
		}
	}
	return count, nil
}

// get returns the stored record for direct assertions.
func (r *fakeTokenRepo) get(token string) *domain.RefreshToken {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.records[token]
}

var _ domain.RefreshTokenRepository = (*fakeTokenRepo)(nil)
