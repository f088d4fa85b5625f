package services

import (
	"crypto/rsa"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/corvid-dev/authd/domain"
	serrors "github.com/corvid-dev/authd/errors"
)

// AccessTokenClaims is the wire format of a signed access token. Scope is
// the space-joined role list; an empty scope is valid for a user with no
// authorities.
type AccessTokenClaims struct {
	UserID string `json:"userId"`
	Scope  string `json:"scope"`
	jwt.RegisteredClaims
}

// TokenService signs and verifies access tokens and generates opaque
// refresh-token values. It is stateless: validity of an access token is
// decided by signature and expiry alone, with no store lookup.
type TokenService struct {
	signer    *TokenSigner
	verifyKey *rsa.PublicKey
	issuer    string
	accessTTL time.Duration
	leeway    time.Duration
}

// NewTokenService creates a TokenService. leeway is the clock-skew tolerance
// applied to expiry checks during verification.
func NewTokenService(signer *TokenSigner, verifyKey *rsa.PublicKey, issuer string, accessTTL, leeway time.Duration) *TokenService {
	return &TokenService{
		signer:    signer,
		verifyKey: verifyKey,
		issuer:    issuer,
		accessTTL: accessTTL,
		leeway:    leeway,
	}
}

// AccessTokenTTL returns the configured access-token lifetime. The transport
// layer uses it for cookie max-age.
func (s *TokenService) AccessTokenTTL() time.Duration {
	return s.accessTTL
}

// IssueAccessToken builds and signs an access token for the user with
// issuedAt = now and expiry now + TTL.
func (s *TokenService) IssueAccessToken(user *domain.User, now time.Time) (string, error) {
	claims := AccessTokenClaims{
		UserID: user.ID,
		Scope:  strings.Join(user.Roles, " "),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   user.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
		},
	}

	signed, err := s.signer.Sign(claims, "")
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}
	return signed, nil
}

// GenerateRefreshToken returns a new opaque refresh-token value: a random
// canonical UUIDv4 string. It carries no user information and cannot be
// parsed back into anything.
func (s *TokenService) GenerateRefreshToken() string {
	return uuid.NewString()
}

// VerifyAccessToken checks signature and expiry and returns the claims.
// Every failure mode collapses into ErrInvalidToken for callers; the
// underlying cause goes to the debug log only.
func (s *TokenService) VerifyAccessToken(tokenValue string) (*AccessTokenClaims, error) {
	parsed, err := jwt.ParseWithClaims(tokenValue, &AccessTokenClaims{},
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return s.verifyKey, nil
		},
		jwt.WithLeeway(s.leeway),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		log.Debug().Err(err).Msg("access token rejected")
		return nil, serrors.ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*AccessTokenClaims)
	if !ok {
		return nil, serrors.ErrInvalidToken
	}
	return claims, nil
}

// Principal maps verified claims to the request principal.
func (c *AccessTokenClaims) Principal() *domain.Principal {
	return &domain.Principal{
		UserID:   c.UserID,
		Username: c.Subject,
		Roles:    strings.Fields(c.Scope),
	}
}
