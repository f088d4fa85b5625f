package echo

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/corvid-dev/authd/cache"
	"github.com/corvid-dev/authd/domain"
	"github.com/corvid-dev/authd/services"
)

// AuthMiddleware verifies the access token carried by a request and attaches
// the principal to the request context. Verified claims are cached keyed by
// the raw token so hot paths skip the signature check.
type AuthMiddleware struct {
	tokens  *services.TokenService
	store   cache.TokenStore
	cookies *CookieManager
}

// NewAuthMiddleware creates the middleware.
func NewAuthMiddleware(tokens *services.TokenService, store cache.TokenStore, cookies *CookieManager) *AuthMiddleware {
	return &AuthMiddleware{
		tokens:  tokens,
		store:   store,
		cookies: cookies,
	}
}

// Require rejects requests without a valid access token with 401.
func (m *AuthMiddleware) Require() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			principal, ok := m.authenticate(c)
			if !ok {
				return c.JSON(http.StatusUnauthorized, errInvalidToken)
			}

			ctx := domain.WithPrincipal(c.Request().Context(), principal)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

// RequireRole rejects authenticated requests lacking the role with 403.
// Role enforcement lives here in the routing layer; the core only exposes
// the capability check.
func (m *AuthMiddleware) RequireRole(role string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			principal, ok := domain.PrincipalFromContext(c.Request().Context())
			if !ok {
				return c.JSON(http.StatusUnauthorized, errInvalidToken)
			}
			if !domain.HasRole(principal, role) {
				return c.JSON(http.StatusForbidden, map[string]string{"error": "forbidden"})
			}
			return next(c)
		}
	}
}

func (m *AuthMiddleware) authenticate(c echo.Context) (*domain.Principal, bool) {
	tokenValue, ok := m.tokenFromRequest(c)
	if !ok {
		return nil, false
	}

	ctx := c.Request().Context()

	if entry, hit := m.store.Get(ctx, tokenValue); hit {
		return &domain.Principal{
			UserID:   entry.UserID,
			Username: entry.Username,
			Roles:    strings.Fields(entry.Scope),
		}, true
	}

	claims, err := m.tokens.VerifyAccessToken(tokenValue)
	if err != nil {
		return nil, false
	}

	if err := m.store.Set(ctx, tokenValue, &cache.TokenEntry{
		UserID:    claims.UserID,
		Username:  claims.Subject,
		Scope:     claims.Scope,
		ExpiresAt: claims.ExpiresAt.Time,
	}); err != nil {
		log.Warn().Err(err).Msg("failed to cache verified token")
	}

	return claims.Principal(), true
}

// tokenFromRequest reads the access token from the cookie, falling back to
// a Bearer authorization header for non-browser clients.
func (m *AuthMiddleware) tokenFromRequest(c echo.Context) (string, bool) {
	if token, ok := m.cookies.AccessTokenFromRequest(c); ok {
		return token, true
	}

	header := c.Request().Header.Get(echo.HeaderAuthorization)
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return header[len(prefix):], true
	}
	return "", false
}

// HealthHandler reports process liveness and store reachability.
type HealthHandler struct {
	ping func(ctx echo.Context) error
}

// NewHealthHandler creates a health endpoint backed by the given ping
// function (normally the MongoDB ping).
func NewHealthHandler(ping func(c echo.Context) error) *HealthHandler {
	return &HealthHandler{ping: ping}
}

// RegisterRoutes registers the health route.
func (h *HealthHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Healthz)
}

// Healthz responds 200 when the store is reachable, 503 otherwise.
func (h *HealthHandler) Healthz(c echo.Context) error {
	start := time.Now()
	if h.ping != nil {
		if err := h.ping(c); err != nil {
			log.Warn().Err(err).Msg("health check failed")
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		}
	}
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "ok",
		"latency": time.Since(start).String(),
	})
}
