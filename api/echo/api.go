// Package echo exposes the authentication core over HTTP. Tokens travel as
// cookies; request bodies and responses are JSON. Every validation failure
// surfaces to the client as the same generic "please log in again" error so
// the API never becomes a token-probing oracle.
package echo

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/corvid-dev/authd/domain"
	serrors "github.com/corvid-dev/authd/errors"
	"github.com/corvid-dev/authd/services"
)

// AuthAPI holds the handler dependencies.
type AuthAPI struct {
	auth    *services.AuthService
	cookies *CookieManager
	authn   *AuthMiddleware
}

// NewAuthAPI initializes the authentication API surface.
func NewAuthAPI(auth *services.AuthService, cookies *CookieManager, authn *AuthMiddleware) *AuthAPI {
	return &AuthAPI{
		auth:    auth,
		cookies: cookies,
		authn:   authn,
	}
}

// RegisterRoutes registers the authentication routes.
func (a *AuthAPI) RegisterRoutes(e *echo.Echo) {
	e.POST("/auth/login", a.LoginHandler)
	e.POST("/auth/refresh", a.RefreshHandler)
	e.POST("/auth/logout", a.LogoutHandler)

	authed := e.Group("", a.authn.Require())
	authed.POST("/auth/logout-all", a.LogoutAllHandler)
	authed.GET("/auth/sessions", a.SessionsHandler)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type userResponse struct {
	Username string   `json:"username"`
	Roles    []string `json:"roles"`
}

type sessionResponse struct {
	ID             string `json:"id"`
	UserAgent      string `json:"userAgent,omitempty"`
	IPAddress      string `json:"ipAddress,omitempty"`
	CreatedAt      string `json:"createdAt"`
	ExpiresAt      string `json:"expiresAt"`
	LastAccessedAt string `json:"lastAccessedAt,omitempty"`
	Current        bool   `json:"current"`
}

var errInvalidLogin = map[string]string{"error": "invalid username or password"}

var errInvalidToken = map[string]string{"error": "invalid token"}

// LoginHandler verifies credentials and sets the token cookie pair.
func (a *AuthAPI) LoginHandler(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "malformed request"})
	}

	client := a.cookies.ClientContext(c)
	pair, err := a.auth.Login(c.Request().Context(), req.Username, req.Password, client)
	if err != nil {
		if errors.Is(err, serrors.ErrInvalidCredentials) || errors.Is(err, serrors.ErrAccountDisabled) {
			// Same response for every credential failure.
			return c.JSON(http.StatusUnauthorized, errInvalidLogin)
		}
		log.Error().Err(err).Msg("login failed")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}

	a.cookies.SetAccessTokenCookie(c, pair.AccessToken)
	a.cookies.SetRefreshTokenCookie(c, pair.RefreshToken.Token)

	roles := pair.User.Roles
	if roles == nil {
		roles = []string{}
	}
	return c.JSON(http.StatusOK, userResponse{Username: pair.User.Username, Roles: roles})
}

// RefreshHandler rotates the refresh token and reissues the cookie pair. Any
// failure forces the client back to anonymous: cookies cleared, 401.
func (a *AuthAPI) RefreshHandler(c echo.Context) error {
	ctx := c.Request().Context()
	client := a.cookies.ClientContext(c)

	token, ok := a.cookies.RefreshTokenFromRequest(c)
	if !ok {
		a.cookies.ClearAll(c)
		return c.JSON(http.StatusUnauthorized, errInvalidToken)
	}

	pair, err := a.auth.Refresh(ctx, token, client)
	if err != nil {
		log.Warn().Err(err).Msg("token refresh failed")
		// Best-effort logout before surfacing the failure so the client
		// is not left holding a half-valid cookie pair.
		a.auth.Logout(ctx, token, principalOrNil(ctx), client)
		a.cookies.ClearAll(c)
		return c.JSON(http.StatusUnauthorized, errInvalidToken)
	}

	a.cookies.SetAccessTokenCookie(c, pair.AccessToken)
	a.cookies.SetRefreshTokenCookie(c, pair.RefreshToken.Token)
	return c.NoContent(http.StatusNoContent)
}

// LogoutHandler revokes the presented refresh token (if any) and clears the
// cookies. Always succeeds.
func (a *AuthAPI) LogoutHandler(c echo.Context) error {
	ctx := c.Request().Context()
	token, _ := a.cookies.RefreshTokenFromRequest(c)

	a.auth.Logout(ctx, token, principalOrNil(ctx), a.cookies.ClientContext(c))
	a.cookies.ClearAll(c)
	return c.NoContent(http.StatusNoContent)
}

// LogoutAllHandler revokes every session of the authenticated user.
func (a *AuthAPI) LogoutAllHandler(c echo.Context) error {
	ctx := c.Request().Context()
	principal, ok := domain.PrincipalFromContext(ctx)
	if !ok {
		return c.JSON(http.StatusUnauthorized, errInvalidToken)
	}

	if err := a.auth.RevokeAllSessions(ctx, principal.UserID); err != nil {
		log.Error().Err(err).Str("user_id", principal.UserID).Msg("failed to revoke all sessions")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "could not revoke sessions"})
	}

	a.cookies.ClearAll(c)
	return c.NoContent(http.StatusNoContent)
}

// SessionsHandler lists the authenticated user's active sessions. Token
// values are never echoed back; the presented refresh cookie only marks
// which listed session is the current one.
func (a *AuthAPI) SessionsHandler(c echo.Context) error {
	ctx := c.Request().Context()
	principal, ok := domain.PrincipalFromContext(ctx)
	if !ok {
		return c.JSON(http.StatusUnauthorized, errInvalidToken)
	}

	sessions, err := a.auth.ListSessions(ctx, principal.UserID)
	if err != nil {
		log.Error().Err(err).Str("user_id", principal.UserID).Msg("failed to list sessions")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "could not list sessions"})
	}

	current, _ := a.cookies.RefreshTokenFromRequest(c)

	resp := make([]sessionResponse, 0, len(sessions))
	for _, s := range sessions {
		item := sessionResponse{
			ID:        s.ID,
			UserAgent: s.UserAgent,
			IPAddress: s.IPAddress,
			CreatedAt: s.CreatedAt.Format(timeFormat),
			ExpiresAt: s.ExpiresAt.Format(timeFormat),
			Current:   current != "" && s.Token == current,
		}
		if s.LastAccessedAt != nil {
			item.LastAccessedAt = s.LastAccessedAt.Format(timeFormat)
		}
		resp = append(resp, item)
	}
	return c.JSON(http.StatusOK, resp)
}

const timeFormat = "2006-01-02T15:04:05Z07:00"

func principalOrNil(ctx context.Context) *domain.Principal {
	p, _ := domain.PrincipalFromContext(ctx)
	return p
}
