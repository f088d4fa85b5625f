package echo

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/corvid-dev/authd/domain"
)

// Cookie names are a bit-exact contract with the frontend.
const (
	AccessTokenCookieName  = "access_token"
	RefreshTokenCookieName = "refresh_token"
)

// CookieConfig carries the cookie attributes; they are configuration, not
// behavior.
type CookieConfig struct {
	Secure   bool
	HTTPOnly bool
	SameSite string // "Strict", "Lax" or "None"
	Path     string
}

// CookieManager reads and writes the token cookies and extracts the client
// fingerprint context from requests.
type CookieManager struct {
	cfg        CookieConfig
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewCookieManager creates a cookie manager. TTLs become the cookies'
// max-age attributes.
func NewCookieManager(cfg CookieConfig, accessTTL, refreshTTL time.Duration) *CookieManager {
	if cfg.Path == "" {
		cfg.Path = "/"
	}
	return &CookieManager{
		cfg:        cfg,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

func (m *CookieManager) SetAccessTokenCookie(c echo.Context, token string) {
	c.SetCookie(m.buildCookie(AccessTokenCookieName, token, int(m.accessTTL.Seconds())))
}

func (m *CookieManager) SetRefreshTokenCookie(c echo.Context, token string) {
	c.SetCookie(m.buildCookie(RefreshTokenCookieName, token, int(m.refreshTTL.Seconds())))
}

func (m *CookieManager) ClearAccessTokenCookie(c echo.Context) {
	c.SetCookie(m.buildCookie(AccessTokenCookieName, "", 0))
}

func (m *CookieManager) ClearRefreshTokenCookie(c echo.Context) {
	c.SetCookie(m.buildCookie(RefreshTokenCookieName, "", 0))
}

// ClearAll clears both token cookies; the forced-logout path.
func (m *CookieManager) ClearAll(c echo.Context) {
	m.ClearAccessTokenCookie(c)
	m.ClearRefreshTokenCookie(c)
}

// RefreshTokenFromRequest returns the refresh-token cookie value, if present.
func (m *CookieManager) RefreshTokenFromRequest(c echo.Context) (string, bool) {
	return m.cookieValue(c, RefreshTokenCookieName)
}

// AccessTokenFromRequest returns the access-token cookie value, if present.
func (m *CookieManager) AccessTokenFromRequest(c echo.Context) (string, bool) {
	return m.cookieValue(c, AccessTokenCookieName)
}

func (m *CookieManager) cookieValue(c echo.Context, name string) (string, bool) {
	cookie, err := c.Cookie(name)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}

func (m *CookieManager) buildCookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     m.cfg.Path,
		MaxAge:   maxAge,
		Secure:   m.cfg.Secure,
		HttpOnly: m.cfg.HTTPOnly,
		SameSite: parseSameSite(m.cfg.SameSite),
	}
}

func parseSameSite(mode string) http.SameSite {
	switch strings.ToLower(mode) {
	case "strict":
		return http.SameSiteStrictMode
	case "lax":
		return http.SameSiteLaxMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteDefaultMode
	}
}

// ClientContext extracts the fingerprint inputs from the request. The IP
// comes from proxy headers when present (first hop of X-Forwarded-For),
// falling back to the connection's remote address.
func (m *CookieManager) ClientContext(c echo.Context) domain.ClientContext {
	req := c.Request()
	return domain.ClientContext{
		UserAgent: req.UserAgent(),
		IPAddress: clientIP(req),
	}
}

func clientIP(req *http.Request) string {
	if ip := strings.TrimSpace(req.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if forwarded := req.Header.Get("X-Forwarded-For"); forwarded != "" {
		first := forwarded
		if idx := strings.Index(forwarded, ","); idx > 0 {
			first = forwarded[:idx]
		}
		if ip := strings.TrimSpace(first); ip != "" && !strings.EqualFold(ip, "unknown") {
			return ip
		}
	}

	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		return req.RemoteAddr
	}
	return host
}
