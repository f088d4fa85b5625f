package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdirTemp moves the test into an empty directory so no config file is
// picked up and only defaults plus environment apply.
func chdirTemp(t *testing.T) {
	t.Helper()

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoadConfigDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, "authd_dev", cfg.MongoDBName)
	assert.Equal(t, "", cfg.RedisAddr)
	assert.Equal(t, "self", cfg.Issuer)

	assert.Equal(t, time.Hour, cfg.AccessTokenTTL())
	assert.Equal(t, 24*time.Hour, cfg.RefreshTokenTTL())
	assert.Equal(t, 5*time.Second, cfg.TokenLeeway())
	assert.Equal(t, 24*time.Hour, cfg.PurgeInterval())

	// Fingerprint checks default off; enabling them is an explicit decision.
	assert.False(t, cfg.FingerprintUserAgent)
	assert.False(t, cfg.FingerprintIPAddress)

	assert.True(t, cfg.CookieSecure)
	assert.True(t, cfg.CookieHTTPOnly)
	assert.Equal(t, "Strict", cfg.CookieSameSite)
	assert.Equal(t, "/", cfg.CookiePath)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	chdirTemp(t)
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("ACCESS_TOKEN_TTL_SECONDS", "120")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.HTTPPort)
	assert.Equal(t, 2*time.Minute, cfg.AccessTokenTTL())
}
