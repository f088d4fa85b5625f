package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all server configuration. Tags use mapstructure for viper
// unmarshalling; keys are bound to environment variables of the same name.
type Config struct {
	HTTPPort    string `mapstructure:"HTTP_PORT"`
	MongoURI    string `mapstructure:"MONGO_URI"`
	MongoDBName string `mapstructure:"MONGO_DB_NAME"`
	RedisAddr   string `mapstructure:"REDIS_ADDR"` // empty: in-memory token cache
	LogLevel    string `mapstructure:"LOG_LEVEL"`
	LogPretty   bool   `mapstructure:"LOG_PRETTY"`

	Issuer                 string `mapstructure:"TOKEN_ISSUER"`
	AccessTokenTTLSeconds  int    `mapstructure:"ACCESS_TOKEN_TTL_SECONDS"`
	RefreshTokenTTLSeconds int    `mapstructure:"REFRESH_TOKEN_TTL_SECONDS"`
	TokenLeewaySeconds     int    `mapstructure:"TOKEN_LEEWAY_SECONDS"`

	// Paths to PEM key material. When empty, an ephemeral key pair is
	// generated at boot (tokens do not survive restarts).
	PrivateKeyPath string `mapstructure:"PRIVATE_KEY_PATH"`
	PublicKeyPath  string `mapstructure:"PUBLIC_KEY_PATH"`

	FingerprintUserAgent bool `mapstructure:"FINGERPRINT_USER_AGENT"`
	FingerprintIPAddress bool `mapstructure:"FINGERPRINT_IP_ADDRESS"`

	CookieSecure   bool   `mapstructure:"COOKIE_SECURE"`
	CookieHTTPOnly bool   `mapstructure:"COOKIE_HTTP_ONLY"`
	CookieSameSite string `mapstructure:"COOKIE_SAME_SITE"`
	CookiePath     string `mapstructure:"COOKIE_PATH"`

	PurgeIntervalHours int `mapstructure:"PURGE_INTERVAL_HOURS"`
}

// AccessTokenTTL returns the access-token lifetime as a duration.
func (c *Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenTTLSeconds) * time.Second
}

// RefreshTokenTTL returns the refresh-token lifetime as a duration.
func (c *Config) RefreshTokenTTL() time.Duration {
	return time.Duration(c.RefreshTokenTTLSeconds) * time.Second
}

// TokenLeeway returns the clock-skew tolerance for token verification.
func (c *Config) TokenLeeway() time.Duration {
	return time.Duration(c.TokenLeewaySeconds) * time.Second
}

// PurgeInterval returns how often the expired-token sweep runs.
func (c *Config) PurgeInterval() time.Duration {
	return time.Duration(c.PurgeIntervalHours) * time.Hour
}

// LoadConfig reads configuration from file, environment and defaults.
func LoadConfig() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/authd/")
	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("HTTP_PORT", "8080")
	v.SetDefault("MONGO_URI", "mongodb://localhost:27017/authd_dev")
	v.SetDefault("MONGO_DB_NAME", "authd_dev")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", true)
	v.SetDefault("TOKEN_ISSUER", "self")
	v.SetDefault("ACCESS_TOKEN_TTL_SECONDS", 3600)
	v.SetDefault("REFRESH_TOKEN_TTL_SECONDS", 86400)
	v.SetDefault("TOKEN_LEEWAY_SECONDS", 5)
	v.SetDefault("FINGERPRINT_USER_AGENT", false)
	v.SetDefault("FINGERPRINT_IP_ADDRESS", false)
	v.SetDefault("COOKIE_SECURE", true)
	v.SetDefault("COOKIE_HTTP_ONLY", true)
	v.SetDefault("COOKIE_SAME_SITE", "Strict")
	v.SetDefault("COOKIE_PATH", "/")
	v.SetDefault("PURGE_INTERVAL_HOURS", 24)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; env vars and defaults apply.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	return &cfg, nil
}
