package main

import (
	"context"
	"crypto/rsa"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	api "github.com/corvid-dev/authd/api/echo"
	"github.com/corvid-dev/authd/cache"
	redicache "github.com/corvid-dev/authd/cache/redis"
	"github.com/corvid-dev/authd/config"
	"github.com/corvid-dev/authd/internal/audit"
	"github.com/corvid-dev/authd/internal/auth"
	"github.com/corvid-dev/authd/internal/crypto"
	"github.com/corvid-dev/authd/internal/fingerprint"
	"github.com/corvid-dev/authd/mongodb"
	"github.com/corvid-dev/authd/services"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}

	initLogger(cfg)
	log.Info().
		Str("http_port", cfg.HTTPPort).
		Str("mongo_db_name", cfg.MongoDBName).
		Bool("fingerprint_user_agent", cfg.FingerprintUserAgent).
		Bool("fingerprint_ip_address", cfg.FingerprintIPAddress).
		Msg("starting authd server")

	ctx := context.Background()

	mongoClient, err := mongodb.Connect(ctx, cfg.MongoURI, cfg.MongoDBName)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to MongoDB")
	}
	db := mongoClient.Database()

	refreshTokenRepo, err := mongodb.NewRefreshTokenRepositoryMongo(ctx, db)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize refresh token repository")
	}
	userRepo, err := mongodb.NewUserRepositoryMongo(ctx, db)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize user repository")
	}

	privateKey, publicKey := loadKeyMaterial(cfg)
	signer := services.NewTokenSigner()
	signer.AddRSAKeySigner("", privateKey)

	tokenService := services.NewTokenService(signer, publicKey, cfg.Issuer, cfg.AccessTokenTTL(), cfg.TokenLeeway())

	fpValidator := fingerprint.NewValidator()
	fpConfig := fingerprint.Config{
		CheckUserAgent: cfg.FingerprintUserAgent,
		CheckIPAddress: cfg.FingerprintIPAddress,
	}

	manager := services.NewRefreshTokenManager(refreshTokenRepo, tokenService, cfg.RefreshTokenTTL())
	validator := services.NewRefreshTokenValidator(refreshTokenRepo, fpValidator, fpConfig)
	hasher := auth.NewBcryptPasswordHasher(0)
	authService := services.NewAuthService(userRepo, hasher, tokenService, manager, validator, audit.NewLogger())

	tokenCache := buildTokenCache(cfg)

	cookieManager := api.NewCookieManager(api.CookieConfig{
		Secure:   cfg.CookieSecure,
		HTTPOnly: cfg.CookieHTTPOnly,
		SameSite: cfg.CookieSameSite,
		Path:     cfg.CookiePath,
	}, cfg.AccessTokenTTL(), cfg.RefreshTokenTTL())

	authn := api.NewAuthMiddleware(tokenService, tokenCache, cookieManager)
	authAPI := api.NewAuthAPI(authService, cookieManager, authn)
	health := api.NewHealthHandler(func(c echo.Context) error {
		return mongoClient.Ping(c.Request().Context())
	})

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	authAPI.RegisterRoutes(e)
	health.RegisterRoutes(e)

	// Expired-token sweep: a plain timer, deliberately detached from any
	// request path.
	purgeCtx, stopPurge := context.WithCancel(ctx)
	go runPurgeLoop(purgeCtx, manager, cfg.PurgeInterval())

	go func() {
		if err := e.Start(":" + cfg.HTTPPort); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()
	log.Info().Str("port", cfg.HTTPPort).Msg("http server started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down")

	stopPurge()
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown failed")
	}
	mongoClient.Close(shutdownCtx)
}

func initLogger(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	}
}

// loadKeyMaterial loads the configured RSA key pair, or generates an
// ephemeral one when no paths are set. Ephemeral keys mean access tokens do
// not survive a restart; acceptable for development, not for production.
func loadKeyMaterial(cfg *config.Config) (*rsa.PrivateKey, *rsa.PublicKey) {
	if cfg.PrivateKeyPath == "" {
		log.Warn().Msg("no signing key configured, generating ephemeral RSA key pair")
		key, err := crypto.GenerateRSAKey()
		if err != nil {
			log.Fatal().Err(err).Msg("failed to generate RSA key")
		}
		return key, &key.PublicKey
	}

	privateKey, err := crypto.LoadRSAPrivateKey(cfg.PrivateKeyPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.PrivateKeyPath).Msg("failed to load private key")
	}

	if cfg.PublicKeyPath == "" {
		return privateKey, &privateKey.PublicKey
	}
	publicKey, err := crypto.LoadRSAPublicKey(cfg.PublicKeyPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.PublicKeyPath).Msg("failed to load public key")
	}
	return privateKey, publicKey
}

func buildTokenCache(cfg *config.Config) cache.TokenStore {
	if cfg.RedisAddr == "" {
		log.Info().Msg("using in-memory token cache")
		return cache.NewMemoryTokenStore()
	}
	log.Info().Str("redis_addr", cfg.RedisAddr).Msg("using redis token cache")
	client := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr})
	return redicache.NewTokenStore(client, "authd")
}

func runPurgeLoop(ctx context.Context, manager *services.RefreshTokenManager, interval time.Duration) {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			purgeCtx, cancel := context.WithTimeout(ctx, time.Minute)
			if _, err := manager.PurgeExpired(purgeCtx, time.Now().UTC()); err != nil {
				log.Error().Err(err).Msg("expired token purge failed")
			}
			cancel()
		case <-ctx.Done():
			return
		}
	}
}
