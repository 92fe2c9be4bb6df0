package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	echoapi "github.com/recipebook/recipebook-server/api/echo"
	"github.com/recipebook/recipebook-server/config"
	"github.com/recipebook/recipebook-server/domain"
	"github.com/recipebook/recipebook-server/internal/auth"
	"github.com/recipebook/recipebook-server/internal/federation"
	"github.com/recipebook/recipebook-server/internal/metrics"
	"github.com/recipebook/recipebook-server/internal/ratelimit"
	"github.com/recipebook/recipebook-server/internal/receipt"
	"github.com/recipebook/recipebook-server/middleware"
	"github.com/recipebook/recipebook-server/mongodb"
	"github.com/recipebook/recipebook-server/services"
	"github.com/recipebook/recipebook-server/tracing"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	initLogger(cfg)
	log.Info().
		Str("http_port", cfg.HTTPPort).
		Str("mongo_db", cfg.MongoDBName).
		Str("log_level", cfg.LogLevel).
		Msg("Starting recipebook server")

	tp, err := tracing.InitTracerProvider(cfg.OtelServiceName)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize TracerProvider")
	}

	ctx := context.Background()

	mongoClient, err := mongodb.Connect(ctx, cfg.MongoURI, cfg.MongoDBName)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to MongoDB")
	}
	db := mongoClient.Database()

	userRepo, err := mongodb.NewUserRepository(ctx, db)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize user repository")
	}
	recipeRepo := mongodb.NewRecipeRepository(db)
	ledgerRepo, err := mongodb.NewLedgerRepository(ctx, db,
		time.Duration(cfg.EventRetentionDays)*24*time.Hour)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize ledger repository")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics.InitCustomMetrics(registry)

	var redisClient *redis.Client
	var limiter ratelimit.Limiter = ratelimit.NoopLimiter{}
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		limiter = ratelimit.NewRedisLimiter(redisClient,
			cfg.LoginRateLimit, time.Duration(cfg.LoginRateWindow)*time.Second)
	} else {
		log.Warn().Msg("REDIS_ADDR not set, login rate limiting disabled")
	}

	validators := buildValidators(ctx, cfg)
	verifier := receipt.NewStripeWebhookVerifier(cfg.StripeWebhookSecret)

	hasher := auth.NewBcryptPasswordHasher(cfg.BcryptCost)
	tokens := auth.NewTokenService(cfg.JWTSecretKey,
		time.Duration(cfg.TokenTTLHour)*time.Hour)

	authService := services.NewAuthService(userRepo, hasher, tokens)
	identityService := services.NewIdentityService(userRepo)
	accessService := services.NewAccessService(userRepo)
	recipeService := services.NewRecipeService(recipeRepo, accessService)
	entitlementService := services.NewEntitlementService(
		userRepo, ledgerRepo, validators, verifier, mongoClient,
		time.Duration(cfg.SubscriptionPeriodDays)*24*time.Hour)

	providers := buildProviders(cfg)
	states := federation.NewStateStore()

	authn := middleware.NewAuthenticator(tokens, userRepo)
	api := echoapi.NewAPI(cfg, mongoClient, authService, identityService, entitlementService,
		recipeService, authn, providers, states, limiter, registry)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	api.RegisterRoutes(e)

	go func() {
		addr := fmt.Sprintf(":%s", cfg.HTTPPort)
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start HTTP server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info().Str("signal", sig.String()).Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}
	states.Stop()
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			log.Error().Err(err).Msg("Redis close error")
		}
	}
	if err := tp.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("TracerProvider shutdown error")
	}
	if err := mongoClient.Close(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("MongoDB close error")
	}

	log.Info().Msg("Server stopped")
}

func initLogger(cfg *config.ServerConfig) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

// buildValidators assembles the per-platform receipt validators. A platform
// without configuration is left out of the map, which makes the API reject
// its receipts as unsupported instead of failing at startup.
func buildValidators(ctx context.Context, cfg *config.ServerConfig) map[domain.Platform]receipt.Validator {
	validators := make(map[domain.Platform]receipt.Validator)

	validators[domain.PlatformIOS] = receipt.NewAppleValidator(
		cfg.AppleSharedSecret, cfg.AppleProductID)

	if cfg.GoogleServiceAccountKey != "" {
		gv, err := receipt.NewGoogleValidator(ctx, cfg.AndroidPackageName, cfg.GoogleServiceAccountKey)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize Google Play validator")
		}
		validators[domain.PlatformAndroid] = gv
	} else {
		log.Warn().Msg("GOOGLE_SERVICE_ACCOUNT_KEY not set, android receipts will be rejected")
	}

	return validators
}

func buildProviders(cfg *config.ServerConfig) map[domain.AuthProvider]federation.Provider {
	providers := make(map[domain.AuthProvider]federation.Provider)

	if cfg.GoogleClientID != "" {
		providers[domain.AuthProviderGoogle] = federation.NewGoogleProvider(
			cfg.GoogleClientID, cfg.GoogleClientSecret,
			cfg.OAuthCallbackBase+"/api/auth/google/callback")
	}
	if cfg.FacebookAppID != "" {
		providers[domain.AuthProviderFacebook] = federation.NewFacebookProvider(
			cfg.FacebookAppID, cfg.FacebookAppSecret,
			cfg.OAuthCallbackBase+"/api/auth/facebook/callback")
	}
	if len(providers) == 0 {
		log.Warn().Msg("No OAuth providers configured, social sign-in disabled")
	}

	return providers
}
