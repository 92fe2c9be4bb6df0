package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// ServerConfig holds all configuration for the server.
// Tags use mapstructure for Viper unmarshalling; every key can be overridden
// by an environment variable of the same name.
type ServerConfig struct {
	HTTPPort    string `mapstructure:"HTTP_PORT"`
	MongoURI    string `mapstructure:"MONGO_URI"`
	MongoDBName string `mapstructure:"MONGO_DB_NAME"`
	RedisAddr   string `mapstructure:"REDIS_ADDR"` // empty disables rate limiting
	LogLevel    string `mapstructure:"LOG_LEVEL"`
	LogPretty   bool   `mapstructure:"LOG_PRETTY"`

	OtelServiceName string `mapstructure:"OTEL_SERVICE_NAME"`

	JWTSecretKey string `mapstructure:"JWT_SECRET_KEY"`
	TokenTTLHour int    `mapstructure:"TOKEN_TTL_HOUR"`
	BcryptCost   int    `mapstructure:"BCRYPT_COST"`

	FrontendURL       string `mapstructure:"FRONTEND_URL"`
	MobileRedirectURL string `mapstructure:"MOBILE_REDIRECT_URL"`
	OAuthCallbackBase string `mapstructure:"OAUTH_CALLBACK_BASE"`

	GoogleClientID     string `mapstructure:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `mapstructure:"GOOGLE_CLIENT_SECRET"`
	FacebookAppID      string `mapstructure:"FACEBOOK_APP_ID"`
	FacebookAppSecret  string `mapstructure:"FACEBOOK_APP_SECRET"`

	StripeWebhookSecret     string `mapstructure:"STRIPE_WEBHOOK_SECRET"`
	AppleSharedSecret       string `mapstructure:"APPLE_SHARED_SECRET"`
	AppleProductID          string `mapstructure:"APPLE_PRODUCT_ID"`
	AndroidPackageName      string `mapstructure:"ANDROID_PACKAGE_NAME"`
	GoogleServiceAccountKey string `mapstructure:"GOOGLE_SERVICE_ACCOUNT_KEY"`

	SubscriptionPeriodDays int `mapstructure:"SUBSCRIPTION_PERIOD_DAYS"`
	EventRetentionDays     int `mapstructure:"EVENT_RETENTION_DAYS"`

	LoginRateLimit  int `mapstructure:"LOGIN_RATE_LIMIT"`  // attempts per window
	LoginRateWindow int `mapstructure:"LOGIN_RATE_WINDOW"` // seconds
}

// LoadConfig reads configuration from file, environment variables, and defaults.
func LoadConfig() (*ServerConfig, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/recipebook/")
	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("HTTP_PORT", "5000")
	v.SetDefault("MONGO_URI", "mongodb://localhost:27017/recipebook_dev")
	v.SetDefault("MONGO_DB_NAME", "recipebook_dev")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", true)
	v.SetDefault("OTEL_SERVICE_NAME", "recipebook-server")
	v.SetDefault("JWT_SECRET_KEY", "a_very_secret_jwt_key_change_me") // CHANGE IN PRODUCTION
	v.SetDefault("TOKEN_TTL_HOUR", 168)                               // 7 days
	v.SetDefault("BCRYPT_COST", 10)
	v.SetDefault("FRONTEND_URL", "http://localhost:3000")
	v.SetDefault("MOBILE_REDIRECT_URL", "recipebook://auth/success")
	v.SetDefault("OAUTH_CALLBACK_BASE", "http://localhost:5000")
	v.SetDefault("APPLE_PRODUCT_ID", "premium_subscription_monthly")
	v.SetDefault("SUBSCRIPTION_PERIOD_DAYS", 30)
	v.SetDefault("EVENT_RETENTION_DAYS", 90)
	v.SetDefault("LOGIN_RATE_LIMIT", 10)
	v.SetDefault("LOGIN_RATE_WINDOW", 60)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine, we run on defaults and env vars.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg ServerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	return &cfg, nil
}
