// Package config loads and validates process configuration from the
// environment, failing fast when required values are missing or malformed.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/cypherarest/poscore/internal/logger"
)

// Config holds all environment-derived settings for the process.
type Config struct {
	Stage string

	DatabaseURL      string
	SchemaVersion    string
	ExpectedSchemaVersion string

	CacheURL string

	IdentityProviderURL string
	PlatformOwnerEmails map[string]struct{}

	StripeSecretKey      string
	StripeWebhookSecret  string
	SumUpSecretKey       string
	SumUpWebhookSecret   string
	ApplePaySecretKey    string
	ApplePayWebhookSecret string
	QRProviderSecret     string
	QRProviderWebhookSecret string

	CORSAllowedOrigins []string
	CORSAllowedMethods []string
	CORSAllowedHeaders []string

	LogLevel string

	RequestDeadline       time.Duration
	PaymentProviderDeadline time.Duration
	WebhookDeadline       time.Duration

	HTTPAddr    string
	MetricsAddr string

	DBMaxConns        int32
	DBMinConns        int32
	DBMaxConnLifetime time.Duration
	DBMaxConnIdleTime time.Duration
}

// Load reads configuration from the environment (optionally preloaded from a
// .env file for local development) and validates it. It fails fast via
// logger.Fatal when a required value is missing, matching the teacher's
// server-startup behavior.
func Load() *Config {
	stage := os.Getenv("STAGE")
	if stage == "" {
		stage = logger.StageLocal
	}
	if !logger.IsValidStage(stage) {
		logger.Fatal("invalid STAGE value", zap.String("stage", stage))
	}

	if stage == logger.StageLocal {
		_ = godotenv.Load()
	}

	cfg := &Config{
		Stage:                 stage,
		DatabaseURL:           mustEnv("DATABASE_URL"),
		ExpectedSchemaVersion: mustEnv("EXPECTED_SCHEMA_VERSION"),
		CacheURL:              mustEnv("CACHE_URL"),
		IdentityProviderURL:   mustEnv("IDENTITY_PROVIDER_URL"),

		StripeSecretKey:         os.Getenv("STRIPE_SECRET_KEY"),
		StripeWebhookSecret:     os.Getenv("STRIPE_WEBHOOK_SECRET"),
		SumUpSecretKey:          os.Getenv("SUMUP_SECRET_KEY"),
		SumUpWebhookSecret:      os.Getenv("SUMUP_WEBHOOK_SECRET"),
		ApplePaySecretKey:       os.Getenv("APPLE_PAY_SECRET_KEY"),
		ApplePayWebhookSecret:   os.Getenv("APPLE_PAY_WEBHOOK_SECRET"),
		QRProviderSecret:        os.Getenv("QR_PROVIDER_SECRET"),
		QRProviderWebhookSecret: os.Getenv("QR_PROVIDER_WEBHOOK_SECRET"),

		LogLevel: envOr("LOG_LEVEL", "info"),

		HTTPAddr:    envOr("HTTP_ADDR", ":8080"),
		MetricsAddr: envOr("METRICS_ADDR", "127.0.0.1:9090"),

		DBMaxConns:        int32(envIntOr("DB_MAX_CONNS", 20)),
		DBMinConns:        int32(envIntOr("DB_MIN_CONNS", 5)),
		DBMaxConnLifetime: envDurationOr("DB_MAX_CONN_LIFETIME", 30*time.Minute),
		DBMaxConnIdleTime: envDurationOr("DB_MAX_CONN_IDLE_TIME", 15*time.Minute),

		RequestDeadline:         envDurationOr("REQUEST_DEADLINE", 30*time.Second),
		PaymentProviderDeadline: envDurationOr("PAYMENT_PROVIDER_DEADLINE", 15*time.Second),
		WebhookDeadline:         envDurationOr("WEBHOOK_DEADLINE", 10*time.Second),
	}

	cfg.PlatformOwnerEmails = parseAllowlist(os.Getenv("PLATFORM_OWNER_ALLOWLIST"))
	cfg.CORSAllowedOrigins = splitCSV(envOr("CORS_ALLOWED_ORIGINS", "*"))
	cfg.CORSAllowedMethods = splitCSV(envOr("CORS_ALLOWED_METHODS", "GET,POST,PUT,PATCH,DELETE,OPTIONS"))
	cfg.CORSAllowedHeaders = splitCSV(envOr("CORS_ALLOWED_HEADERS", "Authorization,Content-Type,X-Correlation-ID,X-API-Key,Idempotency-Key"))

	return cfg
}

// IsPlatformOwnerEmail reports whether email is present in the configured
// platform-owner allowlist, used by the Identity Verifier (C1) to elevate a
// brand-new user on first login.
func (c *Config) IsPlatformOwnerEmail(email string) bool {
	_, ok := c.PlatformOwnerEmails[strings.ToLower(email)]
	return ok
}

// CheckSchemaVersion fails fast if the reported database schema version does
// not match what this build expects, per spec §6.
func (c *Config) CheckSchemaVersion(actual string) error {
	if actual != c.ExpectedSchemaVersion {
		return fmt.Errorf("schema version mismatch: expected %q, got %q", c.ExpectedSchemaVersion, actual)
	}
	return nil
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		logger.Fatal("missing required environment variable", zap.String("key", key))
	}
	return v
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		logger.Fatal("invalid integer environment variable", zap.String("key", key))
	}
	return n
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		logger.Fatal("invalid duration environment variable", zap.String("key", key))
	}
	return d
}

func parseAllowlist(raw string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, email := range strings.Split(raw, ",") {
		email = strings.ToLower(strings.TrimSpace(email))
		if email != "" {
			set[email] = struct{}{}
		}
	}
	return set
}

func splitCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
