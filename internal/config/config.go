package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Application
	AppName      string
	AppEnv       string
	AppURL       string
	Port         string
	SupportEmail string

	// Database (optional driver switch via ENV, default: sqlite)
	DBDriver     string
	DBConnection string

	// Fallback goal log, written when the database rejects a goal
	FallbackPath string

	// Sessions are issued by the identity provider and signed with a shared secret
	JWTSecret             string
	JWTExpiry             time.Duration
	IdentityWebhookSecret string
	CronSecret            string

	// Goals
	FreeGoalLimit   int
	GoalWriteRetry  time.Duration // base delay between database write attempts
	AIRateLimit     int           // AI-backed requests per user per minute
	PublicRateLimit int           // public page requests per client IP per minute
	AITimeout       time.Duration
	OpenAIAPIKey    string
	OpenAIModel     string
	OpenAIBaseURL   string

	// Email
	EmailFrom    string
	ResendAPIKey string

	// Payment
	PaymentProvider string // "polar" or "stripe"
	// Payment - Polar
	PolarAPIKey              string
	PolarWebhookSecret       string
	PolarSandboxMode         bool
	PolarProductIDProMonthly string
	PolarProductIDProYearly  string
	// Payment - Stripe
	StripeSecretKey         string
	StripeWebhookSecret     string
	StripePriceIDProMonthly string
	StripePriceIDProYearly  string

	// Rate limiting state shared across instances (optional)
	RedisURL string

	// Observability (optional)
	SentryDSN string

	// Storage for check-in images (S3-compatible, optional)
	S3Region               string
	S3Bucket               string
	S3AccessKey            string
	S3SecretKey            string
	S3Endpoint             string
	S3PresignExpiryPrivate time.Duration
}

func Load() *Config {
	// Load .env file if it exists
	err := godotenv.Load()
	if err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	cfg := &Config{
		AppName:      envString("APP_NAME", "Stepwise"),
		AppEnv:       envRequired("APP_ENV"), // 'development' or 'production'
		AppURL:       envRequired("APP_URL"), // base URL for email links and public pages
		Port:         envString("PORT", "8090"),
		SupportEmail: envString("SUPPORT_EMAIL", "hello@example.com"),

		DBDriver:     envString("DB_DRIVER", "sqlite"),
		DBConnection: envString("DB_CONNECTION", "./data/stepwise.db?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"),
		FallbackPath: envString("FALLBACK_PATH", "./data/fallback-goals.jsonl"),

		JWTSecret:             envRequired("JWT_SECRET"),
		JWTExpiry:             envDuration("JWT_EXPIRY", 168*time.Hour),
		IdentityWebhookSecret: envString("IDENTITY_WEBHOOK_SECRET", ""),
		CronSecret:            envString("CRON_SECRET", ""),

		FreeGoalLimit:   envInt("FREE_GOAL_LIMIT", 3),
		GoalWriteRetry:  envDuration("GOAL_WRITE_RETRY", time.Second),
		AIRateLimit:     envInt("AI_RATE_LIMIT", 10),
		PublicRateLimit: envInt("PUBLIC_RATE_LIMIT", 120),
		AITimeout:       envDuration("AI_TIMEOUT", 20*time.Second),
		OpenAIAPIKey:    envString("OPENAI_API_KEY", ""),
		OpenAIModel:     envString("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIBaseURL:   envString("OPENAI_BASE_URL", ""),

		EmailFrom:    envString("EMAIL_FROM", "noreply@example.com"),
		ResendAPIKey: envString("RESEND_API_KEY", ""),

		PaymentProvider:          envString("PAYMENT_PROVIDER", "stripe"),
		PolarAPIKey:              envString("POLAR_API_KEY", ""),
		PolarWebhookSecret:       envString("POLAR_WEBHOOK_SECRET", ""),
		PolarSandboxMode:         envBool("POLAR_SANDBOX_MODE", envString("APP_ENV", "development") == "development"),
		PolarProductIDProMonthly: envString("POLAR_PRODUCT_ID_PRO_MONTHLY", ""),
		PolarProductIDProYearly:  envString("POLAR_PRODUCT_ID_PRO_YEARLY", ""),
		StripeSecretKey:          envString("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret:      envString("STRIPE_WEBHOOK_SECRET", ""),
		StripePriceIDProMonthly:  envString("STRIPE_PRICE_ID_PRO_MONTHLY", ""),
		StripePriceIDProYearly:   envString("STRIPE_PRICE_ID_PRO_YEARLY", ""),

		RedisURL:  envString("REDIS_URL", ""),
		SentryDSN: envString("SENTRY_DSN", ""),

		S3Region:               envString("S3_REGION", ""),
		S3Bucket:               envString("S3_BUCKET", ""),
		S3AccessKey:            envString("S3_ACCESS_KEY", ""),
		S3SecretKey:            envString("S3_SECRET_KEY", ""),
		S3Endpoint:             envString("S3_ENDPOINT", ""),
		S3PresignExpiryPrivate: envDuration("S3_PRESIGN_EXPIRY_PRIVATE", 1*time.Hour),
	}

	if cfg.IsProduction() {
		validateProduction(cfg)
	}

	return cfg
}

// validateProduction ensures all required services are configured for production deployments.
// Development allows email, AI and storage to run in log/stub modes.
func validateProduction(cfg *Config) {
	for key, value := range map[string]string{
		"RESEND_API_KEY":          cfg.ResendAPIKey,
		"OPENAI_API_KEY":          cfg.OpenAIAPIKey,
		"IDENTITY_WEBHOOK_SECRET": cfg.IdentityWebhookSecret,
		"CRON_SECRET":             cfg.CronSecret,
	} {
		if value == "" {
			slog.Error("production deployment requires "+key,
				"hint", "set APP_ENV=development for local testing with stub services")
			os.Exit(1)
		}
	}
}

func envString(key, def string) string {
	value := os.Getenv(key)
	if value == "" {
		value = def
	}
	return value
}

func envBool(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		slog.Warn("config invalid bool, using default", "key", key, "value", v, "default", def)
		return def
	}
	return b
}

func envInt(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("config invalid int, using default", "key", key, "value", v, "default", def)
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("config invalid duration, using default", "key", key, "value", v, "default", def)
		return def
	}
	return d
}

func envRequired(key string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	slog.Error("config required env var missing", "key", key)
	os.Exit(1)
	return ""
}

func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// HasStorage reports whether check-in image uploads can be stored.
func (c *Config) HasStorage() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// Sanitized returns a copy of the config with only public/safe fields.
// All secrets, credentials, and sensitive data are excluded.
func (c *Config) Sanitized() *Config {
	return &Config{
		AppName:       c.AppName,
		AppEnv:        c.AppEnv,
		AppURL:        c.AppURL,
		Port:          c.Port,
		SupportEmail:  c.SupportEmail,
		EmailFrom:     c.EmailFrom,
		FreeGoalLimit: c.FreeGoalLimit,
		S3Endpoint:    c.S3Endpoint,
	}
}
