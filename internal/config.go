package internal

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

// Rate limit store backends.
const (
	RateLimitStoreMemory = "memory"
	RateLimitStoreRedis  = "redis"
)

type Config struct {
	Env         string
	Port        int
	LogLevel    string
	DatabaseUrl string

	// SMTP Configuration
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	SMTPFromName string

	// Application base URL (for referral links and Stripe redirects)
	BaseURL string

	// Storage Configuration
	StorageProvider string // "local" or "r2"

	// Local Storage (development)
	LocalStoragePath string // Base directory for local file storage
	LocalStorageURL  string // Base URL for accessing local files

	// R2 Storage (production)
	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
	R2PublicURL       string // Optional custom domain URL

	// Worker Configuration
	WorkerEnabled      bool
	WorkerConcurrency  int
	WorkerPollInterval time.Duration
	WorkerJobTimeout   time.Duration

	// Stripe Billing Configuration
	// In development, billing endpoints answer 501 if these are empty.
	StripeSecretKey         string
	StripeWebhookSecret     string
	StripeProPriceID        string
	StripeEnterprisePriceID string

	// Rate limiting
	RateLimitStore  string // "memory" or "redis"
	RedisURL        string
	LoginRateLimit  int
	LoginRateWindow time.Duration
	JoinRateLimit   int
	JoinRateWindow  time.Duration

	// Scheduled maintenance (cron specs)
	SubscriptionSweepSchedule string
	SessionCleanupSchedule    string

	// Metrics endpoint authentication
	// If both are empty, the /metrics endpoint is not mounted.
	MetricsUsername string
	MetricsPassword string
}

// IsDevelopment reports whether the server runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// BillingEnabled reports whether Stripe credentials are configured.
func (c *Config) BillingEnabled() bool {
	return c.StripeSecretKey != ""
}

func NewConfig() (*Config, error) {
	// Load .env file if it exists (ignored in production)
	_ = godotenv.Load()

	cfg := &Config{
		Env:      getEnv("ENV", "development"),
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "debug"),

		// SMTP defaults for Mailhog (development)
		SMTPHost:     getEnv("SMTP_HOST", "localhost"),
		SMTPPort:     getEnvInt("SMTP_PORT", 1025),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SMTPFrom:     getEnv("SMTP_FROM", "noreply@waitlist.local"),
		SMTPFromName: getEnv("SMTP_FROM_NAME", "Waitlist"),

		BaseURL: getEnv("BASE_URL", "http://localhost:8080"),

		// Storage defaults to local filesystem for development
		StorageProvider:  getEnv("STORAGE_PROVIDER", "local"),
		LocalStoragePath: getEnv("LOCAL_STORAGE_PATH", "./storage"),
		LocalStorageURL:  getEnv("LOCAL_STORAGE_URL", "http://localhost:8080/files"),

		// R2 configuration (production only)
		R2AccountID:       getEnv("R2_ACCOUNT_ID", ""),
		R2AccessKeyID:     getEnv("R2_ACCESS_KEY_ID", ""),
		R2SecretAccessKey: getEnv("R2_SECRET_ACCESS_KEY", ""),
		R2BucketName:      getEnv("R2_BUCKET_NAME", ""),
		R2PublicURL:       getEnv("R2_PUBLIC_URL", ""),

		// Worker defaults
		WorkerEnabled:      getEnvBool("WORKER_ENABLED", true),
		WorkerConcurrency:  getEnvInt("WORKER_CONCURRENCY", 2),
		WorkerPollInterval: getEnvDuration("WORKER_POLL_INTERVAL", 5*time.Second),
		WorkerJobTimeout:   getEnvDuration("WORKER_JOB_TIMEOUT", 5*time.Minute),

		// Stripe billing (optional in development)
		StripeSecretKey:         getEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret:     getEnv("STRIPE_WEBHOOK_SECRET", ""),
		StripeProPriceID:        getEnv("STRIPE_PRO_PRICE_ID", ""),
		StripeEnterprisePriceID: getEnv("STRIPE_ENTERPRISE_PRICE_ID", ""),

		// Rate limiting defaults match the login and join policies
		RateLimitStore:  getEnv("RATE_LIMIT_STORE", RateLimitStoreMemory),
		RedisURL:        getEnv("REDIS_URL", ""),
		LoginRateLimit:  getEnvInt("LOGIN_RATE_LIMIT", 5),
		LoginRateWindow: getEnvDuration("LOGIN_RATE_WINDOW", 15*time.Minute),
		JoinRateLimit:   getEnvInt("JOIN_RATE_LIMIT", 3),
		JoinRateWindow:  getEnvDuration("JOIN_RATE_WINDOW", 5*time.Minute),

		SubscriptionSweepSchedule: getEnv("SUBSCRIPTION_SWEEP_SCHEDULE", "@hourly"),
		SessionCleanupSchedule:    getEnv("SESSION_CLEANUP_SCHEDULE", "@daily"),

		// Metrics authentication
		MetricsUsername: getEnv("METRICS_USERNAME", ""),
		MetricsPassword: getEnv("METRICS_PASSWORD", ""),
	}

	// Required
	cfg.DatabaseUrl = os.Getenv("DATABASE_URL")
	if cfg.DatabaseUrl == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field requirements that defaults cannot satisfy.
func (c *Config) Validate() error {
	// Validate storage configuration
	switch c.StorageProvider {
	case "local":
	case "r2":
		if c.R2AccountID == "" {
			return fmt.Errorf("R2_ACCOUNT_ID is required when STORAGE_PROVIDER is 'r2'")
		}
		if c.R2AccessKeyID == "" {
			return fmt.Errorf("R2_ACCESS_KEY_ID is required when STORAGE_PROVIDER is 'r2'")
		}
		if c.R2SecretAccessKey == "" {
			return fmt.Errorf("R2_SECRET_ACCESS_KEY is required when STORAGE_PROVIDER is 'r2'")
		}
		if c.R2BucketName == "" {
			return fmt.Errorf("R2_BUCKET_NAME is required when STORAGE_PROVIDER is 'r2'")
		}
	default:
		return fmt.Errorf("STORAGE_PROVIDER must be either 'local' or 'r2', got: %s", c.StorageProvider)
	}

	// Validate rate limit store
	switch c.RateLimitStore {
	case RateLimitStoreMemory:
	case RateLimitStoreRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when RATE_LIMIT_STORE is 'redis'")
		}
	default:
		return fmt.Errorf("RATE_LIMIT_STORE must be either 'memory' or 'redis', got: %s", c.RateLimitStore)
	}
	if c.LoginRateLimit < 1 || c.JoinRateLimit < 1 {
		return fmt.Errorf("LOGIN_RATE_LIMIT and JOIN_RATE_LIMIT must be at least 1")
	}
	if c.LoginRateWindow <= 0 || c.JoinRateWindow <= 0 {
		return fmt.Errorf("LOGIN_RATE_WINDOW and JOIN_RATE_WINDOW must be positive")
	}

	// Billing needs every Stripe setting once the secret key is present
	if c.BillingEnabled() {
		if c.StripeWebhookSecret == "" {
			return fmt.Errorf("STRIPE_WEBHOOK_SECRET is required when STRIPE_SECRET_KEY is set")
		}
		if c.StripeProPriceID == "" || c.StripeEnterprisePriceID == "" {
			return fmt.Errorf("STRIPE_PRO_PRICE_ID and STRIPE_ENTERPRISE_PRICE_ID are required when STRIPE_SECRET_KEY is set")
		}
	}

	// Schedules must parse the same way the scheduler parses them
	for key, spec := range map[string]string{
		"SUBSCRIPTION_SWEEP_SCHEDULE": c.SubscriptionSweepSchedule,
		"SESSION_CLEANUP_SCHEDULE":    c.SessionCleanupSchedule,
	} {
		if _, err := cron.ParseStandard(spec); err != nil {
			return fmt.Errorf("%s is not a valid cron schedule: %w", key, err)
		}
	}

	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
