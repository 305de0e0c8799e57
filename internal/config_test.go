package internal

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setEnv(t *testing.T, env map[string]string) {
	t.Helper()
	for k, v := range env {
		t.Setenv(k, v)
	}
}

func TestNewConfig_Defaults(t *testing.T) {
	setEnv(t, map[string]string{"DATABASE_URL": "postgres://localhost/waitlist"})

	cfg, err := NewConfig()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "local", cfg.StorageProvider)
	assert.Equal(t, RateLimitStoreMemory, cfg.RateLimitStore)
	assert.Equal(t, 5, cfg.LoginRateLimit)
	assert.Equal(t, 15*time.Minute, cfg.LoginRateWindow)
	assert.Equal(t, 3, cfg.JoinRateLimit)
	assert.Equal(t, 5*time.Minute, cfg.JoinRateWindow)
	assert.Equal(t, "@hourly", cfg.SubscriptionSweepSchedule)
	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.BillingEnabled())
}

func TestNewConfig_Overrides(t *testing.T) {
	setEnv(t, map[string]string{
		"DATABASE_URL":     "postgres://localhost/waitlist",
		"ENV":              "production",
		"PORT":             "9000",
		"RATE_LIMIT_STORE": "redis",
		"REDIS_URL":        "redis://localhost:6379/0",
		"JOIN_RATE_LIMIT":  "10",
		"JOIN_RATE_WINDOW": "1m",
		"WORKER_ENABLED":   "false",
	})

	cfg, err := NewConfig()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Port)
	assert.False(t, cfg.IsDevelopment())
	assert.Equal(t, RateLimitStoreRedis, cfg.RateLimitStore)
	assert.Equal(t, 10, cfg.JoinRateLimit)
	assert.Equal(t, time.Minute, cfg.JoinRateWindow)
	assert.False(t, cfg.WorkerEnabled)
}

func TestNewConfig_MalformedNumbersFallBack(t *testing.T) {
	setEnv(t, map[string]string{
		"DATABASE_URL":      "postgres://localhost/waitlist",
		"PORT":              "eighty",
		"LOGIN_RATE_WINDOW": "soon",
	})

	cfg, err := NewConfig()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 15*time.Minute, cfg.LoginRateWindow)
}

func TestNewConfig_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "missing database",
			env:     map[string]string{"DATABASE_URL": ""},
			wantErr: "DATABASE_URL",
		},
		{
			name:    "unknown storage",
			env:     map[string]string{"STORAGE_PROVIDER": "s3"},
			wantErr: "STORAGE_PROVIDER",
		},
		{
			name:    "r2 without bucket",
			env:     map[string]string{"STORAGE_PROVIDER": "r2", "R2_ACCOUNT_ID": "a", "R2_ACCESS_KEY_ID": "k", "R2_SECRET_ACCESS_KEY": "s"},
			wantErr: "R2_BUCKET_NAME",
		},
		{
			name:    "redis without url",
			env:     map[string]string{"RATE_LIMIT_STORE": "redis"},
			wantErr: "REDIS_URL",
		},
		{
			name:    "unknown rate limit store",
			env:     map[string]string{"RATE_LIMIT_STORE": "memcached"},
			wantErr: "RATE_LIMIT_STORE",
		},
		{
			name:    "zero join limit",
			env:     map[string]string{"JOIN_RATE_LIMIT": "0"},
			wantErr: "JOIN_RATE_LIMIT",
		},
		{
			name:    "stripe without prices",
			env:     map[string]string{"STRIPE_SECRET_KEY": "sk_test_1", "STRIPE_WEBHOOK_SECRET": "whsec_1"},
			wantErr: "STRIPE_PRO_PRICE_ID",
		},
		{
			name:    "stripe without webhook secret",
			env:     map[string]string{"STRIPE_SECRET_KEY": "sk_test_1"},
			wantErr: "STRIPE_WEBHOOK_SECRET",
		},
		{
			name:    "bad schedule",
			env:     map[string]string{"SUBSCRIPTION_SWEEP_SCHEDULE": "every hour"},
			wantErr: "SUBSCRIPTION_SWEEP_SCHEDULE",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("DATABASE_URL", "postgres://localhost/waitlist")
			setEnv(t, tt.env)

			_, err := NewConfig()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewLogger_Level(t *testing.T) {
	tests := []struct {
		level string
		debug bool
		warn  bool
	}{
		{"debug", true, true},
		{"info", false, true},
		{"error", false, false},
		{"bogus", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logger := NewLogger(io.Discard, "production", tt.level)
			assert.Equal(t, tt.debug, logger.Enabled(context.Background(), slog.LevelDebug))
			assert.Equal(t, tt.warn, logger.Enabled(context.Background(), slog.LevelWarn))
		})
	}
}

func TestNewLogger_Format(t *testing.T) {
	var buf bytes.Buffer
	NewLogger(&buf, "production", "info").Info("hello", "k", "v")
	assert.Contains(t, buf.String(), `"msg":"hello"`)
	assert.Contains(t, buf.String(), `"service":"waitlist"`)

	buf.Reset()
	NewLogger(&buf, "development", "info").Info("hello", "k", "v")
	assert.Contains(t, buf.String(), "msg=hello")
	assert.Contains(t, buf.String(), "k=v")
}
