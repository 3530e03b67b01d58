package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/salusa-dev/backend-klinik/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.LoadForTests(map[string]string{
		"DATABASE_URL":         "postgres://localhost:5432/klinik",
		"REDIS_URL":            "redis://localhost:6379/0",
		"APP_ENV":              "",
		"PORT":                 "",
		"CURRENCY_CODE":        "",
		"ENTRY_SESSION_TTL":    "",
		"RATE_LIMIT":           "",
		"CORS_ALLOWED_ORIGINS": "",
	})
	require.NoError(t, err)
	require.Equal(t, "development", cfg.AppEnv)
	require.Equal(t, ":8080", cfg.HTTPAddr())
	require.Equal(t, "INR", cfg.CurrencyCode)
	require.Equal(t, 4*time.Hour, cfg.SessionTTL)
	require.Equal(t, "120-M", cfg.RateLimit)
	require.Equal(t, 20, cfg.CatalogDefaultLimit)
	require.Equal(t, "internal/db/migrations", cfg.MigrationsDir)
	require.False(t, cfg.WebhookEnabled)
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := config.LoadForTests(map[string]string{
		"DATABASE_URL":         "postgres://localhost:5432/klinik",
		"REDIS_URL":            "redis://localhost:6379/0",
		"PORT":                 "9090",
		"ENTRY_SESSION_TTL":    "90m",
		"RATE_LIMIT":           "30-M",
		"CORS_ALLOWED_ORIGINS": "https://admin.klinik.test, https://desk.klinik.test",
		"WEBHOOK_ENABLED":      "true",
		"WEBHOOK_URL":          "https://hooks.klinik.test/orders",
		"WORKER_CONCURRENCY":   "8",
	})
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.HTTPAddr())
	require.Equal(t, 90*time.Minute, cfg.SessionTTL)
	require.Equal(t, "30-M", cfg.RateLimit)
	require.Equal(t, []string{"https://admin.klinik.test", "https://desk.klinik.test"}, cfg.CORSAllowedOrigins)
	require.True(t, cfg.WebhookEnabled)
	require.Equal(t, 8, cfg.WorkerConcurrency)
}

func TestLoadRequiresDatabaseAndRedis(t *testing.T) {
	_, err := config.LoadForTests(map[string]string{
		"DATABASE_URL": "",
		"REDIS_URL":    "redis://localhost:6379/0",
	})
	require.Error(t, err)

	_, err = config.LoadForTests(map[string]string{
		"DATABASE_URL": "postgres://localhost:5432/klinik",
		"REDIS_URL":    "",
	})
	require.Error(t, err)
}
