package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func setEnv(t *testing.T, overrides map[string]string) {
	t.Helper()
	base := map[string]string{
		"DATABASE_URL": "postgres://localhost/storefront",
		"REDIS_URL":    "redis://localhost:6379/0",
		"JWT_SECRET":   "secret",
	}
	for k, v := range overrides {
		base[k] = v
	}
	for k, v := range base {
		t.Setenv(k, v)
	}
}

func TestLoadDefaults(t *testing.T) {
	setEnv(t, nil)
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.HTTPAddr())
	require.Equal(t, int32(2), cfg.PriceScale)
	require.Equal(t, 30*time.Second, cfg.FlashSaleCacheTTL)
	require.Equal(t, "300-M", cfg.PublicRateLimit)
	require.Equal(t, time.Minute, cfg.CheckoutRateWindow)
	require.Equal(t, 5, cfg.CheckoutRateMax)
	require.Equal(t, "USD", cfg.CurrencyCode)
	require.False(t, cfg.IsProduction())
}

func TestLoadOverrides(t *testing.T) {
	setEnv(t, map[string]string{
		"APP_ENV":              "Production",
		"PORT":                 ":9000",
		"PRICE_SCALE":          "0",
		"CART_TTL":             "bogus",
		"DB_AUTO_MIGRATE":      "yes",
		"CORS_ALLOWED_ORIGINS": "https://a.test, ,https://b.test",
		"CURRENCY_CODE":        "idr",
	})
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":9000", cfg.HTTPAddr())
	require.Equal(t, int32(0), cfg.PriceScale)
	require.Equal(t, 720*time.Hour, cfg.CartTTL)
	require.True(t, cfg.DBAutoMigrate)
	require.True(t, cfg.IsProduction())
	require.Equal(t, []string{"https://a.test", "https://b.test"}, cfg.CORSAllowedOrigins)
	require.Equal(t, "IDR", cfg.CurrencyCode)
}

func TestLoadRequiresSecrets(t *testing.T) {
	setEnv(t, map[string]string{"JWT_SECRET": ""})
	_, err := Load()
	require.ErrorContains(t, err, "JWT_SECRET")

	setEnv(t, map[string]string{"PRICE_SCALE": "9"})
	_, err = Load()
	require.ErrorContains(t, err, "PRICE_SCALE")
}
