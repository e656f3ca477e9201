package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	DBAutoMigrate      bool
	RedisURL           string
	CORSAllowedOrigins []string

	JWTSecret   string
	JWTIssuer   string
	JWTAudience string

	// TenantBaseDomain lets stores be addressed as <slug>.<base domain>.
	TenantBaseDomain string

	CatalogCacheTTL     time.Duration
	CatalogDefaultLimit int
	CatalogMaxLimit     int

	FlashSaleCacheTTL    time.Duration
	LookupBreakerMinReq  int
	LookupBreakerRatio   float64
	LookupBreakerOpenFor time.Duration

	CartTTL          time.Duration
	CheckoutLockTTL  time.Duration
	IdempotencyTTL   time.Duration
	PriceScale       int32
	CurrencyCode     string
	AnalyticsTTL     time.Duration
	AnalyticsDefault time.Duration

	// PublicRateLimit uses the limiter formatted rate, e.g. "300-M".
	PublicRateLimit    string
	CheckoutRateWindow time.Duration
	CheckoutRateMax    int
	ChatRateWindow     time.Duration
	ChatRateMax        int
	ChatMaxLength      int

	WorkerConcurrency int
	BodyLimitBytes    int64
}

// vars reads koanf keys with fallbacks. Malformed values fall back too, so a
// typo in an optional knob never keeps the service from starting.
type vars struct{ k *koanf.Koanf }

func (v vars) str(key, fallback string) string {
	if s := strings.TrimSpace(v.k.String(key)); s != "" {
		return s
	}
	return fallback
}

func (v vars) dur(key string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(v.str(key, "")); err == nil {
		return d
	}
	return fallback
}

func (v vars) num(key string, fallback int) int {
	if n, err := strconv.Atoi(v.str(key, "")); err == nil {
		return n
	}
	return fallback
}

func (v vars) ratio(key string, fallback float64) float64 {
	if f, err := strconv.ParseFloat(v.str(key, ""), 64); err == nil {
		return f
	}
	return fallback
}

func (v vars) flag(key string) bool {
	switch strings.ToLower(v.str(key, "")) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func (v vars) list(key string) []string {
	var out []string
	for _, part := range strings.Split(v.str(key, ""), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Load reads configuration from the environment, after merging an optional
// .env file into it.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}
	v := vars{k: k}

	cfg := &Config{
		AppEnv:             v.str("APP_ENV", "development"),
		Port:               v.str("PORT", "8080"),
		DatabaseURL:        v.str("DATABASE_URL", ""),
		DBAutoMigrate:      v.flag("DB_AUTO_MIGRATE"),
		RedisURL:           v.str("REDIS_URL", ""),
		CORSAllowedOrigins: v.list("CORS_ALLOWED_ORIGINS"),

		JWTSecret:   k.String("JWT_SECRET"),
		JWTIssuer:   v.str("JWT_ISSUER", ""),
		JWTAudience: v.str("JWT_AUDIENCE", ""),

		TenantBaseDomain: v.str("TENANT_BASE_DOMAIN", ""),

		CatalogCacheTTL:     v.dur("CATALOG_CACHE_TTL", time.Minute),
		CatalogDefaultLimit: v.num("CATALOG_DEFAULT_LIMIT", 20),
		CatalogMaxLimit:     v.num("CATALOG_MAX_LIMIT", 100),

		FlashSaleCacheTTL:    v.dur("FLASHSALE_CACHE_TTL", 30*time.Second),
		LookupBreakerMinReq:  v.num("FLASHSALE_BREAKER_MIN_REQUESTS", 20),
		LookupBreakerRatio:   v.ratio("FLASHSALE_BREAKER_FAILURE_RATIO", 0.5),
		LookupBreakerOpenFor: v.dur("FLASHSALE_BREAKER_OPEN_FOR", 30*time.Second),

		CartTTL:          v.dur("CART_TTL", 30*24*time.Hour),
		CheckoutLockTTL:  v.dur("CHECKOUT_LOCK_TTL", 15*time.Second),
		IdempotencyTTL:   v.dur("IDEMPOTENCY_TTL", 24*time.Hour),
		PriceScale:       int32(v.num("PRICE_SCALE", 2)),
		CurrencyCode:     strings.ToUpper(v.str("CURRENCY_CODE", "USD")),
		AnalyticsTTL:     v.dur("ANALYTICS_CACHE_TTL", 5*time.Minute),
		AnalyticsDefault: v.dur("ANALYTICS_DEFAULT_RANGE", 30*24*time.Hour),

		PublicRateLimit:    v.str("RATE_LIMIT_PUBLIC", "300-M"),
		CheckoutRateWindow: v.dur("CHECKOUT_RATE_WINDOW", time.Minute),
		CheckoutRateMax:    v.num("CHECKOUT_RATE_MAX", 5),
		ChatRateWindow:     v.dur("CHAT_RATE_WINDOW", 10*time.Second),
		ChatRateMax:        v.num("CHAT_RATE_MAX", 10),
		ChatMaxLength:      v.num("CHAT_MAX_LENGTH", 2000),

		WorkerConcurrency: v.num("WORKER_CONCURRENCY", 10),
		BodyLimitBytes:    int64(v.num("HTTP_BODY_LIMIT_BYTES", 1<<20)),
	}

	switch {
	case cfg.DatabaseURL == "":
		return nil, errors.New("DATABASE_URL is required")
	case cfg.RedisURL == "":
		return nil, errors.New("REDIS_URL is required")
	case cfg.JWTSecret == "":
		return nil, errors.New("JWT_SECRET is required")
	case cfg.PriceScale < 0 || cfg.PriceScale > 6:
		return nil, fmt.Errorf("PRICE_SCALE must be between 0 and 6, got %d", cfg.PriceScale)
	}
	return cfg, nil
}

// MustLoad is Load for command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// HTTPAddr returns the listen address; PORT may be "8080" or ":8080".
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

// IsProduction reports whether the app runs with APP_ENV=production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}
