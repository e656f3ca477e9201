// Package app wires the shared infrastructure used by the API, the worker
// and the tools: Postgres, Redis, tracing and the asynq connection.
package app

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/storefront-api/internal/config"
	"github.com/noah-isme/storefront-api/internal/db"
	"github.com/noah-isme/storefront-api/internal/obs"
)

// Infra holds the connections every process shares.
type Infra struct {
	Pool    *pgxpool.Pool
	Queries *db.Queries
	Redis   *redis.Client
	Log     zerolog.Logger
}

// Options tunes Open.
type Options struct {
	// AppName is reported to Postgres as application_name.
	AppName string
	// RedisMetrics enables redisotel metrics next to tracing.
	RedisMetrics bool
	MaxConns     int32
}

// Open connects to Postgres and Redis and pings both.
func Open(ctx context.Context, cfg *config.Config, log zerolog.Logger, opts Options) (*Infra, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	if opts.AppName != "" {
		poolConfig.ConnConfig.RuntimeParams["application_name"] = opts.AppName
	}
	if opts.MaxConns > 0 {
		poolConfig.MaxConns = opts.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	rdb, err := NewRedis(ctx, cfg.RedisURL, opts.RedisMetrics, log)
	if err != nil {
		pool.Close()
		return nil, err
	}

	return &Infra{Pool: pool, Queries: db.New(pool), Redis: rdb, Log: log}, nil
}

// NewRedis parses url, instruments the client and pings it.
func NewRedis(ctx context.Context, url string, metrics bool, log zerolog.Logger) (*redis.Client, error) {
	redisOpts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		log.Error().Err(err).Msg("instrument redis tracing")
	}
	if metrics {
		if err := redisotel.InstrumentMetrics(client); err != nil {
			log.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// Close releases the connections.
func (i *Infra) Close() {
	if i == nil {
		return
	}
	if i.Redis != nil {
		if err := i.Redis.Close(); err != nil {
			i.Log.Error().Err(err).Msg("close redis")
		}
	}
	if i.Pool != nil {
		i.Pool.Close()
	}
}

// AsynqRedis converts the Redis URL to an asynq connection option.
func AsynqRedis(cfg *config.Config) (asynq.RedisConnOpt, error) {
	opt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse asynq redis url: %w", err)
	}
	return opt, nil
}

// Logger builds the process logger from OBS_LOG_FORMAT and OBS_LOG_LEVEL.
func Logger(cfg *config.Config, component string) zerolog.Logger {
	return obs.NewLogger(EnvOrDefault("OBS_LOG_FORMAT", "json"), EnvOrDefault("OBS_LOG_LEVEL", "info")).
		With().
		Str("env", cfg.AppEnv).
		Str("component", component).
		Logger()
}

// Tracing starts the tracer provider when OBS_ENABLE_TRACING is on. The
// returned shutdown is never nil; enabled reports whether tracing runs.
func Tracing(ctx context.Context, cfg *config.Config, service string, log zerolog.Logger) (shutdown func(context.Context) error, enabled bool) {
	noop := func(context.Context) error { return nil }
	if !EnvBool("OBS_ENABLE_TRACING", true) {
		return noop, false
	}
	stop, err := obs.InitTracer(ctx, obs.TracingConfig{
		ServiceName:   service,
		Environment:   cfg.AppEnv,
		Exporter:      EnvOrDefault("OBS_TRACING_EXPORTER", "otlp"),
		Endpoint:      EnvOrDefault("OBS_OTLP_ENDPOINT", ""),
		Insecure:      EnvBool("OBS_OTLP_INSECURE", false),
		Headers:       obs.ParseHeaders(EnvOrDefault("OBS_OTLP_HEADERS", "")),
		SamplingRatio: EnvFloat("OBS_TRACING_SAMPLING_RATIO", 1.0),
	})
	if err != nil {
		log.Error().Err(err).Msg("initialise tracing")
		return noop, false
	}
	return stop, true
}

// EnvOrDefault returns the trimmed value of key or fallback when unset or blank.
func EnvOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func EnvBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "t", "true", "yes", "on":
			return true
		case "0", "f", "false", "no", "off":
			return false
		}
	}
	return fallback
}

func EnvFloat(key string, fallback float64) float64 {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return parsed
		}
	}
	return fallback
}
