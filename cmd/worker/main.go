package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/noah-isme/storefront-api/internal/app"
	"github.com/noah-isme/storefront-api/internal/config"
	"github.com/noah-isme/storefront-api/internal/events"
	"github.com/noah-isme/storefront-api/internal/flashsale"
	"github.com/noah-isme/storefront-api/internal/notify"
	"github.com/noah-isme/storefront-api/internal/obs"
	"github.com/noah-isme/storefront-api/internal/pubsub"
)

func main() {
	cfg := config.MustLoad()
	logger := app.Logger(cfg, "worker")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	obs.MustRegisterDomainMetrics(app.EnvOrDefault("OBS_METRICS_NAMESPACE", "storefront"), nil)
	shutdownTracer, _ := app.Tracing(ctx, cfg, "storefront-worker", logger)
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Error().Err(err).Msg("shutdown tracer")
		}
	}()

	openCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	infra, err := app.Open(openCtx, cfg, logger, app.Options{AppName: "storefront-worker", MaxConns: int32(cfg.WorkerConcurrency) + 2})
	cancel()
	if err != nil {
		logger.Fatal().Err(err).Msg("open infrastructure")
	}
	defer infra.Close()

	asynqRedis, err := app.AsynqRedis(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("asynq redis")
	}

	broker := &pubsub.Redis{R: infra.Redis, Log: logger}
	notifySvc := &notify.Service{Q: infra.Queries, Broker: broker, Log: logger}
	bus := &events.Bus{
		Store:     infra.Queries,
		Notifiers: []events.Notifier{notify.EventNotifier{Sender: notifySvc, Stores: infra.Queries, Broker: broker}},
		Log:       logger,
	}
	tasks := &flashsale.TaskHandler{
		Q:      infra.Queries,
		Cache:  flashsale.NewCachedLookup(nil, infra.Redis, cfg.FlashSaleCacheTTL),
		Broker: broker,
		Events: bus,
		Log:    logger,
	}

	mux := asynq.NewServeMux()
	mux.Use(logTasks(logger))
	tasks.Register(mux)

	srv := asynq.NewServer(asynqRedis, asynq.Config{
		Concurrency:     cfg.WorkerConcurrency,
		ShutdownTimeout: 10 * time.Second,
		Logger:          asynqLogger{log: logger},
		ErrorHandler: asynq.ErrorHandlerFunc(func(_ context.Context, task *asynq.Task, err error) {
			logger.Error().Err(err).Str("task", task.Type()).Msg("task failed")
		}),
	})

	if app.EnvBool("OBS_ENABLE_PROMETHEUS", true) {
		go serveMetrics(ctx, app.EnvOrDefault("WORKER_METRICS_ADDR", ":9091"), logger)
	}

	if err := srv.Start(mux); err != nil {
		logger.Fatal().Err(err).Msg("start worker")
	}
	logger.Info().Int("concurrency", cfg.WorkerConcurrency).Msg("worker started")

	<-ctx.Done()
	srv.Shutdown()
	logger.Info().Msg("worker shutdown complete")
}

func logTasks(logger zerolog.Logger) asynq.MiddlewareFunc {
	return func(next asynq.Handler) asynq.Handler {
		return asynq.HandlerFunc(func(ctx context.Context, t *asynq.Task) error {
			start := time.Now()
			err := next.ProcessTask(ctx, t)
			evt := logger.Info()
			if err != nil {
				evt = logger.Warn().Err(err)
			}
			evt.Str("task", t.Type()).Dur("duration", time.Since(start)).Msg("task processed")
			return err
		})
	}
}

func serveMetrics(ctx context.Context, addr string, logger zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("metrics server")
	}
}

// asynqLogger routes asynq's internal logs through zerolog.
type asynqLogger struct {
	log zerolog.Logger
}

func (l asynqLogger) Debug(args ...any) { l.log.Debug().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Info(args ...any)  { l.log.Info().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Warn(args ...any)  { l.log.Warn().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Error(args ...any) { l.log.Error().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Fatal(args ...any) { l.log.Fatal().Msg(fmt.Sprint(args...)) }
