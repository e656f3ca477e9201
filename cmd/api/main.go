package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/storefront-api/internal/analytics"
	"github.com/noah-isme/storefront-api/internal/app"
	"github.com/noah-isme/storefront-api/internal/auth"
	"github.com/noah-isme/storefront-api/internal/cache"
	"github.com/noah-isme/storefront-api/internal/cart"
	"github.com/noah-isme/storefront-api/internal/catalog"
	"github.com/noah-isme/storefront-api/internal/chat"
	"github.com/noah-isme/storefront-api/internal/checkout"
	"github.com/noah-isme/storefront-api/internal/common"
	"github.com/noah-isme/storefront-api/internal/config"
	"github.com/noah-isme/storefront-api/internal/coupon"
	"github.com/noah-isme/storefront-api/internal/db"
	"github.com/noah-isme/storefront-api/internal/events"
	"github.com/noah-isme/storefront-api/internal/flashsale"
	"github.com/noah-isme/storefront-api/internal/health"
	"github.com/noah-isme/storefront-api/internal/lock"
	"github.com/noah-isme/storefront-api/internal/notify"
	"github.com/noah-isme/storefront-api/internal/obs"
	"github.com/noah-isme/storefront-api/internal/order"
	"github.com/noah-isme/storefront-api/internal/pricing"
	"github.com/noah-isme/storefront-api/internal/pubsub"
	"github.com/noah-isme/storefront-api/internal/ratelimit"
	"github.com/noah-isme/storefront-api/internal/realtime"
	"github.com/noah-isme/storefront-api/internal/resilience"
	"github.com/noah-isme/storefront-api/internal/security"
	"github.com/noah-isme/storefront-api/internal/shipping"
	"github.com/noah-isme/storefront-api/internal/tenant"
)

const accessCookie = "access_token"

func main() {
	cfg := config.MustLoad()
	logger := app.Logger(cfg, "api")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metricsNamespace := app.EnvOrDefault("OBS_METRICS_NAMESPACE", "storefront")
	metricsEnabled := app.EnvBool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)

	shutdownTracer, tracingEnabled := app.Tracing(ctx, cfg, "storefront-api", logger)
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Error().Err(err).Msg("shutdown tracer")
		}
	}()

	if cfg.DBAutoMigrate {
		if err := db.MigrateUp(cfg.DatabaseURL); err != nil {
			logger.Fatal().Err(err).Msg("migrate database")
		}
	}

	openCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	infra, err := app.Open(openCtx, cfg, logger, app.Options{AppName: "storefront-api", RedisMetrics: metricsEnabled})
	cancel()
	if err != nil {
		logger.Fatal().Err(err).Msg("open infrastructure")
	}
	defer infra.Close()
	queries, rdb := infra.Queries, infra.Redis

	asynqRedis, err := app.AsynqRedis(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("asynq redis")
	}
	taskClient := asynq.NewClient(asynqRedis)
	defer func() {
		if err := taskClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close task client")
		}
	}()

	broker := &pubsub.Redis{R: rdb, Log: logger}
	tokens := &auth.Tokens{Secret: []byte(cfg.JWTSecret), Issuer: cfg.JWTIssuer, Audience: cfg.JWTAudience, ClockSkew: 30 * time.Second}
	authMW := auth.Middleware{Tokens: tokens, AccessCookie: accessCookie}
	idem := common.Idem{R: rdb, TTL: cfg.IdempotencyTTL, Scope: func(r *http.Request) string {
		id, _ := tenant.From(r.Context())
		return id
	}}

	// Flash sale rules: Postgres, cached in Redis, behind a breaker that
	// degrades to base pricing.
	cachedLookup := flashsale.NewCachedLookup(flashsale.PGLookup{Q: queries}, rdb, cfg.FlashSaleCacheTTL)
	lookupLog := logger.With().Str("component", "flashsale.lookup").Logger()
	lookup := flashsale.NewFallbackLookup(cachedLookup, resilience.New(resilience.Settings{
		Name:         "flashsale_lookup",
		MinRequests:  cfg.LookupBreakerMinReq,
		FailureRatio: cfg.LookupBreakerRatio,
		OpenFor:      cfg.LookupBreakerOpenFor,
		Log:          lookupLog,
	}), lookupLog)
	reconciler := pricing.Reconciler{Scale: pricing.Places(cfg.PriceScale)}

	catalogSvc, err := catalog.NewService(catalog.ServiceConfig{
		Queries:      queries,
		Cache:        cache.New(rdb, cfg.CatalogCacheTTL),
		Lookup:       lookup,
		Reconciler:   reconciler,
		DefaultLimit: cfg.CatalogDefaultLimit,
		MaxLimit:     cfg.CatalogMaxLimit,
		Log:          logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise catalog service")
	}
	catalogHandler := catalog.NewHandler(catalog.HandlerConfig{Service: catalogSvc})

	pricer := catalog.Pricer{Q: queries, Lookup: lookup, Reconciler: reconciler}
	shipSvc := &shipping.Service{Q: queries}
	couponSvc := &coupon.Service{Q: queries, Scale: reconciler.Scale}
	cartSvc := &cart.Service{
		Store:    cart.RedisStorage{R: rdb, TTL: cfg.CartTTL},
		Pricer:   pricer,
		Shipping: shipSvc,
		Coupons:  couponSvc,
		Log:      logger,
	}

	notifySvc := &notify.Service{Q: queries, Broker: broker, Log: logger}
	bus := &events.Bus{
		Store:     queries,
		Notifiers: []events.Notifier{notify.EventNotifier{Sender: notifySvc, Stores: queries, Broker: broker}},
		Log:       logger,
	}

	checkoutSvc := &checkout.Service{
		Carts:    cartSvc,
		Pricer:   pricer,
		Shipping: shipSvc,
		Coupons:  couponSvc,
		Tx:       checkout.PoolTransactor{Pool: infra.Pool, Q: queries},
		Locker:   lock.Locker{R: rdb, RetryBackoff: 50 * time.Millisecond, MaxWait: 2 * time.Second},
		Events:   bus,
		LockTTL:  cfg.CheckoutLockTTL,
		Log:      logger,
	}
	orderSvc := &order.Service{Q: queries, Events: bus, Log: logger}
	chatSvc := &chat.Service{
		Q:         queries,
		Broker:    broker,
		Notifier:  notifySvc,
		Limiter:   ratelimit.Limiter{Client: rdb, Prefix: "rl:chat:"},
		Rate:      ratelimit.Rule{Window: cfg.ChatRateWindow, Max: cfg.ChatRateMax},
		MaxLength: cfg.ChatMaxLength,
		Log:       logger,
	}
	flashSvc := &flashsale.Service{
		Q:         queries,
		Scheduler: flashsale.TaskScheduler{Client: taskClient},
		Cache:     cachedLookup,
		Log:       logger,
	}
	analyticsSvc := &analytics.Service{Q: queries, Cache: cache.New(rdb, cfg.AnalyticsTTL), DefaultRange: cfg.AnalyticsDefault}

	cartHandler := &cart.Handler{Svc: cartSvc}
	checkoutHandler := &checkout.Handler{Svc: checkoutSvc, Idempotency: idem.Middleware}
	orderHandler := &order.Handler{Svc: orderSvc, DefaultPerPage: cfg.CatalogDefaultLimit, MaxPerPage: cfg.CatalogMaxLimit}
	notifyHandler := &notify.Handler{Svc: notifySvc}
	chatHandler := &chat.Handler{Svc: chatSvc}
	flashHandler := &flashsale.Handler{Svc: flashSvc, DefaultPerPage: cfg.CatalogDefaultLimit, MaxPerPage: cfg.CatalogMaxLimit}
	couponHandler := &coupon.Handler{Svc: couponSvc}
	shipHandler := &shipping.Handler{Svc: shipSvc}
	analyticsHandler := &analytics.Handler{Svc: analyticsSvc}

	gateway := &realtime.Gateway{
		Broker:         broker,
		Auth:           authMW,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Log:            logger.With().Str("component", "realtime").Logger(),
	}

	resolver := tenant.NewResolver("", cfg.TenantBaseDomain, "")
	resolver.QueryParam = "store"
	loader := tenant.Loader{Finder: &app.StoreFinder{Q: queries, Cache: cache.New(rdb, cfg.CatalogCacheTTL)}}

	ipLimit, err := ratelimit.NewIPMiddleware(rdb, cfg.PublicRateLimit, "rl:ip", func(err error) {
		logger.Warn().Err(err).Msg("ip rate limiter unavailable")
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise ip rate limiter")
	}
	checkoutLimit := ratelimit.Handler{
		Limiter: ratelimit.Limiter{Client: rdb, Prefix: "rl:"},
		Rule:    ratelimit.Rule{Window: cfg.CheckoutRateWindow, Max: cfg.CheckoutRateMax},
		Key:     ratelimit.ByUser("checkout"),
		OnError: func(err error) { logger.Warn().Err(err).Msg("checkout rate limiter unavailable") },
	}.Middleware

	var httpMetrics *obs.HTTPMetrics
	if metricsEnabled {
		httpMetrics = obs.NewHTTPMetrics(metricsNamespace, obs.ParseBucketsCSV(app.EnvOrDefault("OBS_METRICS_BUCKETS_MS", "")), nil)
	}

	healthHandler := health.Handler{
		Probes:  map[string]health.Probe{"postgres": health.Postgres(infra.Pool), "redis": health.Redis(rdb)},
		Timeout: 500 * time.Millisecond,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// The websocket hijacks the connection, so it skips the response
	// wrapping middlewares and the body limit.
	r.Group(func(ws chi.Router) {
		ws.Use(resolver.Middleware, loader.Middleware)
		ws.Handle("/ws", gateway.Handler())
	})

	r.Group(func(h chi.Router) {
		if tracingEnabled {
			h.Use(obs.TracingMiddleware)
		}
		if httpMetrics != nil {
			h.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
		}
		h.Use(obs.RequestLogger{Logger: logger}.Middleware)
		h.Use(security.Headers{HSTSMaxAge: hstsMaxAge(cfg)}.Middleware)
		h.Use(cors.Handler(cors.Options{
			AllowedOrigins:   allowedOrigins(cfg),
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token", "X-Tenant-ID", "Idempotency-Key", cart.AnonHeader},
			ExposedHeaders:   []string{"Link", cart.AnonHeader, "Idempotent-Replayed"},
			AllowCredentials: true,
			MaxAge:           300,
		}))

		h.Get("/health/live", healthHandler.Live)
		h.Get("/health/ready", healthHandler.Ready)
		if metricsEnabled {
			h.Handle("/metrics", promhttp.Handler())
		}
		if app.EnvBool("OBS_ENABLE_PPROF", false) {
			h.Route("/debug", func(d chi.Router) {
				if user := app.EnvOrDefault("PPROF_BASIC_AUTH_USER", ""); user != "" {
					d.Use(middleware.BasicAuth("pprof", map[string]string{user: app.EnvOrDefault("PPROF_BASIC_AUTH_PASS", "")}))
				}
				d.Mount("/", middleware.Profiler())
			})
		}

		h.Route("/api/v1", func(v chi.Router) {
			v.Use(ipLimit)
			v.Use(security.BodyLimit{Max: cfg.BodyLimitBytes}.Middleware)
			v.Use(resolver.Middleware, loader.Middleware)
			v.Use(authMW.Authenticate)
			v.Use(obs.Annotate)
			v.Use(security.CSRF{AuthCookie: accessCookie}.Middleware)

			v.With(authMW.RequireAuth).Route("/notifications", notifyHandler.Routes)

			v.Group(func(s chi.Router) {
				s.Use(tenant.RequireTenant)

				s.Route("/products", catalogHandler.Routes)
				s.Get("/flash-sales/active", flashHandler.Active)
				s.Get("/shipping/rates", shipHandler.Quote)
				s.Route("/cart", cartHandler.Routes)
				s.With(authMW.RequireAuth, checkoutLimit).Route("/checkout", checkoutHandler.Routes)

				s.Group(func(buyer chi.Router) {
					buyer.Use(authMW.RequireAuth)
					buyer.Route("/orders", orderHandler.Routes)
					buyer.Route("/chat", chatHandler.Routes)
				})

				s.Route("/seller", func(seller chi.Router) {
					seller.Use(authMW.RequireAuth, auth.RequireStoreManager)
					seller.Route("/products", catalogHandler.SellerRoutes)
					seller.Route("/flash-sales", flashHandler.SellerRoutes)
					seller.Route("/coupons", couponHandler.SellerRoutes)
					seller.Route("/shipping-rates", shipHandler.SellerRoutes)
					seller.Route("/orders", orderHandler.SellerRoutes)
					seller.Route("/chat", chatHandler.SellerRoutes)
					seller.Get("/analytics/overview", analyticsHandler.Overview)
				})
			})
		})
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server exited unexpectedly")
		}
	}()

	<-ctx.Done()
	health.SetReady(false)
	logger.Info().Msg("shutting down")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown")
	}
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

func hstsMaxAge(cfg *config.Config) int {
	if cfg.IsProduction() {
		return 63072000
	}
	return 0
}
