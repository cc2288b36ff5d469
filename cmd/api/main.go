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
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/noah-isme/leafmarket-checkout/internal/auth"
	"github.com/noah-isme/leafmarket-checkout/internal/checkout"
	"github.com/noah-isme/leafmarket-checkout/internal/config"
	"github.com/noah-isme/leafmarket-checkout/internal/discount"
	"github.com/noah-isme/leafmarket-checkout/internal/firestore"
	"github.com/noah-isme/leafmarket-checkout/internal/health"
	"github.com/noah-isme/leafmarket-checkout/internal/obs"
	"github.com/noah-isme/leafmarket-checkout/internal/ratelimit"
	"github.com/noah-isme/leafmarket-checkout/internal/repo"
	"github.com/noah-isme/leafmarket-checkout/internal/resilience"
	"github.com/noah-isme/leafmarket-checkout/internal/security"
	"github.com/noah-isme/leafmarket-checkout/internal/shipping"
)

const (
	serviceName  = "leafmarket-checkout"
	maxQuoteBody = 256 << 10
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger := obs.NewLogger(cfg.Obs.LogFormat, cfg.Obs.LogLevel).With().Str("env", cfg.AppEnv).Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	obs.MustRegisterDomainMetrics(cfg.Obs.MetricsNamespace, nil)
	breakerMetrics := resilience.NewBreakerMetrics(cfg.Obs.MetricsNamespace, nil)

	tracingEnabled := cfg.Obs.TracingEnabled
	stopTracing, err := obs.StartTracing(ctx, cfg.Tracing(serviceName, "api"))
	if err != nil {
		logger.Error().Err(err).Msg("initialise tracing")
		tracingEnabled = false
	}
	defer func() {
		if err := stopTracing(context.Background()); err != nil {
			logger.Error().Err(err).Msg("shutdown tracer")
		}
	}()

	pool := mustInitDatabase(ctx, cfg, logger)
	defer pool.Close()

	redisClient := initRedis(ctx, cfg, logger)
	if redisClient != nil {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Error().Err(err).Msg("close redis")
			}
		}()
	}

	fsProvider := firestore.NewProvider(firestore.Config{
		ProjectID:    cfg.FirestoreProjectID,
		EmulatorHost: cfg.FirestoreEmulatorHost,
	})
	defer func() {
		if err := fsProvider.Close(); err != nil {
			logger.Error().Err(err).Msg("close firestore")
		}
	}()

	rateBreaker := resilience.NewBreaker(resilience.BreakerConfig{
		Target:  "rate_table",
		OpenFor: 30 * time.Second,
		Metrics: breakerMetrics,
		Logger:  obs.Component(logger, "breaker"),
	})
	rates := rateSource(cfg, redisClient, rateBreaker, logger)

	keys, err := auth.NewRemoteKeys(ctx, cfg.JWKS(auth.FirebaseJWKSURL), cfg.JWKSRefresh)
	if err != nil {
		logger.Fatal().Err(err).Msg("register jwks")
	}
	authMW := auth.Middleware{Verifier: auth.NewFirebaseVerifier(cfg.FirestoreProjectID, keys)}

	quoteLimiter, err := ratelimit.NewLimiter(redisClient, ratelimit.Config{
		Window: cfg.QuoteRateWindow,
		Max:    cfg.QuoteRateLimit,
		Prefix: "checkout:quote",
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("init rate limiter")
	}
	limitMW := ratelimit.Handler{
		Limiter: quoteLimiter,
		OnError: func(err error) { logger.Warn().Err(err).Msg("rate limiter unavailable") },
	}

	quotes := &checkout.Handler{
		Rates:    rates,
		Orders:   firestore.OrderStatusStore{Provider: fsProvider},
		Balances: firestore.BalanceStore{Provider: fsProvider},
		Codes:    &discount.Service{Store: repo.DiscountCodes{DB: pool}, Now: time.Now},
		Policy: checkout.Policy{
			Shipping:          cfg.ShippingPolicy(),
			MinimumOrderTotal: cfg.MinimumOrderTotal,
		},
		Logger: obs.Component(logger, "checkout"),
	}

	healthHandler := &health.Handler{Probes: map[string]health.Probe{
		"db":        pool.Ping,
		"firestore": fsProvider.Ping,
		"rates":     rateBreaker.Check,
	}}
	if redisClient != nil {
		healthHandler.Probes["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	var httpMetrics *obs.HTTPMetrics
	if cfg.Obs.MetricsEnabled {
		httpMetrics = obs.NewHTTPMetrics(cfg.Obs.MetricsNamespace, obs.ParseBucketsCSV(cfg.Obs.MetricsBuckets), nil)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins(cfg),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID", "X-RateLimit-Remaining", "Retry-After"},
		MaxAge:         300,
	}))

	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)
	if cfg.Obs.MetricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Route("/api/v1", func(v chi.Router) {
		v.Use(security.Headers{EnableHSTS: cfg.AppEnv == "production"}.Middleware)
		v.Use(security.BodyLimit{Max: maxQuoteBody}.Middleware)
		v.Use(authMW.RequireAuth)
		v.Use(limitMW.Middleware)
		v.Post("/checkout/quote", quotes.Quote)
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		healthHandler.SetReady(false)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("server shutdown")
		}
	}()

	logger.Info().Str("addr", srv.Addr).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server exited unexpectedly")
	}
	logger.Info().Msg("server stopped")
}

func mustInitDatabase(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *pgxpool.Pool {
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse database config")
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = serviceName

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(pingCtx, poolConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	if err := pool.Ping(pingCtx); err != nil {
		logger.Fatal().Err(err).Msg("ping database")
	}
	return pool
}

// initRedis returns nil when REDIS_URL is unset; callers then fall back to in-process state.
func initRedis(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *redis.Client {
	if cfg.RedisURL == "" {
		logger.Warn().Msg("REDIS_URL not set; rate table cache and shared rate limits disabled")
		return nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	client := redis.NewClient(opts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if cfg.Obs.MetricsEnabled {
		if err := redisotel.InstrumentMetrics(client); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}
	return client
}

func rateSource(cfg *config.Config, client *redis.Client, breaker *resilience.Breaker, logger zerolog.Logger) shipping.RateSource {
	var upstream shipping.RateSource = shipping.StaticSource{Table: cfg.RateTable}
	if cfg.RateTableURL != "" {
		upstream = shipping.HTTPSource{
			BaseURL: cfg.RateTableURL,
			HTTP: resilience.HTTPClient{
				Client:      &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
				Breaker:     breaker,
				BaseBackoff: 100 * time.Millisecond,
				MaxAttempts: 3,
				Jitter:      0.2,
				Timeout:     2 * time.Second,
				Target:      "rate_table",
				Logger:      obs.Component(logger, "rates_http"),
			},
		}
	}
	if client == nil {
		return upstream
	}
	return &shipping.CachedSource{
		Upstream: upstream,
		Cache:    shipping.NewCache(client, cfg.RateTableCacheTTL),
		Logger:   obs.Component(logger, "rates_cache"),
	}
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}
