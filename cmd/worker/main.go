package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/noah-isme/leafmarket-checkout/internal/config"
	"github.com/noah-isme/leafmarket-checkout/internal/obs"
	"github.com/noah-isme/leafmarket-checkout/internal/resilience"
	"github.com/noah-isme/leafmarket-checkout/internal/shipping"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger := obs.Component(obs.NewLogger(cfg.Obs.LogFormat, cfg.Obs.LogLevel), "worker")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stopTracing, err := obs.StartTracing(ctx, cfg.Tracing("leafmarket-checkout", "worker"))
	if err != nil {
		logger.Error().Err(err).Msg("initialise tracing")
	}
	defer func() {
		if err := stopTracing(context.Background()); err != nil {
			logger.Error().Err(err).Msg("shutdown tracer")
		}
	}()

	if cfg.RedisURL == "" {
		logger.Fatal().Msg("REDIS_URL is required for the worker")
	}
	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := mustInitRedis(ctx, cfg, logger)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()

	obs.MustRegisterDomainMetrics(cfg.Obs.MetricsNamespace, nil)
	source := &shipping.CachedSource{
		Upstream: upstreamRates(cfg, logger),
		Cache:    shipping.NewCache(redisClient, cfg.RateTableCacheTTL),
		Logger:   obs.Component(logger, "rates_cache"),
	}

	mux := asynq.NewServeMux()
	mux.Handle(shipping.TaskRefreshRates, shipping.RefreshHandler{Source: source, Logger: logger})

	server := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency:     1,
		ShutdownTimeout: 10 * time.Second,
	})
	if err := server.Start(mux); err != nil {
		logger.Fatal().Err(err).Msg("start task server")
	}
	defer server.Shutdown()

	scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{Location: time.UTC})
	entryID, err := scheduler.Register(cfg.RateRefreshSpec, shipping.NewRefreshTask(), asynq.Unique(time.Minute))
	if err != nil {
		logger.Fatal().Err(err).Str("spec", cfg.RateRefreshSpec).Msg("register refresh schedule")
	}
	if err := scheduler.Start(); err != nil {
		logger.Fatal().Err(err).Msg("start scheduler")
	}
	defer scheduler.Shutdown()

	// Warm the cache immediately instead of waiting for the first tick.
	client := asynq.NewClient(redisOpt)
	if _, err := client.EnqueueContext(ctx, shipping.NewRefreshTask(), asynq.Unique(time.Minute)); err != nil && !errors.Is(err, asynq.ErrDuplicateTask) {
		logger.Error().Err(err).Msg("enqueue initial refresh")
	}
	_ = client.Close()

	logger.Info().Str("schedule", cfg.RateRefreshSpec).Str("entry_id", entryID).Msg("worker started")
	<-ctx.Done()
	logger.Info().Msg("worker shutting down")
}

func upstreamRates(cfg *config.Config, logger zerolog.Logger) shipping.RateSource {
	if cfg.RateTableURL == "" {
		return shipping.StaticSource{Table: cfg.RateTable}
	}
	return shipping.HTTPSource{
		BaseURL: cfg.RateTableURL,
		HTTP: resilience.HTTPClient{
			Client:      &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
			BaseBackoff: 500 * time.Millisecond,
			MaxAttempts: 5,
			Jitter:      0.2,
			Timeout:     5 * time.Second,
			Target:      "rate_table",
			Logger:      obs.Component(logger, "rates_http"),
		},
	}
}

func mustInitRedis(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *redis.Client {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	client := redis.NewClient(opts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}
	return client
}
