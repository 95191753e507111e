package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-commissions/internal/commission"
	"github.com/noah-isme/backend-commissions/internal/config"
	"github.com/noah-isme/backend-commissions/internal/deal"
	"github.com/noah-isme/backend-commissions/internal/events"
	"github.com/noah-isme/backend-commissions/internal/lock"
	"github.com/noah-isme/backend-commissions/internal/obs"
	"github.com/noah-isme/backend-commissions/internal/org"
	"github.com/noah-isme/backend-commissions/internal/queue"
	"github.com/noah-isme/backend-commissions/internal/team"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("component", "worker").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool := mustInitDatabase(ctx, cfg, logger)
	defer pool.Close()

	redisClient := mustInitRedis(ctx, cfg, logger)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()

	bus := &events.Bus{
		Store:     events.NewStore(pool),
		Notifiers: []events.Notifier{events.LogNotifier{Log: logger}},
	}

	orgSvc := &org.Service{Store: org.NewStore(pool)}
	teamSvc := &team.Service{Store: team.NewStore(pool)}
	commissionSvc := &commission.Service{
		Records:  commission.NewStore(pool),
		Deals:    deal.NewStore(pool),
		Settings: orgSvc,
		Team:     teamSvc,
		Events:   bus,
	}

	locker := lock.Locker{R: redisClient, RetryBackoff: cfg.LockRetryBackoff}

	consumer := queue.Consumer{
		R:           redisClient,
		Prefix:      cfg.QueueRedisPrefix,
		Kind:        queue.KindRecalc,
		Concurrency: cfg.QueueConcurrency,
		Visibility:  cfg.QueueVisibilityTimeout,
		RetryBase:   cfg.QueueBackoffBase,
		RetryJitter: cfg.QueueBackoffJitter,
		DLQ:         queue.NewStore(pool),
		Log:         logger,
		Handler:     commission.RecalcHandler(commissionSvc, locker, cfg.LockTTL),
	}

	logger.Info().Str("kind", queue.KindRecalc).Msg("worker starting")
	if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("worker stopped with error")
	} else {
		logger.Info().Msg("worker shutdown complete")
	}
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
	poolConfig.ConnConfig.RuntimeParams["application_name"] = "commissions-worker"
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	if err := pool.Ping(ctx); err != nil {
		logger.Fatal().Err(err).Msg("ping database")
	}
	return pool
}

func mustInitRedis(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *redis.Client {
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}
	return redisClient
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}
