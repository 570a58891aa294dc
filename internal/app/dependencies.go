// Package app holds the process bootstrap shared by the binaries under cmd.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	migrate "github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-pricing/internal/catalog"
	"github.com/noah-isme/toko-pricing/internal/config"
	"github.com/noah-isme/toko-pricing/internal/db"
	"github.com/noah-isme/toko-pricing/internal/obs"
	"github.com/noah-isme/toko-pricing/internal/ratelimit"
	"github.com/noah-isme/toko-pricing/internal/repo"
	"github.com/noah-isme/toko-pricing/internal/resilience"
	"github.com/noah-isme/toko-pricing/internal/voucher"
	"github.com/noah-isme/toko-pricing/migrations"
)

// OpenPool connects a traced pgx pool and pings it.
func OpenPool(ctx context.Context, cfg *config.Config, applicationName string) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = applicationName
	if cfg.DBMaxConns > 0 {
		poolConfig.MaxConns = int32(cfg.DBMaxConns)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// OpenRedis connects a Redis client with OpenTelemetry instrumentation.
// Instrumentation failures are logged, not fatal.
func OpenRedis(ctx context.Context, cfg *config.Config, withMetrics bool, logger zerolog.Logger) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if withMetrics {
		if err := redisotel.InstrumentMetrics(client); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// Collaborators builds the catalog lookup and discount registry the engine
// reads from. Both repos share one breaker so a failing database is shed as a
// whole. Catalog reads go through the Redis cache; discounts are always read
// fresh because expiry depends on the day.
func Collaborators(pool *pgxpool.Pool, client *redis.Client, cfg *config.Config, logger zerolog.Logger) (catalog.Lookup, voucher.Registry) {
	breaker := resilience.NewBreaker(cfg.DBBreakerMinReq, cfg.DBBreakerFailRatio, cfg.DBBreakerOpenFor).
		WithTarget("postgres").
		WithLogger(logger)
	queries := db.New(pool)

	var lookup catalog.Lookup = repo.CatalogRepo{Q: queries, Breaker: breaker}
	if cfg.CatalogCacheTTL > 0 && client != nil {
		lookup = catalog.CachedLookup{
			Next:   lookup,
			Cache:  catalog.NewCache(client, cfg.CatalogCacheTTL),
			Logger: logger,
		}
	}
	return lookup, repo.DiscountRepo{Q: queries, Breaker: breaker}
}

// NewLimiter picks the Redis rate limiter named by RATE_LIMIT_STORE.
func NewLimiter(client *redis.Client, cfg *config.Config) (ratelimit.Limiter, error) {
	switch cfg.RateLimitStore {
	case "ulule", "fixed":
		return ratelimit.NewFixedWindow(client, "pricing:rl:")
	case "sliding", "":
		return ratelimit.SlidingWindow{Client: client, Prefix: "pricing:rl:"}, nil
	default:
		return nil, fmt.Errorf("unknown RATE_LIMIT_STORE %q", cfg.RateLimitStore)
	}
}

// NewMigrator opens golang-migrate over the embedded schema.
func NewMigrator(databaseURL string) (*migrate.Migrate, error) {
	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return nil, fmt.Errorf("open embedded migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, MigrateURL(databaseURL))
	if err != nil {
		return nil, fmt.Errorf("init migrate: %w", err)
	}
	return m, nil
}

// MigrateURL rewrites a postgres URL to the pgx/v5 migrate driver scheme.
func MigrateURL(databaseURL string) string {
	for _, scheme := range []string{"postgresql://", "postgres://"} {
		if strings.HasPrefix(databaseURL, scheme) {
			return "pgx5://" + strings.TrimPrefix(databaseURL, scheme)
		}
	}
	return databaseURL
}

// RunMigrations applies pending migrations. An up-to-date schema is not an error.
func RunMigrations(m *migrate.Migrate) error {
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}
