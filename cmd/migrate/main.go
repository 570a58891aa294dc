package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	migrate "github.com/golang-migrate/migrate/v4"

	"github.com/noah-isme/toko-pricing/internal/app"
	"github.com/noah-isme/toko-pricing/internal/config"
	"github.com/noah-isme/toko-pricing/internal/lock"
	"github.com/noah-isme/toko-pricing/internal/obs"
)

// migrate applies the embedded schema. Usage: migrate [-steps N] up|down|version
func main() {
	steps := flag.Int("steps", 0, "number of migrations to roll back with down; 0 rolls back one")
	flag.Parse()
	cmd := flag.Arg(0)
	if cmd == "" {
		cmd = "up"
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
		os.Exit(2)
	}
	logger := obs.NewLogger(os.Getenv("OBS_LOG_FORMAT"), os.Getenv("OBS_LOG_LEVEL")).With().Str("component", "migrate").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisClient, err := app.OpenRedis(ctx, cfg, false, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open redis")
	}
	defer func() { _ = redisClient.Close() }()

	m, err := app.NewMigrator(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("init migrations")
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			logger.Error().AnErr("source", srcErr).AnErr("database", dbErr).Msg("close migrator")
		}
	}()

	locker := lock.Locker{R: redisClient}
	err = locker.TryLock(ctx, "pricing:lock:migrate", cfg.LockTTL, func(context.Context) error {
		return run(m, cmd, *steps)
	})
	switch {
	case errors.Is(err, lock.ErrNotAcquired):
		logger.Warn().Msg("another migration is running")
		os.Exit(1)
	case err != nil:
		logger.Fatal().Err(err).Str("command", cmd).Msg("migration failed")
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		logger.Fatal().Err(err).Msg("read schema version")
	}
	logger.Info().Str("command", cmd).Uint("version", version).Bool("dirty", dirty).Msg("migrations done")
}

func run(m *migrate.Migrate, cmd string, steps int) error {
	switch cmd {
	case "up":
		return app.RunMigrations(m)
	case "down":
		if steps <= 0 {
			steps = 1
		}
		if err := m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return err
		}
		return nil
	case "version":
		return nil
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}
