// Package main is the entrypoint for the Tickwise evaluation daemon.
//
// sensord fires registered cron schedules from the tick stream and
// evaluates registered sensors at their minimum interval, persisting
// cursors after every successful tick so evaluation resumes exactly where
// it left off after a restart.
//
// This file handles dependency wiring and delegates all evaluation logic
// to the internal/daemon package.
package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"tickwise/internal/config"
	"tickwise/internal/daemon"
	"tickwise/internal/db"
	"tickwise/internal/types"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	logger.Info("sensord initializing",
		"environment", cfg.Environment,
		"repository", cfg.Daemon.RepositoryName,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Hard exit if shutdown stalls past the grace period.
	go func() {
		<-ctx.Done()
		time.AfterFunc(cfg.Daemon.ShutdownGrace, func() {
			logger.Error("shutdown grace period elapsed, exiting")
			os.Exit(1)
		})
	}()

	pool, err := newPool(ctx, cfg.Database)
	if err != nil {
		logger.Error("failed to initialize database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}

	instance := db.NewPostgresInstance(pool)
	eventLog := db.NewBreakerStore(db.BreakerStoreConfig{
		Store:  instance,
		Logger: logger,
	})

	d := daemon.New(daemon.Config{
		Instance:       guardedInstance{PostgresInstance: instance, eventLog: eventLog},
		Launcher:       db.NewRunRepository(pool),
		Cursors:        db.NewSensorCursorRepository(pool),
		RepositoryName: cfg.Daemon.RepositoryName,
		Logger:         logger,
	})

	schedules, err := parseSchedules(cfg.Daemon)
	if err != nil {
		logger.Error("failed to parse schedule registrations", "error", err)
		os.Exit(1)
	}
	for _, entry := range schedules {
		if err := d.AddSchedule(entry); err != nil {
			logger.Error("failed to register schedule", "schedule", entry.Name, "error", err)
			os.Exit(1)
		}
	}
	for _, def := range registeredSensors() {
		d.AddSensor(def)
	}

	logger.Info("sensord started", "schedules", len(schedules))
	if err := d.Run(ctx); err != nil {
		logger.Error("daemon exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("sensord stopped")
}

// guardedInstance routes event log reads through the circuit breaker while
// keeping the underlying instance's lifecycle.
type guardedInstance struct {
	*db.PostgresInstance
	eventLog types.EventLogStore
}

func (g guardedInstance) EventRecords(ctx context.Context, filter types.EventRecordsFilter, ascending bool, limit int) ([]types.EventRecord, error) {
	return g.eventLog.EventRecords(ctx, filter, ascending, limit)
}

func newPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, err
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	poolCfg.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	return pgxpool.NewWithConfig(ctx, poolCfg)
}

// parseSchedules decodes the env-provided schedule registrations. Schedule
// entries configure pure cron firing; sensors are compiled in via
// registeredSensors.
func parseSchedules(cfg config.DaemonConfig) ([]daemon.ScheduleEntry, error) {
	if cfg.Schedules == "" {
		return nil, nil
	}
	var entries []daemon.ScheduleEntry
	if err := json.Unmarshal([]byte(cfg.Schedules), &entries); err != nil {
		return nil, err
	}
	for i := range entries {
		if entries[i].Timezone == "" {
			entries[i].Timezone = cfg.Timezone
		}
	}
	return entries, nil
}

func logLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
