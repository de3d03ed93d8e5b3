package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/provisia/warden/internal/clock"
	"github.com/provisia/warden/internal/config"
	"github.com/provisia/warden/internal/identity"
	"github.com/provisia/warden/internal/repo/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := setupLogger(cfg.Observability.LogLevel)
	logger.Info("Starting Warden Cleanup Worker",
		"version", cfg.Observability.ServiceVersion,
		"interval", cfg.Cleanup.Interval,
		"days_threshold", cfg.Cleanup.DaysThreshold,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.Postgres.URL, cfg.Postgres.MaxConns)
	if err != nil {
		logger.Error("Failed to connect to postgres", "error", err)
		os.Exit(1)
	}

	clk := clock.System{}
	repo := postgres.NewAccountRepository(db)
	merger := identity.NewMerger(repo, clk, logger)
	job := identity.NewCleanupJob(repo, merger, clk, logger)
	worker := identity.NewCleanupWorker(job, cfg.Cleanup.Interval, cfg.Cleanup.DaysThreshold, logger)

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logger.Info("Received shutdown signal")
		cancel()
	}()

	if err := worker.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error("Worker stopped", "error", err)
		os.Exit(1)
	}

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}

	logger.Info("Cleanup worker shutdown complete")
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	return slog.New(handler)
}
