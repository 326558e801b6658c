package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"bilancio/internal/config"
	"bilancio/internal/services"
	"bilancio/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("Starting rollover-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	rollover := services.NewRollover(repo, services.NewMaterializer(repo), cfg.RolloverSweepLimit)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())
		cancel()
	}()

	logger.Info("Rollover sweep configured",
		"interval", cfg.RolloverInterval,
		"sweep_limit", cfg.RolloverSweepLimit,
		"sqlite_db", cfg.SQLiteDBPath)

	// Run once immediately so a fresh deployment does not wait a full
	// interval for its first sweep.
	if err := rollover.RunAll(ctx); err != nil {
		logger.Error("Initial rollover sweep failed", "error", err)
	}

	ticker := time.NewTicker(cfg.RolloverInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Rollover worker stopped gracefully")
			return
		case <-ticker.C:
			if err := rollover.RunAll(ctx); err != nil {
				logger.Error("Rollover sweep failed", "error", err)
			}
		}
	}
}
