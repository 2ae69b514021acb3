// Package main is the entry point for the Reckon position ledger service.
// The application ingests day-level position snapshots from a broker (or
// manual uploads), reconstructs BUY/SELL transactions from the day aggregates,
// and folds the resulting flows into a running cash ledger served over a REST
// and WebSocket API.
//
// The application follows clean architecture principles:
// - Domain layer is pure (no infrastructure dependencies)
// - Dependency injection via DI container
// - Repository pattern for data access
// - Service layer for business logic
// - HTTP handlers for API endpoints
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/reckon/internal/config"
	"github.com/aristath/reckon/internal/di"
	"github.com/aristath/reckon/internal/server"
	"github.com/aristath/reckon/pkg/logger"
)

// main orchestrates the system startup sequence:
// 1. Loads configuration from environment variables (.env file)
// 2. Initializes the logging system
// 3. Wires all dependencies via DI container (database, broker, services)
// 4. Starts the HTTP server and the background job scheduler
// 5. Waits for a shutdown signal and performs graceful shutdown
func main() {
	// Load configuration first to get log level
	cfg, err := config.Load()
	if err != nil {
		// Use fallback logger if config fails
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Logger uses structured logging (zerolog) with configurable log levels.
	// Pretty mode enables human-readable output for development.
	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})

	log.Info().Msg("Starting Reckon")

	// Wire all dependencies using DI container.
	// This opens the ledger database, runs migrations, constructs the broker
	// client (when credentials are configured), the snapshot/ledger services,
	// the backup service (when a bucket is configured), and registers all
	// background jobs with the scheduler.
	container, err := di.Wire(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}
	defer container.Close()

	// The HTTP server provides REST API endpoints for:
	// - Snapshot ingestion and queries (manual uploads, broker sync)
	// - Ledger reconstruction (transactions, daily rows, cash series)
	// - Chart data (equity/cash/holdings curves, trade markers, stats)
	// - System operations (health checks, job triggers, backups)
	// - Live updates over WebSocket
	srv := server.New(server.Config{
		Log:       log,
		Config:    cfg,
		Container: container,
		Port:      cfg.Port,
		DevMode:   cfg.DevMode,
	})

	// Start server in goroutine so the scheduler can start concurrently.
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Start the background scheduler (broker sync, snapshot cleanup, database
	// maintenance, backups). Jobs were registered during wiring; Start only
	// begins executing their cron schedules.
	container.Scheduler.Start()
	log.Info().Msg("Scheduler started")

	// Wait for interrupt signal.
	// The application blocks here until it receives SIGINT (Ctrl+C) or SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Stop the scheduler first so no new jobs start while the server drains.
	// Stop blocks until any running job has completed.
	container.Scheduler.Stop()
	log.Info().Msg("Scheduler stopped")

	// Graceful shutdown.
	// The HTTP server is given up to 10 seconds to finish processing in-flight
	// requests. WebSocket subscribers are closed by container.Close via the hub.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
