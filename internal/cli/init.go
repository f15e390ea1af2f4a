// Package cli provides common CLI initialization utilities.
// This package consolidates repeated initialization patterns across
// cmd/reportd and cmd/report-worker.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/faraway-yachting/Faraway-Yachting.app-sub011/internal/backend"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub011/internal/config"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub011/internal/currency"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub011/internal/log"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub011/internal/report"
)

// SetupLogger initializes structured logging from cfg and sets it as the
// default logger.
func SetupLogger(cfg *config.Config) *log.Logger {
	logger := log.New(log.Config{
		Level:     log.ParseLevel(cfg.LogLevel),
		Format:    cfg.LogFormat,
		Component: log.ComponentApp,
		Output:    os.Stdout,
	})
	log.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig() *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration validation failed: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

// InitBackend builds the configured data sources.
// Returns the backend or exits the process on failure.
func InitBackend(ctx context.Context, logger *log.Logger, cfg *config.Config) *backend.BackendResult {
	bc, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err, log.FieldErrorType, log.ErrorTypeConfiguration)
		os.Exit(1)
	}
	res, err := backend.NewFactory(logger.WithComponent(log.ComponentBackend)).CreateBackend(ctx, bc)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	return res
}

// NewEngine builds a report engine over res from cfg.
func NewEngine(cfg *config.Config, res *backend.BackendResult, logger *log.Logger) (*report.Engine, error) {
	rates, err := cfg.FallbackRateTable()
	if err != nil {
		return nil, err
	}
	return report.NewEngine(res.Sources, report.Options{
		Normalizer:      currency.NewNormalizer(cfg.BaseCurrency, rates),
		ManagementCode:  cfg.ManagementCode,
		DedupeTolerance: cfg.Tolerance(),
		FeeCategoryCode: cfg.FeeCategoryCode,
		Concurrency:     cfg.ReportConcurrency,
		Logger:          logger.WithComponent(log.ComponentReport),
	}), nil
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals,
// and a channel that signals when shutdown is complete.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func(ctx context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String(), log.FieldOperation, log.OpShutdown)

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		cancel()
		if cleanup != nil {
			cleanup(shutdownCtx)
		}

		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached")
		} else {
			logger.Info("Shutdown complete")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
