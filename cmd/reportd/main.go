package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/faraway-yachting/Faraway-Yachting.app-sub011/internal/cache"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub011/internal/cli"
	apphttp "github.com/faraway-yachting/Faraway-Yachting.app-sub011/internal/http"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub011/internal/log"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg)

	res := cli.InitBackend(context.Background(), logger, cfg)
	defer res.Close()

	engine, err := cli.NewEngine(cfg, res, logger)
	if err != nil {
		logger.Error("Failed to build report engine", log.FieldError, err, log.FieldErrorType, log.ErrorTypeConfiguration)
		os.Exit(1)
	}

	srv := apphttp.NewServer(engine, apphttp.Options{
		Addr:               ":" + cfg.Port,
		CacheSize:          cfg.ReportCacheSize,
		CacheTTL:           cfg.ReportCacheTTL,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Logger:             logger.WithComponent(log.ComponentHTTP),
	})

	caches := cache.NewManager(logger.WithComponent(log.ComponentCache))
	caches.Register(srv.Cache())
	for _, c := range res.Caches {
		caches.Register(c)
	}
	caches.StartCleanup(10 * time.Minute)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		caches.Stop()
	})

	logger.Info("Starting report server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"base_currency", engine.BaseCurrency(),
		log.FieldOperation, log.OpStartup)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
