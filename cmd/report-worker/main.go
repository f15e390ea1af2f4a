package main

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/faraway-yachting/Faraway-Yachting.app-sub011/internal/amqp"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub011/internal/cache"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub011/internal/cli"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub011/internal/log"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub011/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg)

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the report worker")
		os.Exit(1)
	}

	res := cli.InitBackend(context.Background(), logger, cfg)
	defer res.Close()

	engine, err := cli.NewEngine(cfg, res, logger)
	if err != nil {
		logger.Error("Failed to build report engine", log.FieldError, err, log.FieldErrorType, log.ErrorTypeConfiguration)
		os.Exit(1)
	}

	amqpClient, err := amqp.NewClient(amqp.Config{
		URL:               cfg.AMQPURL,
		Exchange:          cfg.AMQPExchange,
		RequestQueue:      cfg.AMQPRequestQueue,
		RequestRoutingKey: cfg.AMQPRequestRoutingKey,
		ResultRoutingKey:  cfg.AMQPResultRoutingKey,
	})
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	caches := cache.NewManager(logger.WithComponent(log.ComponentCache))
	for _, c := range res.Caches {
		caches.Register(c)
	}
	caches.StartCleanup(10 * time.Minute)
	defer caches.Stop()

	reportWorker := worker.NewReportWorker(engine, amqpClient, logger.WithComponent(log.ComponentWorker))

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	logger.Info("Starting report worker",
		"queue", cfg.AMQPRequestQueue,
		"exchange", cfg.AMQPExchange,
		log.FieldOperation, log.OpStartup)
	if err := amqpClient.ConsumeReportRequests(ctx, reportWorker.HandleReportRequest); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", log.FieldError, err, log.FieldOperation, log.OpConsume)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Report worker stopped")
}
