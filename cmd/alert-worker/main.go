package main

import (
	"context"
	"errors"
	"os"
	"time"

	"tally/internal/amqp"
	"tally/internal/cache"
	"tally/internal/cli"
	"tally/internal/log"
	"tally/internal/services"
	"tally/internal/worker"
)

const seenCapacity = 100_000

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	logger := cli.SetupLogger(log.ComponentWorker)
	logger.Info("Starting alert-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required by the alert worker")
		os.Exit(1)
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}

	// ids of delivered alerts, kept a little longer than an alert may wait.
	// Each id costs 1, so up to seenCapacity ids per TTL are always admitted.
	seen, err := cache.NewRistretto[time.Time](seenCapacity, 2*worker.DefaultMaxAge, nil)
	if err != nil {
		logger.Error("Failed to initialize dedupe cache", log.FieldError, err)
		os.Exit(1)
	}

	alerts := worker.NewAlertWorker(services.NewLogNotifier(logger), seen, worker.DefaultMaxAge, logger)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(context.Context) {
		logger.Info("Shutting down alert-worker...")
		if err := amqpClient.Close(); err != nil {
			logger.Warn("Failed to close AMQP client", log.FieldError, err)
		}
		seen.Close()
		st := alerts.Stats()
		logger.Info("Alert worker stats",
			"delivered", st.Delivered,
			"duplicates", st.Duplicates,
			"stale", st.Stale,
			"forgotten", st.Forgotten)
	})

	go func() {
		if err := amqpClient.ConsumeAlerts(ctx, alerts.HandleAlert); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Message consumption failed", log.FieldError, err)
			os.Exit(1)
		}
	}()

	cli.WaitForShutdown(ctx, done)
}
