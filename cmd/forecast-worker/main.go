package main

import (
	"context"
	"errors"
	"os"
	"time"

	"cashflow/internal/amqp"
	"cashflow/internal/cli"
	"cashflow/internal/log"
	"cashflow/internal/worker"
)

const retryDelay = 30 * time.Second

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	logger := cli.SetupLogger(log.ComponentWorker, os.Getenv("LOG_LEVEL"))
	logger.Info("Starting forecast-worker")

	cfg := cli.LoadAndValidateConfig(logger)

	res := cli.InitBackend(context.Background(), logger, cfg)
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", "error", err)
		}
	}()

	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient = cli.InitAMQP(context.Background(), logger, cfg)
		if amqpClient == nil {
			logger.Error("AMQP_URL is set but the broker is unreachable")
			os.Exit(1)
		}
		defer amqpClient.Close()
	}

	svc := cli.NewForecastService(cfg, res, amqpClient)
	fw := worker.NewForecastWorker(svc, logger, retryDelay)

	var scheduler *worker.Scheduler
	if cfg.ForecastSchedule != "" {
		var err error
		scheduler, err = worker.NewScheduler(fw, cfg.ForecastSchedule, cfg.ScheduledCurrencies(), logger)
		if err != nil {
			logger.Error("Failed to configure forecast schedule", "error", err)
			os.Exit(1)
		}
	}

	if amqpClient == nil && scheduler == nil {
		logger.Error("Nothing to do: set AMQP_URL or FORECAST_SCHEDULE")
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if scheduler != nil {
			scheduler.Stop(ctx)
		}
	})

	if scheduler != nil {
		scheduler.Start(ctx)
	} else {
		logger.Info("Forecast schedule disabled - no FORECAST_SCHEDULE provided")
	}

	if amqpClient != nil {
		go func() {
			err := amqpClient.ConsumeForecastRequests(ctx, fw.HandleForecastRequest)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Message consumption failed", "error", err)
				os.Exit(1)
			}
		}()
	} else {
		logger.Info("Skipping AMQP message consumption - no AMQP_URL provided")
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker shutdown complete")
}
