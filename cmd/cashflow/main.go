package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"cashflow/internal/cli"
	apphttp "cashflow/internal/http"
	"cashflow/internal/log"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	logger := cli.SetupLogger(log.ComponentApp, os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)

	ctx := context.Background()
	res := cli.InitBackend(ctx, logger, cfg)
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", "error", err)
		}
	}()

	// Projection ready events are optional for the API server.
	amqpClient := cli.InitAMQP(ctx, logger, cfg)
	if amqpClient != nil {
		defer amqpClient.Close()
	}

	svc := cli.NewForecastService(cfg, res, amqpClient)
	srv := apphttp.NewServer(":"+cfg.Port, svc, logger, apphttp.Options{})

	shutdownCtx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
	})

	logger.Info("Starting cashflow server",
		"port", cfg.Port,
		"store", cfg.DataBackend,
		"source", cfg.SourceKind,
		"default_currency", cfg.DefaultCurrency)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(shutdownCtx, done)
	logger.Info("Server stopped gracefully")
}
