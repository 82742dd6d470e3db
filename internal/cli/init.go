// Package cli provides common CLI initialization utilities.
// This package consolidates repeated initialization patterns across
// cmd/cashflow, cmd/forecast-worker and cmd/forecast.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"cashflow/internal/amqp"
	"cashflow/internal/backend"
	"cashflow/internal/config"
	"cashflow/internal/log"
	"cashflow/internal/model"
	"cashflow/internal/services"
)

// SetupLogger initializes structured logging for component at the level
// named by LOG_LEVEL. Returns the configured logger and sets it as the
// default logger.
func SetupLogger(component, level string) *log.Logger {
	lvl, ok := config.ParseLevel(level)
	logger := log.New(log.Config{
		Level:     lvl,
		Component: component,
		Output:    os.Stdout,
	})
	log.SetDefault(logger)
	if !ok {
		logger.Warn("Unknown log level, using info", "log_level", level)
	}
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *log.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

// InitBackend creates the result store and transaction source named by cfg.
// Returns the backend or exits the process on failure.
func InitBackend(ctx context.Context, logger *log.Logger, cfg *config.Config) *backend.BackendResult {
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	res, err := backend.NewFactory(logger.WithComponent(log.ComponentBackend).Logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err,
			"store", backendCfg.Store, "source", backendCfg.Source)
		os.Exit(1)
	}
	return res
}

// InitAMQP connects to the broker when AMQP_URL is set. A failed connection
// is logged and nil is returned, so callers run without notifications.
func InitAMQP(ctx context.Context, logger *log.Logger, cfg *config.Config) *amqp.Client {
	if cfg.AMQPURL == "" {
		logger.Info("AMQP disabled - projections will not be announced")
		return nil
	}
	client, err := amqp.NewClient(ctx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Warn("Failed to initialize AMQP client, continuing without notifications", "error", err)
		return nil
	}
	logger.Info("AMQP client initialized", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	return client
}

// ServiceOptions translates cfg into forecast service options. notifier may
// be nil.
func ServiceOptions(cfg *config.Config, res *backend.BackendResult, notifier services.ProjectionNotifier) []services.Option {
	train := model.DefaultTrainConfig()
	train.Seed = cfg.TrainingSeed

	opts := []services.Option{
		services.WithTrainConfig(train),
		services.WithDefaultCurrency(cfg.DefaultCurrency),
	}
	if res != nil && res.SourceCache != nil {
		opts = append(opts, services.WithSourceCache(res.SourceCache))
	}
	if notifier != nil {
		opts = append(opts, services.WithNotifier(notifier))
	}
	return opts
}

// NewForecastService wires the forecasting pipeline onto the backend.
func NewForecastService(cfg *config.Config, res *backend.BackendResult, client *amqp.Client) *services.ForecastService {
	var notifier services.ProjectionNotifier
	if client != nil {
		notifier = client
	}
	return services.NewForecastService(res.Source, res.Store, ServiceOptions(cfg, res, notifier)...)
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals,
// and a channel that signals when shutdown is complete.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func(context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		cancel()

		finished := make(chan struct{})
		go func() {
			if cleanup != nil {
				cleanup(shutdownCtx)
			}
			close(finished)
		}()

		select {
		case <-shutdownCtx.Done():
			logger.Warn("Shutdown timeout reached")
		case <-finished:
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

