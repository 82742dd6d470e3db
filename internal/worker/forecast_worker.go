package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"cashflow/internal/amqp"
	"cashflow/internal/core"
	"cashflow/internal/log"
)

// Generator runs one forecast. *services.ForecastService implements it.
type Generator interface {
	Generate(ctx context.Context, currency string) (core.ProjectionResult, error)
}

// ForecastWorker regenerates projections on request from the queue and on
// the cron schedule. Runs are serialized within the process.
type ForecastWorker struct {
	svc        Generator
	logger     *log.StructuredLogger
	retryDelay time.Duration

	mu sync.Mutex
}

func NewForecastWorker(svc Generator, logger *log.Logger, retryDelay time.Duration) *ForecastWorker {
	return &ForecastWorker{
		svc:        svc,
		logger:     log.NewStructuredLogger(logger.WithComponent(log.ComponentWorker)),
		retryDelay: retryDelay,
	}
}

// HandleForecastRequest processes a single forecast request from AMQP.
// Requests that can never succeed as sent are discarded; other failures
// are returned after retryDelay so the broker redelivers them.
func (w *ForecastWorker) HandleForecastRequest(ctx context.Context, msg *amqp.ForecastRequestMessage) error {
	err := w.Run(ctx, msg.RunID, msg.Currency)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, core.ErrNoTransactions),
		errors.Is(err, core.ErrGenerationInProgress),
		isInsufficient(err):
		return fmt.Errorf("%w: %w", amqp.ErrDiscard, err)
	}

	select {
	case <-ctx.Done():
	case <-time.After(w.retryDelay):
	}
	return err
}

// Run generates projections for currency. runID only labels log lines.
func (w *ForecastWorker) Run(ctx context.Context, runID, currency string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	result, err := w.svc.Generate(ctx, currency)
	if err != nil {
		w.logger.LogError(ctx, "Forecast run failed", err, log.OpGenerate, errorType(err))
		return fmt.Errorf("generate %s: %w", currency, err)
	}

	w.logger.LogForecastGenerated(ctx, runID, currency,
		result.HistoricalMonths, len(result.Projections), result.ModelAccuracy)
	return nil
}

func isInsufficient(err error) bool {
	var insufficient *core.InsufficientDataError
	return errors.As(err, &insufficient)
}

func errorType(err error) string {
	switch {
	case errors.Is(err, core.ErrSourceUnavailable):
		return log.ErrorTypeSource
	case errors.Is(err, core.ErrGenerationInProgress):
		return log.ErrorTypeConflict
	case core.IsInputError(err):
		return log.ErrorTypeValidation
	default:
		return log.ErrorTypeInternal
	}
}
