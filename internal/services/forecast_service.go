package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"cashflow/internal/aggregate"
	"cashflow/internal/amqp"
	"cashflow/internal/cache"
	"cashflow/internal/core"
	"cashflow/internal/features"
	"cashflow/internal/forecast"
	"cashflow/internal/ingest"
	"cashflow/internal/model"
	"cashflow/internal/storage"
)

const (
	DefaultCurrency = "GBP"
	sourceKey       = "transactions"
)

// ProjectionNotifier announces saved projections. *amqp.Client implements it.
type ProjectionNotifier interface {
	PublishProjectionReady(ctx context.Context, msg *amqp.ProjectionReadyMessage) error
}

// ForecastService runs the forecasting pipeline: load transactions, filter
// by currency, aggregate per month, build features, train the income and
// expense models, project forward and save the result.
type ForecastService struct {
	source          ingest.Source
	snapshots       cache.Cache[[]core.Transaction]
	loader          *cache.Loader[[]core.Transaction]
	store           *storage.ResultStore
	notifier        ProjectionNotifier
	trainCfg        model.TrainConfig
	horizon         int
	defaultCurrency string
	now             func() time.Time
	inFlight        atomic.Bool
}

type Option func(*ForecastService)

// WithNotifier publishes a ProjectionReadyMessage after every successful save.
func WithNotifier(n ProjectionNotifier) Option {
	return func(s *ForecastService) { s.notifier = n }
}

func WithTrainConfig(cfg model.TrainConfig) Option {
	return func(s *ForecastService) { s.trainCfg = cfg }
}

func WithHorizon(months int) Option {
	return func(s *ForecastService) { s.horizon = months }
}

func WithDefaultCurrency(code string) Option {
	return func(s *ForecastService) {
		if code != "" {
			s.defaultCurrency = code
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *ForecastService) { s.now = now }
}

// WithSourceCache replaces the default in-process snapshot cache.
func WithSourceCache(c cache.Cache[[]core.Transaction]) Option {
	return func(s *ForecastService) { s.snapshots = c }
}

func NewForecastService(source ingest.Source, store *storage.ResultStore, opts ...Option) *ForecastService {
	s := &ForecastService{
		source:          source,
		snapshots:       cache.NewLRUCache[[]core.Transaction](1, 5*time.Minute),
		store:           store,
		trainCfg:        model.DefaultTrainConfig(),
		horizon:         forecast.Horizon,
		defaultCurrency: DefaultCurrency,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.loader = cache.NewLoader(s.snapshots, func(ctx context.Context, _ string) ([]core.Transaction, error) {
		return s.source.Transactions(ctx)
	})
	return s
}

// DefaultCurrency returns the currency used when a caller passes none.
func (s *ForecastService) DefaultCurrency() string {
	return s.defaultCurrency
}

// InProgress reports whether a Generate call is running.
func (s *ForecastService) InProgress() bool {
	return s.inFlight.Load()
}

// Generate runs the whole pipeline for currency and saves the result,
// overwriting any previous one. Only one run may be in flight; a concurrent
// call fails with core.ErrGenerationInProgress. Input errors are returned
// before any training starts.
func (s *ForecastService) Generate(ctx context.Context, currency string) (core.ProjectionResult, error) {
	if !s.inFlight.CompareAndSwap(false, true) {
		return core.ProjectionResult{}, core.ErrGenerationInProgress
	}
	defer s.inFlight.Store(false)

	if currency == "" {
		currency = s.defaultCurrency
	}
	runID := uuid.NewString()
	start := time.Now()

	// Training always uses a fresh read of the source.
	txns, err := s.loader.Refresh(ctx, sourceKey)
	if err != nil {
		return core.ProjectionResult{}, fmt.Errorf("load transactions: %w", err)
	}

	filtered := aggregate.FilterByCurrency(txns, currency)
	if len(filtered) == 0 {
		return core.ProjectionResult{}, fmt.Errorf("%w: %s", core.ErrNoTransactions, currency)
	}

	aggs := aggregate.Monthly(filtered)
	ds, norm, err := features.Build(aggs)
	if err != nil {
		return core.ProjectionResult{}, err
	}

	slog.InfoContext(ctx, "Training forecast models",
		"run_id", runID,
		"currency", currency,
		"transactions", len(filtered),
		"months", len(aggs))

	incomeModel, incomeHist, err := s.train(ctx, ds.Inputs(), ds.IncomeLabels, "income", 0)
	if err != nil {
		return core.ProjectionResult{}, err
	}
	defer incomeModel.Close()

	expenseModel, expenseHist, err := s.train(ctx, ds.Inputs(), ds.ExpenseLabels, "expense", 1)
	if err != nil {
		return core.ProjectionResult{}, err
	}
	defer expenseModel.Close()

	projections, err := forecast.Project(ctx, incomeModel, expenseModel, aggs, norm, s.horizon)
	if err != nil {
		return core.ProjectionResult{}, fmt.Errorf("project: %w", err)
	}

	result := core.ProjectionResult{
		Projections:      projections,
		ModelAccuracy:    accuracy(incomeHist, expenseHist),
		TrainingDate:     s.now().UTC(),
		HistoricalMonths: len(aggs),
	}
	if err := s.store.Save(ctx, result); err != nil {
		return core.ProjectionResult{}, err
	}

	slog.InfoContext(ctx, "Forecast generated",
		"run_id", runID,
		"currency", currency,
		"historical_months", result.HistoricalMonths,
		"projected_months", len(result.Projections),
		"duration_ms", time.Since(start).Milliseconds())

	s.publishReady(ctx, runID, currency, result)
	return result, nil
}

func (s *ForecastService) train(ctx context.Context, inputs [][]float64, labels []float64, name string, seedOffset uint64) (*model.Model, model.History, error) {
	cfg := s.trainCfg
	cfg.Name = name
	cfg.Seed += seedOffset
	m, hist, err := model.Train(ctx, inputs, labels, cfg)
	if err != nil {
		return nil, model.History{}, fmt.Errorf("train %s model: %w", name, err)
	}
	return m, hist, nil
}

func (s *ForecastService) publishReady(ctx context.Context, runID, currency string, result core.ProjectionResult) {
	if s.notifier == nil {
		slog.DebugContext(ctx, "No notifier configured, skipping projection ready event")
		return
	}
	msg := &amqp.ProjectionReadyMessage{
		RunID:            runID,
		Currency:         currency,
		HistoricalMonths: result.HistoricalMonths,
		ProjectedMonths:  len(result.Projections),
		TrainingDate:     result.TrainingDate,
	}
	if err := s.notifier.PublishProjectionReady(ctx, msg); err != nil {
		// The result is already saved.
		slog.ErrorContext(ctx, "Failed to publish projection ready event", "run_id", runID, "error", err)
	}
}

// accuracy is 1 minus the mean final validation loss of both models,
// floored at 0. It is nil when no examples were held out.
func accuracy(histories ...model.History) *float64 {
	var sum float64
	var n int
	for _, h := range histories {
		if loss, ok := h.FinalValLoss(); ok {
			sum += loss
			n++
		}
	}
	if n == 0 {
		return nil
	}
	acc := max(0, 1-sum/float64(n))
	return &acc
}

// HistoricalYearly returns per-year totals for currency from the source.
func (s *ForecastService) HistoricalYearly(ctx context.Context, currency string) ([]core.HistoricalYear, error) {
	if currency == "" {
		currency = s.defaultCurrency
	}
	txns, err := s.loader.Get(ctx, sourceKey)
	if err != nil {
		return nil, fmt.Errorf("load transactions: %w", err)
	}
	return aggregate.Yearly(aggregate.FilterByCurrency(txns, currency)), nil
}

// Latest returns the last saved projection, or false when there is none or
// it cannot be read.
func (s *ForecastService) Latest(ctx context.Context) (core.ProjectionResult, bool) {
	return s.store.Load(ctx)
}

// Inspect reports whether the saved projection is absent, corrupt or present.
func (s *ForecastService) Inspect(ctx context.Context) (storage.LoadOutcome, error) {
	return s.store.Inspect(ctx)
}
