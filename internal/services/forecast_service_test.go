package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cashflow/internal/amqp"
	"cashflow/internal/core"
	"cashflow/internal/ingest"
	"cashflow/internal/storage"
)

type fakeSource struct {
	txns  []core.Transaction
	err   error
	calls atomic.Int32
	gate  chan struct{}
}

func (f *fakeSource) Transactions(ctx context.Context) ([]core.Transaction, error) {
	f.calls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	return f.txns, f.err
}

type recordingNotifier struct {
	mu   sync.Mutex
	msgs []*amqp.ProjectionReadyMessage
	err  error
}

func (r *recordingNotifier) PublishProjectionReady(_ context.Context, msg *amqp.ProjectionReadyMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
	return r.err
}

func fourMonthCSV() string {
	return "id,date,type,category,description,amount,currency\n" +
		"1,2024-01-03,income,Salary,,1000,GBP\n" +
		"2,2024-01-10,expense,Rent,,800,GBP\n" +
		"3,2024-02-03,income,Salary,,1000,GBP\n" +
		"4,2024-02-10,expense,Rent,,900,GBP\n" +
		"5,2024-03-03,income,Salary,,1200,GBP\n" +
		"6,2024-03-10,expense,Rent,,800,GBP\n" +
		"7,2024-04-03,income,Salary,,1200,GBP\n" +
		"8,2024-04-10,expense,Rent,,900,GBP\n" +
		"9,2024-04-11,expense,Trip,,5000,USD\n"
}

func newTestService(t *testing.T, src ingest.Source, opts ...Option) (*ForecastService, *storage.ResultStore) {
	t.Helper()
	store := storage.NewResultStore(storage.NewMemoryKV())
	clock := func() time.Time { return time.Date(2024, 5, 1, 9, 30, 0, 0, time.FixedZone("BST", 3600)) }
	opts = append([]Option{WithClock(clock)}, opts...)
	return NewForecastService(src, store, opts...), store
}

func TestGenerateFourMonthScenario(t *testing.T) {
	txns, err := ingest.ParseString(fourMonthCSV())
	require.NoError(t, err)
	notifier := &recordingNotifier{}
	svc, store := newTestService(t, &fakeSource{txns: txns}, WithHorizon(3), WithNotifier(notifier))

	result, err := svc.Generate(context.Background(), "GBP")
	require.NoError(t, err)

	assert.Equal(t, 4, result.HistoricalMonths)
	require.Len(t, result.Projections, 3)
	for i, want := range []string{"2024-05", "2024-06", "2024-07"} {
		pm := result.Projections[i]
		assert.Equal(t, want, pm.MonthKey)
		for _, v := range []float64{pm.ProjectedIncome, pm.ProjectedExpenses} {
			assert.False(t, math.IsNaN(v) || math.IsInf(v, 0), "%s: %v", want, v)
			assert.Greater(t, v, 0.0, "%s", want)
		}
	}
	assert.True(t, result.TrainingDate.Equal(time.Date(2024, 5, 1, 8, 30, 0, 0, time.UTC)))
	assert.Equal(t, time.UTC, result.TrainingDate.Location())
	require.NotNil(t, result.ModelAccuracy)
	assert.GreaterOrEqual(t, *result.ModelAccuracy, 0.0)
	assert.LessOrEqual(t, *result.ModelAccuracy, 1.0)

	saved, ok := store.Load(context.Background())
	require.True(t, ok)
	assert.Equal(t, result.Projections, saved.Projections)
	assert.True(t, saved.TrainingDate.Equal(result.TrainingDate))

	require.Len(t, notifier.msgs, 1)
	assert.Equal(t, "GBP", notifier.msgs[0].Currency)
	assert.Equal(t, 3, notifier.msgs[0].ProjectedMonths)
	assert.NotEmpty(t, notifier.msgs[0].RunID)
}

func TestGenerateDefaultHorizonAndCurrency(t *testing.T) {
	txns, err := ingest.ParseString(fourMonthCSV())
	require.NoError(t, err)
	svc, _ := newTestService(t, &fakeSource{txns: txns})

	result, err := svc.Generate(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, result.Projections, 12)
	assert.Equal(t, "2024-05", result.Projections[0].MonthKey)
	assert.Equal(t, "2025-04", result.Projections[11].MonthKey)
}

func TestGenerateInputErrors(t *testing.T) {
	threeRecordsTwoMonths := []core.Transaction{
		{Date: "2024-01-01", Type: core.Income, Amount: core.ParseAmount("10"), Currency: "GBP"},
		{Date: "2024-02-01", Type: core.Income, Amount: core.ParseAmount("10"), Currency: "GBP"},
		{Date: "2024-02-09", Type: core.Expense, Amount: core.ParseAmount("3"), Currency: "GBP"},
	}
	sourceDown := fmt.Errorf("%w: connection refused", core.ErrSourceUnavailable)

	tests := []struct {
		name     string
		source   *fakeSource
		currency string
		check    func(t *testing.T, err error)
	}{
		{
			name:     "source unavailable",
			source:   &fakeSource{err: sourceDown},
			currency: "GBP",
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, core.ErrSourceUnavailable)
			},
		},
		{
			name:     "no records for currency",
			source:   &fakeSource{txns: threeRecordsTwoMonths},
			currency: "USD",
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, core.ErrNoTransactions)
			},
		},
		{
			name:     "lowercase currency does not match",
			source:   &fakeSource{txns: threeRecordsTwoMonths},
			currency: "gbp",
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, core.ErrNoTransactions)
			},
		},
		{
			name:     "two months of history",
			source:   &fakeSource{txns: threeRecordsTwoMonths},
			currency: "GBP",
			check: func(t *testing.T, err error) {
				var insufficient *core.InsufficientDataError
				require.True(t, errors.As(err, &insufficient))
				assert.Equal(t, 2, insufficient.Months)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store := newTestService(t, tt.source)
			_, err := svc.Generate(context.Background(), tt.currency)
			require.Error(t, err)
			assert.True(t, core.IsInputError(err))
			tt.check(t, err)

			_, ok := store.Load(context.Background())
			assert.False(t, ok, "nothing should be saved on input errors")
			assert.False(t, svc.InProgress())
		})
	}
}

func TestGenerateRejectsConcurrentRun(t *testing.T) {
	txns, err := ingest.ParseString(fourMonthCSV())
	require.NoError(t, err)
	src := &fakeSource{txns: txns, gate: make(chan struct{})}
	svc, _ := newTestService(t, src, WithHorizon(1))

	done := make(chan error, 1)
	go func() {
		_, err := svc.Generate(context.Background(), "GBP")
		done <- err
	}()

	require.Eventually(t, svc.InProgress, time.Second, time.Millisecond)
	_, err = svc.Generate(context.Background(), "GBP")
	assert.ErrorIs(t, err, core.ErrGenerationInProgress)

	close(src.gate)
	require.NoError(t, <-done)
	assert.False(t, svc.InProgress())
}

func TestGenerateRereadsSource(t *testing.T) {
	txns, err := ingest.ParseString(fourMonthCSV())
	require.NoError(t, err)
	src := &fakeSource{txns: txns}
	cfgOpt := WithHorizon(1)
	svc, _ := newTestService(t, src, cfgOpt)

	_, err = svc.HistoricalYearly(context.Background(), "GBP")
	require.NoError(t, err)
	_, err = svc.HistoricalYearly(context.Background(), "GBP")
	require.NoError(t, err)
	assert.EqualValues(t, 1, src.calls.Load(), "history reads should hit the snapshot cache")

	_, err = svc.Generate(context.Background(), "GBP")
	require.NoError(t, err)
	assert.EqualValues(t, 2, src.calls.Load(), "generate must bypass the snapshot cache")
}

func TestGenerateNotifierFailureKeepsResult(t *testing.T) {
	txns, err := ingest.ParseString(fourMonthCSV())
	require.NoError(t, err)
	notifier := &recordingNotifier{err: errors.New("broker down")}
	svc, store := newTestService(t, &fakeSource{txns: txns}, WithHorizon(2), WithNotifier(notifier))

	_, err = svc.Generate(context.Background(), "GBP")
	require.NoError(t, err)
	_, ok := store.Load(context.Background())
	assert.True(t, ok)
}

func TestHistoricalYearly(t *testing.T) {
	txns := []core.Transaction{
		{Date: "2023-12-01", Type: core.Income, Amount: core.ParseAmount("100"), Currency: "GBP"},
		{Date: "2024-01-01", Type: core.Expense, Amount: core.ParseAmount("40"), Currency: "GBP"},
		{Date: "2024-02-01", Type: core.Income, Amount: core.ParseAmount("60"), Currency: "GBP"},
		{Date: "2024-02-01", Type: core.Income, Amount: core.ParseAmount("999"), Currency: "EUR"},
	}
	svc, _ := newTestService(t, &fakeSource{txns: txns})

	years, err := svc.HistoricalYearly(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, []core.HistoricalYear{
		{Year: 2023, Income: 100, Expenses: 0},
		{Year: 2024, Income: 60, Expenses: 40},
	}, years)
}

func TestLatestAndInspect(t *testing.T) {
	svc, store := newTestService(t, &fakeSource{})
	ctx := context.Background()

	_, ok := svc.Latest(ctx)
	assert.False(t, ok)
	out, err := svc.Inspect(ctx)
	require.NoError(t, err)
	assert.Equal(t, storage.Absent, out.State)

	require.NoError(t, store.Save(ctx, core.ProjectionResult{HistoricalMonths: 5}))
	latest, ok := svc.Latest(ctx)
	require.True(t, ok)
	assert.Equal(t, 5, latest.HistoricalMonths)
}

func TestAccuracyWithoutValidation(t *testing.T) {
	assert.Nil(t, accuracy())
}
