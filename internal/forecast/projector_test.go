package forecast

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cashflow/internal/core"
	"cashflow/internal/features"
)

type constPredictor float64

func (c constPredictor) Predict([]float64) (float64, error) { return float64(c), nil }

// echoPredictor returns one input feature unchanged and records every input.
type echoPredictor struct {
	feature int
	seen    [][]float64
}

func (e *echoPredictor) Predict(x []float64) (float64, error) {
	e.seen = append(e.seen, append([]float64(nil), x...))
	return x[e.feature], nil
}

type failingPredictor struct{ err error }

func (f failingPredictor) Predict([]float64) (float64, error) { return 0, f.err }

func agg(year, month int, income, expenses int64) core.MonthlyAggregate {
	p := core.Period{Year: year, Month: month}
	return core.MonthlyAggregate{
		Period:        p,
		MonthKey:      p.Key(),
		TotalIncome:   decimal.NewFromInt(income),
		TotalExpenses: decimal.NewFromInt(expenses),
	}
}

func TestProjectContinuesAcrossYearBoundary(t *testing.T) {
	history := []core.MonthlyAggregate{
		agg(2024, 9, 100, 50),
		agg(2024, 10, 100, 50),
		agg(2024, 11, 100, 50),
	}
	norm := features.NewNormalization(history)

	got, err := Project(context.Background(), constPredictor(0.5), constPredictor(0.5), history, norm, Horizon)
	require.NoError(t, err)
	require.Len(t, got, 12)

	want := []string{
		"2024-12", "2025-01", "2025-02", "2025-03", "2025-04", "2025-05",
		"2025-06", "2025-07", "2025-08", "2025-09", "2025-10", "2025-11",
	}
	for i, pm := range got {
		assert.Equal(t, want[i], pm.MonthKey)
		assert.Equal(t, 50.0, pm.ProjectedIncome)
		assert.Equal(t, 25.0, pm.ProjectedExpenses)
	}
}

func TestProjectFeedsPredictionsBack(t *testing.T) {
	history := []core.MonthlyAggregate{
		agg(2024, 1, 100, 30),
		agg(2024, 2, 200, 60),
		agg(2024, 3, 300, 90),
	}
	norm := features.NewNormalization(history)
	inc := &echoPredictor{feature: 2}
	exp := &echoPredictor{feature: 3}

	got, err := Project(context.Background(), inc, exp, history, norm, 3)
	require.NoError(t, err)
	require.Len(t, got, 3)

	// Step 1 averages the three historical months.
	assert.InDelta(t, 200.0, got[0].ProjectedIncome, 1e-9)
	assert.InDelta(t, 60.0, got[0].ProjectedExpenses, 1e-9)
	// Step 2 window is [200, 300, 200]: the oldest actual month was evicted.
	assert.InDelta(t, 700.0/3, got[1].ProjectedIncome, 1e-9)
	// Step 3 window is [300, 200, 700/3].
	assert.InDelta(t, (300+200+700.0/3)/3, got[2].ProjectedIncome, 1e-9)

	require.Len(t, inc.seen, 3)
	assert.InDelta(t, 4.0/12, inc.seen[0][0], 1e-12)
	assert.Zero(t, inc.seen[0][1])
	assert.InDelta(t, norm.Income(700.0/3), inc.seen[1][2], 1e-12)
}

func TestProjectShortHistorySeedsPartialWindow(t *testing.T) {
	history := []core.MonthlyAggregate{agg(2024, 6, 400, 100)}
	norm := features.NewNormalization(history)
	inc := &echoPredictor{feature: 2}

	got, err := Project(context.Background(), inc, constPredictor(0), history, norm, 2)
	require.NoError(t, err)
	assert.InDelta(t, 400.0, got[0].ProjectedIncome, 1e-9)
	assert.InDelta(t, 400.0, got[1].ProjectedIncome, 1e-9)
}

func TestProjectErrors(t *testing.T) {
	history := []core.MonthlyAggregate{agg(2024, 1, 1, 1)}
	norm := features.NewNormalization(history)
	ctx := context.Background()

	_, err := Project(ctx, constPredictor(0), constPredictor(0), nil, norm, 3)
	assert.ErrorIs(t, err, ErrNoHistory)

	_, err = Project(ctx, constPredictor(0), constPredictor(0), history, norm, 0)
	assert.ErrorIs(t, err, ErrInvalidHorizon)

	boom := errors.New("boom")
	_, err = Project(ctx, constPredictor(0), failingPredictor{err: boom}, history, norm, 3)
	assert.ErrorIs(t, err, boom)
}
