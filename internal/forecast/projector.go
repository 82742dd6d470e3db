// Package forecast projects future monthly totals by feeding each predicted
// month back into the trailing window used for the next one.
package forecast

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"cashflow/internal/core"
	"cashflow/internal/features"
)

// Horizon is the number of months projected per run.
const Horizon = 12

var (
	ErrNoHistory      = errors.New("forecast: no historical months")
	ErrInvalidHorizon = errors.New("forecast: horizon must be positive")
)

// Predictor maps a normalized feature vector to a normalized target.
// *model.Model satisfies it.
type Predictor interface {
	Predict(x []float64) (float64, error)
}

// Project returns horizon months continuing from the last aggregate in
// history. Predicted totals are appended to the trailing windows, so errors
// compound across the horizon; no correction or bound is applied.
func Project(
	ctx context.Context,
	income, expense Predictor,
	history []core.MonthlyAggregate,
	norm features.Normalization,
	horizon int,
) ([]core.ProjectedMonth, error) {
	if len(history) == 0 {
		return nil, ErrNoHistory
	}
	if horizon < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidHorizon, horizon)
	}

	incWin, expWin := features.SeedWindows(history)
	period := history[len(history)-1].Period

	out := make([]core.ProjectedMonth, 0, horizon)
	for step := 0; step < horizon; step++ {
		period = period.Next()
		x := features.Future(norm, period, incWin, expWin).Slice()

		inc, err := income.Predict(x)
		if err != nil {
			return nil, fmt.Errorf("predict income for %s: %w", period, err)
		}
		exp, err := expense.Predict(x)
		if err != nil {
			return nil, fmt.Errorf("predict expenses for %s: %w", period, err)
		}

		pm := core.ProjectedMonth{
			MonthKey:          period.Key(),
			ProjectedIncome:   norm.DenormalizeIncome(inc),
			ProjectedExpenses: norm.DenormalizeExpense(exp),
		}
		incWin.Push(pm.ProjectedIncome)
		expWin.Push(pm.ProjectedExpenses)
		out = append(out, pm)
	}

	slog.DebugContext(ctx, "Projection complete",
		"from", history[len(history)-1].MonthKey,
		"months", len(out))
	return out, nil
}
