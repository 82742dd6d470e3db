// Package features turns monthly aggregates into normalized model inputs.
//
// Every amount is scaled by the historical maximum of its target so that
// moving-average features and labels share one [0, 1] scale. The scale is
// captured once in a Normalization value, which must be reused unchanged
// when building features for future months.
package features

import (
	"cashflow/internal/core"
)

// Dimensions is the length of a feature vector.
const Dimensions = 4

// Vector is a single feature vector: normalized month, normalized year
// position, normalized income moving average, normalized expense moving
// average.
type Vector [Dimensions]float64

// Slice returns the vector as a slice for model input.
func (v Vector) Slice() []float64 {
	return v[:]
}

// Normalization holds the constants that map raw amounts and years into
// [0, 1]. It is derived once from the full history.
type Normalization struct {
	MaxIncome  float64
	MaxExpense float64
	MinYear    int
	MaxYear    int
}

// Dataset is the supervised training set built from a history.
type Dataset struct {
	Features      []Vector
	IncomeLabels  []float64
	ExpenseLabels []float64
}

// Len returns the number of examples.
func (d Dataset) Len() int {
	return len(d.Features)
}

// Inputs returns the feature vectors as slices for the trainer.
func (d Dataset) Inputs() [][]float64 {
	out := make([][]float64, len(d.Features))
	for i := range d.Features {
		v := d.Features[i]
		out[i] = v.Slice()
	}
	return out
}

// NewNormalization derives the normalization constants from aggs. An empty
// history yields the zero value.
func NewNormalization(aggs []core.MonthlyAggregate) Normalization {
	if len(aggs) == 0 {
		return Normalization{}
	}
	n := Normalization{
		MinYear: aggs[0].Period.Year,
		MaxYear: aggs[0].Period.Year,
	}
	for _, a := range aggs {
		n.MaxIncome = max(n.MaxIncome, a.Income())
		n.MaxExpense = max(n.MaxExpense, a.Expenses())
		n.MinYear = min(n.MinYear, a.Period.Year)
		n.MaxYear = max(n.MaxYear, a.Period.Year)
	}
	return n
}

// Month scales a month number into (0, 1].
func (n Normalization) Month(month int) float64 {
	return float64(month) / 12
}

// Year scales a year by the observed year range. A single-year history uses
// a span of one to avoid dividing by zero.
func (n Normalization) Year(year int) float64 {
	span := max(1, n.MaxYear-n.MinYear)
	return float64(year-n.MinYear) / float64(span)
}

// Income scales an income amount; zero when the historical maximum is zero.
func (n Normalization) Income(v float64) float64 {
	return scale(v, n.MaxIncome)
}

// Expense scales an expense amount; zero when the historical maximum is zero.
func (n Normalization) Expense(v float64) float64 {
	return scale(v, n.MaxExpense)
}

// DenormalizeIncome maps a model output back into currency units.
func (n Normalization) DenormalizeIncome(v float64) float64 {
	return v * n.MaxIncome
}

// DenormalizeExpense maps a model output back into currency units.
func (n Normalization) DenormalizeExpense(v float64) float64 {
	return v * n.MaxExpense
}

func scale(v, maximum float64) float64 {
	if maximum == 0 {
		return 0
	}
	return v / maximum
}

// Build creates the training dataset and its normalization constants.
// It fails with *core.InsufficientDataError for fewer than
// core.MinHistoricalMonths aggregates.
func Build(aggs []core.MonthlyAggregate) (Dataset, Normalization, error) {
	if len(aggs) < core.MinHistoricalMonths {
		return Dataset{}, Normalization{}, &core.InsufficientDataError{
			Months:   len(aggs),
			Required: core.MinHistoricalMonths,
		}
	}

	norm := NewNormalization(aggs)
	ds := Dataset{
		Features:      make([]Vector, 0, len(aggs)),
		IncomeLabels:  make([]float64, 0, len(aggs)),
		ExpenseLabels: make([]float64, 0, len(aggs)),
	}

	for i, a := range aggs {
		incomeMA, expenseMA := trailingMeans(aggs, i)
		ds.Features = append(ds.Features, Vector{
			norm.Month(a.Period.Month),
			norm.Year(a.Period.Year),
			norm.Income(incomeMA),
			norm.Expense(expenseMA),
		})
		ds.IncomeLabels = append(ds.IncomeLabels, norm.Income(a.Income()))
		ds.ExpenseLabels = append(ds.ExpenseLabels, norm.Expense(a.Expenses()))
	}
	return ds, norm, nil
}

// Future builds the feature vector for an unseen month from the trailing
// windows, which may hold actual or previously predicted totals.
func Future(norm Normalization, p core.Period, income, expense *Window) Vector {
	return Vector{
		norm.Month(p.Month),
		norm.Year(p.Year),
		norm.Income(income.Mean()),
		norm.Expense(expense.Mean()),
	}
}

// SeedWindows fills an income and an expense window with the most recent
// historical totals, oldest first.
func SeedWindows(aggs []core.MonthlyAggregate) (income, expense *Window) {
	income, expense = NewWindow(WindowSize), NewWindow(WindowSize)
	start := max(0, len(aggs)-WindowSize)
	for _, a := range aggs[start:] {
		income.Push(a.Income())
		expense.Push(a.Expenses())
	}
	return income, expense
}

// trailingMeans averages up to WindowSize months preceding index i.
func trailingMeans(aggs []core.MonthlyAggregate, i int) (income, expense float64) {
	start := max(0, i-WindowSize)
	prior := aggs[start:i]
	if len(prior) == 0 {
		return 0, 0
	}
	for _, a := range prior {
		income += a.Income()
		expense += a.Expenses()
	}
	n := float64(len(prior))
	return income / n, expense / n
}
