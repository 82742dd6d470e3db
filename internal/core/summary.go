package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// MonthlyAggregate holds one month's summed totals. Aggregates exist only for
// months with at least one transaction.
type MonthlyAggregate struct {
	Period           Period
	MonthKey         string
	TotalIncome      decimal.Decimal
	TotalExpenses    decimal.Decimal
	TransactionCount int
}

// Income returns TotalIncome as a float64.
func (a MonthlyAggregate) Income() float64 {
	return Float(a.TotalIncome)
}

// Expenses returns TotalExpenses as a float64.
func (a MonthlyAggregate) Expenses() float64 {
	return Float(a.TotalExpenses)
}

// ProjectedMonth is a single forecast month in currency units.
type ProjectedMonth struct {
	MonthKey          string  `json:"monthKey"`
	ProjectedIncome   float64 `json:"projectedIncome"`
	ProjectedExpenses float64 `json:"projectedExpenses"`
}

// ProjectionResult is the persisted output of one pipeline run. Field names
// are part of the storage contract.
type ProjectionResult struct {
	Projections      []ProjectedMonth `json:"projections"`
	ModelAccuracy    *float64         `json:"modelAccuracy,omitempty"`
	TrainingDate     time.Time        `json:"trainingDate"`
	HistoricalMonths int              `json:"historicalMonths"`
}

// HistoricalYear is a per-calendar-year total used for comparison charts.
type HistoricalYear struct {
	Year     int     `json:"year"`
	Income   float64 `json:"income"`
	Expenses float64 `json:"expenses"`
}
