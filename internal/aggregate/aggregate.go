// Package aggregate reduces transaction lists into monthly and yearly totals.
package aggregate

import (
	"slices"

	"github.com/shopspring/decimal"

	"cashflow/internal/core"
)

// FilterByCurrency keeps the records whose currency equals code exactly.
// The match is case-sensitive: callers pass the casing used in the source.
func FilterByCurrency(txns []core.Transaction, code string) []core.Transaction {
	out := make([]core.Transaction, 0, len(txns))
	for _, t := range txns {
		if t.Currency == code {
			out = append(out, t)
		}
	}
	return out
}

// Monthly returns one aggregate per calendar month present in txns, ordered
// chronologically. Months without transactions are not synthesized.
// Records whose date carries no valid year and month are skipped.
func Monthly(txns []core.Transaction) []core.MonthlyAggregate {
	byPeriod := make(map[core.Period]*core.MonthlyAggregate)
	for _, t := range txns {
		p, err := t.Period()
		if err != nil {
			continue
		}
		agg, ok := byPeriod[p]
		if !ok {
			agg = &core.MonthlyAggregate{
				Period:        p,
				MonthKey:      p.Key(),
				TotalIncome:   decimal.Zero,
				TotalExpenses: decimal.Zero,
			}
			byPeriod[p] = agg
		}
		if t.IsIncome() {
			agg.TotalIncome = agg.TotalIncome.Add(t.Amount)
		} else {
			agg.TotalExpenses = agg.TotalExpenses.Add(t.Amount)
		}
		agg.TransactionCount++
	}

	out := make([]core.MonthlyAggregate, 0, len(byPeriod))
	for _, agg := range byPeriod {
		out = append(out, *agg)
	}
	slices.SortFunc(out, func(a, b core.MonthlyAggregate) int {
		return a.Period.Compare(b.Period)
	})
	return out
}

// Yearly returns per-calendar-year totals in ascending year order.
func Yearly(txns []core.Transaction) []core.HistoricalYear {
	type totals struct {
		income, expenses decimal.Decimal
	}
	byYear := make(map[int]*totals)
	for _, t := range txns {
		p, err := t.Period()
		if err != nil {
			continue
		}
		tot, ok := byYear[p.Year]
		if !ok {
			tot = &totals{income: decimal.Zero, expenses: decimal.Zero}
			byYear[p.Year] = tot
		}
		if t.IsIncome() {
			tot.income = tot.income.Add(t.Amount)
		} else {
			tot.expenses = tot.expenses.Add(t.Amount)
		}
	}

	years := make([]int, 0, len(byYear))
	for y := range byYear {
		years = append(years, y)
	}
	slices.Sort(years)

	out := make([]core.HistoricalYear, 0, len(years))
	for _, y := range years {
		tot := byYear[y]
		out = append(out, core.HistoricalYear{
			Year:     y,
			Income:   core.Float(tot.income),
			Expenses: core.Float(tot.expenses),
		})
	}
	return out
}
