package aggregate

import (
	"math/rand/v2"
	"testing"

	"github.com/shopspring/decimal"

	"cashflow/internal/core"
)

func tx(date string, typ core.TransactionType, amount, currency string) core.Transaction {
	return core.Transaction{Date: date, Type: typ, Amount: core.ParseAmount(amount), Currency: currency}
}

func TestMonthlyOrdersAndSums(t *testing.T) {
	txns := []core.Transaction{
		tx("2024-03-02", core.Expense, "10.10", "GBP"),
		tx("2023-12-31", core.Income, "100", "GBP"),
		tx("2024-03-15", core.Income, "50.05", "GBP"),
		tx("2024-01-01", core.Expense, "0.20", "GBP"),
		tx("2024-03-20", core.Expense, "0.10", "GBP"),
		tx("not-a-date", core.Expense, "999", "GBP"),
	}

	got := Monthly(txns)
	wantKeys := []string{"2023-12", "2024-01", "2024-03"}
	if len(got) != len(wantKeys) {
		t.Fatalf("expected %d aggregates, got %d: %+v", len(wantKeys), len(got), got)
	}
	for i, k := range wantKeys {
		if got[i].MonthKey != k {
			t.Fatalf("index %d: expected %s, got %s", i, k, got[i].MonthKey)
		}
	}

	march := got[2]
	if !march.TotalIncome.Equal(decimal.RequireFromString("50.05")) {
		t.Fatalf("march income: %s", march.TotalIncome)
	}
	if !march.TotalExpenses.Equal(decimal.RequireFromString("10.20")) {
		t.Fatalf("march expenses: %s", march.TotalExpenses)
	}
	if march.TransactionCount != 3 {
		t.Fatalf("march count: %d", march.TransactionCount)
	}
	if got[1].Expenses() != 0.2 || got[1].Income() != 0 {
		t.Fatalf("january totals: %+v", got[1])
	}
}

func TestMonthlyKeysStrictlyIncreasingForShuffledInput(t *testing.T) {
	r := rand.New(rand.NewPCG(7, 7))
	var txns []core.Transaction
	for i := 0; i < 500; i++ {
		p := core.Period{Year: 2019 + r.IntN(6), Month: 1 + r.IntN(12)}
		date := p.Key() + "-01"
		typ := core.Expense
		if r.IntN(2) == 0 {
			typ = core.Income
		}
		txns = append(txns, tx(date, typ, "1.5", "GBP"))
	}

	got := Monthly(txns)
	total := 0
	for i := range got {
		total += got[i].TransactionCount
		if i > 0 && got[i-1].MonthKey >= got[i].MonthKey {
			t.Fatalf("keys not strictly increasing at %d: %s >= %s", i, got[i-1].MonthKey, got[i].MonthKey)
		}
	}
	if total != len(txns) {
		t.Fatalf("expected every record counted once, got %d of %d", total, len(txns))
	}
}

func TestMonthlyEmpty(t *testing.T) {
	if got := Monthly(nil); len(got) != 0 {
		t.Fatalf("expected no aggregates, got %+v", got)
	}
}

func TestFilterByCurrencyIsExactMatch(t *testing.T) {
	txns := []core.Transaction{
		tx("2024-01-01", core.Income, "1", "GBP"),
		tx("2024-01-01", core.Income, "2", "USD"),
		tx("2024-01-01", core.Income, "3", "gbp"),
	}

	gbp := FilterByCurrency(txns, "GBP")
	if len(gbp) != 1 || gbp[0].Currency != "GBP" {
		t.Fatalf("GBP filter: %+v", gbp)
	}
	usd := FilterByCurrency(txns, "USD")
	if len(usd) != 1 || usd[0].Currency != "USD" {
		t.Fatalf("USD filter: %+v", usd)
	}
	lower := FilterByCurrency(txns, "gbp")
	if len(lower) != 1 || lower[0].Amount.String() != "3" {
		t.Fatalf("lowercase filter should only match lowercase records: %+v", lower)
	}
}

func TestYearly(t *testing.T) {
	txns := []core.Transaction{
		tx("2024-05-01", core.Income, "1000", "GBP"),
		tx("2023-02-01", core.Expense, "200", "GBP"),
		tx("2024-06-01", core.Expense, "300.50", "GBP"),
		tx("2023-11-01", core.Income, "400", "GBP"),
	}
	got := Yearly(txns)
	if len(got) != 2 {
		t.Fatalf("expected 2 years, got %+v", got)
	}
	if got[0] != (core.HistoricalYear{Year: 2023, Income: 400, Expenses: 200}) {
		t.Fatalf("2023: %+v", got[0])
	}
	if got[1] != (core.HistoricalYear{Year: 2024, Income: 1000, Expenses: 300.5}) {
		t.Fatalf("2024: %+v", got[1])
	}
}
