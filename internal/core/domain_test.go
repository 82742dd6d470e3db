package core

import (
	"errors"
	"testing"
)

func TestParsePeriod(t *testing.T) {
	cases := []struct {
		in   string
		want Period
		ok   bool
	}{
		{"2024-03-17", Period{2024, 3}, true},
		{"2024-03", Period{2024, 3}, true},
		{" 2023-12-01 ", Period{2023, 12}, true},
		{"2024-13-01", Period{}, false},
		{"2024-00-01", Period{}, false},
		{"2024", Period{}, false},
		{"", Period{}, false},
		{"abcd-01-01", Period{}, false},
	}
	for _, tc := range cases {
		got, err := ParsePeriod(tc.in)
		if tc.ok {
			if err != nil || got != tc.want {
				t.Fatalf("%q expected %v, got %v (err=%v)", tc.in, tc.want, got, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error, got %v", tc.in, got)
		}
	}
}

func TestPeriodNextWrapsYear(t *testing.T) {
	p := Period{Year: 2024, Month: 11}
	var keys []string
	for i := 0; i < 3; i++ {
		p = p.Next()
		keys = append(keys, p.Key())
	}
	want := []string{"2024-12", "2025-01", "2025-02"}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("step %d: expected %s, got %s", i, want[i], keys[i])
		}
	}
}

func TestPeriodCompare(t *testing.T) {
	a := Period{2023, 12}
	b := Period{2024, 1}
	if !a.Before(b) || b.Before(a) {
		t.Fatalf("expected %v before %v", a, b)
	}
	if a.Compare(a) != 0 {
		t.Fatalf("expected equal periods to compare as 0")
	}
	if (Period{2024, 2}).Compare(Period{2024, 1}) != 1 {
		t.Fatalf("expected later month to compare as 1")
	}
}

func TestTransactionIsIncome(t *testing.T) {
	if !(Transaction{Type: Income}).IsIncome() {
		t.Fatalf("income should be income")
	}
	for _, typ := range []TransactionType{Expense, "", "transfer"} {
		if (Transaction{Type: typ}).IsIncome() {
			t.Fatalf("%q should not count as income", typ)
		}
	}
}

func TestInsufficientDataErrorIsInputError(t *testing.T) {
	var err error = &InsufficientDataError{Months: 2, Required: MinHistoricalMonths}
	wrapped := errors.Join(errors.New("build features"), err)
	if !IsInputError(wrapped) {
		t.Fatalf("expected wrapped insufficient data to be an input error")
	}
	if !IsInputError(ErrNoTransactions) || !IsInputError(ErrSourceUnavailable) {
		t.Fatalf("expected sentinel input errors")
	}
	if IsInputError(errors.New("boom")) {
		t.Fatalf("unexpected input error")
	}
	if got := err.Error(); got != "insufficient data: 2 aggregated months, need at least 3" {
		t.Fatalf("unexpected message %q", got)
	}
}
