package core

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

type (
	TransactionType string

	// Period identifies a calendar month.
	Period struct {
		Year  int
		Month int // 1-12
	}

	// Transaction is a single labeled ledger entry as read from the source.
	// Amount is always a non-negative magnitude; the sign is carried by Type.
	Transaction struct {
		ID             string
		Date           string // YYYY-MM-DD
		Type           TransactionType
		Category       string
		Description    string
		Amount         decimal.Decimal
		Currency       string
		MerchantID     string
		MerchantName   string
		MCC            string
		IsRecurring    bool
		Essentiality   string
		LabelRecurring string
		LabelEssential string
	}
)

var (
	ErrInvalidPeriod = errors.New("invalid period")
	ErrInvalidMonth  = errors.New("invalid month")
)

// NewPeriod builds a Period and validates the month range.
func NewPeriod(year, month int) (Period, error) {
	p := Period{Year: year, Month: month}
	if err := p.Validate(); err != nil {
		return Period{}, err
	}
	return p, nil
}

func (p Period) Validate() error {
	if p.Month < 1 || p.Month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// Key returns the "YYYY-MM" month key.
func (p Period) Key() string {
	return fmt.Sprintf("%04d-%02d", p.Year, p.Month)
}

func (p Period) String() string {
	return p.Key()
}

// Next returns the following calendar month, rolling December into January.
func (p Period) Next() Period {
	if p.Month >= 12 {
		return Period{Year: p.Year + 1, Month: 1}
	}
	return Period{Year: p.Year, Month: p.Month + 1}
}

// Compare orders periods chronologically: -1 if p is earlier than o, +1 if later.
func (p Period) Compare(o Period) int {
	switch {
	case p.Year < o.Year:
		return -1
	case p.Year > o.Year:
		return 1
	case p.Month < o.Month:
		return -1
	case p.Month > o.Month:
		return 1
	}
	return 0
}

func (p Period) Before(o Period) bool {
	return p.Compare(o) < 0
}

// ParsePeriod reads the year and month from the first two dash-separated
// components of s, so both "2024-03" and "2024-03-17" are accepted.
func ParsePeriod(s string) (Period, error) {
	parts := strings.SplitN(strings.TrimSpace(s), "-", 3)
	if len(parts) < 2 {
		return Period{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
	}
	year, err := strconv.Atoi(parts[0])
	if err != nil {
		return Period{}, fmt.Errorf("%w: year in %q", ErrInvalidPeriod, s)
	}
	month, err := strconv.Atoi(parts[1])
	if err != nil {
		return Period{}, fmt.Errorf("%w: month in %q", ErrInvalidPeriod, s)
	}
	return NewPeriod(year, month)
}

// IsIncome reports whether the transaction counts towards income. Every
// other type, including unknown ones, is aggregated as an expense.
func (t Transaction) IsIncome() bool {
	return t.Type == Income
}

// Period returns the calendar month the transaction falls in.
func (t Transaction) Period() (Period, error) {
	return ParsePeriod(t.Date)
}
