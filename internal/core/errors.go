package core

import (
	"errors"
	"fmt"
)

// MinHistoricalMonths is the smallest aggregated history the pipeline trains on.
const MinHistoricalMonths = 3

var (
	// ErrNoTransactions is returned when no record matches the requested currency.
	ErrNoTransactions = errors.New("no transactions for currency")

	// ErrSourceUnavailable wraps file-level failures reading the transaction source.
	ErrSourceUnavailable = errors.New("transaction source unavailable")

	// ErrGenerationInProgress is returned when a forecast is requested while
	// another one is still running.
	ErrGenerationInProgress = errors.New("forecast generation already in progress")
)

// InsufficientDataError reports a history too short to build features from.
type InsufficientDataError struct {
	Months   int
	Required int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data: %d aggregated months, need at least %d", e.Months, e.Required)
}

// IsInputError reports whether err is one of the input failures that are
// surfaced to the end user rather than treated as internal errors.
func IsInputError(err error) bool {
	var insufficient *InsufficientDataError
	return errors.As(err, &insufficient) ||
		errors.Is(err, ErrNoTransactions) ||
		errors.Is(err, ErrSourceUnavailable)
}
