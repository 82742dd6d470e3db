// Package core provides the domain types shared by the forecasting pipeline.
//
// This file contains the lenient amount parsing used by the record parser.
// Source rows are never rejected because of a bad amount: the value simply
// degrades to zero.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount converts a decimal string into a non-negative amount.
//
// Surrounding whitespace is ignored and a decimal comma is accepted when no
// dot is present. Empty or unparsable input yields zero. A leading minus
// sign is dropped because the sign of a transaction is carried by its type.
//
// Examples:
//
//	ParseAmount("12.34")  -> 12.34
//	ParseAmount("12,34")  -> 12.34
//	ParseAmount("-80")    -> 80
//	ParseAmount("abc")    -> 0
func ParseAmount(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero
	}
	if !strings.Contains(s, ".") && strings.Count(s, ",") == 1 {
		s = strings.Replace(s, ",", ".", 1)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d.Abs()
}

// Float returns the amount as a float64 for the numeric stages of the
// pipeline. Sums are kept in decimal until this point.
func Float(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}
