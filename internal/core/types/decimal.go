// Package types provides common type aliases and utilities.
package types

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Money represents a monetary value with full precision.
// Uses decimal.Decimal to avoid floating-point errors.
type Money = decimal.Decimal

// LedgerPrecision is the number of decimal places ledger amounts are stored
// and compared with (NUMERIC(19,4)).
const LedgerPrecision int32 = 4

// NewMoneyFromString creates a Money value from a string.
// This is the preferred method for monetary values.
func NewMoneyFromString(s string) (Money, error) {
	return decimal.NewFromString(s)
}

// MustMoney creates a Money value from a string, panics on error.
// Use only for constants and tests.
func MustMoney(s string) Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Zero returns zero Money value.
func Zero() Money {
	return decimal.Zero
}

// Round rounds half away from zero to the given number of places.
func Round(m Money, places int32) Money {
	return m.Round(places)
}

// FitsPrecision reports whether m has no more than places fractional digits.
func FitsPrecision(m Money, places int32) bool {
	return m.Equal(m.Truncate(places))
}

// SumEqual compares two totals at ledger precision.
func SumEqual(a, b Money) bool {
	return a.Round(LedgerPrecision).Equal(b.Round(LedgerPrecision))
}

// Format renders m with exactly places fractional digits.
func Format(m Money, places int32) string {
	return m.StringFixed(places)
}

// ParsePositive parses s and requires a strictly positive amount.
func ParsePositive(s string) (Money, error) {
	m, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse amount %q: %w", s, err)
	}
	if !m.IsPositive() {
		return decimal.Zero, fmt.Errorf("amount %q must be positive", s)
	}
	return m, nil
}
