package models

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	maxMinor = decimal.NewFromInt(math.MaxInt64)
	minMinor = decimal.NewFromInt(math.MinInt64)
)

// Amount is a monetary value in minor units (cents for two-decimal currencies).
type Amount int64

// MinorUnits is the number of decimal places assumed for every supported currency.
const MinorUnits = 2

// Decimal returns the amount in major units.
func (a Amount) Decimal() decimal.Decimal {
	return decimal.New(int64(a), -MinorUnits)
}

// String formats the amount in major units, e.g. 755.00.
func (a Amount) String() string {
	return a.Decimal().StringFixed(MinorUnits)
}

// ParseAmount converts a major-unit string such as "200.00" into minor units.
// More than two fractional digits is an error rather than a silent rounding.
func ParseAmount(s string) (Amount, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	minor := d.Shift(MinorUnits)
	if !minor.Equal(minor.Truncate(0)) {
		return 0, fmt.Errorf("invalid amount %q: too many decimal places", s)
	}
	if minor.GreaterThan(maxMinor) || minor.LessThan(minMinor) {
		return 0, fmt.Errorf("invalid amount %q: out of range", s)
	}
	return Amount(minor.IntPart()), nil
}

// AmountFromDecimal rounds a major-unit decimal to minor units using banker's rounding.
func AmountFromDecimal(d decimal.Decimal) Amount {
	return Amount(d.RoundBank(MinorUnits).Shift(MinorUnits).IntPart())
}

// Category selects one of an account's balances.
type Category string

const (
	CategoryChecking   Category = "checking"
	CategorySavings    Category = "savings"
	CategoryInvestment Category = "investment"
)

// Categories lists every balance category an account holds.
var Categories = []Category{CategoryChecking, CategorySavings, CategoryInvestment}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryChecking, CategorySavings, CategoryInvestment:
		return true
	}
	return false
}
