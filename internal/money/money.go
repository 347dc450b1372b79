// Package money holds the decimal constants and helpers shared by every
// reconciliation decision. The constants are part of the external contract:
// changing them changes classification results.
package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// Epsilon is the largest variance still treated as zero.
	Epsilon = decimal.RequireFromString("0.01")
	// FuzzyTolerance bounds the amount difference for a fuzzy deposit match.
	FuzzyTolerance = decimal.RequireFromString("10.00")
	// HeuristicTolerance bounds the numeric root-cause heuristics.
	HeuristicTolerance = decimal.RequireFromString("0.05")
	// InternationalRate is the cross-border surcharge most processors apply.
	InternationalRate = decimal.RequireFromString("0.01")
)

// minorExponent is the exponent of the currency minor unit. Accounts are
// single-currency with two decimal places.
const minorExponent = -2

// FromMinor converts an amount in minor units (cents) to a decimal.
func FromMinor(minor int64) decimal.Decimal {
	return decimal.New(minor, minorExponent)
}

// Parse reads a processor or ledger amount such as "1,024.50", "$97.00"
// or "-3.00".
func Parse(s string) (decimal.Decimal, error) {
	clean := strings.TrimSpace(s)
	clean = strings.ReplaceAll(clean, ",", "")
	clean = strings.TrimPrefix(clean, "$")
	if strings.HasPrefix(clean, "-$") {
		clean = "-" + clean[2:]
	}
	if clean == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(clean)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return d, nil
}

// Round rounds to the minor unit, half away from zero.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(-minorExponent)
}

// WithinEpsilon reports whether |d| is small enough to be treated as zero.
func WithinEpsilon(d decimal.Decimal) bool {
	return d.Abs().LessThanOrEqual(Epsilon)
}

// Near reports whether |a - b| is strictly below tol.
func Near(a, b, tol decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThan(tol)
}
