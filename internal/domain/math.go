package domain

import (
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// SafeDiv divides a by b, returning zero when b is zero.
func SafeDiv(a, b decimal.Decimal) decimal.Decimal {
	if b.IsZero() {
		return decimal.Zero
	}
	return a.Div(b)
}

// PercentChange returns (current - previous) / previous * 100, or zero when previous is zero.
func PercentChange(current, previous decimal.Decimal) decimal.Decimal {
	return SafeDiv(current.Sub(previous), previous).Mul(hundred)
}

// AnyNonPositive reports whether any of the values is zero or negative.
func AnyNonPositive(values ...decimal.Decimal) bool {
	for _, v := range values {
		if !v.IsPositive() {
			return true
		}
	}
	return false
}
