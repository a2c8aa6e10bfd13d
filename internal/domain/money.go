package domain

import "github.com/shopspring/decimal"

// AmountScale is the number of fractional digits CLAW amounts carry.
const AmountScale = 2

// MinStep is the smallest representable price movement.
var MinStep = decimal.New(1, -AmountScale)

// ValidAmount reports whether d is positive and representable at AmountScale.
func ValidAmount(d decimal.Decimal) bool {
	if !d.IsPositive() {
		return false
	}
	return d.Equal(d.Truncate(AmountScale))
}

// ValidNonNegative is ValidAmount that also accepts zero.
func ValidNonNegative(d decimal.Decimal) bool {
	return d.IsZero() || ValidAmount(d)
}
