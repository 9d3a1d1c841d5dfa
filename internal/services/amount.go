package services

import (
	"github.com/shopspring/decimal"
)

// AmountToCents converts a currency amount to integer minor units.
// Conversion goes through decimal so values like 19.99 or 0.29 land on the
// exact cent instead of drifting through float multiplication.
func AmountToCents(amount float64) int64 {
	return decimal.NewFromFloat(amount).
		Mul(decimal.NewFromInt(100)).
		Round(0).
		IntPart()
}

// CentsToAmount converts integer minor units back to a currency amount.
func CentsToAmount(cents int64) float64 {
	f, _ := decimal.New(cents, -2).Float64()
	return f
}
