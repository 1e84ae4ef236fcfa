// Package money holds INR amount helpers. Amounts are stored and added in
// rupees; the payment gateway speaks paise.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Currency is the only currency the wallet supports.
const Currency = "INR"

// MinorUnitExponent is the number of decimal places between rupees and paise.
const MinorUnitExponent = 2

// ToMinorUnits converts a rupee amount to paise. The amount must already be
// validated to carry at most two decimal places.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(MinorUnitExponent).Round(0).IntPart()
}

// FromMinorUnits converts paise back to rupees.
func FromMinorUnits(minor int64) decimal.Decimal {
	return decimal.New(minor, -MinorUnitExponent)
}

// ValidatePositive checks that amount is strictly positive and representable
// in paise without rounding.
func ValidatePositive(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("amount must be greater than zero")
	}
	if !amount.Equal(amount.Round(MinorUnitExponent)) {
		return fmt.Errorf("amount must have at most %d decimal places", MinorUnitExponent)
	}
	return nil
}

// Parse reads a rupee amount from its string form.
func Parse(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return d, nil
}
