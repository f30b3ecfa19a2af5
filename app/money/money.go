// Package money converts between the major units stored in the ledger and
// the minor units used by the payment processor.
package money

import "github.com/shopspring/decimal"

const minorUnitExponent = 2

// FromMinorUnits converts an integer minor-unit amount (cents) to major units.
func FromMinorUnits(minor int64) decimal.Decimal {
	return decimal.New(minor, -minorUnitExponent)
}

// ToMinorUnits rounds a major-unit amount half away from zero to whole minor
// units.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(minorUnitExponent).Round(0).IntPart()
}

// LineTotal returns unitPrice × quantity in major units.
func LineTotal(unitPrice decimal.Decimal, quantity int32) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt32(quantity))
}

// Normalize fixes the amount to two decimal places so that stored and
// reported values compare equal regardless of how they were produced.
func Normalize(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(minorUnitExponent)
}
