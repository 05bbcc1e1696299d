// Package money converts between integer kobo amounts, the unit every
// balance and transfer is stored in, and decimal major units for display.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

const koboPerNaira = 100

// FromKobo converts a kobo amount to major units.
func FromKobo(kobo int64) decimal.Decimal {
	return decimal.New(kobo, -2)
}

// ToKobo converts a major-unit amount to kobo. Amounts with sub-kobo
// precision are rejected rather than rounded.
func ToKobo(major decimal.Decimal) (int64, error) {
	scaled := major.Mul(decimal.NewFromInt(koboPerNaira))
	if !scaled.IsInteger() {
		return 0, fmt.Errorf("amount %s has sub-kobo precision", major)
	}
	if !scaled.BigInt().IsInt64() {
		return 0, fmt.Errorf("amount %s overflows kobo range", major)
	}
	return scaled.IntPart(), nil
}

// FormatKobo renders a kobo amount as a fixed two-decimal string.
func FormatKobo(kobo int64) string {
	return FromKobo(kobo).StringFixed(2)
}
