package shared

import "github.com/shopspring/decimal"

// MoneyPlaces is the number of decimal places kept for monetary values.
const MoneyPlaces = 2

// RoundMoney rounds half away from zero to cents.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPlaces)
}

// QuantityPlaces matches the scale of the NUMERIC(14,3) quantity columns.
const QuantityPlaces = 3

// RoundQuantity rounds a quantity to the stored scale, so totals and stock
// deltas are computed on the value Postgres keeps.
func RoundQuantity(d decimal.Decimal) decimal.Decimal {
	return d.Round(QuantityPlaces)
}

// MaxDecimal returns the larger value.
func MaxDecimal(a, b decimal.Decimal) decimal.Decimal {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

// MinDecimal returns the smaller value.
func MinDecimal(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}
