// Package ledger holds the pure totals arithmetic shared by orders and quotes.
package ledger

import (
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/workshop/internal/shared"
)

// Totals is the monetary summary of a document with line items.
type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Discount decimal.Decimal `json:"discount"`
	Total    decimal.Decimal `json:"total"`
}

// LineTotal returns quantity × unitPrice rounded to cents.
func LineTotal(quantity, unitPrice decimal.Decimal) decimal.Decimal {
	return shared.RoundMoney(quantity.Mul(unitPrice))
}

// Subtotal sums line totals.
func Subtotal(lineTotals []decimal.Decimal) decimal.Decimal {
	sum := decimal.Zero
	for _, lt := range lineTotals {
		sum = sum.Add(lt)
	}
	return shared.RoundMoney(sum)
}

// Recompute derives totals from the stored line totals and the requested
// discount. The discount passes through ClampDiscount so total is never
// negative and never exceeds the subtotal.
func Recompute(lineTotals []decimal.Decimal, discount decimal.Decimal) Totals {
	subtotal := Subtotal(lineTotals)
	clamped := ClampDiscount(discount, subtotal)
	return Totals{
		Subtotal: subtotal,
		Discount: clamped,
		Total:    subtotal.Sub(clamped),
	}
}

// Valid reports whether t satisfies total = subtotal - discount with
// 0 <= discount <= subtotal.
func (t Totals) Valid() bool {
	if t.Discount.IsNegative() || t.Discount.GreaterThan(t.Subtotal) {
		return false
	}
	return t.Total.Equal(t.Subtotal.Sub(t.Discount))
}
