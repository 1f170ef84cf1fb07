package ledger

import (
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/workshop/internal/shared"
)

// ClampDiscount bounds requested into [0, subtotal]. Requests above the
// subtotal are reduced silently; a zero subtotal always yields zero.
// Callers reject negative input before reaching here.
func ClampDiscount(requested, subtotal decimal.Decimal) decimal.Decimal {
	if !subtotal.IsPositive() {
		return decimal.Zero
	}
	requested = shared.RoundMoney(requested)
	return shared.MaxDecimal(decimal.Zero, shared.MinDecimal(requested, subtotal))
}

// RequireDiscount dereferences a decoded discount. An absent field is a
// validation error rather than a reset to zero.
func RequireDiscount(requested *decimal.Decimal) (decimal.Decimal, error) {
	if requested == nil {
		return decimal.Zero, shared.NewValidationError("discount", "is required")
	}
	if err := ValidateDiscount(*requested); err != nil {
		return decimal.Zero, err
	}
	return *requested, nil
}

// ValidateDiscount rejects negative discounts at the boundary.
func ValidateDiscount(requested decimal.Decimal) error {
	if requested.IsNegative() {
		return shared.NewValidationError("discount", "must not be negative")
	}
	return nil
}
