package orders

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/workshop/internal/ledger"
	"github.com/odyssey-erp/workshop/internal/shared"
)

// ValidateCreateItem checks the product xor labor reference and amounts.
func ValidateCreateItem(req CreateItemRequest) error {
	verr := &shared.ValidationError{}
	validateItemInto(verr, "", req)
	if verr.Empty() {
		return nil
	}
	return verr
}

// ValidateCreateRequest validates create request.
func ValidateCreateRequest(req CreateOrderRequest) error {
	verr := &shared.ValidationError{}
	if req.ClientID <= 0 {
		verr.Add("client_id", "is required")
	}
	if req.VehicleID <= 0 {
		verr.Add("vehicle_id", "is required")
	}
	if req.Discount.IsNegative() {
		verr.Add("discount", "must not be negative")
	}
	for i, item := range req.Items {
		validateItemInto(verr, fmt.Sprintf("items[%d].", i), item)
	}
	if verr.Empty() {
		return nil
	}
	return verr
}

// ValidateUpdateItem validates an item patch.
func ValidateUpdateItem(req UpdateItemRequest) error {
	verr := &shared.ValidationError{}
	if req.Quantity != nil {
		validateQuantityInto(verr, "quantity", *req.Quantity)
	}
	if req.UnitPrice != nil && req.UnitPrice.IsNegative() {
		verr.Add("unit_price", "must not be negative")
	}
	if verr.Empty() {
		return nil
	}
	return verr
}

// ValidateDiscount rejects absent or negative discounts and returns the
// requested value.
func ValidateDiscount(req DiscountRequest) (decimal.Decimal, error) {
	return ledger.RequireDiscount(req.Discount)
}

func validateItemInto(verr *shared.ValidationError, prefix string, req CreateItemRequest) {
	switch req.ItemType {
	case ItemTypeProduct:
		if req.ProductID == nil || *req.ProductID <= 0 {
			verr.Add(prefix+"product_id", "is required for product items")
		}
		if req.LaborTypeID != nil {
			verr.Add(prefix+"labor_type_id", "must be empty for product items")
		}
	case ItemTypeLabor:
		if req.LaborTypeID == nil || *req.LaborTypeID <= 0 {
			verr.Add(prefix+"labor_type_id", "is required for labor items")
		}
		if req.ProductID != nil {
			verr.Add(prefix+"product_id", "must be empty for labor items")
		}
	default:
		verr.Add(prefix+"item_type", "must be one of product labor")
	}
	validateQuantityInto(verr, prefix+"quantity", req.Quantity)
	if req.UnitPrice != nil && req.UnitPrice.IsNegative() {
		verr.Add(prefix+"unit_price", "must not be negative")
	}
}

// validateQuantityInto requires a quantity that stays positive once
// rounded to the stored scale.
func validateQuantityInto(verr *shared.ValidationError, field string, qty decimal.Decimal) {
	switch {
	case !qty.IsPositive():
		verr.Add(field, "must be positive")
	case !shared.RoundQuantity(qty).IsPositive():
		verr.Add(field, "rounds to zero at 3 decimal places")
	}
}
