package orders

import "github.com/shopspring/decimal"

// CreateOrderRequest opens a new service order, optionally seeded with
// template items. Discount is clamped to the seeded subtotal.
type CreateOrderRequest struct {
	ClientID       int64               `json:"client_id" validate:"required,gt=0"`
	VehicleID      int64               `json:"vehicle_id" validate:"required,gt=0"`
	MechanicID     *int64              `json:"mechanic_id,omitempty" validate:"omitempty,gt=0"`
	TechnicalNotes string              `json:"technical_notes" validate:"max=4000"`
	Items          []CreateItemRequest `json:"items" validate:"omitempty,max=200,dive"`
	Discount       decimal.Decimal     `json:"discount"`
	// QuoteID is set by quote conversion only. Creating twice for the same
	// quote returns the first order.
	QuoteID *int64 `json:"-"`
}

// CreateItemRequest adds one line. UnitPrice and Description fall back to
// the catalog when omitted.
type CreateItemRequest struct {
	ItemType    ItemType         `json:"item_type" validate:"required,oneof=product labor"`
	ProductID   *int64           `json:"product_id,omitempty" validate:"omitempty,gt=0"`
	LaborTypeID *int64           `json:"labor_type_id,omitempty" validate:"omitempty,gt=0"`
	Description string           `json:"description" validate:"max=500"`
	Quantity    decimal.Decimal  `json:"quantity" validate:"gt=0"`
	UnitPrice   *decimal.Decimal `json:"unit_price,omitempty"`
}

// UpdateOrderRequest is the allowlist of directly editable order fields.
// Totals, status and timestamps are reachable only through their own
// operations.
type UpdateOrderRequest struct {
	TechnicalNotes *string `json:"technical_notes" validate:"omitempty,max=4000"`
}

// UpdateItemRequest is the allowlist of editable item fields.
type UpdateItemRequest struct {
	Description *string          `json:"description" validate:"omitempty,max=500"`
	Quantity    *decimal.Decimal `json:"quantity"`
	UnitPrice   *decimal.Decimal `json:"unit_price"`
}

// DiscountRequest sets the order discount.
type DiscountRequest struct {
	Discount *decimal.Decimal `json:"discount" validate:"required"`
}

// TransitionRequest applies a lifecycle action.
type TransitionRequest struct {
	Action Action `json:"action" validate:"required,oneof=start wait_parts finish cancel reopen"`
	Note   string `json:"note" validate:"max=1000"`
}

// AssignMechanicRequest assigns, transfers or clears the mechanic.
type AssignMechanicRequest struct {
	MechanicID *int64 `json:"mechanic_id" validate:"omitempty,gt=0"`
	Note       string `json:"note" validate:"max=1000"`
}
