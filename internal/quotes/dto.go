package quotes

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/workshop/internal/orders"
)

// CreateQuoteRequest drafts a new quote.
type CreateQuoteRequest struct {
	ClientID   int64                      `json:"client_id" validate:"required,gt=0"`
	VehicleID  int64                      `json:"vehicle_id" validate:"required,gt=0"`
	Notes      string                     `json:"notes" validate:"max=4000"`
	ValidUntil *time.Time                 `json:"valid_until,omitempty"`
	Items      []orders.CreateItemRequest `json:"items" validate:"omitempty,max=200,dive"`
}

// DiscountRequest sets the quote discount.
type DiscountRequest struct {
	Discount *decimal.Decimal `json:"discount" validate:"required"`
}

// RejectRequest carries an optional reason.
type RejectRequest struct {
	Reason string `json:"reason" validate:"max=1000"`
}

// ConvertRequest optionally names the mechanic for the new order.
type ConvertRequest struct {
	MechanicID *int64 `json:"mechanic_id,omitempty" validate:"omitempty,gt=0"`
}
