package quotes

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/workshop/internal/orders"
)

// Status enumerates quote lifecycle states.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusConverted Status = "converted"
)

// Quote is a priced proposal for work on a client's vehicle.
type Quote struct {
	ID         int64           `json:"id"`
	ClientID   int64           `json:"client_id"`
	VehicleID  int64           `json:"vehicle_id"`
	Status     Status          `json:"status"`
	Subtotal   decimal.Decimal `json:"subtotal"`
	Discount   decimal.Decimal `json:"discount"`
	Total      decimal.Decimal `json:"total"`
	Notes      string          `json:"notes,omitempty"`
	ValidUntil *time.Time      `json:"valid_until,omitempty"`
	OrderID    *int64          `json:"order_id,omitempty"`
	CreatedBy  int64           `json:"created_by"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// Item is a quote line. It carries the same shape as an order item.
type Item struct {
	ID          int64           `json:"id"`
	QuoteID     int64           `json:"quote_id"`
	ItemType    orders.ItemType `json:"item_type"`
	ProductID   *int64          `json:"product_id,omitempty"`
	LaborTypeID *int64          `json:"labor_type_id,omitempty"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TotalPrice  decimal.Decimal `json:"total_price"`
}

// Detail bundles a quote with its items.
type Detail struct {
	Quote Quote  `json:"quote"`
	Items []Item `json:"items"`
}

// Conversion is the result of converting a quote into a service order.
type Conversion struct {
	Quote Quote         `json:"quote"`
	Order orders.Detail `json:"order"`
}
