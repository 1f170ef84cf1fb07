package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status represents the lifecycle state of a service order.
type Status string

const (
	StatusOpen         Status = "open"
	StatusInProgress   Status = "in_progress"
	StatusWaitingParts Status = "waiting_parts"
	StatusFinished     Status = "finished"
	StatusCancelled    Status = "cancelled"
)

// Locked reports whether totals are frozen in this status.
func (s Status) Locked() bool {
	return s == StatusFinished || s == StatusCancelled
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusWaitingParts, StatusFinished, StatusCancelled:
		return true
	}
	return false
}

// Action is a lifecycle command applied to an order.
type Action string

const (
	ActionStart     Action = "start"
	ActionWaitParts Action = "wait_parts"
	ActionFinish    Action = "finish"
	ActionCancel    Action = "cancel"
	ActionReopen    Action = "reopen"
)

// ItemType distinguishes parts from labor.
type ItemType string

const (
	ItemTypeProduct ItemType = "product"
	ItemTypeLabor   ItemType = "labor"
)

// Order is a service order with denormalized client and vehicle labels.
type Order struct {
	ID             int64           `json:"id"`
	ClientID       int64           `json:"client_id"`
	ClientName     string          `json:"client_name,omitempty"`
	VehicleID      int64           `json:"vehicle_id"`
	VehiclePlate   string          `json:"vehicle_plate,omitempty"`
	MechanicID     *int64          `json:"mechanic_id,omitempty"`
	Status         Status          `json:"status"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	Discount       decimal.Decimal `json:"discount"`
	Total          decimal.Decimal `json:"total"`
	StartedAt      *time.Time      `json:"started_at,omitempty"`
	FinishedAt     *time.Time      `json:"finished_at,omitempty"`
	TechnicalNotes string          `json:"technical_notes"`
	QuoteID        *int64          `json:"quote_id,omitempty"`
	CreatedBy      int64           `json:"created_by"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Item is an order line. Exactly one of ProductID and LaborTypeID is set,
// matching ItemType.
type Item struct {
	ID          int64           `json:"id"`
	OrderID     int64           `json:"order_id"`
	ItemType    ItemType        `json:"item_type"`
	ProductID   *int64          `json:"product_id,omitempty"`
	LaborTypeID *int64          `json:"labor_type_id,omitempty"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TotalPrice  decimal.Decimal `json:"total_price"`
}

// HistoryEntry is an append-only change record for an order.
type HistoryEntry struct {
	ID        int64     `json:"id"`
	OrderID   int64     `json:"order_id"`
	Field     string    `json:"field"`
	OldValue  string    `json:"old_value"`
	NewValue  string    `json:"new_value"`
	ActorID   int64     `json:"actor_id"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Detail bundles an order with its items.
type Detail struct {
	Order Order  `json:"order"`
	Items []Item `json:"items"`
}

// ItemMutation is returned by item operations.
type ItemMutation struct {
	Order Order `json:"order"`
	Item  Item  `json:"item"`
}

// StatusChange carries the columns written by a transition.
type StatusChange struct {
	Status     Status
	StartedAt  *time.Time
	FinishedAt *time.Time
}

// ListFilter narrows order listings.
type ListFilter struct {
	Status     Status
	ClientID   int64
	VehicleID  int64
	MechanicID int64
	Page       int
	PerPage    int
}

const (
	historyFieldStatus   = "status"
	historyFieldMechanic = "mechanic_id"
	historyFieldNotes    = "technical_notes"
	historyFieldDiscount = "discount"
)
