package inventory

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/workshop/internal/shared"
)

// MovementType enumerates supported stock movements.
type MovementType string

const (
	// MovementEntry adds quantity to the counter.
	MovementEntry MovementType = "entry"
	// MovementExit removes quantity from the counter.
	MovementExit MovementType = "exit"
	// MovementAdjustment sets the counter to an absolute value.
	MovementAdjustment MovementType = "adjustment"
)

// Valid reports whether t is a known movement type.
func (t MovementType) Valid() bool {
	switch t {
	case MovementEntry, MovementExit, MovementAdjustment:
		return true
	}
	return false
}

// RefModuleServiceOrder tags movements caused by service order items.
const RefModuleServiceOrder = "service_order"

// RefModuleManual tags movements posted through stock adjustment.
const RefModuleManual = "manual"

// Product is the stock-bearing view of a catalog product.
type Product struct {
	ID              int64           `json:"id"`
	Name            string          `json:"name"`
	SalePrice       decimal.Decimal `json:"sale_price"`
	CurrentQuantity decimal.Decimal `json:"current_quantity"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Movement is an append-only stock log row. Quantity is the requested
// amount; PreviousQuantity and ResultingQuantity record the counter
// around it, so a floored exit shows as exit 5 with 3 -> 0.
type Movement struct {
	ID                int64           `json:"id"`
	ProductID         int64           `json:"product_id"`
	Type              MovementType    `json:"type"`
	Quantity          decimal.Decimal `json:"quantity"`
	PreviousQuantity  decimal.Decimal `json:"previous_quantity"`
	ResultingQuantity decimal.Decimal `json:"resulting_quantity"`
	RefModule         string          `json:"ref_module,omitempty"`
	RefID             *int64          `json:"ref_id,omitempty"`
	Notes             string          `json:"notes,omitempty"`
	CreatedBy         int64           `json:"created_by"`
	CreatedAt         time.Time       `json:"created_at"`
}

// MovementInput describes one movement posted inside a caller transaction.
type MovementInput struct {
	ProductID int64
	Type      MovementType
	Quantity  decimal.Decimal
	RefModule string
	RefID     *int64
	Notes     string
	ActorID   int64
}

// AdjustInput describes a manual stock adjustment request.
type AdjustInput struct {
	ProductID      int64
	Quantity       decimal.Decimal
	Type           MovementType
	Notes          string
	ActorID        int64
	IdempotencyKey string
}

// Result pairs the appended movement with the updated product.
type Result struct {
	Movement Movement `json:"movement"`
	Product  Product  `json:"product"`
}

var (
	// ErrProductNotFound indicates the product row does not exist.
	ErrProductNotFound = fmt.Errorf("inventory: product %w", shared.ErrNotFound)
)

func (in MovementInput) validate() error {
	verr := &shared.ValidationError{}
	if in.ProductID <= 0 {
		verr.Add("product_id", "is required")
	}
	if !in.Type.Valid() {
		verr.Add("type", "must be one of entry exit adjustment")
	}
	rounded := shared.RoundQuantity(in.Quantity)
	switch {
	case in.Quantity.IsNegative():
		verr.Add("quantity", "must not be negative")
	case rounded.IsZero() && !in.Quantity.IsZero():
		verr.Add("quantity", "rounds to zero at 3 decimal places")
	case rounded.IsZero() && in.Type != MovementAdjustment:
		verr.Add("quantity", "must be positive")
	}
	if verr.Empty() {
		return nil
	}
	return verr
}
