package orders

import (
	"fmt"

	"github.com/odyssey-erp/workshop/internal/shared"
)

// Domain errors for service orders.
var (
	// ErrOrderNotFound indicates the requested order was not found.
	ErrOrderNotFound = fmt.Errorf("order %w", shared.ErrNotFound)
	// ErrItemNotFound indicates the item does not exist on the order.
	ErrItemNotFound = fmt.Errorf("order item %w", shared.ErrNotFound)

	// ErrInvalidTransition rejects actions outside the transition table.
	ErrInvalidTransition = fmt.Errorf("%w: invalid status transition", shared.ErrConflict)
	// ErrOrderLocked rejects item and discount changes on finished or cancelled orders.
	ErrOrderLocked = fmt.Errorf("%w: order totals are frozen in current status", shared.ErrConflict)
	// ErrQuoteAlreadyOrdered reports a concurrent conversion of the same quote.
	ErrQuoteAlreadyOrdered = fmt.Errorf("%w: quote already has an order", shared.ErrConflict)
	// ErrOrderHasReceivable blocks deletion while a receivable references the order.
	ErrOrderHasReceivable = fmt.Errorf("%w: order has an active receivable", shared.ErrConflict)
)
