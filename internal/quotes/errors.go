package quotes

import (
	"fmt"

	"github.com/odyssey-erp/workshop/internal/shared"
)

var (
	ErrQuoteNotFound = fmt.Errorf("quote %w", shared.ErrNotFound)
	ErrItemNotFound  = fmt.Errorf("quote item %w", shared.ErrNotFound)

	// ErrInvalidStatus rejects operations not allowed in the quote's status.
	ErrInvalidStatus = fmt.Errorf("%w: quote status does not allow this operation", shared.ErrConflict)
	// ErrQuoteExpired rejects approving or converting a quote past valid_until.
	ErrQuoteExpired = fmt.Errorf("%w: quote has expired", shared.ErrConflict)
	// ErrQuoteEmpty rejects approving a quote without items.
	ErrQuoteEmpty = fmt.Errorf("%w: quote has no items", shared.ErrConflict)
)
