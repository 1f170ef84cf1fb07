package ar

import (
	"fmt"

	"github.com/odyssey-erp/workshop/internal/shared"
)

var (
	// ErrReceivableNotFound indicates a missing receivable.
	ErrReceivableNotFound = fmt.Errorf("receivable %w", shared.ErrNotFound)
	// ErrInstallmentNotFound indicates a missing installment.
	ErrInstallmentNotFound = fmt.Errorf("installment %w", shared.ErrNotFound)
	// ErrOrderNotFound indicates the source order does not exist.
	ErrOrderNotFound = fmt.Errorf("order %w", shared.ErrNotFound)

	// ErrOrderNotFinished rejects generation for orders that are not finished.
	ErrOrderNotFinished = fmt.Errorf("%w: order is not finished", shared.ErrConflict)
	// ErrReceivableExists rejects a second active receivable for one order.
	ErrReceivableExists = fmt.Errorf("%w: order already has an active receivable", shared.ErrConflict)
	// ErrReceivableCancelled rejects changes to a cancelled receivable.
	ErrReceivableCancelled = fmt.Errorf("%w: receivable is cancelled", shared.ErrConflict)
	// ErrReceivablePaid rejects cancelling a settled receivable.
	ErrReceivablePaid = fmt.Errorf("%w: receivable is already paid", shared.ErrConflict)
	// ErrInstallmentCancelled rejects payments on cancelled installments.
	ErrInstallmentCancelled = fmt.Errorf("%w: installment is cancelled", shared.ErrConflict)
	// ErrHasInstallments rejects direct receipts on installment receivables.
	ErrHasInstallments = fmt.Errorf("%w: receivable is paid through its installments", shared.ErrConflict)

	// ErrInstallmentSumMismatch signals that a split does not add up to the total.
	ErrInstallmentSumMismatch = fmt.Errorf("%w: installment amounts do not sum to the receivable amount", shared.ErrInvariant)
)
