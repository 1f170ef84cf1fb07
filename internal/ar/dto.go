package ar

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/workshop/internal/shared"
)

const dateLayout = "2006-01-02"

// GenerateRequest is the body of POST /orders/{id}/receivable.
type GenerateRequest struct {
	DueDate          string `json:"due_date" validate:"omitempty,datetime=2006-01-02"`
	UseInstallments  bool   `json:"use_installments"`
	InstallmentCount int    `json:"installment_count" validate:"gte=0"`
	FirstDueDate     string `json:"first_due_date" validate:"omitempty,datetime=2006-01-02"`
	Description      string `json:"description" validate:"max=255"`
	Notes            string `json:"notes"`
}

// PaymentRequest records a payment. paid_amount 0 reverses, so the field
// must be sent explicitly.
type PaymentRequest struct {
	PaidAmount *decimal.Decimal `json:"paid_amount" validate:"required"`
	Method     string          `json:"payment_method" validate:"max=50"`
	PaidAt     *time.Time      `json:"paid_at"`
}

// InstallmentPatchRequest edits an installment.
type InstallmentPatchRequest struct {
	DueDate string           `json:"due_date" validate:"omitempty,datetime=2006-01-02"`
	Amount  *decimal.Decimal `json:"amount"`
}

// CancelRequest carries an optional reason.
type CancelRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

func (r GenerateRequest) options(actorID int64) (GenerateOptions, error) {
	due, err := parseDate("due_date", r.DueDate)
	if err != nil {
		return GenerateOptions{}, err
	}
	first, err := parseDate("first_due_date", r.FirstDueDate)
	if err != nil {
		return GenerateOptions{}, err
	}
	return GenerateOptions{
		DueDate:          due,
		UseInstallments:  r.UseInstallments,
		InstallmentCount: r.InstallmentCount,
		FirstDueDate:     first,
		Description:      r.Description,
		Notes:            r.Notes,
		ActorID:          actorID,
	}, nil
}

func (r PaymentRequest) input(actorID int64) (PaymentInput, error) {
	if r.PaidAmount == nil {
		return PaymentInput{}, shared.NewValidationError("paid_amount", "is required")
	}
	if r.PaidAmount.IsNegative() {
		return PaymentInput{}, shared.NewValidationError("paid_amount", "must not be negative")
	}
	return PaymentInput{PaidAmount: *r.PaidAmount, Method: r.Method, PaidAt: r.PaidAt, ActorID: actorID}, nil
}

func (r InstallmentPatchRequest) patch(actorID int64) (InstallmentPatch, error) {
	due, err := parseDate("due_date", r.DueDate)
	if err != nil {
		return InstallmentPatch{}, err
	}
	if due == nil && r.Amount == nil {
		return InstallmentPatch{}, shared.NewValidationError("body", "nothing to update")
	}
	return InstallmentPatch{DueDate: due, Amount: r.Amount, ActorID: actorID}, nil
}

func parseDate(field, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return nil, shared.NewValidationError(field, "must be a date (YYYY-MM-DD)")
	}
	return &t, nil
}
