package ar

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status enumerates receivable and installment statuses.
type Status string

const (
	StatusOpen      Status = "open"
	StatusPaid      Status = "paid"
	StatusOverdue   Status = "overdue"
	StatusCancelled Status = "cancelled"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusPaid, StatusOverdue, StatusCancelled:
		return true
	}
	return false
}

// Receivable is an amount owed by a client, optionally split into installments.
type Receivable struct {
	ID             int64           `json:"id"`
	OrderID        *int64          `json:"order_id,omitempty"`
	ClientID       int64           `json:"client_id"`
	Description    string          `json:"description"`
	DueDate        time.Time       `json:"due_date"`
	Amount         decimal.Decimal `json:"amount"`
	ReceivedAmount decimal.Decimal `json:"received_amount"`
	ReceivedDate   *time.Time      `json:"received_date,omitempty"`
	Status         Status          `json:"status"`
	Notes          string          `json:"notes,omitempty"`
	CreatedBy      int64           `json:"created_by"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	Installments   []Installment   `json:"installments,omitempty"`
}

// Installment is one scheduled part of a receivable.
type Installment struct {
	ID            int64           `json:"id"`
	ReceivableID  int64           `json:"receivable_id"`
	Sequence      int             `json:"sequence"`
	DueDate       time.Time       `json:"due_date"`
	Amount        decimal.Decimal `json:"amount"`
	PaidAmount    decimal.Decimal `json:"paid_amount"`
	PaidAt        *time.Time      `json:"paid_at,omitempty"`
	PaymentMethod string          `json:"payment_method,omitempty"`
	Status        Status          `json:"status"`
}

// OrderSnapshot is the part of a service order the generator reads.
type OrderSnapshot struct {
	ID       int64
	ClientID int64
	Status   string
	Total    decimal.Decimal
}

// GenerateOptions controls receivable generation for a finished order.
type GenerateOptions struct {
	DueDate          *time.Time
	UseInstallments  bool
	InstallmentCount int
	FirstDueDate     *time.Time
	Description      string
	Notes            string
	ActorID          int64
}

// PaymentInput records a payment against an installment or a receivable.
// A zero PaidAmount reverses a previous payment.
type PaymentInput struct {
	PaidAmount decimal.Decimal
	Method     string
	PaidAt     *time.Time
	ActorID    int64
}

// InstallmentPatch edits a single installment.
type InstallmentPatch struct {
	DueDate *time.Time
	Amount  *decimal.Decimal
	ActorID int64
}

// RollUp is the receivable state derived from its installments.
type RollUp struct {
	Status         Status
	ReceivedAmount decimal.Decimal
	ReceivedDate   *time.Time
	PaidCount      int
	Total          int
}

// ListFilter narrows receivable listings.
type ListFilter struct {
	Status   Status
	ClientID int64
	OrderID  int64
	Page     int
	PerPage  int
}

// AgingBucket summarises outstanding balances by days past due.
type AgingBucket struct {
	Current   decimal.Decimal `json:"current"`
	Bucket30  decimal.Decimal `json:"bucket_30"`
	Bucket60  decimal.Decimal `json:"bucket_60"`
	Bucket90  decimal.Decimal `json:"bucket_90"`
	Bucket120 decimal.Decimal `json:"bucket_120"`
}

// SweepResult counts rows changed by MarkOverdue.
type SweepResult struct {
	Installments int `json:"installments"`
	Receivables  int `json:"receivables"`
}

const (
	// MinInstallments is the smallest installment count accepted.
	MinInstallments = 2
	// MaxInstallments is the largest installment count accepted.
	MaxInstallments = 60
	// DefaultTermDays is the due date offset used when none is given.
	DefaultTermDays = 30
)

const orderStatusFinished = "finished"
