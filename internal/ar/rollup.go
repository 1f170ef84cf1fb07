package ar

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/workshop/internal/shared"
)

// PastDue reports whether due lies on a calendar day before asOf.
// The sweep and payment outcomes share this predicate.
func PastDue(due, asOf time.Time) bool {
	return dateOf(due).Before(dateOf(asOf))
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// settlement is the payment state shared by installments and receivables.
type settlement struct {
	status Status
	paid   decimal.Decimal
	paidAt *time.Time
	method string
}

// Anything short of full payment is open, or overdue once the due date has
// passed, matching the sweep predicate.
func settle(amount decimal.Decimal, due time.Time, paid decimal.Decimal, method string, paidAt *time.Time, now time.Time) (settlement, error) {
	if paid.IsNegative() {
		return settlement{}, shared.NewValidationError("paid_amount", "must not be negative")
	}
	paid = shared.RoundMoney(paid)
	when := now.UTC()
	if paidAt != nil {
		when = paidAt.UTC()
	}
	unpaid := StatusOpen
	if PastDue(due, now) {
		unpaid = StatusOverdue
	}
	switch {
	case paid.GreaterThanOrEqual(amount):
		return settlement{status: StatusPaid, paid: amount, paidAt: &when, method: method}, nil
	case paid.IsPositive():
		return settlement{status: unpaid, paid: paid, paidAt: &when, method: method}, nil
	default:
		return settlement{status: unpaid, paid: decimal.Zero}, nil
	}
}

// PaymentOutcome applies a payment to inst. Full payment settles it,
// partial payment records the amount without settling, and zero reverses
// a previous payment.
func PaymentOutcome(inst Installment, paid decimal.Decimal, method string, paidAt *time.Time, now time.Time) (Installment, error) {
	if inst.Status == StatusCancelled {
		return Installment{}, ErrInstallmentCancelled
	}
	s, err := settle(inst.Amount, inst.DueDate, paid, method, paidAt, now)
	if err != nil {
		return Installment{}, err
	}
	inst.Status = s.status
	inst.PaidAmount = s.paid
	inst.PaidAt = s.paidAt
	inst.PaymentMethod = s.method
	return inst, nil
}

// ReceiptOutcome applies a payment to a receivable without installments.
func ReceiptOutcome(rec Receivable, paid decimal.Decimal, paidAt *time.Time, now time.Time) (Receivable, error) {
	if rec.Status == StatusCancelled {
		return Receivable{}, ErrReceivableCancelled
	}
	s, err := settle(rec.Amount, rec.DueDate, paid, "", paidAt, now)
	if err != nil {
		return Receivable{}, err
	}
	rec.Status = s.status
	rec.ReceivedAmount = s.paid
	rec.ReceivedDate = s.paidAt
	return rec, nil
}

// DeriveStatus recomputes the receivable state from its full installment
// set. It is a pure function of its inputs, so applying it twice yields
// the same result.
func DeriveStatus(amount decimal.Decimal, installments []Installment) RollUp {
	r := RollUp{Status: StatusOpen, ReceivedAmount: decimal.Zero, Total: len(installments)}
	anyOverdue := false
	for _, inst := range installments {
		r.ReceivedAmount = r.ReceivedAmount.Add(inst.PaidAmount)
		if inst.Status == StatusPaid {
			r.PaidCount++
		}
		if inst.Status == StatusOverdue {
			anyOverdue = true
		}
		if inst.PaidAt != nil && (r.ReceivedDate == nil || inst.PaidAt.After(*r.ReceivedDate)) {
			t := *inst.PaidAt
			r.ReceivedDate = &t
		}
	}
	switch {
	case r.Total > 0 && r.PaidCount == r.Total && r.ReceivedAmount.GreaterThanOrEqual(amount):
		r.Status = StatusPaid
	case anyOverdue:
		r.Status = StatusOverdue
	}
	return r
}

// SweepInstallments marks open installments due before asOf and not fully
// paid as overdue. It returns the updated set and the changed rows.
func SweepInstallments(installments []Installment, asOf time.Time) ([]Installment, []Installment) {
	out := make([]Installment, len(installments))
	var changed []Installment
	for i, inst := range installments {
		if inst.Status == StatusOpen && PastDue(inst.DueDate, asOf) && inst.PaidAmount.LessThan(inst.Amount) {
			inst.Status = StatusOverdue
			changed = append(changed, inst)
		}
		out[i] = inst
	}
	return out, changed
}

// SweepSingle reports whether an open receivable without installments is
// past due and not fully received.
func SweepSingle(rec Receivable, asOf time.Time) bool {
	return rec.Status == StatusOpen && PastDue(rec.DueDate, asOf) && rec.ReceivedAmount.LessThan(rec.Amount)
}
