package ar

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	day0 = time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)
	d    = decimal.RequireFromString
)

func inst(id int64, amount string, due time.Time) Installment {
	return Installment{ID: id, Sequence: int(id), Amount: d(amount), PaidAmount: decimal.Zero, DueDate: due, Status: StatusOpen}
}

func TestPaymentOutcomeFullClampsToAmount(t *testing.T) {
	out, err := PaymentOutcome(inst(1, "50", day0.AddDate(0, 0, 5)), d("70"), "pix", nil, day0)
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, out.Status)
	assert.Equal(t, "50.00", out.PaidAmount.StringFixed(2))
	require.NotNil(t, out.PaidAt)
	assert.Equal(t, day0, *out.PaidAt)
	assert.Equal(t, "pix", out.PaymentMethod)
}

func TestPaymentOutcomePartialStaysOpen(t *testing.T) {
	paidAt := day0.AddDate(0, 0, -1)
	out, err := PaymentOutcome(inst(1, "50", day0.AddDate(0, 0, 5)), d("20"), "cash", &paidAt, day0)
	require.NoError(t, err)
	assert.Equal(t, StatusOpen, out.Status)
	assert.Equal(t, "20.00", out.PaidAmount.StringFixed(2))
	assert.Equal(t, paidAt, *out.PaidAt)
}

func TestPaymentOutcomePartialPastDueIsOverdue(t *testing.T) {
	out, err := PaymentOutcome(inst(1, "50", day0.AddDate(0, 0, -2)), d("20"), "cash", nil, day0)
	require.NoError(t, err)
	assert.Equal(t, StatusOverdue, out.Status)
}

func TestPaymentOutcomeReversalClearsFields(t *testing.T) {
	paid, err := PaymentOutcome(inst(1, "50", day0.AddDate(0, 0, 5)), d("50"), "card", nil, day0)
	require.NoError(t, err)

	out, err := PaymentOutcome(paid, decimal.Zero, "card", nil, day0)
	require.NoError(t, err)
	assert.Equal(t, StatusOpen, out.Status)
	assert.True(t, out.PaidAmount.IsZero())
	assert.Nil(t, out.PaidAt)
	assert.Empty(t, out.PaymentMethod)
}

func TestPaymentOutcomeRejectsNegativeAndCancelled(t *testing.T) {
	_, err := PaymentOutcome(inst(1, "50", day0), d("-1"), "", nil, day0)
	require.Error(t, err)

	cancelled := inst(1, "50", day0)
	cancelled.Status = StatusCancelled
	_, err = PaymentOutcome(cancelled, d("50"), "", nil, day0)
	require.ErrorIs(t, err, ErrInstallmentCancelled)
}

func TestDeriveStatus(t *testing.T) {
	paid := func(i Installment) Installment {
		out, err := PaymentOutcome(i, i.Amount, "cash", nil, day0)
		require.NoError(t, err)
		return out
	}
	future := day0.AddDate(0, 1, 0)

	all := []Installment{paid(inst(1, "50", future)), paid(inst(2, "50", future))}
	r := DeriveStatus(d("100"), all)
	assert.Equal(t, StatusPaid, r.Status)
	assert.Equal(t, "100.00", r.ReceivedAmount.StringFixed(2))
	assert.Equal(t, 2, r.PaidCount)
	require.NotNil(t, r.ReceivedDate)

	partial, err := PaymentOutcome(inst(1, "50", future), d("49.99"), "cash", nil, day0)
	require.NoError(t, err)
	r = DeriveStatus(d("100"), []Installment{partial, paid(inst(2, "50", future))})
	assert.Equal(t, StatusOpen, r.Status)
	assert.Equal(t, "99.99", r.ReceivedAmount.StringFixed(2))

	late := inst(2, "50", day0)
	late.Status = StatusOverdue
	r = DeriveStatus(d("100"), []Installment{paid(inst(1, "50", future)), late})
	assert.Equal(t, StatusOverdue, r.Status)

	assert.Equal(t, StatusOpen, DeriveStatus(d("100"), nil).Status)
}

func TestDeriveStatusIsIdempotent(t *testing.T) {
	set := []Installment{inst(1, "10", day0), inst(2, "10", day0)}
	set[0].Status = StatusOverdue
	assert.Equal(t, DeriveStatus(d("20"), set), DeriveStatus(d("20"), set))
}

func TestSweepInstallments(t *testing.T) {
	set := []Installment{
		inst(1, "10", day0.AddDate(0, 0, -1)),
		inst(2, "10", day0),
		inst(3, "10", day0.AddDate(0, 0, -3)),
	}
	set[2].Status = StatusPaid
	set[2].PaidAmount = d("10")

	swept, changed := SweepInstallments(set, day0)
	require.Len(t, changed, 1)
	assert.Equal(t, int64(1), changed[0].ID)
	assert.Equal(t, StatusOverdue, swept[0].Status)
	assert.Equal(t, StatusOpen, swept[1].Status, "due today is not past due")
	assert.Equal(t, StatusPaid, swept[2].Status)
	assert.Equal(t, StatusOpen, set[0].Status, "input is not mutated")
}

func TestSweepSingle(t *testing.T) {
	rec := Receivable{Status: StatusOpen, Amount: d("10"), ReceivedAmount: decimal.Zero, DueDate: day0.AddDate(0, 0, -1)}
	assert.True(t, SweepSingle(rec, day0))
	rec.ReceivedAmount = d("10")
	assert.False(t, SweepSingle(rec, day0))
}
