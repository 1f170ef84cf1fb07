package ar

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/workshop/internal/shared"
)

// SplitAmount divides total into n installments of floor(total/n) cents,
// adding the remainder to the last one so the parts sum exactly to total.
func SplitAmount(total decimal.Decimal, n int) ([]decimal.Decimal, error) {
	if err := validateCount(n); err != nil {
		return nil, err
	}
	total = shared.RoundMoney(total)
	if !total.IsPositive() {
		return nil, shared.NewValidationError("amount", "must be positive")
	}
	base := total.Div(decimal.NewFromInt(int64(n))).RoundFloor(shared.MoneyPlaces)
	parts := make([]decimal.Decimal, n)
	allocated := decimal.Zero
	for i := 0; i < n-1; i++ {
		parts[i] = base
		allocated = allocated.Add(base)
	}
	parts[n-1] = total.Sub(allocated)
	if err := checkSum(total, parts); err != nil {
		return nil, err
	}
	return parts, nil
}

// ScheduleDueDates returns n monthly due dates starting at first. Days past
// the end of a shorter month fall on its last day.
func ScheduleDueDates(first time.Time, n int) []time.Time {
	dates := make([]time.Time, n)
	for k := 0; k < n; k++ {
		dates[k] = AddMonthsClamped(first, k)
	}
	return dates
}

// AddMonthsClamped adds months to t keeping the day of month where
// possible; Jan 31 + 1 month is Feb 28 (or 29).
func AddMonthsClamped(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	firstOfTarget := time.Date(y, m+time.Month(months), 1, 0, 0, 0, 0, t.Location())
	last := daysIn(firstOfTarget.Year(), firstOfTarget.Month(), t.Location())
	if d > last {
		d = last
	}
	return time.Date(firstOfTarget.Year(), firstOfTarget.Month(), d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}

func validateCount(n int) error {
	if n < MinInstallments || n > MaxInstallments {
		return shared.NewValidationError("installment_count", fmt.Sprintf("must be between %d and %d", MinInstallments, MaxInstallments))
	}
	return nil
}

func checkSum(total decimal.Decimal, parts []decimal.Decimal) error {
	sum := decimal.Zero
	for _, p := range parts {
		sum = sum.Add(p)
	}
	if !sum.Equal(total) {
		return fmt.Errorf("%w: sum %s, total %s", ErrInstallmentSumMismatch, sum.StringFixed(2), total.StringFixed(2))
	}
	return nil
}
