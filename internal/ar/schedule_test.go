package ar

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/workshop/internal/shared"
)

func TestSplitAmountAssignsRemainderToLast(t *testing.T) {
	parts, err := SplitAmount(decimal.RequireFromString("100.00"), 3)
	require.NoError(t, err)
	require.Len(t, parts, 3)
	assert.Equal(t, "33.33", parts[0].StringFixed(2))
	assert.Equal(t, "33.33", parts[1].StringFixed(2))
	assert.Equal(t, "33.34", parts[2].StringFixed(2))
}

func TestSplitAmountSumsExactly(t *testing.T) {
	totals := []string{"0.05", "10.00", "99.99", "1234.57", "1000000.01"}
	for _, raw := range totals {
		total := decimal.RequireFromString(raw)
		for n := MinInstallments; n <= 12; n++ {
			parts, err := SplitAmount(total, n)
			require.NoError(t, err, "%s/%d", raw, n)
			sum := decimal.Zero
			for _, p := range parts {
				assert.False(t, p.IsNegative())
				sum = sum.Add(p)
			}
			assert.True(t, sum.Equal(total), "%s split %d ways sums to %s", raw, n, sum)
		}
	}
}

func TestSplitAmountRejectsBadInput(t *testing.T) {
	_, err := SplitAmount(decimal.RequireFromString("100"), 1)
	require.True(t, errors.Is(err, shared.ErrValidation))

	_, err = SplitAmount(decimal.RequireFromString("100"), MaxInstallments+1)
	require.True(t, errors.Is(err, shared.ErrValidation))

	_, err = SplitAmount(decimal.Zero, 3)
	require.True(t, errors.Is(err, shared.ErrValidation))
}

func TestScheduleDueDatesClampsMonthEnd(t *testing.T) {
	first := time.Date(2024, time.January, 31, 0, 0, 0, 0, time.UTC)
	dates := ScheduleDueDates(first, 4)
	want := []string{"2024-01-31", "2024-02-29", "2024-03-31", "2024-04-30"}
	for i, d := range dates {
		assert.Equal(t, want[i], d.Format(dateLayout))
	}
}

func TestAddMonthsClampedAcrossYear(t *testing.T) {
	got := AddMonthsClamped(time.Date(2025, time.November, 30, 0, 0, 0, 0, time.UTC), 3)
	assert.Equal(t, "2026-02-28", got.Format(dateLayout))
}
