package inventory

import "github.com/shopspring/decimal"

// ApplyMovement returns the counter after applying a movement of quantity
// q to current. Entries add, exits subtract, adjustments replace. The
// result passes through FloorAtZero.
func ApplyMovement(current decimal.Decimal, t MovementType, q decimal.Decimal) decimal.Decimal {
	var next decimal.Decimal
	switch t {
	case MovementEntry:
		next = current.Add(q)
	case MovementExit:
		next = current.Sub(q)
	case MovementAdjustment:
		next = q
	default:
		next = current
	}
	return FloorAtZero(next)
}

// FloorAtZero clamps negative stock to zero. Exits beyond the available
// quantity are accepted and the shortfall is visible only in the movement
// log.
func FloorAtZero(q decimal.Decimal) decimal.Decimal {
	if q.IsNegative() {
		return decimal.Zero
	}
	return q
}

// DemandMovement translates a change in the quantity an order consumes
// into the movement that keeps stock in step: more demand is an exit,
// less demand is an entry. ok is false when nothing changed.
func DemandMovement(previous, next decimal.Decimal) (t MovementType, q decimal.Decimal, ok bool) {
	delta := next.Sub(previous)
	switch {
	case delta.IsPositive():
		return MovementExit, delta, true
	case delta.IsNegative():
		return MovementEntry, delta.Neg(), true
	default:
		return "", decimal.Zero, false
	}
}
