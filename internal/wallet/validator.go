package wallet

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// BalanceViolationError reports a balance transition that breaks an
// accounting invariant. It is recoverable: callers reject the operation
// batch and translate it into a business status for the client.
type BalanceViolationError struct {
	ClientID string
	Asset    string
	Reason   string

	OldBalance         decimal.Decimal
	OldReserved        decimal.Decimal
	OldReservedForSwap decimal.Decimal
	NewBalance         decimal.Decimal
	NewReserved        decimal.Decimal
	NewReservedForSwap decimal.Decimal
}

func (e *BalanceViolationError) Error() string {
	return fmt.Sprintf("invalid balance change for client %s asset %s: %s "+
		"(balance %s -> %s, reserved %s -> %s, reservedForSwap %s -> %s)",
		e.ClientID, e.Asset, e.Reason,
		e.OldBalance, e.NewBalance,
		e.OldReserved, e.NewReserved,
		e.OldReservedForSwap, e.NewReservedForSwap)
}

// ValidateBalanceChange checks a proposed balance transition against the
// accounting rules. It is a pure function: no side effects, no shared state.
//
// A negative resulting balance is tolerated only for records that were
// already negative (overdraft transfers create that state legitimately) and
// only when the deficit-vs-reservation situation does not get worse. The
// same spirit applies to each reservation leg: a negative reservation that
// does not shrink further is tolerated.
func ValidateBalanceChange(clientID, asset string,
	oldBalance, oldReserved, oldReservedForSwap,
	newBalance, newReserved, newReservedForSwap decimal.Decimal) error {

	violation := func(reason string) error {
		return &BalanceViolationError{
			ClientID:           clientID,
			Asset:              asset,
			Reason:             reason,
			OldBalance:         oldBalance,
			OldReserved:        oldReserved,
			OldReservedForSwap: oldReservedForSwap,
			NewBalance:         newBalance,
			NewReserved:        newReserved,
			NewReservedForSwap: newReservedForSwap,
		}
	}

	// Headroom comparison shared by rules 1 and 4:
	// oldReserved + oldReservedForSwap + newBalance vs
	// newReserved + newReservedForSwap + oldBalance.
	// The gap between balance and reservations must not widen.
	oldSide := oldReserved.Add(oldReservedForSwap).Add(newBalance)
	newSide := newReserved.Add(newReservedForSwap).Add(oldBalance)

	if newBalance.IsNegative() {
		wasNegative := oldBalance.IsNegative()
		notWorse := oldBalance.GreaterThanOrEqual(newBalance) ||
			oldSide.GreaterThanOrEqual(newSide)
		if !wasNegative || !notWorse {
			return violation("negative balance")
		}
	}

	if newReserved.IsNegative() && oldReserved.GreaterThan(newReserved) {
		return violation("negative reserved balance")
	}

	if newReservedForSwap.IsNegative() && oldReservedForSwap.GreaterThan(newReservedForSwap) {
		return violation("negative reserved for swap balance")
	}

	if newBalance.LessThan(newReserved.Add(newReservedForSwap)) && oldSide.LessThan(newSide) {
		return violation("balance lower than reserved")
	}

	return nil
}
