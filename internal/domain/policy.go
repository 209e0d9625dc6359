package domain

import (
	"fmt"
	"math"
)

// BalancePolicy computes balances under the no-negative rule.
//
// CREDIT adds the amount, DEBIT subtracts it. An account that does not allow
// negative balances can never be left below zero.
type BalancePolicy struct{}

// Apply returns the balance after posting amount in direction to account.
// It has no side effects; on error the caller must not change any state.
func (BalancePolicy) Apply(account *Account, current int64, direction Direction, amount Money) (int64, error) {
	delta := direction.Signed(amount.Amount())

	if (delta > 0 && current > math.MaxInt64-delta) || (delta < 0 && current < math.MinInt64-delta) {
		return 0, fmt.Errorf("%w: account %s", ErrBalanceOverflow, account.ID)
	}

	next := current + delta
	if !account.AllowNegative && next < 0 {
		return 0, fmt.Errorf("%w: account %s current=%d delta=%d next=%d",
			ErrInsufficientFunds, account.ID, current, delta, next)
	}

	return next, nil
}
