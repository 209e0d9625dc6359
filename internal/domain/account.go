package domain

import (
	"fmt"
	"time"
)

// AccountStatus is the lifecycle state of an account.
type AccountStatus string

const (
	AccountStatusOpen   AccountStatus = "OPEN"
	AccountStatusFrozen AccountStatus = "FROZEN"
	AccountStatusClosed AccountStatus = "CLOSED"
)

// ParseAccountStatus converts a stored status value.
func ParseAccountStatus(s string) (AccountStatus, error) {
	switch AccountStatus(s) {
	case AccountStatusOpen, AccountStatusFrozen, AccountStatusClosed:
		return AccountStatus(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
}

// Account is a ledger account. It stores no balance: the balance is derived
// from the account's ledger entries and cached in a BalanceSnapshot.
type Account struct {
	CreatedAt     time.Time
	ID            string
	Currency      Currency
	Status        AccountStatus
	AllowNegative bool
}

// IsOpen reports whether the account accepts postings.
func (a *Account) IsOpen() bool {
	return a.Status == AccountStatusOpen
}

// CheckPostable returns an error unless money can be posted to the account.
func (a *Account) CheckPostable(money Money) error {
	if !a.IsOpen() {
		return fmt.Errorf("%w: %s is %s", ErrAccountNotOpen, a.ID, a.Status)
	}

	if a.Currency != money.Currency() {
		return fmt.Errorf("%w: account %s holds %s, transfer is in %s", ErrCurrencyMismatch, a.ID, a.Currency, money.Currency())
	}

	return nil
}
