package usecase

import (
	"fmt"

	"github.com/iho/ledgercore/internal/domain"
)

// TransferCommand asks the ledger to move Money from one account to another.
// CommandID is the caller's idempotency key.
type TransferCommand struct {
	CommandID     string
	FromAccountID string
	ToAccountID   string
	CorrelationID string
	Money         domain.Money
}

// Validate checks the command before any storage access.
func (c TransferCommand) Validate() error {
	if err := domain.ValidateCommandID(c.CommandID); err != nil {
		return err
	}

	if err := domain.ValidateAccountID(c.FromAccountID); err != nil {
		return fmt.Errorf("from: %w", err)
	}

	if err := domain.ValidateAccountID(c.ToAccountID); err != nil {
		return fmt.Errorf("to: %w", err)
	}

	if c.FromAccountID == c.ToAccountID {
		return domain.ErrSameAccount
	}

	if c.Money.IsZero() || c.Money.Currency().IsZero() {
		return domain.ErrInvalidAmount
	}

	if err := domain.ValidateCorrelationID(c.CorrelationID); err != nil {
		return err
	}

	return nil
}

// TransferResult pairs a command with the transfer it produced.
// A replayed command yields the same result as its first execution.
type TransferResult struct {
	TransferID string `json:"transfer_id"`
	CommandID  string `json:"command_id"`
}
