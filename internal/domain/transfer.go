package domain

import (
	"fmt"
	"time"
)

// Transfer represents a money movement between two accounts.
// One transfer corresponds to exactly one command.
type Transfer struct {
	CreatedAt     time.Time
	ID            string
	CommandID     string
	FromAccountID string
	ToAccountID   string
	Money         Money
}

// NewTransfer validates and builds a Transfer.
func NewTransfer(id, commandID, fromAccountID, toAccountID string, money Money, createdAt time.Time) (*Transfer, error) {
	t := &Transfer{
		ID:            id,
		CommandID:     commandID,
		FromAccountID: fromAccountID,
		ToAccountID:   toAccountID,
		Money:         money,
		CreatedAt:     createdAt,
	}

	if err := t.Validate(); err != nil {
		return nil, err
	}

	return t, nil
}

// Validate validates transfer fields.
func (t *Transfer) Validate() error {
	switch {
	case t.ID == "":
		return fmt.Errorf("%w: transfer id", ErrMissingField)
	case t.CommandID == "":
		return fmt.Errorf("%w: command id", ErrMissingField)
	case t.FromAccountID == "" || t.ToAccountID == "":
		return fmt.Errorf("%w: account id", ErrMissingField)
	case t.FromAccountID == t.ToAccountID:
		return ErrSameAccount
	case t.Money.IsZero():
		return ErrInvalidAmount
	}

	return nil
}
