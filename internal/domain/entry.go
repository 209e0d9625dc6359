package domain

import (
	"fmt"
	"time"
)

// Direction is the side of a ledger entry. DEBIT decreases an account's
// balance and CREDIT increases it, regardless of account type.
type Direction string

const (
	DirectionDebit  Direction = "DEBIT"
	DirectionCredit Direction = "CREDIT"
)

// ParseDirection converts a stored direction value.
func ParseDirection(s string) (Direction, error) {
	switch Direction(s) {
	case DirectionDebit, DirectionCredit:
		return Direction(s), nil
	default:
		return "", fmt.Errorf("unknown entry direction %q", s)
	}
}

// Signed returns amount with the sign this direction applies to a balance.
func (d Direction) Signed(amount int64) int64 {
	if d == DirectionDebit {
		return -amount
	}

	return amount
}

// LedgerEntry is one append-only posting against one account.
// Entries are ordered per account by Sequence.
type LedgerEntry struct {
	CreatedAt  time.Time
	ID         string
	TransferID string
	AccountID  string
	Direction  Direction
	Money      Money
	Sequence   int64
}

// NewLedgerEntry validates and builds a LedgerEntry.
func NewLedgerEntry(id, transferID, accountID string, sequence int64, direction Direction, money Money, createdAt time.Time) (*LedgerEntry, error) {
	if id == "" || transferID == "" || accountID == "" {
		return nil, fmt.Errorf("%w: entry id, transfer id and account id are required", ErrMissingField)
	}

	if sequence < 1 {
		return nil, fmt.Errorf("%w, got %d", ErrInvalidSequence, sequence)
	}

	if direction != DirectionDebit && direction != DirectionCredit {
		return nil, fmt.Errorf("%w: direction", ErrMissingField)
	}

	if money.IsZero() {
		return nil, ErrInvalidAmount
	}

	return &LedgerEntry{
		ID:         id,
		TransferID: transferID,
		AccountID:  accountID,
		Sequence:   sequence,
		Direction:  direction,
		Money:      money,
		CreatedAt:  createdAt,
	}, nil
}

// SignedAmount returns the entry amount, negative for debits.
func (e *LedgerEntry) SignedAmount() int64 {
	return e.Direction.Signed(e.Money.Amount())
}
