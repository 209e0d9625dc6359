package domain

import "time"

// CommandStatus tracks a command through admission and application.
type CommandStatus string

const (
	CommandStatusReceived CommandStatus = "RECEIVED"
	CommandStatusApplied  CommandStatus = "APPLIED"
)

// CommandTypeTransfer is the only command type handled by the ledger.
const CommandTypeTransfer = "Transfer"

// MaxCommandIDLength bounds caller-chosen idempotency keys.
const MaxCommandIDLength = 255

// Command is a row of the idempotency ledger. Its existence claims the
// exclusive right to process the command id once.
type Command struct {
	CreatedAt     time.Time
	AppliedAt     *time.Time
	ID            string
	Type          string
	CorrelationID string
	Status        CommandStatus
}

// BalanceSnapshot caches an account's derived balance as of a sequence number.
// It is never authoritative: the ledger entries are.
type BalanceSnapshot struct {
	UpdatedAt    time.Time
	AccountID    string
	AsOfSequence int64
	BalanceMinor int64
}
