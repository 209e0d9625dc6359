package usecase

//go:generate mockgen -source=interfaces.go -destination=mocks/mock_interfaces.go -package=mocks

import (
	"context"
	"time"

	"github.com/iho/ledgercore/internal/domain"
)

// CommandStore is the idempotency ledger.
type CommandStore interface {
	// TryInsertReceived inserts a RECEIVED command. It returns false without error
	// when the command id already exists.
	TryInsertReceived(ctx context.Context, tx Transaction, cmd *domain.Command) (bool, error)
	MarkApplied(ctx context.Context, tx Transaction, commandID string, appliedAt time.Time) error
	// FindTransferIDByCommand returns the transfer created for a command, if any.
	FindTransferIDByCommand(ctx context.Context, tx Transaction, commandID string) (string, bool, error)
	GetByID(ctx context.Context, commandID string) (*domain.Command, error)
}

// AccountRepository defines data access for accounts.
// A nil tx reads outside any transaction.
type AccountRepository interface {
	GetByID(ctx context.Context, tx Transaction, id string) (*domain.Account, error)
	// Create stores the account and initialises its sequence counter.
	Create(ctx context.Context, tx Transaction, account *domain.Account) error
	UpdateStatus(ctx context.Context, tx Transaction, id string, status domain.AccountStatus) error
	List(ctx context.Context, limit, offset int) ([]*domain.Account, error)
}

// LedgerRepository defines data access for ledger-wide checks.
type LedgerRepository interface {
	// SignedTotals returns the sum of signed entry amounts per currency code.
	SignedTotals(ctx context.Context) (map[string]int64, error)
}

// SequenceAllocator hands out per-account sequence numbers.
type SequenceAllocator interface {
	// ReserveNext reserves the next sequence number for every account in accountIDs.
	// Implementations hold an exclusive reservation per account until tx ends and
	// acquire reservations in ascending account id order.
	ReserveNext(ctx context.Context, tx Transaction, accountIDs []string) (map[string]int64, error)
}

// TransferRepository defines data access for transfers.
type TransferRepository interface {
	Create(ctx context.Context, tx Transaction, transfer *domain.Transfer) error
	GetByID(ctx context.Context, id string) (*domain.Transfer, error)
}

// EntryRepository defines data access for ledger entries.
type EntryRepository interface {
	Create(ctx context.Context, tx Transaction, entry *domain.LedgerEntry) error
	ListByTransfer(ctx context.Context, transferID string) ([]*domain.LedgerEntry, error)
	// ListByAccount returns entries with sequence > afterSequence in sequence order.
	ListByAccount(ctx context.Context, accountID string, afterSequence int64, limit int) ([]*domain.LedgerEntry, error)
	SumByAccount(ctx context.Context, accountID string, uptoSequence int64) (int64, error)
}

// SnapshotRepository caches derived balances.
type SnapshotRepository interface {
	// Read returns the cached balance, or 0 if no snapshot exists.
	Read(ctx context.Context, tx Transaction, accountID string) (int64, error)
	// Upsert overwrites the snapshot unless a newer sequence is already stored.
	Upsert(ctx context.Context, tx Transaction, snapshot domain.BalanceSnapshot) error
	// Get returns nil without error when the account has no snapshot.
	Get(ctx context.Context, accountID string) (*domain.BalanceSnapshot, error)
	List(ctx context.Context) ([]*domain.BalanceSnapshot, error)
}

// OutboxRepository defines data access for outbox events.
type OutboxRepository interface {
	Create(ctx context.Context, tx Transaction, event *domain.OutboxEvent) error
	// ClaimPending locks up to limit PENDING events available at now.
	ClaimPending(ctx context.Context, tx Transaction, now time.Time, limit int) ([]*domain.OutboxEvent, error)
	MarkDelivered(ctx context.Context, tx Transaction, id string, deliveredAt time.Time) error
	// MarkFailed records a failed attempt. The event becomes FAILED once its
	// attempts reach maxAttempts, otherwise it is retried at nextAttemptAt.
	MarkFailed(ctx context.Context, tx Transaction, id, lastError string, nextAttemptAt time.Time, maxAttempts int) error
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TransactionManager handles transaction lifecycle.
type TransactionManager interface {
	Begin(ctx context.Context) (Transaction, error)
}

// IDGenerator generates unique IDs.
type IDGenerator interface {
	Generate() string
}

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// Retrier re-runs an operation on transient storage failures.
type Retrier interface {
	Retry(ctx context.Context, operation func() error) error
}

// ResultCache remembers transfer results by command id.
type ResultCache interface {
	// Get returns the cached result and whether it was found.
	Get(ctx context.Context, commandID string) (TransferResult, bool, error)
	Set(ctx context.Context, result TransferResult) error
}

// Publisher delivers outbox events to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, event *domain.OutboxEvent) error
}
