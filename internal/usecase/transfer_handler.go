package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/iho/ledgercore/internal/domain"
)

// TransferHandlerDeps are the ports the transfer handler orchestrates.
type TransferHandlerDeps struct {
	Commands  CommandStore
	Accounts  AccountRepository
	Sequences SequenceAllocator
	Transfers TransferRepository
	Entries   EntryRepository
	Snapshots SnapshotRepository
	Outbox    OutboxRepository
	IDGen     IDGenerator
	Clock     Clock
	Logger    zerolog.Logger
}

// TransferHandler applies transfer commands inside a caller-supplied transaction.
//
// Every write happens in tx and the handler never commits or rolls back, so a
// failure anywhere leaves nothing behind once the caller rolls back, including
// the idempotency claim.
type TransferHandler struct {
	commands  CommandStore
	accounts  AccountRepository
	sequences SequenceAllocator
	transfers TransferRepository
	entries   EntryRepository
	snapshots SnapshotRepository
	outbox    OutboxRepository
	idGen     IDGenerator
	clock     Clock
	policy    domain.BalancePolicy
	logger    zerolog.Logger
}

// NewTransferHandler creates a new TransferHandler.
func NewTransferHandler(deps TransferHandlerDeps) *TransferHandler {
	return &TransferHandler{
		commands:  deps.Commands,
		accounts:  deps.Accounts,
		sequences: deps.Sequences,
		transfers: deps.Transfers,
		entries:   deps.Entries,
		snapshots: deps.Snapshots,
		outbox:    deps.Outbox,
		idGen:     deps.IDGen,
		clock:     deps.Clock,
		logger:    deps.Logger,
	}
}

// Handle applies cmd exactly once. A command id seen before returns the result
// of its first execution without further side effects.
func (h *TransferHandler) Handle(ctx context.Context, tx Transaction, cmd TransferCommand) (TransferResult, error) {
	result, _, err := h.handle(ctx, tx, cmd)
	return result, err
}

func (h *TransferHandler) handle(ctx context.Context, tx Transaction, cmd TransferCommand) (TransferResult, bool, error) {
	if err := cmd.Validate(); err != nil {
		return TransferResult{}, false, err
	}

	now := h.clock.Now().UTC()

	// 1. Idempotency admission
	inserted, err := h.commands.TryInsertReceived(ctx, tx, &domain.Command{
		ID:            cmd.CommandID,
		Type:          domain.CommandTypeTransfer,
		CorrelationID: cmd.CorrelationID,
		Status:        domain.CommandStatusReceived,
		CreatedAt:     now,
	})
	if err != nil {
		return TransferResult{}, false, fmt.Errorf("admit command %s: %w", cmd.CommandID, err)
	}

	if !inserted {
		result, err := h.replay(ctx, tx, cmd)
		return result, err == nil, err
	}

	// 2. Account validation
	from, err := h.loadAccount(ctx, tx, cmd.FromAccountID, cmd.Money)
	if err != nil {
		return TransferResult{}, false, err
	}

	to, err := h.loadAccount(ctx, tx, cmd.ToAccountID, cmd.Money)
	if err != nil {
		return TransferResult{}, false, err
	}

	// 3. Transfer fact
	transfer, err := domain.NewTransfer(h.idGen.Generate(), cmd.CommandID, from.ID, to.ID, cmd.Money, now)
	if err != nil {
		return TransferResult{}, false, err
	}

	if err := h.transfers.Create(ctx, tx, transfer); err != nil {
		return TransferResult{}, false, fmt.Errorf("create transfer: %w", err)
	}

	// 4. Sequence reservation, both accounts in one call so locks are taken in a fixed order
	sequences, err := h.sequences.ReserveNext(ctx, tx, []string{from.ID, to.ID})
	if err != nil {
		return TransferResult{}, false, fmt.Errorf("reserve sequences: %w", err)
	}

	fromSeq, ok := sequences[from.ID]
	if !ok {
		return TransferResult{}, false, fmt.Errorf("reserve sequences: no sequence for account %s", from.ID)
	}

	toSeq, ok := sequences[to.ID]
	if !ok {
		return TransferResult{}, false, fmt.Errorf("reserve sequences: no sequence for account %s", to.ID)
	}

	// 5. Balance computation
	fromBalance, err := h.snapshots.Read(ctx, tx, from.ID)
	if err != nil {
		return TransferResult{}, false, fmt.Errorf("read balance of %s: %w", from.ID, err)
	}

	toBalance, err := h.snapshots.Read(ctx, tx, to.ID)
	if err != nil {
		return TransferResult{}, false, fmt.Errorf("read balance of %s: %w", to.ID, err)
	}

	newFromBalance, err := h.policy.Apply(from, fromBalance, domain.DirectionDebit, cmd.Money)
	if err != nil {
		return TransferResult{}, false, err
	}

	newToBalance, err := h.policy.Apply(to, toBalance, domain.DirectionCredit, cmd.Money)
	if err != nil {
		return TransferResult{}, false, err
	}

	// 6. Ledger posting
	debit, err := domain.NewLedgerEntry(h.idGen.Generate(), transfer.ID, from.ID, fromSeq, domain.DirectionDebit, cmd.Money, now)
	if err != nil {
		return TransferResult{}, false, err
	}

	credit, err := domain.NewLedgerEntry(h.idGen.Generate(), transfer.ID, to.ID, toSeq, domain.DirectionCredit, cmd.Money, now)
	if err != nil {
		return TransferResult{}, false, err
	}

	for _, entry := range []*domain.LedgerEntry{debit, credit} {
		if err := h.entries.Create(ctx, tx, entry); err != nil {
			return TransferResult{}, false, fmt.Errorf("create entry for %s: %w", entry.AccountID, err)
		}
	}

	// 7. Snapshot update
	snapshots := []domain.BalanceSnapshot{
		{AccountID: from.ID, AsOfSequence: fromSeq, BalanceMinor: newFromBalance, UpdatedAt: now},
		{AccountID: to.ID, AsOfSequence: toSeq, BalanceMinor: newToBalance, UpdatedAt: now},
	}
	for _, snapshot := range snapshots {
		if err := h.snapshots.Upsert(ctx, tx, snapshot); err != nil {
			return TransferResult{}, false, fmt.Errorf("update snapshot of %s: %w", snapshot.AccountID, err)
		}
	}

	// 8. Outbox recording
	event, err := domain.NewTransferCompletedEvent(h.idGen.Generate(), transfer, cmd.CorrelationID, debit, credit)
	if err != nil {
		return TransferResult{}, false, fmt.Errorf("build outbox event: %w", err)
	}

	if err := h.outbox.Create(ctx, tx, event); err != nil {
		return TransferResult{}, false, fmt.Errorf("record outbox event: %w", err)
	}

	// 9. Command completion
	if err := h.commands.MarkApplied(ctx, tx, cmd.CommandID, now); err != nil {
		return TransferResult{}, false, fmt.Errorf("mark command %s applied: %w", cmd.CommandID, err)
	}

	return TransferResult{TransferID: transfer.ID, CommandID: cmd.CommandID}, false, nil
}

func (h *TransferHandler) replay(ctx context.Context, tx Transaction, cmd TransferCommand) (TransferResult, error) {
	transferID, found, err := h.commands.FindTransferIDByCommand(ctx, tx, cmd.CommandID)
	if err != nil {
		return TransferResult{}, fmt.Errorf("look up transfer for command %s: %w", cmd.CommandID, err)
	}

	if !found {
		h.logger.Error().
			Str("command_id", cmd.CommandID).
			Str("correlation_id", cmd.CorrelationID).
			Msg("command exists without a transfer")

		return TransferResult{}, fmt.Errorf("%w: command %s", domain.ErrIdempotencyInconsistency, cmd.CommandID)
	}

	return TransferResult{TransferID: transferID, CommandID: cmd.CommandID}, nil
}

func (h *TransferHandler) loadAccount(ctx context.Context, tx Transaction, id string, money domain.Money) (*domain.Account, error) {
	account, err := h.accounts.GetByID(ctx, tx, id)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return nil, fmt.Errorf("%w: %s", domain.ErrAccountNotFound, id)
		}

		return nil, fmt.Errorf("load account %s: %w", id, err)
	}

	if err := account.CheckPostable(money); err != nil {
		return nil, err
	}

	return account, nil
}
