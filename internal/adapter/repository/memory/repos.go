package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/iho/ledgercore/internal/domain"
	"github.com/iho/ledgercore/internal/usecase"
)

func commandKey(id string) string  { return "command:" + id }
func accountKey(id string) string  { return "account:" + id }
func sequenceKey(id string) string { return "sequence:" + id }
func outboxKey(id string) string   { return "outbox:" + id }

// CommandStore implements usecase.CommandStore.
type CommandStore struct {
	store *Store
}

// NewCommandStore creates a new CommandStore.
func NewCommandStore(store *Store) *CommandStore {
	return &CommandStore{store: store}
}

// TryInsertReceived claims the command id. A concurrent claim of the same id
// blocks until the first claimant's transaction ends.
func (r *CommandStore) TryInsertReceived(ctx context.Context, tx usecase.Transaction, cmd *domain.Command) (bool, error) {
	t, err := asTx(tx)
	if err != nil {
		return false, err
	}

	if err := t.lock(ctx, commandKey(cmd.ID)); err != nil {
		return false, err
	}

	if err := t.enter(); err != nil {
		return false, err
	}
	defer t.mu.Unlock()

	if _, ok := t.commands[cmd.ID]; ok {
		return false, nil
	}

	r.store.mu.RLock()
	_, exists := r.store.commands[cmd.ID]
	r.store.mu.RUnlock()

	if exists {
		return false, nil
	}

	t.commands[cmd.ID] = *cmd

	return true, nil
}

// MarkApplied marks the command APPLIED.
func (r *CommandStore) MarkApplied(ctx context.Context, tx usecase.Transaction, commandID string, appliedAt time.Time) error {
	t, err := asTx(tx)
	if err != nil {
		return err
	}

	if err := t.enter(); err != nil {
		return err
	}
	defer t.mu.Unlock()

	if _, ok := t.commands[commandID]; !ok {
		r.store.mu.RLock()
		_, exists := r.store.commands[commandID]
		r.store.mu.RUnlock()

		if !exists {
			return fmt.Errorf("%w: %s", domain.ErrCommandNotFound, commandID)
		}
	}

	t.applied[commandID] = appliedAt

	return nil
}

// FindTransferIDByCommand returns the transfer created for commandID.
func (r *CommandStore) FindTransferIDByCommand(ctx context.Context, tx usecase.Transaction, commandID string) (string, bool, error) {
	t, err := asTx(tx)
	if err != nil {
		return "", false, err
	}

	if err := t.enter(); err != nil {
		return "", false, err
	}
	defer t.mu.Unlock()

	for _, tr := range t.transfers {
		if tr.CommandID == commandID {
			return tr.ID, true, nil
		}
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	id, ok := r.store.transferByCommand[commandID]

	return id, ok, nil
}

// GetByID returns a committed command.
func (r *CommandStore) GetByID(ctx context.Context, commandID string) (*domain.Command, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	cmd, ok := r.store.commands[commandID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrCommandNotFound, commandID)
	}

	return &cmd, nil
}

// AccountRepository implements usecase.AccountRepository.
type AccountRepository struct {
	store *Store
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(store *Store) *AccountRepository {
	return &AccountRepository{store: store}
}

// GetByID returns an account. With a nil tx only committed state is read.
func (r *AccountRepository) GetByID(ctx context.Context, tx usecase.Transaction, id string) (*domain.Account, error) {
	if tx != nil {
		t, err := asTx(tx)
		if err != nil {
			return nil, err
		}

		if err := t.enter(); err != nil {
			return nil, err
		}
		defer t.mu.Unlock()

		if account, ok := t.accounts[id]; ok {
			return &account, nil
		}

		account, err := r.committed(id)
		if err != nil {
			return nil, err
		}

		if status, ok := t.statuses[id]; ok {
			account.Status = status
		}

		return account, nil
	}

	return r.committed(id)
}

func (r *AccountRepository) committed(id string) (*domain.Account, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	account, ok := r.store.accounts[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}

	return &account, nil
}

// Create stores the account with its sequence counter starting at 1.
func (r *AccountRepository) Create(ctx context.Context, tx usecase.Transaction, account *domain.Account) error {
	t, err := asTx(tx)
	if err != nil {
		return err
	}

	if err := t.lock(ctx, accountKey(account.ID)); err != nil {
		return err
	}

	if err := t.enter(); err != nil {
		return err
	}
	defer t.mu.Unlock()

	r.store.mu.RLock()
	_, exists := r.store.accounts[account.ID]
	r.store.mu.RUnlock()

	if _, staged := t.accounts[account.ID]; exists || staged {
		return fmt.Errorf("%w: %s", domain.ErrAccountExists, account.ID)
	}

	t.accounts[account.ID] = *account
	t.accountOrder = append(t.accountOrder, account.ID)
	t.sequences[account.ID] = 1

	return nil
}

// UpdateStatus changes an account's status.
func (r *AccountRepository) UpdateStatus(ctx context.Context, tx usecase.Transaction, id string, status domain.AccountStatus) error {
	t, err := asTx(tx)
	if err != nil {
		return err
	}

	if err := t.lock(ctx, accountKey(id)); err != nil {
		return err
	}

	if err := t.enter(); err != nil {
		return err
	}
	defer t.mu.Unlock()

	if account, ok := t.accounts[id]; ok {
		account.Status = status
		t.accounts[id] = account
		return nil
	}

	if _, err := r.committed(id); err != nil {
		return err
	}

	t.statuses[id] = status

	return nil
}

// List lists committed accounts in creation order.
func (r *AccountRepository) List(ctx context.Context, limit, offset int) ([]*domain.Account, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	ids := page(r.store.accountOrder, limit, offset)
	accounts := make([]*domain.Account, 0, len(ids))
	for _, id := range ids {
		account := r.store.accounts[id]
		accounts = append(accounts, &account)
	}

	return accounts, nil
}

func page(ids []string, limit, offset int) []string {
	if offset >= len(ids) {
		return nil
	}

	end := len(ids)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}

	return ids[offset:end]
}

// SequenceAllocator implements usecase.SequenceAllocator.
type SequenceAllocator struct {
	store *Store
}

// NewSequenceAllocator creates a new SequenceAllocator.
func NewSequenceAllocator(store *Store) *SequenceAllocator {
	return &SequenceAllocator{store: store}
}

// ReserveNext locks each account's counter in ascending id order and reserves
// its next value. The locks are held until tx ends.
func (r *SequenceAllocator) ReserveNext(ctx context.Context, tx usecase.Transaction, accountIDs []string) (map[string]int64, error) {
	t, err := asTx(tx)
	if err != nil {
		return nil, err
	}

	ids := uniqueSorted(accountIDs)

	for _, id := range ids {
		if err := t.lock(ctx, sequenceKey(id)); err != nil {
			return nil, err
		}
	}

	if err := t.enter(); err != nil {
		return nil, err
	}
	defer t.mu.Unlock()

	reserved := make(map[string]int64, len(ids))
	for _, id := range ids {
		next, ok := t.sequences[id]
		if !ok {
			r.store.mu.RLock()
			next, ok = r.store.nextSequence[id]
			r.store.mu.RUnlock()
		}

		if !ok {
			return nil, fmt.Errorf("%w: no sequence counter for %s", domain.ErrAccountNotFound, id)
		}

		reserved[id] = next
		t.sequences[id] = next + 1
	}

	return reserved, nil
}

func uniqueSorted(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))

	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}

	sort.Strings(out)

	return out
}

// TransferRepository implements usecase.TransferRepository.
type TransferRepository struct {
	store *Store
}

// NewTransferRepository creates a new TransferRepository.
func NewTransferRepository(store *Store) *TransferRepository {
	return &TransferRepository{store: store}
}

// Create stages a transfer.
func (r *TransferRepository) Create(ctx context.Context, tx usecase.Transaction, transfer *domain.Transfer) error {
	t, err := asTx(tx)
	if err != nil {
		return err
	}

	if err := t.enter(); err != nil {
		return err
	}
	defer t.mu.Unlock()

	t.transfers = append(t.transfers, *transfer)

	return nil
}

// GetByID returns a committed transfer.
func (r *TransferRepository) GetByID(ctx context.Context, id string) (*domain.Transfer, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	transfer, ok := r.store.transfers[id]
	if !ok {
		return nil, domain.ErrTransferNotFound
	}

	return &transfer, nil
}

// EntryRepository implements usecase.EntryRepository.
type EntryRepository struct {
	store *Store
}

// NewEntryRepository creates a new EntryRepository.
func NewEntryRepository(store *Store) *EntryRepository {
	return &EntryRepository{store: store}
}

// Create stages a ledger entry.
func (r *EntryRepository) Create(ctx context.Context, tx usecase.Transaction, entry *domain.LedgerEntry) error {
	t, err := asTx(tx)
	if err != nil {
		return err
	}

	if err := t.enter(); err != nil {
		return err
	}
	defer t.mu.Unlock()

	t.entries = append(t.entries, *entry)

	return nil
}

// ListByTransfer returns the committed entries of a transfer.
func (r *EntryRepository) ListByTransfer(ctx context.Context, transferID string) ([]*domain.LedgerEntry, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	return copyEntries(r.store.entriesByTransfer[transferID]), nil
}

// ListByAccount returns committed entries with sequence > afterSequence.
func (r *EntryRepository) ListByAccount(ctx context.Context, accountID string, afterSequence int64, limit int) ([]*domain.LedgerEntry, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	entries := r.store.entriesByAccount[accountID]
	start := sort.Search(len(entries), func(i int) bool { return entries[i].Sequence > afterSequence })
	entries = entries[start:]

	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}

	return copyEntries(entries), nil
}

// SumByAccount sums signed amounts of entries with sequence <= uptoSequence.
func (r *EntryRepository) SumByAccount(ctx context.Context, accountID string, uptoSequence int64) (int64, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var sum int64
	for _, e := range r.store.entriesByAccount[accountID] {
		if e.Sequence > uptoSequence {
			break
		}
		sum += e.SignedAmount()
	}

	return sum, nil
}

// SignedTotals implements usecase.LedgerRepository.
func (r *EntryRepository) SignedTotals(ctx context.Context) (map[string]int64, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	totals := make(map[string]int64)
	for _, entries := range r.store.entriesByAccount {
		for _, e := range entries {
			totals[e.Money.Currency().Code()] += e.SignedAmount()
		}
	}

	return totals, nil
}

func copyEntries(entries []domain.LedgerEntry) []*domain.LedgerEntry {
	out := make([]*domain.LedgerEntry, 0, len(entries))
	for i := range entries {
		e := entries[i]
		out = append(out, &e)
	}

	return out
}

// SnapshotRepository implements usecase.SnapshotRepository.
type SnapshotRepository struct {
	store *Store
}

// NewSnapshotRepository creates a new SnapshotRepository.
func NewSnapshotRepository(store *Store) *SnapshotRepository {
	return &SnapshotRepository{store: store}
}

// Read returns the balance seen by tx, 0 when there is no snapshot.
func (r *SnapshotRepository) Read(ctx context.Context, tx usecase.Transaction, accountID string) (int64, error) {
	t, err := asTx(tx)
	if err != nil {
		return 0, err
	}

	if err := t.enter(); err != nil {
		return 0, err
	}
	defer t.mu.Unlock()

	if snap, ok := t.snapshots[accountID]; ok {
		return snap.BalanceMinor, nil
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	return r.store.snapshots[accountID].BalanceMinor, nil
}

// Upsert stages the snapshot unless a newer one is already visible.
func (r *SnapshotRepository) Upsert(ctx context.Context, tx usecase.Transaction, snapshot domain.BalanceSnapshot) error {
	t, err := asTx(tx)
	if err != nil {
		return err
	}

	if err := t.enter(); err != nil {
		return err
	}
	defer t.mu.Unlock()

	current, ok := t.snapshots[snapshot.AccountID]
	if !ok {
		r.store.mu.RLock()
		current, ok = r.store.snapshots[snapshot.AccountID]
		r.store.mu.RUnlock()
	}

	if ok && current.AsOfSequence >= snapshot.AsOfSequence {
		return nil
	}

	t.snapshots[snapshot.AccountID] = snapshot

	return nil
}

// Get returns the committed snapshot, or nil.
func (r *SnapshotRepository) Get(ctx context.Context, accountID string) (*domain.BalanceSnapshot, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	snap, ok := r.store.snapshots[accountID]
	if !ok {
		return nil, nil
	}

	return &snap, nil
}

// List returns all committed snapshots ordered by account id.
func (r *SnapshotRepository) List(ctx context.Context) ([]*domain.BalanceSnapshot, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	out := make([]*domain.BalanceSnapshot, 0, len(r.store.snapshots))
	for _, snap := range r.store.snapshots {
		s := snap
		out = append(out, &s)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].AccountID < out[j].AccountID })

	return out, nil
}

// OutboxRepository implements usecase.OutboxRepository.
type OutboxRepository struct {
	store *Store
}

// NewOutboxRepository creates a new OutboxRepository.
func NewOutboxRepository(store *Store) *OutboxRepository {
	return &OutboxRepository{store: store}
}

// Create stages an outbox event.
func (r *OutboxRepository) Create(ctx context.Context, tx usecase.Transaction, event *domain.OutboxEvent) error {
	t, err := asTx(tx)
	if err != nil {
		return err
	}

	if err := t.enter(); err != nil {
		return err
	}
	defer t.mu.Unlock()

	t.outbox = append(t.outbox, *event)

	return nil
}

// ClaimPending locks up to limit available PENDING events, skipping events
// another transaction has already claimed.
func (r *OutboxRepository) ClaimPending(ctx context.Context, tx usecase.Transaction, now time.Time, limit int) ([]*domain.OutboxEvent, error) {
	t, err := asTx(tx)
	if err != nil {
		return nil, err
	}

	if err := t.enter(); err != nil {
		return nil, err
	}
	defer t.mu.Unlock()

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var claimed []*domain.OutboxEvent
	for _, id := range r.store.outboxOrder {
		if limit > 0 && len(claimed) >= limit {
			break
		}

		ev := r.store.outbox[id]
		if ev.Status != domain.OutboxStatusPending || ev.AvailableAt.After(now) {
			continue
		}

		if !t.tryLockHeld(outboxKey(id)) {
			continue
		}

		claimed = append(claimed, &ev)
	}

	return claimed, nil
}

// MarkDelivered marks a claimed event DELIVERED.
func (r *OutboxRepository) MarkDelivered(ctx context.Context, tx usecase.Transaction, id string, deliveredAt time.Time) error {
	return r.update(tx, id, outboxUpdate{deliveredAt: &deliveredAt})
}

// MarkFailed records a failed delivery attempt.
func (r *OutboxRepository) MarkFailed(ctx context.Context, tx usecase.Transaction, id, lastError string, nextAttemptAt time.Time, maxAttempts int) error {
	return r.update(tx, id, outboxUpdate{lastError: lastError, nextAttemptAt: nextAttemptAt, maxAttempts: maxAttempts})
}

func (r *OutboxRepository) update(tx usecase.Transaction, id string, upd outboxUpdate) error {
	t, err := asTx(tx)
	if err != nil {
		return err
	}

	if err := t.enter(); err != nil {
		return err
	}
	defer t.mu.Unlock()

	if _, ok := t.held[outboxKey(id)]; !ok {
		return fmt.Errorf("memory: outbox event %s was not claimed by this transaction", id)
	}

	if _, ok := t.outboxUpdates[id]; !ok {
		t.outboxUpdOrder = append(t.outboxUpdOrder, id)
	}
	t.outboxUpdates[id] = upd

	return nil
}

// Events returns all committed outbox events in insertion order.
func (r *OutboxRepository) Events() []domain.OutboxEvent {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	out := make([]domain.OutboxEvent, 0, len(r.store.outboxOrder))
	for _, id := range r.store.outboxOrder {
		out = append(out, r.store.outbox[id])
	}

	return out
}
