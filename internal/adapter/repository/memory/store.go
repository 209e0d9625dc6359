// Package memory is an in-process storage backend.
//
// Every write made through a Tx is staged on the Tx and applied to the Store
// when it commits. Row locks are per-key weighted semaphores acquired with the
// caller's context and held until the Tx commits or rolls back, which gives
// the same blocking behaviour as row locks in Postgres.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/iho/ledgercore/internal/domain"
	"github.com/iho/ledgercore/internal/usecase"
)

// ErrTxClosed is returned when a finished transaction is used.
var ErrTxClosed = errors.New("memory: transaction already committed or rolled back")

// ErrForeignTx is returned when a transaction from another backend is passed in.
var ErrForeignTx = errors.New("memory: transaction does not belong to this store")

// Store holds committed state.
type Store struct {
	mu sync.RWMutex

	accounts          map[string]domain.Account
	accountOrder      []string
	nextSequence      map[string]int64
	commands          map[string]domain.Command
	transfers         map[string]domain.Transfer
	transferByCommand map[string]string
	entriesByAccount  map[string][]domain.LedgerEntry
	entriesByTransfer map[string][]domain.LedgerEntry
	snapshots         map[string]domain.BalanceSnapshot
	outbox            map[string]domain.OutboxEvent
	outboxOrder       []string

	locks *lockTable
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		accounts:          make(map[string]domain.Account),
		nextSequence:      make(map[string]int64),
		commands:          make(map[string]domain.Command),
		transfers:         make(map[string]domain.Transfer),
		transferByCommand: make(map[string]string),
		entriesByAccount:  make(map[string][]domain.LedgerEntry),
		entriesByTransfer: make(map[string][]domain.LedgerEntry),
		snapshots:         make(map[string]domain.BalanceSnapshot),
		outbox:            make(map[string]domain.OutboxEvent),
		locks:             &lockTable{sems: make(map[string]*semaphore.Weighted)},
	}
}

type lockTable struct {
	mu   sync.Mutex
	sems map[string]*semaphore.Weighted
}

func (l *lockTable) get(key string) *semaphore.Weighted {
	l.mu.Lock()
	defer l.mu.Unlock()

	sem, ok := l.sems[key]
	if !ok {
		sem = semaphore.NewWeighted(1)
		l.sems[key] = sem
	}

	return sem
}

// TxManager implements usecase.TransactionManager.
type TxManager struct {
	store *Store
}

// NewTxManager creates a new TxManager.
func NewTxManager(store *Store) *TxManager {
	return &TxManager{store: store}
}

// Begin starts a new transaction.
func (m *TxManager) Begin(ctx context.Context) (usecase.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return newTx(m.store), nil
}

type outboxUpdate struct {
	deliveredAt   *time.Time
	nextAttemptAt time.Time
	lastError     string
	maxAttempts   int
}

// Tx is a staged unit of work.
type Tx struct {
	store *Store

	mu   sync.Mutex
	done bool
	held map[string]*semaphore.Weighted

	commands       map[string]domain.Command
	applied        map[string]time.Time
	accounts       map[string]domain.Account
	accountOrder   []string
	statuses       map[string]domain.AccountStatus
	sequences      map[string]int64
	transfers      []domain.Transfer
	entries        []domain.LedgerEntry
	snapshots      map[string]domain.BalanceSnapshot
	outbox         []domain.OutboxEvent
	outboxUpdates  map[string]outboxUpdate
	outboxUpdOrder []string
}

func newTx(store *Store) *Tx {
	return &Tx{
		store:         store,
		held:          make(map[string]*semaphore.Weighted),
		commands:      make(map[string]domain.Command),
		applied:       make(map[string]time.Time),
		accounts:      make(map[string]domain.Account),
		statuses:      make(map[string]domain.AccountStatus),
		sequences:     make(map[string]int64),
		snapshots:     make(map[string]domain.BalanceSnapshot),
		outboxUpdates: make(map[string]outboxUpdate),
	}
}

func asTx(tx usecase.Transaction) (*Tx, error) {
	t, ok := tx.(*Tx)
	if !ok || t == nil {
		return nil, ErrForeignTx
	}

	return t, nil
}

// enter locks t for staged access. The caller must unlock t.mu.
func (t *Tx) enter() error {
	t.mu.Lock()
	if t.done {
		t.mu.Unlock()
		return ErrTxClosed
	}

	return nil
}

// lock blocks until the row lock for key is held by t. Re-entrant per Tx.
func (t *Tx) lock(ctx context.Context, key string) error {
	t.mu.Lock()
	if _, ok := t.held[key]; ok {
		t.mu.Unlock()
		return nil
	}
	t.mu.Unlock()

	sem := t.store.locks.get(key)
	if err := sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("lock %s: %w", key, err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.done {
		sem.Release(1)
		return ErrTxClosed
	}

	t.held[key] = sem

	return nil
}

// tryLockHeld takes the row lock for key only if it is free. t.mu must be held.
func (t *Tx) tryLockHeld(key string) bool {
	if _, ok := t.held[key]; ok {
		return true
	}

	sem := t.store.locks.get(key)
	if !sem.TryAcquire(1) {
		return false
	}

	t.held[key] = sem

	return true
}

func (t *Tx) release() {
	for key, sem := range t.held {
		sem.Release(1)
		delete(t.held, key)
	}
}

// Commit applies staged writes atomically and releases all row locks.
func (t *Tx) Commit(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.done {
		return ErrTxClosed
	}

	t.done = true
	defer t.release()

	if err := ctx.Err(); err != nil {
		return err
	}

	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := t.checkConflicts(); err != nil {
		return err
	}

	for _, id := range t.accountOrder {
		s.accounts[id] = t.accounts[id]
		s.accountOrder = append(s.accountOrder, id)
	}

	for id, status := range t.statuses {
		account := s.accounts[id]
		account.Status = status
		s.accounts[id] = account
	}

	for id, next := range t.sequences {
		s.nextSequence[id] = next
	}

	for id, cmd := range t.commands {
		s.commands[id] = cmd
	}

	for id, at := range t.applied {
		cmd := s.commands[id]
		appliedAt := at
		cmd.Status = domain.CommandStatusApplied
		cmd.AppliedAt = &appliedAt
		s.commands[id] = cmd
	}

	for _, tr := range t.transfers {
		s.transfers[tr.ID] = tr
		s.transferByCommand[tr.CommandID] = tr.ID
	}

	for _, e := range t.entries {
		s.entriesByAccount[e.AccountID] = insertBySequence(s.entriesByAccount[e.AccountID], e)
		s.entriesByTransfer[e.TransferID] = append(s.entriesByTransfer[e.TransferID], e)
	}

	for id, snap := range t.snapshots {
		if current, ok := s.snapshots[id]; ok && current.AsOfSequence >= snap.AsOfSequence {
			continue
		}
		s.snapshots[id] = snap
	}

	for _, ev := range t.outbox {
		s.outbox[ev.ID] = ev
		s.outboxOrder = append(s.outboxOrder, ev.ID)
	}

	for _, id := range t.outboxUpdOrder {
		applyOutboxUpdate(s, id, t.outboxUpdates[id])
	}

	return nil
}

// checkConflicts enforces the unique constraints a relational store would.
func (t *Tx) checkConflicts() error {
	s := t.store

	for _, id := range t.accountOrder {
		if _, ok := s.accounts[id]; ok {
			return fmt.Errorf("%w: %s", domain.ErrAccountExists, id)
		}
	}

	for id := range t.commands {
		if _, ok := s.commands[id]; ok {
			return fmt.Errorf("memory: duplicate command %s", id)
		}
	}

	for _, tr := range t.transfers {
		if _, ok := s.transferByCommand[tr.CommandID]; ok {
			return fmt.Errorf("memory: duplicate transfer for command %s", tr.CommandID)
		}
	}

	for _, e := range t.entries {
		entries := s.entriesByAccount[e.AccountID]
		if n := len(entries); n > 0 && entries[n-1].Sequence >= e.Sequence {
			for _, existing := range entries {
				if existing.Sequence == e.Sequence {
					return fmt.Errorf("memory: duplicate sequence %d for account %s", e.Sequence, e.AccountID)
				}
			}
		}
	}

	return nil
}

func insertBySequence(entries []domain.LedgerEntry, e domain.LedgerEntry) []domain.LedgerEntry {
	i := len(entries)
	for i > 0 && entries[i-1].Sequence > e.Sequence {
		i--
	}

	entries = append(entries, domain.LedgerEntry{})
	copy(entries[i+1:], entries[i:])
	entries[i] = e

	return entries
}

func applyOutboxUpdate(s *Store, id string, upd outboxUpdate) {
	ev, ok := s.outbox[id]
	if !ok {
		return
	}

	if upd.deliveredAt != nil {
		ev.Status = domain.OutboxStatusDelivered
		ev.DeliveredAt = upd.deliveredAt
		s.outbox[id] = ev
		return
	}

	ev.Attempts++
	ev.LastError = upd.lastError
	ev.AvailableAt = upd.nextAttemptAt
	if ev.Attempts >= upd.maxAttempts {
		ev.Status = domain.OutboxStatusFailed
	}
	s.outbox[id] = ev
}

// Rollback discards staged writes and releases all row locks.
// Rolling back a finished transaction is a no-op.
func (t *Tx) Rollback(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.done {
		return nil
	}

	t.done = true
	t.release()

	return nil
}
