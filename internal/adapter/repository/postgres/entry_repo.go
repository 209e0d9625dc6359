package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/ledgercore/internal/domain"
	"github.com/iho/ledgercore/internal/infrastructure/postgres/generated"
	"github.com/iho/ledgercore/internal/usecase"
)

// EntryRepository implements usecase.EntryRepository.
type EntryRepository struct {
	queries *generated.Queries
}

// NewEntryRepository creates a new EntryRepository.
func NewEntryRepository(pool *pgxpool.Pool) *EntryRepository {
	return newEntryRepository(pool)
}

func newEntryRepository(db generated.DBTX) *EntryRepository {
	return &EntryRepository{queries: generated.New(db)}
}

// Create appends an entry. The (account_id, sequence) unique key rejects a reused sequence.
func (r *EntryRepository) Create(ctx context.Context, tx usecase.Transaction, entry *domain.LedgerEntry) error {
	queries, err := txQueries(tx)
	if err != nil {
		return err
	}

	return queries.CreateEntry(ctx, generated.CreateEntryParams{
		ID:          entry.ID,
		TransferID:  entry.TransferID,
		AccountID:   entry.AccountID,
		Sequence:    entry.Sequence,
		Direction:   string(entry.Direction),
		AmountMinor: entry.Money.Amount(),
		Currency:    entry.Money.Currency().Code(),
		CreatedAt:   timeToPgTimestamptz(entry.CreatedAt),
	})
}

// ListByTransfer lists the entries of a transfer, debit first.
func (r *EntryRepository) ListByTransfer(ctx context.Context, transferID string) ([]*domain.LedgerEntry, error) {
	rows, err := r.queries.ListEntriesByTransfer(ctx, transferID)
	if err != nil {
		return nil, err
	}

	return rowsToEntries(rows)
}

// ListByAccount lists an account's entries with sequence greater than afterSequence.
func (r *EntryRepository) ListByAccount(ctx context.Context, accountID string, afterSequence int64, limit int) ([]*domain.LedgerEntry, error) {
	rows, err := r.queries.ListEntriesByAccount(ctx, generated.ListEntriesByAccountParams{
		AccountID: accountID,
		Sequence:  afterSequence,
		Limit:     int32(limit),
	})
	if err != nil {
		return nil, err
	}

	return rowsToEntries(rows)
}

// SumByAccount returns the signed sum of the account's entries up to uptoSequence.
func (r *EntryRepository) SumByAccount(ctx context.Context, accountID string, uptoSequence int64) (int64, error) {
	return r.queries.SumEntriesByAccount(ctx, generated.SumEntriesByAccountParams{
		AccountID: accountID,
		Sequence:  uptoSequence,
	})
}

func rowsToEntries(rows []generated.LedgerEntry) ([]*domain.LedgerEntry, error) {
	entries := make([]*domain.LedgerEntry, 0, len(rows))
	for _, row := range rows {
		money, err := moneyFromRow(row.AmountMinor, row.Currency)
		if err != nil {
			return nil, fmt.Errorf("entry %s: %w", row.ID, err)
		}

		direction, err := domain.ParseDirection(row.Direction)
		if err != nil {
			return nil, fmt.Errorf("entry %s: %w", row.ID, err)
		}

		entries = append(entries, &domain.LedgerEntry{
			ID:         row.ID,
			TransferID: row.TransferID,
			AccountID:  row.AccountID,
			Sequence:   row.Sequence,
			Direction:  direction,
			Money:      money,
			CreatedAt:  row.CreatedAt.Time,
		})
	}

	return entries, nil
}
