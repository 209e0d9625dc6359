package postgres

import (
	"context"
	"fmt"
	"sort"

	"github.com/iho/ledgercore/internal/domain"
	"github.com/iho/ledgercore/internal/usecase"
)

// SequenceAllocator implements usecase.SequenceAllocator on account_sequences.
type SequenceAllocator struct{}

// NewSequenceAllocator creates a new SequenceAllocator.
func NewSequenceAllocator() *SequenceAllocator {
	return &SequenceAllocator{}
}

// ReserveNext locks every counter row with a single ordered SELECT ... FOR UPDATE,
// so two transactions touching the same pair of accounts take the locks in the
// same order. The locks are held until tx ends.
func (a *SequenceAllocator) ReserveNext(ctx context.Context, tx usecase.Transaction, accountIDs []string) (map[string]int64, error) {
	queries, err := txQueries(tx)
	if err != nil {
		return nil, err
	}

	ids := append([]string(nil), accountIDs...)
	sort.Strings(ids)

	rows, err := queries.LockAccountSequences(ctx, ids)
	if err != nil {
		return nil, err
	}

	reserved := make(map[string]int64, len(rows))
	for _, row := range rows {
		if err := queries.AdvanceAccountSequence(ctx, row.AccountID); err != nil {
			return nil, err
		}

		reserved[row.AccountID] = row.NextSequence
	}

	for _, id := range ids {
		if _, ok := reserved[id]; !ok {
			return nil, fmt.Errorf("%w: no sequence counter for %s", domain.ErrAccountNotFound, id)
		}
	}

	return reserved, nil
}
