package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/ledgercore/internal/infrastructure/postgres/generated"
)

// LedgerRepository implements usecase.LedgerRepository.
type LedgerRepository struct {
	queries *generated.Queries
}

// NewLedgerRepository creates a new LedgerRepository.
func NewLedgerRepository(pool *pgxpool.Pool) *LedgerRepository {
	return newLedgerRepository(pool)
}

func newLedgerRepository(db generated.DBTX) *LedgerRepository {
	return &LedgerRepository{queries: generated.New(db)}
}

// SignedTotals sums credits minus debits per currency over every entry.
// A balanced ledger returns zero for each currency.
func (r *LedgerRepository) SignedTotals(ctx context.Context) (map[string]int64, error) {
	rows, err := r.queries.SignedTotalsByCurrency(ctx)
	if err != nil {
		return nil, err
	}

	totals := make(map[string]int64, len(rows))
	for _, row := range rows {
		totals[row.Currency] = row.Total
	}

	return totals, nil
}
