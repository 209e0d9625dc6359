package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/ledgercore/internal/domain"
	"github.com/iho/ledgercore/internal/infrastructure/postgres/generated"
	"github.com/iho/ledgercore/internal/usecase"
)

// SnapshotRepository implements usecase.SnapshotRepository on balance_snapshots.
type SnapshotRepository struct {
	queries *generated.Queries
}

// NewSnapshotRepository creates a new SnapshotRepository.
func NewSnapshotRepository(pool *pgxpool.Pool) *SnapshotRepository {
	return newSnapshotRepository(pool)
}

func newSnapshotRepository(db generated.DBTX) *SnapshotRepository {
	return &SnapshotRepository{queries: generated.New(db)}
}

// Read returns the cached balance, or zero when the account has no snapshot yet.
func (r *SnapshotRepository) Read(ctx context.Context, tx usecase.Transaction, accountID string) (int64, error) {
	queries, err := txQueries(tx)
	if err != nil {
		return 0, err
	}

	balance, err := queries.GetSnapshotBalance(ctx, accountID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}

		return 0, err
	}

	return balance, nil
}

// Upsert writes the snapshot unless a newer sequence is already stored.
func (r *SnapshotRepository) Upsert(ctx context.Context, tx usecase.Transaction, snapshot domain.BalanceSnapshot) error {
	queries, err := txQueries(tx)
	if err != nil {
		return err
	}

	return queries.UpsertSnapshot(ctx, generated.UpsertSnapshotParams{
		AccountID:    snapshot.AccountID,
		AsOfSequence: snapshot.AsOfSequence,
		BalanceMinor: snapshot.BalanceMinor,
		UpdatedAt:    timeToPgTimestamptz(snapshot.UpdatedAt),
	})
}

// Get returns the committed snapshot, or nil when there is none.
func (r *SnapshotRepository) Get(ctx context.Context, accountID string) (*domain.BalanceSnapshot, error) {
	row, err := r.queries.GetSnapshot(ctx, accountID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}

		return nil, err
	}

	return rowToSnapshot(row), nil
}

// List returns every committed snapshot ordered by account id.
func (r *SnapshotRepository) List(ctx context.Context) ([]*domain.BalanceSnapshot, error) {
	rows, err := r.queries.ListSnapshots(ctx)
	if err != nil {
		return nil, err
	}

	snapshots := make([]*domain.BalanceSnapshot, 0, len(rows))
	for _, row := range rows {
		snapshots = append(snapshots, rowToSnapshot(row))
	}

	return snapshots, nil
}

func rowToSnapshot(row generated.BalanceSnapshot) *domain.BalanceSnapshot {
	return &domain.BalanceSnapshot{
		AccountID:    row.AccountID,
		AsOfSequence: row.AsOfSequence,
		BalanceMinor: row.BalanceMinor,
		UpdatedAt:    row.UpdatedAt.Time,
	}
}
