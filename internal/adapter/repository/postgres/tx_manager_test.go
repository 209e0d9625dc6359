package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"

	"github.com/iho/ledgercore/internal/usecase"
)

func TestTxLifecycle(t *testing.T) {
	tests := []struct {
		name   string
		expect func(pool pgxmock.PgxPoolIface)
		finish func(ctx context.Context, tx usecase.Transaction) error
	}{
		{
			name: "commit then deferred rollback",
			expect: func(pool pgxmock.PgxPoolIface) {
				pool.ExpectBegin()
				pool.ExpectCommit()
				pool.ExpectRollback().WillReturnError(pgx.ErrTxClosed)
			},
			finish: func(ctx context.Context, tx usecase.Transaction) error {
				if err := tx.Commit(ctx); err != nil {
					return err
				}
				return tx.Rollback(ctx)
			},
		},
		{
			name: "rollback on failure path",
			expect: func(pool pgxmock.PgxPoolIface) {
				pool.ExpectBegin()
				pool.ExpectRollback()
			},
			finish: func(ctx context.Context, tx usecase.Transaction) error {
				return tx.Rollback(ctx)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pool := newMockPool(t)
			tt.expect(pool)

			ctx := context.Background()
			tx, err := newTxManagerWithPool(pool).Begin(ctx)
			if err != nil {
				t.Fatalf("begin: %v", err)
			}

			if err := tt.finish(ctx, tx); err != nil {
				t.Fatalf("finishing the transaction must not fail, got %v", err)
			}

			assertExpectations(t, pool)
		})
	}
}

func TestTxManagerBeginError(t *testing.T) {
	pool := newMockPool(t)
	connErr := errors.New("connection refused")
	pool.ExpectBegin().WillReturnError(connErr)

	tx, err := newTxManagerWithPool(pool).Begin(context.Background())
	if !errors.Is(err, connErr) || tx != nil {
		t.Fatalf("expected begin error and no tx, got err=%v tx=%v", err, tx)
	}
}

type otherBackendTx struct{}

func (otherBackendTx) Commit(context.Context) error   { return nil }
func (otherBackendTx) Rollback(context.Context) error { return nil }

func TestTxQueriesRejectsForeignTransactions(t *testing.T) {
	for _, tx := range []usecase.Transaction{nil, otherBackendTx{}, (*Tx)(nil)} {
		if _, err := txQueries(tx); !errors.Is(err, ErrForeignTx) {
			t.Fatalf("expected ErrForeignTx for %T, got %v", tx, err)
		}
	}
}

func newMockPool(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	pool, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgxmock pool: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

func assertExpectations(t *testing.T, pool pgxmock.PgxPoolIface) {
	t.Helper()
	if err := pool.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations were not met: %v", err)
	}
}
