package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pashagolub/pgxmock/v4"

	"github.com/iho/ledgercore/internal/domain"
	"github.com/iho/ledgercore/internal/usecase"
)

var repoNow = time.Date(2024, 5, 10, 8, 30, 0, 0, time.UTC)

func beginMockTx(t *testing.T, pool pgxmock.PgxPoolIface) usecase.Transaction {
	t.Helper()

	pool.ExpectBegin()

	tx, err := newTxManagerWithPool(pool).Begin(context.Background())
	if err != nil {
		t.Fatalf("begin: %v", err)
	}

	return tx
}

func TestCommandStoreTryInsertReceived(t *testing.T) {
	tests := []struct {
		name         string
		rowsAffected int64
		want         bool
	}{
		{name: "new command", rowsAffected: 1, want: true},
		{name: "existing command", rowsAffected: 0, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pool := newMockPool(t)
			tx := beginMockTx(t, pool)

			pool.ExpectExec(regexp.QuoteMeta("INSERT INTO commands")).
				WithArgs("cmd-1", domain.CommandTypeTransfer, pgtype.Text{String: "corr-1", Valid: true}, "RECEIVED", pgxmock.AnyArg()).
				WillReturnResult(pgxmock.NewResult("INSERT", tt.rowsAffected))

			got, err := newCommandStore(pool).TryInsertReceived(context.Background(), tx, &domain.Command{
				ID:            "cmd-1",
				Type:          domain.CommandTypeTransfer,
				CorrelationID: "corr-1",
				Status:        domain.CommandStatusReceived,
				CreatedAt:     repoNow,
			})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("expected inserted=%v, got %v", tt.want, got)
			}

			assertExpectations(t, pool)
		})
	}
}

func TestCommandStoreFindTransferIDByCommand(t *testing.T) {
	pool := newMockPool(t)
	tx := beginMockTx(t, pool)
	store := newCommandStore(pool)

	pool.ExpectQuery(regexp.QuoteMeta("SELECT id FROM transfers WHERE command_id = $1")).
		WithArgs("cmd-1").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("tr-1"))
	pool.ExpectQuery(regexp.QuoteMeta("SELECT id FROM transfers WHERE command_id = $1")).
		WithArgs("cmd-2").
		WillReturnRows(pgxmock.NewRows([]string{"id"}))

	id, found, err := store.FindTransferIDByCommand(context.Background(), tx, "cmd-1")
	if err != nil || !found || id != "tr-1" {
		t.Fatalf("expected tr-1, got id=%q found=%v err=%v", id, found, err)
	}

	id, found, err = store.FindTransferIDByCommand(context.Background(), tx, "cmd-2")
	if err != nil || found || id != "" {
		t.Fatalf("expected no transfer, got id=%q found=%v err=%v", id, found, err)
	}

	assertExpectations(t, pool)
}

func TestCommandStoreMarkAppliedMissing(t *testing.T) {
	pool := newMockPool(t)
	tx := beginMockTx(t, pool)

	pool.ExpectExec(regexp.QuoteMeta("UPDATE commands SET status = 'APPLIED'")).
		WithArgs("cmd-1", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := newCommandStore(pool).MarkApplied(context.Background(), tx, "cmd-1", repoNow)
	if !errors.Is(err, domain.ErrCommandNotFound) {
		t.Fatalf("expected ErrCommandNotFound, got %v", err)
	}
}

func TestSequenceAllocatorReserveNext(t *testing.T) {
	pool := newMockPool(t)
	tx := beginMockTx(t, pool)

	pool.ExpectQuery(regexp.QuoteMeta("SELECT account_id, next_sequence FROM account_sequences")).
		WithArgs([]string{"acc-a", "acc-b"}).
		WillReturnRows(pgxmock.NewRows([]string{"account_id", "next_sequence"}).
			AddRow("acc-a", int64(3)).
			AddRow("acc-b", int64(8)))
	pool.ExpectExec(regexp.QuoteMeta("UPDATE account_sequences SET next_sequence = next_sequence + 1")).
		WithArgs("acc-a").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	pool.ExpectExec(regexp.QuoteMeta("UPDATE account_sequences SET next_sequence = next_sequence + 1")).
		WithArgs("acc-b").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	got, err := NewSequenceAllocator().ReserveNext(context.Background(), tx, []string{"acc-b", "acc-a"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got["acc-a"] != 3 || got["acc-b"] != 8 {
		t.Fatalf("unexpected reservation: %v", got)
	}

	assertExpectations(t, pool)
}

func TestSequenceAllocatorUnknownAccount(t *testing.T) {
	pool := newMockPool(t)
	tx := beginMockTx(t, pool)

	pool.ExpectQuery(regexp.QuoteMeta("SELECT account_id, next_sequence FROM account_sequences")).
		WithArgs([]string{"acc-a", "ghost"}).
		WillReturnRows(pgxmock.NewRows([]string{"account_id", "next_sequence"}).AddRow("acc-a", int64(1)))
	pool.ExpectExec(regexp.QuoteMeta("UPDATE account_sequences")).
		WithArgs("acc-a").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	_, err := NewSequenceAllocator().ReserveNext(context.Background(), tx, []string{"acc-a", "ghost"})
	if !errors.Is(err, domain.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestAccountRepositoryCreate(t *testing.T) {
	pool := newMockPool(t)
	tx := beginMockTx(t, pool)
	repo := newAccountRepository(pool)

	pool.ExpectExec(regexp.QuoteMeta("INSERT INTO accounts")).
		WithArgs("acc-1", "USD", "OPEN", true, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	pool.ExpectExec(regexp.QuoteMeta("INSERT INTO account_sequences")).
		WithArgs("acc-1").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := repo.Create(context.Background(), tx, &domain.Account{
		ID:            "acc-1",
		Currency:      domain.MustCurrency("USD"),
		Status:        domain.AccountStatusOpen,
		AllowNegative: true,
		CreatedAt:     repoNow,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	assertExpectations(t, pool)
}

func TestAccountRepositoryCreateDuplicate(t *testing.T) {
	pool := newMockPool(t)
	tx := beginMockTx(t, pool)

	pool.ExpectExec(regexp.QuoteMeta("INSERT INTO accounts")).
		WillReturnError(&pgconn.PgError{Code: pgErrUniqueViolation})

	err := newAccountRepository(pool).Create(context.Background(), tx, &domain.Account{
		ID:       "acc-1",
		Currency: domain.MustCurrency("USD"),
		Status:   domain.AccountStatusOpen,
	})
	if !errors.Is(err, domain.ErrAccountExists) {
		t.Fatalf("expected ErrAccountExists, got %v", err)
	}
}

func TestAccountRepositoryGetByIDOutsideTx(t *testing.T) {
	pool := newMockPool(t)
	repo := newAccountRepository(pool)
	columns := []string{"id", "currency", "status", "allow_negative", "created_at"}

	pool.ExpectQuery(regexp.QuoteMeta("FROM accounts WHERE id = $1")).
		WithArgs("acc-1").
		WillReturnRows(pgxmock.NewRows(columns).
			AddRow("acc-1", "EUR", "FROZEN", false, timeToPgTimestamptz(repoNow)))
	pool.ExpectQuery(regexp.QuoteMeta("FROM accounts WHERE id = $1")).
		WithArgs("ghost").
		WillReturnRows(pgxmock.NewRows(columns))

	account, err := repo.GetByID(context.Background(), nil, "acc-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if account.Currency.Code() != "EUR" || account.Status != domain.AccountStatusFrozen || !account.CreatedAt.Equal(repoNow) {
		t.Fatalf("unexpected account: %+v", account)
	}

	if _, err := repo.GetByID(context.Background(), nil, "ghost"); !errors.Is(err, domain.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}

	assertExpectations(t, pool)
}

func TestSnapshotRepositoryReadDefaultsToZero(t *testing.T) {
	pool := newMockPool(t)
	tx := beginMockTx(t, pool)
	repo := newSnapshotRepository(pool)

	pool.ExpectQuery(regexp.QuoteMeta("SELECT balance_minor FROM balance_snapshots")).
		WithArgs("acc-1").
		WillReturnRows(pgxmock.NewRows([]string{"balance_minor"}))

	balance, err := repo.Read(context.Background(), tx, "acc-1")
	if err != nil || balance != 0 {
		t.Fatalf("expected zero balance, got %d err=%v", balance, err)
	}

	pool.ExpectExec(regexp.QuoteMeta("WHERE balance_snapshots.as_of_sequence < EXCLUDED.as_of_sequence")).
		WithArgs("acc-1", int64(1), int64(500), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = repo.Upsert(context.Background(), tx, domain.BalanceSnapshot{AccountID: "acc-1", AsOfSequence: 1, BalanceMinor: 500, UpdatedAt: repoNow})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	assertExpectations(t, pool)
}

func TestEntryRepositoryListByAccount(t *testing.T) {
	pool := newMockPool(t)
	repo := newEntryRepository(pool)

	pool.ExpectQuery(regexp.QuoteMeta("WHERE account_id = $1 AND sequence > $2")).
		WithArgs("acc-1", int64(4), int32(2)).
		WillReturnRows(pgxmock.NewRows([]string{"id", "transfer_id", "account_id", "sequence", "direction", "amount_minor", "currency", "created_at"}).
			AddRow("en-5", "tr-5", "acc-1", int64(5), "DEBIT", int64(120), "USD", timeToPgTimestamptz(repoNow)).
			AddRow("en-6", "tr-6", "acc-1", int64(6), "CREDIT", int64(80), "USD", timeToPgTimestamptz(repoNow)))

	entries, err := repo.ListByAccount(context.Background(), "acc-1", 4, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}

	if entries[0].SignedAmount() != -120 || entries[1].SignedAmount() != 80 {
		t.Fatalf("unexpected signed amounts %d, %d", entries[0].SignedAmount(), entries[1].SignedAmount())
	}

	assertExpectations(t, pool)
}

func TestLedgerRepositorySignedTotals(t *testing.T) {
	pool := newMockPool(t)

	pool.ExpectQuery(regexp.QuoteMeta("GROUP BY currency")).
		WillReturnRows(pgxmock.NewRows([]string{"currency", "total"}).
			AddRow("EUR", int64(0)).
			AddRow("USD", int64(0)))

	totals, err := newLedgerRepository(pool).SignedTotals(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(totals) != 2 || totals["EUR"] != 0 || totals["USD"] != 0 {
		t.Fatalf("unexpected totals: %v", totals)
	}
}

func TestOutboxRepositoryClaimAndMark(t *testing.T) {
	pool := newMockPool(t)
	tx := beginMockTx(t, pool)
	repo := NewOutboxRepository()
	payload := json.RawMessage(`{"transferId":"tr-1"}`)

	pool.ExpectQuery(regexp.QuoteMeta("FOR UPDATE SKIP LOCKED")).
		WithArgs(pgxmock.AnyArg(), int32(10)).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "aggregate_type", "aggregate_id", "event_type", "command_id", "correlation_id", "payload",
			"status", "attempts", "last_error", "available_at", "created_at", "delivered_at",
		}).AddRow(
			"evt-1", "Transfer", "tr-1", "TransferCompleted", "cmd-1", pgtype.Text{}, []byte(payload),
			"PENDING", int32(2), pgtype.Text{String: "timeout", Valid: true},
			timeToPgTimestamptz(repoNow), timeToPgTimestamptz(repoNow), pgtype.Timestamptz{},
		))

	events, err := repo.ClaimPending(context.Background(), tx, repoNow, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(events) != 1 || events[0].Attempts != 2 || events[0].LastError != "timeout" || events[0].DeliveredAt != nil {
		t.Fatalf("unexpected events: %+v", events)
	}

	if string(events[0].Payload) != string(payload) {
		t.Fatalf("unexpected payload %s", events[0].Payload)
	}

	pool.ExpectExec(regexp.QuoteMeta("SET status = 'DELIVERED'")).
		WithArgs("evt-1", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	pool.ExpectExec(regexp.QuoteMeta("SET attempts = attempts + 1")).
		WithArgs("evt-2", pgtype.Text{String: "boom", Valid: true}, pgxmock.AnyArg(), int32(5)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	if err := repo.MarkDelivered(context.Background(), tx, "evt-1", repoNow); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := repo.MarkFailed(context.Background(), tx, "evt-2", "boom", repoNow.Add(time.Second), 5); err == nil {
		t.Fatalf("expected error for unknown event")
	}

	assertExpectations(t, pool)
}

func TestForeignTransactionRejected(t *testing.T) {
	_, err := NewSnapshotRepository(nil).Read(context.Background(), foreignTx{}, "acc-1")
	if !errors.Is(err, ErrForeignTx) {
		t.Fatalf("expected ErrForeignTx, got %v", err)
	}
}

type foreignTx struct{}

func (foreignTx) Commit(context.Context) error   { return nil }
func (foreignTx) Rollback(context.Context) error { return nil }
