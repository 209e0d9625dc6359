package usecase_test

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/iho/ledgercore/internal/adapter/repository/memory"
	"github.com/iho/ledgercore/internal/domain"
	"github.com/iho/ledgercore/internal/infrastructure/metrics"
	"github.com/iho/ledgercore/internal/usecase"
	"github.com/iho/ledgercore/internal/usecase/mocks"
)

type ledgerMocks struct {
	accounts  *mocks.MockAccountRepository
	transfers *mocks.MockTransferRepository
	entries   *mocks.MockEntryRepository
	snapshots *mocks.MockSnapshotRepository
	ledger    *mocks.MockLedgerRepository
	clock     *mocks.MockClock
	metrics   *metrics.Metrics
}

func newLedgerMocks(ctrl *gomock.Controller) *ledgerMocks {
	return &ledgerMocks{
		accounts:  mocks.NewMockAccountRepository(ctrl),
		transfers: mocks.NewMockTransferRepository(ctrl),
		entries:   mocks.NewMockEntryRepository(ctrl),
		snapshots: mocks.NewMockSnapshotRepository(ctrl),
		ledger:    mocks.NewMockLedgerRepository(ctrl),
		clock:     mocks.NewMockClock(ctrl),
		metrics:   metrics.New(prometheus.NewRegistry()),
	}
}

func (m *ledgerMocks) useCase() *usecase.LedgerUseCase {
	return usecase.NewLedgerUseCase(m.accounts, m.transfers, m.entries, m.snapshots, m.ledger, m.clock, m.metrics)
}

func entry(t *testing.T, id, account string, seq int64, dir domain.Direction, minor int64) *domain.LedgerEntry {
	t.Helper()

	e, err := domain.NewLedgerEntry(id, "tr-1", account, seq, dir, usd(t, minor), handlerNow)
	require.NoError(t, err)

	return e
}

func TestLedgerUseCase_VerifyAccountConsistent(t *testing.T) {
	h := newLedgerHarness(t)
	h.open(t, "issuer", true)
	h.open(t, "alice", false)

	for _, id := range []string{"f1", "f2", "f3"} {
		_, err := h.transfer(t, id, "issuer", "alice", 100)
		require.NoError(t, err)
	}

	report, err := h.ledger.VerifyAccount(context.Background(), "alice")
	require.NoError(t, err)

	assert.True(t, report.Consistent, report.Problems)
	assert.Equal(t, 3, report.EntryCount)
	assert.Equal(t, int64(3), report.LastSequence)
	assert.Equal(t, int64(300), report.ComputedBalance)
	assert.Equal(t, int64(300), report.SnapshotBalance)
}

func TestLedgerUseCase_VerifyAccountDetectsProblems(t *testing.T) {
	ctrl := gomock.NewController(t)
	m := newLedgerMocks(ctrl)
	ctx := context.Background()

	m.accounts.EXPECT().GetByID(ctx, nil, "alice").Return(openAccount("alice", false), nil)
	m.entries.EXPECT().ListByAccount(ctx, "alice", int64(0), domain.MaxPageSize).Return([]*domain.LedgerEntry{
		entry(t, "e1", "alice", 1, domain.DirectionCredit, 100),
		entry(t, "e3", "alice", 3, domain.DirectionCredit, 50),
	}, nil)
	m.entries.EXPECT().SumByAccount(ctx, "alice", int64(3)).Return(int64(150), nil)
	m.snapshots.EXPECT().Get(ctx, "alice").Return(&domain.BalanceSnapshot{AccountID: "alice", AsOfSequence: 3, BalanceMinor: 999}, nil)

	report, err := m.useCase().VerifyAccount(ctx, "alice")
	require.NoError(t, err)

	assert.False(t, report.Consistent)
	require.Len(t, report.Problems, 2)
	assert.Contains(t, report.Problems[0], "sequence 3 found where 2 was expected")
	assert.Contains(t, report.Problems[1], "snapshot balance 999")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.metrics.LedgerVerifications.WithLabelValues("account", "inconsistent")))
}

func TestLedgerUseCase_VerifyTransfer(t *testing.T) {
	ctrl := gomock.NewController(t)
	m := newLedgerMocks(ctrl)
	ctx := context.Background()

	transfer, err := domain.NewTransfer("tr-1", "cmd-1", "alice", "bob", usd(t, 100), handlerNow)
	require.NoError(t, err)

	m.transfers.EXPECT().GetByID(ctx, "tr-1").Return(transfer, nil).Times(2)

	gomock.InOrder(
		m.entries.EXPECT().ListByTransfer(ctx, "tr-1").Return([]*domain.LedgerEntry{
			entry(t, "e1", "alice", 1, domain.DirectionDebit, 100),
			entry(t, "e2", "bob", 1, domain.DirectionCredit, 100),
		}, nil),
		m.entries.EXPECT().ListByTransfer(ctx, "tr-1").Return([]*domain.LedgerEntry{
			entry(t, "e1", "alice", 1, domain.DirectionDebit, 100),
		}, nil),
	)

	good, err := m.useCase().VerifyTransfer(ctx, "tr-1")
	require.NoError(t, err)
	assert.True(t, good.Consistent, good.Problems)
	assert.Zero(t, good.SignedSum)

	bad, err := m.useCase().VerifyTransfer(ctx, "tr-1")
	require.NoError(t, err)
	assert.False(t, bad.Consistent)
	assert.Equal(t, int64(-100), bad.SignedSum)
	assert.Len(t, bad.Problems, 3)
}

func TestLedgerUseCase_VerifyAllReportsUnbalancedCurrency(t *testing.T) {
	ctrl := gomock.NewController(t)
	m := newLedgerMocks(ctrl)
	ctx := context.Background()

	m.clock.EXPECT().Now().Return(handlerNow)
	m.accounts.EXPECT().List(ctx, domain.MaxPageSize, 0).Return(nil, nil)
	m.ledger.EXPECT().SignedTotals(ctx).Return(map[string]int64{"USD": 0, "EUR": 25}, nil)

	report, err := m.useCase().VerifyAll(ctx)
	require.NoError(t, err)

	assert.False(t, report.Consistent)
	assert.Equal(t, []string{"EUR entries sum to 25"}, report.Problems)
	assert.Equal(t, handlerNow, report.CheckedAt)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.metrics.LedgerDiscrepancies))
}

func TestLedgerUseCase_TransferLookups(t *testing.T) {
	h := newLedgerHarness(t)
	h.open(t, "issuer", true)
	h.open(t, "alice", false)

	outcome, err := h.transfer(t, "fund-1", "issuer", "alice", 100)
	require.NoError(t, err)

	transfer, err := h.ledger.Transfer(context.Background(), outcome.TransferID)
	require.NoError(t, err)
	assert.Equal(t, "fund-1", transfer.CommandID)
	assert.Equal(t, int64(100), transfer.Money.Amount())

	entries, err := h.ledger.TransferEntries(context.Background(), outcome.TransferID)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	_, err = h.ledger.TransferEntries(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrTransferNotFound)
}

// entryWalkHook runs afterPage once, right after the first page of an
// account's entries has been read.
type entryWalkHook struct {
	usecase.EntryRepository
	afterPage func()
	fired     bool
}

func (h *entryWalkHook) ListByAccount(ctx context.Context, accountID string, afterSequence int64, limit int) ([]*domain.LedgerEntry, error) {
	entries, err := h.EntryRepository.ListByAccount(ctx, accountID, afterSequence, limit)
	if !h.fired {
		h.fired = true
		h.afterPage()
	}
	return entries, err
}

func TestLedgerUseCase_VerifyAccountIgnoresTransferCommittedDuringWalk(t *testing.T) {
	h := newLedgerHarness(t)
	h.open(t, "issuer", true)
	h.open(t, "alice", false)

	_, err := h.transfer(t, "fund-1", "issuer", "alice", 100)
	require.NoError(t, err)

	entries := &entryWalkHook{EntryRepository: h.entries, afterPage: func() {
		_, err := h.transfer(t, "fund-2", "issuer", "alice", 50)
		require.NoError(t, err)
	}}

	verifier := usecase.NewLedgerUseCase(
		memory.NewAccountRepository(h.store), memory.NewTransferRepository(h.store),
		entries, h.snapshots, h.entries, h.clock, h.metrics)

	report, err := verifier.VerifyAccount(context.Background(), "alice")
	require.NoError(t, err)

	assert.True(t, report.Consistent, report.Problems)
	assert.Equal(t, int64(1), report.LastSequence)
	assert.Equal(t, int64(100), report.ComputedBalance)
	assert.Equal(t, 0.0, testutil.ToFloat64(h.metrics.LedgerVerifications.WithLabelValues("account", "inconsistent")))

	after, err := h.ledger.VerifyAccount(context.Background(), "alice")
	require.NoError(t, err)
	assert.True(t, after.Consistent, after.Problems)
	assert.Equal(t, int64(150), after.SnapshotBalance)
}

func TestLedgerUseCase_VerifyAccountDetectsStaleSnapshot(t *testing.T) {
	ctrl := gomock.NewController(t)
	m := newLedgerMocks(ctrl)
	ctx := context.Background()

	stale := &domain.BalanceSnapshot{AccountID: "alice", AsOfSequence: 1, BalanceMinor: 100}

	m.accounts.EXPECT().GetByID(ctx, nil, "alice").Return(openAccount("alice", false), nil)
	m.snapshots.EXPECT().Get(ctx, "alice").Return(stale, nil).Times(2)
	m.entries.EXPECT().ListByAccount(ctx, "alice", int64(0), domain.MaxPageSize).Return([]*domain.LedgerEntry{
		entry(t, "e1", "alice", 1, domain.DirectionCredit, 100),
		entry(t, "e2", "alice", 2, domain.DirectionCredit, 40),
	}, nil)
	m.entries.EXPECT().SumByAccount(ctx, "alice", int64(1)).Return(int64(100), nil)

	report, err := m.useCase().VerifyAccount(ctx, "alice")
	require.NoError(t, err)

	assert.False(t, report.Consistent)
	assert.Equal(t, []string{"entry with sequence 2 is not covered by the snapshot"}, report.Problems)
}
