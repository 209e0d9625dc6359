package usecase

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/iho/ledgercore/internal/domain"
	"github.com/iho/ledgercore/internal/infrastructure/metrics"
)

// LedgerUseCase verifies ledger invariants by recomputing them from entries.
type LedgerUseCase struct {
	accountRepo  AccountRepository
	transferRepo TransferRepository
	entryRepo    EntryRepository
	snapshots    SnapshotRepository
	ledgerRepo   LedgerRepository
	clock        Clock
	metrics      *metrics.Metrics
}

// NewLedgerUseCase creates a new LedgerUseCase.
func NewLedgerUseCase(
	accountRepo AccountRepository,
	transferRepo TransferRepository,
	entryRepo EntryRepository,
	snapshots SnapshotRepository,
	ledgerRepo LedgerRepository,
	clock Clock,
	m *metrics.Metrics,
) *LedgerUseCase {
	return &LedgerUseCase{
		accountRepo:  accountRepo,
		transferRepo: transferRepo,
		entryRepo:    entryRepo,
		snapshots:    snapshots,
		ledgerRepo:   ledgerRepo,
		clock:        clock,
		metrics:      m,
	}
}

// AccountReport is the result of verifying one account.
type AccountReport struct {
	AccountID        string
	Problems         []string
	EntryCount       int
	LastSequence     int64
	ComputedBalance  int64
	SnapshotBalance  int64
	SnapshotSequence int64
	Consistent       bool
}

// TransferReport is the result of verifying one transfer.
type TransferReport struct {
	TransferID string
	Problems   []string
	EntryCount int
	SignedSum  int64
	Consistent bool
}

// LedgerReport is the result of verifying the whole ledger.
type LedgerReport struct {
	CheckedAt      time.Time
	CurrencyTotals map[string]int64
	Discrepancies  []*AccountReport
	Problems       []string
	Accounts       int
	Consistent     bool
}

// VerifyAccount checks that the account's sequence numbers run 1..n without
// gaps and that the snapshot matches the balance recomputed from entries.
//
// The snapshot is read first and bounds the walk: a transfer commits its
// entries and the snapshot together, so entries past the bound belong to
// transfers that committed while the walk ran.
func (uc *LedgerUseCase) VerifyAccount(ctx context.Context, accountID string) (*AccountReport, error) {
	if _, err := uc.accountRepo.GetByID(ctx, nil, accountID); err != nil {
		return nil, err
	}

	snapshot, err := uc.snapshots.Get(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("get snapshot of %s: %w", accountID, err)
	}

	report := &AccountReport{AccountID: accountID}
	if snapshot != nil {
		report.SnapshotBalance = snapshot.BalanceMinor
		report.SnapshotSequence = snapshot.AsOfSequence
	}

	var after, beyond int64
walk:
	for {
		entries, err := uc.entryRepo.ListByAccount(ctx, accountID, after, domain.MaxPageSize)
		if err != nil {
			return nil, fmt.Errorf("list entries of %s: %w", accountID, err)
		}

		for _, entry := range entries {
			if entry.Sequence > report.SnapshotSequence {
				beyond = entry.Sequence
				break walk
			}

			expected := report.LastSequence + 1
			if entry.Sequence != expected {
				report.Problems = append(report.Problems,
					fmt.Sprintf("sequence %d found where %d was expected", entry.Sequence, expected))
			}

			report.LastSequence = entry.Sequence
			report.ComputedBalance += entry.SignedAmount()
			report.EntryCount++
		}

		if len(entries) < domain.MaxPageSize {
			break
		}

		after = entries[len(entries)-1].Sequence
	}

	if beyond > 0 {
		// A snapshot that still trails an entry it must have been written with is stale.
		current, err := uc.snapshots.Get(ctx, accountID)
		if err != nil {
			return nil, fmt.Errorf("get snapshot of %s: %w", accountID, err)
		}
		if current == nil || current.AsOfSequence < beyond {
			report.Problems = append(report.Problems,
				fmt.Sprintf("entry with sequence %d is not covered by the snapshot", beyond))
		}
	}

	stored, err := uc.entryRepo.SumByAccount(ctx, accountID, report.LastSequence)
	if err != nil {
		return nil, fmt.Errorf("sum entries of %s: %w", accountID, err)
	}

	if stored != report.ComputedBalance {
		report.Problems = append(report.Problems,
			fmt.Sprintf("stored sum %d differs from entry walk %d", stored, report.ComputedBalance))
	}

	if report.SnapshotSequence != report.LastSequence {
		report.Problems = append(report.Problems,
			fmt.Sprintf("snapshot reflects sequence %d, last entry is %d", report.SnapshotSequence, report.LastSequence))
	}

	if report.SnapshotBalance != report.ComputedBalance {
		report.Problems = append(report.Problems,
			fmt.Sprintf("snapshot balance %d differs from computed balance %d", report.SnapshotBalance, report.ComputedBalance))
	}

	report.Consistent = len(report.Problems) == 0
	uc.count("account", report.Consistent)

	return report, nil
}

// Transfer retrieves a transfer by ID.
func (uc *LedgerUseCase) Transfer(ctx context.Context, transferID string) (*domain.Transfer, error) {
	return uc.transferRepo.GetByID(ctx, transferID)
}

// TransferEntries returns the entries posted by a transfer.
func (uc *LedgerUseCase) TransferEntries(ctx context.Context, transferID string) ([]*domain.LedgerEntry, error) {
	if _, err := uc.transferRepo.GetByID(ctx, transferID); err != nil {
		return nil, err
	}

	return uc.entryRepo.ListByTransfer(ctx, transferID)
}

// VerifyTransfer checks that a transfer has exactly one debit and one credit
// entry whose signed amounts cancel out.
func (uc *LedgerUseCase) VerifyTransfer(ctx context.Context, transferID string) (*TransferReport, error) {
	transfer, err := uc.transferRepo.GetByID(ctx, transferID)
	if err != nil {
		return nil, err
	}

	entries, err := uc.entryRepo.ListByTransfer(ctx, transferID)
	if err != nil {
		return nil, fmt.Errorf("list entries of transfer %s: %w", transferID, err)
	}

	report := &TransferReport{TransferID: transferID, EntryCount: len(entries)}

	if len(entries) != 2 {
		report.Problems = append(report.Problems, fmt.Sprintf("expected 2 entries, found %d", len(entries)))
	}

	var debits, credits int
	for _, entry := range entries {
		report.SignedSum += entry.SignedAmount()

		switch entry.Direction {
		case domain.DirectionDebit:
			debits++
			if entry.AccountID != transfer.FromAccountID {
				report.Problems = append(report.Problems, fmt.Sprintf("debit posted to %s, not the source account", entry.AccountID))
			}
		case domain.DirectionCredit:
			credits++
			if entry.AccountID != transfer.ToAccountID {
				report.Problems = append(report.Problems, fmt.Sprintf("credit posted to %s, not the destination account", entry.AccountID))
			}
		}

		if entry.Money != transfer.Money {
			report.Problems = append(report.Problems, fmt.Sprintf("entry %s amount %s differs from transfer amount %s", entry.ID, entry.Money, transfer.Money))
		}
	}

	if debits != 1 || credits != 1 {
		report.Problems = append(report.Problems, fmt.Sprintf("expected one debit and one credit, found %d and %d", debits, credits))
	}

	if report.SignedSum != 0 {
		report.Problems = append(report.Problems, fmt.Sprintf("signed amounts sum to %d", report.SignedSum))
	}

	report.Consistent = len(report.Problems) == 0
	uc.count("transfer", report.Consistent)

	return report, nil
}

// VerifyAll verifies every account and the ledger-wide signed totals.
func (uc *LedgerUseCase) VerifyAll(ctx context.Context) (*LedgerReport, error) {
	report := &LedgerReport{CheckedAt: uc.clock.Now().UTC()}

	for offset := 0; ; offset += domain.MaxPageSize {
		accounts, err := uc.accountRepo.List(ctx, domain.MaxPageSize, offset)
		if err != nil {
			return nil, fmt.Errorf("list accounts: %w", err)
		}

		for _, account := range accounts {
			accountReport, err := uc.VerifyAccount(ctx, account.ID)
			if err != nil {
				return nil, fmt.Errorf("verify account %s: %w", account.ID, err)
			}

			report.Accounts++
			if !accountReport.Consistent {
				report.Discrepancies = append(report.Discrepancies, accountReport)
			}
		}

		if len(accounts) < domain.MaxPageSize {
			break
		}
	}

	totals, err := uc.ledgerRepo.SignedTotals(ctx)
	if err != nil {
		return nil, fmt.Errorf("ledger totals: %w", err)
	}

	report.CurrencyTotals = totals

	currencies := make([]string, 0, len(totals))
	for code := range totals {
		currencies = append(currencies, code)
	}
	sort.Strings(currencies)

	for _, code := range currencies {
		if totals[code] != 0 {
			report.Problems = append(report.Problems, fmt.Sprintf("%s entries sum to %d", code, totals[code]))
		}
	}

	report.Consistent = len(report.Discrepancies) == 0 && len(report.Problems) == 0

	uc.count("ledger", report.Consistent)
	if uc.metrics != nil {
		uc.metrics.LedgerDiscrepancies.Set(float64(len(report.Discrepancies) + len(report.Problems)))
	}

	return report, nil
}

func (uc *LedgerUseCase) count(scope string, consistent bool) {
	if uc.metrics == nil {
		return
	}

	result := "consistent"
	if !consistent {
		result = "inconsistent"
	}

	uc.metrics.LedgerVerifications.WithLabelValues(scope, result).Inc()
}
