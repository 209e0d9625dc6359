package usecase

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/iho/ledgercore/internal/domain"
	"github.com/iho/ledgercore/internal/infrastructure/metrics"
)

// AccountUseCase handles account management. The transfer handler only reads
// accounts; opening, freezing and closing them happens here.
type AccountUseCase struct {
	txManager   TransactionManager
	accountRepo AccountRepository
	entryRepo   EntryRepository
	snapshots   SnapshotRepository
	idGen       IDGenerator
	clock       Clock
	metrics     *metrics.Metrics
}

// NewAccountUseCase creates a new AccountUseCase.
func NewAccountUseCase(
	txManager TransactionManager,
	accountRepo AccountRepository,
	entryRepo EntryRepository,
	snapshots SnapshotRepository,
	idGen IDGenerator,
	clock Clock,
	m *metrics.Metrics,
) *AccountUseCase {
	return &AccountUseCase{
		txManager:   txManager,
		accountRepo: accountRepo,
		entryRepo:   entryRepo,
		snapshots:   snapshots,
		idGen:       idGen,
		clock:       clock,
		metrics:     m,
	}
}

// OpenAccountInput represents input for opening an account.
type OpenAccountInput struct {
	ID            string // optional, generated when empty
	Currency      string
	AllowNegative bool
}

// BalanceView is an account balance as of a sequence number.
type BalanceView struct {
	AccountID    string
	Currency     domain.Currency
	Balance      decimal.Decimal
	BalanceMinor int64
	AsOfSequence int64
}

// Open creates an OPEN account together with its sequence counter.
func (uc *AccountUseCase) Open(ctx context.Context, input OpenAccountInput) (*domain.Account, error) {
	currency, err := domain.NewCurrency(input.Currency)
	if err != nil {
		return nil, err
	}

	id := input.ID
	if id == "" {
		id = uc.idGen.Generate()
	}

	if err := domain.ValidateAccountID(id); err != nil {
		return nil, err
	}

	account := &domain.Account{
		ID:            id,
		Currency:      currency,
		Status:        domain.AccountStatusOpen,
		AllowNegative: input.AllowNegative,
		CreatedAt:     uc.clock.Now().UTC(),
	}

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if err := uc.accountRepo.Create(ctx, tx, account); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	if uc.metrics != nil {
		uc.metrics.AccountsOpened.Inc()
	}

	return account, nil
}

// Get retrieves an account by ID.
func (uc *AccountUseCase) Get(ctx context.Context, id string) (*domain.Account, error) {
	return uc.accountRepo.GetByID(ctx, nil, id)
}

// List lists accounts with pagination.
func (uc *AccountUseCase) List(ctx context.Context, limit, offset int) ([]*domain.Account, error) {
	limit, offset = domain.ValidatePagination(limit, offset)
	return uc.accountRepo.List(ctx, limit, offset)
}

// SetStatus freezes, closes or reopens an account.
func (uc *AccountUseCase) SetStatus(ctx context.Context, id string, status domain.AccountStatus) (*domain.Account, error) {
	if _, err := domain.ParseAccountStatus(string(status)); err != nil {
		return nil, err
	}

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	account, err := uc.accountRepo.GetByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if err := uc.accountRepo.UpdateStatus(ctx, tx, id, status); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	account.Status = status

	return account, nil
}

// Balance returns the cached balance of an account.
func (uc *AccountUseCase) Balance(ctx context.Context, id string) (*BalanceView, error) {
	account, err := uc.accountRepo.GetByID(ctx, nil, id)
	if err != nil {
		return nil, err
	}

	view := &BalanceView{AccountID: account.ID, Currency: account.Currency}

	snapshot, err := uc.snapshots.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if snapshot != nil {
		view.BalanceMinor = snapshot.BalanceMinor
		view.AsOfSequence = snapshot.AsOfSequence
	}

	view.Balance = decimal.New(view.BalanceMinor, -account.Currency.Exponent())

	return view, nil
}

// Entries lists an account's ledger entries after the given sequence number.
func (uc *AccountUseCase) Entries(ctx context.Context, id string, afterSequence int64, limit int) ([]*domain.LedgerEntry, error) {
	if _, err := uc.accountRepo.GetByID(ctx, nil, id); err != nil {
		return nil, err
	}

	if afterSequence < 0 {
		afterSequence = 0
	}

	limit, _ = domain.ValidatePagination(limit, 0)

	return uc.entryRepo.ListByAccount(ctx, id, afterSequence, limit)
}
