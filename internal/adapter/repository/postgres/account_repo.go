package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/ledgercore/internal/domain"
	"github.com/iho/ledgercore/internal/infrastructure/postgres/generated"
	"github.com/iho/ledgercore/internal/usecase"
)

// AccountRepository implements usecase.AccountRepository.
type AccountRepository struct {
	queries *generated.Queries
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(pool *pgxpool.Pool) *AccountRepository {
	return newAccountRepository(pool)
}

func newAccountRepository(db generated.DBTX) *AccountRepository {
	return &AccountRepository{queries: generated.New(db)}
}

// Create inserts the account and its sequence counter.
func (r *AccountRepository) Create(ctx context.Context, tx usecase.Transaction, account *domain.Account) error {
	queries, err := txQueries(tx)
	if err != nil {
		return err
	}

	err = queries.CreateAccount(ctx, generated.CreateAccountParams{
		ID:            account.ID,
		Currency:      account.Currency.Code(),
		Status:        string(account.Status),
		AllowNegative: account.AllowNegative,
		CreatedAt:     timeToPgTimestamptz(account.CreatedAt),
	})
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", domain.ErrAccountExists, account.ID)
		}

		return err
	}

	return queries.CreateAccountSequence(ctx, account.ID)
}

// GetByID retrieves an account by ID. A nil tx reads through the pool.
func (r *AccountRepository) GetByID(ctx context.Context, tx usecase.Transaction, id string) (*domain.Account, error) {
	queries := r.queries
	if tx != nil {
		var err error
		if queries, err = txQueries(tx); err != nil {
			return nil, err
		}
	}

	row, err := queries.GetAccountByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", domain.ErrAccountNotFound, id)
		}

		return nil, err
	}

	return rowToAccount(row)
}

// UpdateStatus sets the account's lifecycle status.
func (r *AccountRepository) UpdateStatus(ctx context.Context, tx usecase.Transaction, id string, status domain.AccountStatus) error {
	queries, err := txQueries(tx)
	if err != nil {
		return err
	}

	n, err := queries.UpdateAccountStatus(ctx, generated.UpdateAccountStatusParams{
		ID:     id,
		Status: string(status),
	})
	if err != nil {
		return err
	}

	if n == 0 {
		return fmt.Errorf("%w: %s", domain.ErrAccountNotFound, id)
	}

	return nil
}

// List lists accounts with pagination.
func (r *AccountRepository) List(ctx context.Context, limit, offset int) ([]*domain.Account, error) {
	rows, err := r.queries.ListAccounts(ctx, generated.ListAccountsParams{
		Limit:  int32(limit),
		Offset: int32(offset),
	})
	if err != nil {
		return nil, err
	}

	accounts := make([]*domain.Account, 0, len(rows))
	for _, row := range rows {
		account, err := rowToAccount(row)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}

	return accounts, nil
}

func rowToAccount(row generated.Account) (*domain.Account, error) {
	currency, err := domain.NewCurrency(row.Currency)
	if err != nil {
		return nil, fmt.Errorf("account %s: %w", row.ID, err)
	}

	status, err := domain.ParseAccountStatus(row.Status)
	if err != nil {
		return nil, fmt.Errorf("account %s: %w", row.ID, err)
	}

	return &domain.Account{
		ID:            row.ID,
		Currency:      currency,
		Status:        status,
		AllowNegative: row.AllowNegative,
		CreatedAt:     row.CreatedAt.Time,
	}, nil
}

// Type conversion helpers.
func timeToPgTimestamptz(t time.Time) pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: t, Valid: true}
}

func pgTimestamptzToTimePtr(ts pgtype.Timestamptz) *time.Time {
	if !ts.Valid {
		return nil
	}

	t := ts.Time

	return &t
}

func textToPg(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}

func moneyFromRow(amountMinor int64, currencyCode string) (domain.Money, error) {
	currency, err := domain.NewCurrency(currencyCode)
	if err != nil {
		return domain.Money{}, err
	}

	return domain.NewMoney(amountMinor, currency)
}
