package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/ledgercore/internal/domain"
	"github.com/iho/ledgercore/internal/infrastructure/postgres/generated"
	"github.com/iho/ledgercore/internal/usecase"
)

// TransferRepository implements usecase.TransferRepository.
type TransferRepository struct {
	queries *generated.Queries
}

// NewTransferRepository creates a new TransferRepository.
func NewTransferRepository(pool *pgxpool.Pool) *TransferRepository {
	return newTransferRepository(pool)
}

func newTransferRepository(db generated.DBTX) *TransferRepository {
	return &TransferRepository{queries: generated.New(db)}
}

// Create creates a new transfer within a transaction.
func (r *TransferRepository) Create(ctx context.Context, tx usecase.Transaction, transfer *domain.Transfer) error {
	queries, err := txQueries(tx)
	if err != nil {
		return err
	}

	return queries.CreateTransfer(ctx, generated.CreateTransferParams{
		ID:            transfer.ID,
		CommandID:     transfer.CommandID,
		FromAccountID: transfer.FromAccountID,
		ToAccountID:   transfer.ToAccountID,
		AmountMinor:   transfer.Money.Amount(),
		Currency:      transfer.Money.Currency().Code(),
		CreatedAt:     timeToPgTimestamptz(transfer.CreatedAt),
	})
}

// GetByID retrieves a transfer by ID.
func (r *TransferRepository) GetByID(ctx context.Context, id string) (*domain.Transfer, error) {
	row, err := r.queries.GetTransferByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", domain.ErrTransferNotFound, id)
		}

		return nil, err
	}

	money, err := moneyFromRow(row.AmountMinor, row.Currency)
	if err != nil {
		return nil, fmt.Errorf("transfer %s: %w", row.ID, err)
	}

	return &domain.Transfer{
		ID:            row.ID,
		CommandID:     row.CommandID,
		FromAccountID: row.FromAccountID,
		ToAccountID:   row.ToAccountID,
		Money:         money,
		CreatedAt:     row.CreatedAt.Time,
	}, nil
}
