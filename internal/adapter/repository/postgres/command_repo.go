package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/ledgercore/internal/domain"
	"github.com/iho/ledgercore/internal/infrastructure/postgres/generated"
	"github.com/iho/ledgercore/internal/usecase"
)

// CommandStore implements usecase.CommandStore on the commands table.
type CommandStore struct {
	queries *generated.Queries
}

// NewCommandStore creates a new CommandStore.
func NewCommandStore(pool *pgxpool.Pool) *CommandStore {
	return newCommandStore(pool)
}

func newCommandStore(db generated.DBTX) *CommandStore {
	return &CommandStore{queries: generated.New(db)}
}

// TryInsertReceived inserts the command with ON CONFLICT DO NOTHING. When another
// transaction holds an uncommitted insert of the same id, Postgres blocks this
// insert until that transaction ends.
func (s *CommandStore) TryInsertReceived(ctx context.Context, tx usecase.Transaction, cmd *domain.Command) (bool, error) {
	queries, err := txQueries(tx)
	if err != nil {
		return false, err
	}

	n, err := queries.InsertCommand(ctx, generated.InsertCommandParams{
		CommandID:     cmd.ID,
		CommandType:   cmd.Type,
		CorrelationID: textToPg(cmd.CorrelationID),
		Status:        string(cmd.Status),
		CreatedAt:     timeToPgTimestamptz(cmd.CreatedAt),
	})
	if err != nil {
		return false, err
	}

	return n == 1, nil
}

// MarkApplied marks the command APPLIED.
func (s *CommandStore) MarkApplied(ctx context.Context, tx usecase.Transaction, commandID string, appliedAt time.Time) error {
	queries, err := txQueries(tx)
	if err != nil {
		return err
	}

	n, err := queries.MarkCommandApplied(ctx, generated.MarkCommandAppliedParams{
		CommandID: commandID,
		AppliedAt: timeToPgTimestamptz(appliedAt),
	})
	if err != nil {
		return err
	}

	if n == 0 {
		return fmt.Errorf("%w: %s", domain.ErrCommandNotFound, commandID)
	}

	return nil
}

// FindTransferIDByCommand returns the transfer created for commandID.
func (s *CommandStore) FindTransferIDByCommand(ctx context.Context, tx usecase.Transaction, commandID string) (string, bool, error) {
	queries, err := txQueries(tx)
	if err != nil {
		return "", false, err
	}

	id, err := queries.GetTransferIDByCommand(ctx, commandID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}

		return "", false, err
	}

	return id, true, nil
}

// GetByID returns a committed command.
func (s *CommandStore) GetByID(ctx context.Context, commandID string) (*domain.Command, error) {
	row, err := s.queries.GetCommandByID(ctx, commandID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", domain.ErrCommandNotFound, commandID)
		}

		return nil, err
	}

	return &domain.Command{
		ID:            row.CommandID,
		Type:          row.CommandType,
		CorrelationID: row.CorrelationID.String,
		Status:        domain.CommandStatus(row.Status),
		CreatedAt:     row.CreatedAt.Time,
		AppliedAt:     pgTimestamptzToTimePtr(row.AppliedAt),
	}, nil
}
