package generated

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const createTransfer = `-- name: CreateTransfer :exec
INSERT INTO transfers (id, command_id, from_account_id, to_account_id, amount_minor, currency, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
`

type CreateTransferParams struct {
	ID            string             `json:"id"`
	CommandID     string             `json:"command_id"`
	FromAccountID string             `json:"from_account_id"`
	ToAccountID   string             `json:"to_account_id"`
	AmountMinor   int64              `json:"amount_minor"`
	Currency      string             `json:"currency"`
	CreatedAt     pgtype.Timestamptz `json:"created_at"`
}

func (q *Queries) CreateTransfer(ctx context.Context, arg CreateTransferParams) error {
	_, err := q.db.Exec(ctx, createTransfer,
		arg.ID,
		arg.CommandID,
		arg.FromAccountID,
		arg.ToAccountID,
		arg.AmountMinor,
		arg.Currency,
		arg.CreatedAt,
	)
	return err
}

const getTransferByID = `-- name: GetTransferByID :one
SELECT id, command_id, from_account_id, to_account_id, amount_minor, currency, created_at FROM transfers WHERE id = $1
`

func (q *Queries) GetTransferByID(ctx context.Context, id string) (Transfer, error) {
	row := q.db.QueryRow(ctx, getTransferByID, id)
	var i Transfer
	err := row.Scan(
		&i.ID,
		&i.CommandID,
		&i.FromAccountID,
		&i.ToAccountID,
		&i.AmountMinor,
		&i.Currency,
		&i.CreatedAt,
	)
	return i, err
}
