package generated

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const createAccount = `-- name: CreateAccount :exec
INSERT INTO accounts (id, currency, status, allow_negative, created_at)
VALUES ($1, $2, $3, $4, $5)
`

type CreateAccountParams struct {
	ID            string             `json:"id"`
	Currency      string             `json:"currency"`
	Status        string             `json:"status"`
	AllowNegative bool               `json:"allow_negative"`
	CreatedAt     pgtype.Timestamptz `json:"created_at"`
}

func (q *Queries) CreateAccount(ctx context.Context, arg CreateAccountParams) error {
	_, err := q.db.Exec(ctx, createAccount,
		arg.ID,
		arg.Currency,
		arg.Status,
		arg.AllowNegative,
		arg.CreatedAt,
	)
	return err
}

const createAccountSequence = `-- name: CreateAccountSequence :exec
INSERT INTO account_sequences (account_id, next_sequence) VALUES ($1, 1)
`

func (q *Queries) CreateAccountSequence(ctx context.Context, accountID string) error {
	_, err := q.db.Exec(ctx, createAccountSequence, accountID)
	return err
}

const getAccountByID = `-- name: GetAccountByID :one
SELECT id, currency, status, allow_negative, created_at FROM accounts WHERE id = $1
`

func (q *Queries) GetAccountByID(ctx context.Context, id string) (Account, error) {
	row := q.db.QueryRow(ctx, getAccountByID, id)
	var i Account
	err := row.Scan(
		&i.ID,
		&i.Currency,
		&i.Status,
		&i.AllowNegative,
		&i.CreatedAt,
	)
	return i, err
}

const listAccounts = `-- name: ListAccounts :many
SELECT id, currency, status, allow_negative, created_at FROM accounts
ORDER BY created_at, id
LIMIT $1 OFFSET $2
`

type ListAccountsParams struct {
	Limit  int32 `json:"limit"`
	Offset int32 `json:"offset"`
}

func (q *Queries) ListAccounts(ctx context.Context, arg ListAccountsParams) ([]Account, error) {
	rows, err := q.db.Query(ctx, listAccounts, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Account
	for rows.Next() {
		var i Account
		if err := rows.Scan(
			&i.ID,
			&i.Currency,
			&i.Status,
			&i.AllowNegative,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const updateAccountStatus = `-- name: UpdateAccountStatus :execrows
UPDATE accounts SET status = $2 WHERE id = $1
`

type UpdateAccountStatusParams struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func (q *Queries) UpdateAccountStatus(ctx context.Context, arg UpdateAccountStatusParams) (int64, error) {
	result, err := q.db.Exec(ctx, updateAccountStatus, arg.ID, arg.Status)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
