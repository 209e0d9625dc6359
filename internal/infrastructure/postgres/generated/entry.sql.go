package generated

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const createEntry = `-- name: CreateEntry :exec
INSERT INTO ledger_entries (id, transfer_id, account_id, sequence, direction, amount_minor, currency, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`

type CreateEntryParams struct {
	ID          string             `json:"id"`
	TransferID  string             `json:"transfer_id"`
	AccountID   string             `json:"account_id"`
	Sequence    int64              `json:"sequence"`
	Direction   string             `json:"direction"`
	AmountMinor int64              `json:"amount_minor"`
	Currency    string             `json:"currency"`
	CreatedAt   pgtype.Timestamptz `json:"created_at"`
}

func (q *Queries) CreateEntry(ctx context.Context, arg CreateEntryParams) error {
	_, err := q.db.Exec(ctx, createEntry,
		arg.ID,
		arg.TransferID,
		arg.AccountID,
		arg.Sequence,
		arg.Direction,
		arg.AmountMinor,
		arg.Currency,
		arg.CreatedAt,
	)
	return err
}

const listEntriesByAccount = `-- name: ListEntriesByAccount :many
SELECT id, transfer_id, account_id, sequence, direction, amount_minor, currency, created_at FROM ledger_entries
WHERE account_id = $1 AND sequence > $2
ORDER BY sequence
LIMIT $3
`

type ListEntriesByAccountParams struct {
	AccountID string `json:"account_id"`
	Sequence  int64  `json:"sequence"`
	Limit     int32  `json:"limit"`
}

func (q *Queries) ListEntriesByAccount(ctx context.Context, arg ListEntriesByAccountParams) ([]LedgerEntry, error) {
	rows, err := q.db.Query(ctx, listEntriesByAccount, arg.AccountID, arg.Sequence, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []LedgerEntry
	for rows.Next() {
		var i LedgerEntry
		if err := rows.Scan(
			&i.ID,
			&i.TransferID,
			&i.AccountID,
			&i.Sequence,
			&i.Direction,
			&i.AmountMinor,
			&i.Currency,
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

const listEntriesByTransfer = `-- name: ListEntriesByTransfer :many
SELECT id, transfer_id, account_id, sequence, direction, amount_minor, currency, created_at FROM ledger_entries
WHERE transfer_id = $1
ORDER BY direction DESC, id
`

func (q *Queries) ListEntriesByTransfer(ctx context.Context, transferID string) ([]LedgerEntry, error) {
	rows, err := q.db.Query(ctx, listEntriesByTransfer, transferID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []LedgerEntry
	for rows.Next() {
		var i LedgerEntry
		if err := rows.Scan(
			&i.ID,
			&i.TransferID,
			&i.AccountID,
			&i.Sequence,
			&i.Direction,
			&i.AmountMinor,
			&i.Currency,
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

const signedTotalsByCurrency = `-- name: SignedTotalsByCurrency :many
SELECT currency, COALESCE(SUM(CASE WHEN direction = 'CREDIT' THEN amount_minor ELSE -amount_minor END), 0)::BIGINT AS total
FROM ledger_entries
GROUP BY currency
ORDER BY currency
`

type SignedTotalsByCurrencyRow struct {
	Currency string `json:"currency"`
	Total    int64  `json:"total"`
}

func (q *Queries) SignedTotalsByCurrency(ctx context.Context) ([]SignedTotalsByCurrencyRow, error) {
	rows, err := q.db.Query(ctx, signedTotalsByCurrency)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []SignedTotalsByCurrencyRow
	for rows.Next() {
		var i SignedTotalsByCurrencyRow
		if err := rows.Scan(&i.Currency, &i.Total); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const sumEntriesByAccount = `-- name: SumEntriesByAccount :one
SELECT COALESCE(SUM(CASE WHEN direction = 'CREDIT' THEN amount_minor ELSE -amount_minor END), 0)::BIGINT AS total
FROM ledger_entries
WHERE account_id = $1 AND sequence <= $2
`

type SumEntriesByAccountParams struct {
	AccountID string `json:"account_id"`
	Sequence  int64  `json:"sequence"`
}

func (q *Queries) SumEntriesByAccount(ctx context.Context, arg SumEntriesByAccountParams) (int64, error) {
	row := q.db.QueryRow(ctx, sumEntriesByAccount, arg.AccountID, arg.Sequence)
	var total int64
	err := row.Scan(&total)
	return total, err
}
