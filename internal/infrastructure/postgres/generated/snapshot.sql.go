package generated

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const getSnapshot = `-- name: GetSnapshot :one
SELECT account_id, as_of_sequence, balance_minor, updated_at FROM balance_snapshots WHERE account_id = $1
`

func (q *Queries) GetSnapshot(ctx context.Context, accountID string) (BalanceSnapshot, error) {
	row := q.db.QueryRow(ctx, getSnapshot, accountID)
	var i BalanceSnapshot
	err := row.Scan(
		&i.AccountID,
		&i.AsOfSequence,
		&i.BalanceMinor,
		&i.UpdatedAt,
	)
	return i, err
}

const getSnapshotBalance = `-- name: GetSnapshotBalance :one
SELECT balance_minor FROM balance_snapshots WHERE account_id = $1
`

func (q *Queries) GetSnapshotBalance(ctx context.Context, accountID string) (int64, error) {
	row := q.db.QueryRow(ctx, getSnapshotBalance, accountID)
	var balance_minor int64
	err := row.Scan(&balance_minor)
	return balance_minor, err
}

const listSnapshots = `-- name: ListSnapshots :many
SELECT account_id, as_of_sequence, balance_minor, updated_at FROM balance_snapshots ORDER BY account_id
`

func (q *Queries) ListSnapshots(ctx context.Context) ([]BalanceSnapshot, error) {
	rows, err := q.db.Query(ctx, listSnapshots)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []BalanceSnapshot
	for rows.Next() {
		var i BalanceSnapshot
		if err := rows.Scan(
			&i.AccountID,
			&i.AsOfSequence,
			&i.BalanceMinor,
			&i.UpdatedAt,
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

const upsertSnapshot = `-- name: UpsertSnapshot :exec
INSERT INTO balance_snapshots (account_id, as_of_sequence, balance_minor, updated_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (account_id) DO UPDATE
SET as_of_sequence = EXCLUDED.as_of_sequence,
    balance_minor = EXCLUDED.balance_minor,
    updated_at = EXCLUDED.updated_at
WHERE balance_snapshots.as_of_sequence < EXCLUDED.as_of_sequence
`

type UpsertSnapshotParams struct {
	AccountID    string             `json:"account_id"`
	AsOfSequence int64              `json:"as_of_sequence"`
	BalanceMinor int64              `json:"balance_minor"`
	UpdatedAt    pgtype.Timestamptz `json:"updated_at"`
}

func (q *Queries) UpsertSnapshot(ctx context.Context, arg UpsertSnapshotParams) error {
	_, err := q.db.Exec(ctx, upsertSnapshot,
		arg.AccountID,
		arg.AsOfSequence,
		arg.BalanceMinor,
		arg.UpdatedAt,
	)
	return err
}
