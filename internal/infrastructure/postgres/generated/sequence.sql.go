package generated

import (
	"context"
)

const advanceAccountSequence = `-- name: AdvanceAccountSequence :exec
UPDATE account_sequences SET next_sequence = next_sequence + 1 WHERE account_id = $1
`

func (q *Queries) AdvanceAccountSequence(ctx context.Context, accountID string) error {
	_, err := q.db.Exec(ctx, advanceAccountSequence, accountID)
	return err
}

const lockAccountSequences = `-- name: LockAccountSequences :many
SELECT account_id, next_sequence FROM account_sequences
WHERE account_id = ANY($1::text[])
ORDER BY account_id
FOR UPDATE
`

func (q *Queries) LockAccountSequences(ctx context.Context, accountIds []string) ([]AccountSequence, error) {
	rows, err := q.db.Query(ctx, lockAccountSequences, accountIds)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []AccountSequence
	for rows.Next() {
		var i AccountSequence
		if err := rows.Scan(&i.AccountID, &i.NextSequence); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
