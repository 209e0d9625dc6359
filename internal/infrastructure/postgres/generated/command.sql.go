package generated

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const getCommandByID = `-- name: GetCommandByID :one
SELECT command_id, command_type, correlation_id, status, created_at, applied_at FROM commands WHERE command_id = $1
`

func (q *Queries) GetCommandByID(ctx context.Context, commandID string) (Command, error) {
	row := q.db.QueryRow(ctx, getCommandByID, commandID)
	var i Command
	err := row.Scan(
		&i.CommandID,
		&i.CommandType,
		&i.CorrelationID,
		&i.Status,
		&i.CreatedAt,
		&i.AppliedAt,
	)
	return i, err
}

const getTransferIDByCommand = `-- name: GetTransferIDByCommand :one
SELECT id FROM transfers WHERE command_id = $1
`

func (q *Queries) GetTransferIDByCommand(ctx context.Context, commandID string) (string, error) {
	row := q.db.QueryRow(ctx, getTransferIDByCommand, commandID)
	var id string
	err := row.Scan(&id)
	return id, err
}

const insertCommand = `-- name: InsertCommand :execrows
INSERT INTO commands (command_id, command_type, correlation_id, status, created_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (command_id) DO NOTHING
`

type InsertCommandParams struct {
	CommandID     string             `json:"command_id"`
	CommandType   string             `json:"command_type"`
	CorrelationID pgtype.Text        `json:"correlation_id"`
	Status        string             `json:"status"`
	CreatedAt     pgtype.Timestamptz `json:"created_at"`
}

func (q *Queries) InsertCommand(ctx context.Context, arg InsertCommandParams) (int64, error) {
	result, err := q.db.Exec(ctx, insertCommand,
		arg.CommandID,
		arg.CommandType,
		arg.CorrelationID,
		arg.Status,
		arg.CreatedAt,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const markCommandApplied = `-- name: MarkCommandApplied :execrows
UPDATE commands SET status = 'APPLIED', applied_at = $2 WHERE command_id = $1
`

type MarkCommandAppliedParams struct {
	CommandID string             `json:"command_id"`
	AppliedAt pgtype.Timestamptz `json:"applied_at"`
}

func (q *Queries) MarkCommandApplied(ctx context.Context, arg MarkCommandAppliedParams) (int64, error) {
	result, err := q.db.Exec(ctx, markCommandApplied, arg.CommandID, arg.AppliedAt)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
