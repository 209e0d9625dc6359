package generated

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const claimPendingEvents = `-- name: ClaimPendingEvents :many
SELECT id, aggregate_type, aggregate_id, event_type, command_id, correlation_id, payload, status, attempts, last_error, available_at, created_at, delivered_at FROM outbox_events
WHERE status = 'PENDING' AND available_at <= $1
ORDER BY available_at, id
LIMIT $2
FOR UPDATE SKIP LOCKED
`

type ClaimPendingEventsParams struct {
	AvailableAt pgtype.Timestamptz `json:"available_at"`
	Limit       int32              `json:"limit"`
}

func (q *Queries) ClaimPendingEvents(ctx context.Context, arg ClaimPendingEventsParams) ([]OutboxEvent, error) {
	rows, err := q.db.Query(ctx, claimPendingEvents, arg.AvailableAt, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []OutboxEvent
	for rows.Next() {
		var i OutboxEvent
		if err := rows.Scan(
			&i.ID,
			&i.AggregateType,
			&i.AggregateID,
			&i.EventType,
			&i.CommandID,
			&i.CorrelationID,
			&i.Payload,
			&i.Status,
			&i.Attempts,
			&i.LastError,
			&i.AvailableAt,
			&i.CreatedAt,
			&i.DeliveredAt,
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

const createOutboxEvent = `-- name: CreateOutboxEvent :exec
INSERT INTO outbox_events (id, aggregate_type, aggregate_id, event_type, command_id, correlation_id, payload, status, available_at, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
`

type CreateOutboxEventParams struct {
	ID            string             `json:"id"`
	AggregateType string             `json:"aggregate_type"`
	AggregateID   string             `json:"aggregate_id"`
	EventType     string             `json:"event_type"`
	CommandID     string             `json:"command_id"`
	CorrelationID pgtype.Text        `json:"correlation_id"`
	Payload       []byte             `json:"payload"`
	Status        string             `json:"status"`
	AvailableAt   pgtype.Timestamptz `json:"available_at"`
	CreatedAt     pgtype.Timestamptz `json:"created_at"`
}

func (q *Queries) CreateOutboxEvent(ctx context.Context, arg CreateOutboxEventParams) error {
	_, err := q.db.Exec(ctx, createOutboxEvent,
		arg.ID,
		arg.AggregateType,
		arg.AggregateID,
		arg.EventType,
		arg.CommandID,
		arg.CorrelationID,
		arg.Payload,
		arg.Status,
		arg.AvailableAt,
		arg.CreatedAt,
	)
	return err
}

const markEventDelivered = `-- name: MarkEventDelivered :execrows
UPDATE outbox_events SET status = 'DELIVERED', delivered_at = $2
WHERE id = $1
`

type MarkEventDeliveredParams struct {
	ID          string             `json:"id"`
	DeliveredAt pgtype.Timestamptz `json:"delivered_at"`
}

func (q *Queries) MarkEventDelivered(ctx context.Context, arg MarkEventDeliveredParams) (int64, error) {
	result, err := q.db.Exec(ctx, markEventDelivered, arg.ID, arg.DeliveredAt)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const markEventFailed = `-- name: MarkEventFailed :execrows
UPDATE outbox_events
SET attempts = attempts + 1,
    last_error = $2,
    available_at = $3,
    status = CASE WHEN attempts + 1 >= $4::INTEGER THEN 'FAILED' ELSE status END
WHERE id = $1
`

type MarkEventFailedParams struct {
	ID          string             `json:"id"`
	LastError   pgtype.Text        `json:"last_error"`
	AvailableAt pgtype.Timestamptz `json:"available_at"`
	MaxAttempts int32              `json:"max_attempts"`
}

func (q *Queries) MarkEventFailed(ctx context.Context, arg MarkEventFailedParams) (int64, error) {
	result, err := q.db.Exec(ctx, markEventFailed,
		arg.ID,
		arg.LastError,
		arg.AvailableAt,
		arg.MaxAttempts,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
