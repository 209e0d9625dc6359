package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/iho/ledgercore/internal/domain"
	"github.com/iho/ledgercore/internal/infrastructure/postgres/generated"
	"github.com/iho/ledgercore/internal/usecase"
)

// OutboxRepository implements usecase.OutboxRepository.
type OutboxRepository struct{}

// NewOutboxRepository creates a new OutboxRepository.
func NewOutboxRepository() *OutboxRepository {
	return &OutboxRepository{}
}

// Create creates a new outbox event within a transaction.
func (r *OutboxRepository) Create(ctx context.Context, tx usecase.Transaction, event *domain.OutboxEvent) error {
	queries, err := txQueries(tx)
	if err != nil {
		return err
	}

	return queries.CreateOutboxEvent(ctx, generated.CreateOutboxEventParams{
		ID:            event.ID,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		EventType:     event.EventType,
		CommandID:     event.CommandID,
		CorrelationID: textToPg(event.CorrelationID),
		Payload:       event.Payload,
		Status:        string(event.Status),
		AvailableAt:   timeToPgTimestamptz(event.AvailableAt),
		CreatedAt:     timeToPgTimestamptz(event.CreatedAt),
	})
}

// ClaimPending locks up to limit due PENDING events with FOR UPDATE SKIP LOCKED,
// so concurrent relays never claim the same event.
func (r *OutboxRepository) ClaimPending(ctx context.Context, tx usecase.Transaction, now time.Time, limit int) ([]*domain.OutboxEvent, error) {
	queries, err := txQueries(tx)
	if err != nil {
		return nil, err
	}

	rows, err := queries.ClaimPendingEvents(ctx, generated.ClaimPendingEventsParams{
		AvailableAt: timeToPgTimestamptz(now),
		Limit:       int32(limit),
	})
	if err != nil {
		return nil, err
	}

	events := make([]*domain.OutboxEvent, 0, len(rows))
	for _, row := range rows {
		events = append(events, rowToOutboxEvent(row))
	}

	return events, nil
}

// MarkDelivered marks a claimed event DELIVERED.
func (r *OutboxRepository) MarkDelivered(ctx context.Context, tx usecase.Transaction, id string, deliveredAt time.Time) error {
	queries, err := txQueries(tx)
	if err != nil {
		return err
	}

	n, err := queries.MarkEventDelivered(ctx, generated.MarkEventDeliveredParams{
		ID:          id,
		DeliveredAt: timeToPgTimestamptz(deliveredAt),
	})
	if err != nil {
		return err
	}

	return requireEvent(n, id)
}

// MarkFailed records a failed delivery attempt and schedules the next one.
// The event turns FAILED once attempts reach maxAttempts.
func (r *OutboxRepository) MarkFailed(ctx context.Context, tx usecase.Transaction, id, lastError string, nextAttemptAt time.Time, maxAttempts int) error {
	queries, err := txQueries(tx)
	if err != nil {
		return err
	}

	n, err := queries.MarkEventFailed(ctx, generated.MarkEventFailedParams{
		ID:          id,
		LastError:   textToPg(lastError),
		AvailableAt: timeToPgTimestamptz(nextAttemptAt),
		MaxAttempts: int32(maxAttempts),
	})
	if err != nil {
		return err
	}

	return requireEvent(n, id)
}

func requireEvent(rowsAffected int64, id string) error {
	if rowsAffected == 0 {
		return fmt.Errorf("outbox event %s not found", id)
	}

	return nil
}

func rowToOutboxEvent(row generated.OutboxEvent) *domain.OutboxEvent {
	return &domain.OutboxEvent{
		ID:            row.ID,
		AggregateType: row.AggregateType,
		AggregateID:   row.AggregateID,
		EventType:     row.EventType,
		CommandID:     row.CommandID,
		CorrelationID: row.CorrelationID.String,
		Payload:       row.Payload,
		Status:        domain.OutboxStatus(row.Status),
		Attempts:      int(row.Attempts),
		LastError:     row.LastError.String,
		AvailableAt:   row.AvailableAt.Time,
		CreatedAt:     row.CreatedAt.Time,
		DeliveredAt:   pgTimestamptzToTimePtr(row.DeliveredAt),
	}
}
