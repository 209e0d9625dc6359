package domain

import (
	"encoding/json"
	"time"
)

// Event types
const (
	EventTypeTransferCompleted = "TransferCompleted"
)

// Aggregate types
const (
	AggregateTypeTransfer = "Transfer"
)

// OutboxStatus is the delivery state of an outbox event.
type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "PENDING"
	OutboxStatusDelivered OutboxStatus = "DELIVERED"
	OutboxStatusFailed    OutboxStatus = "FAILED"
)

// OutboxEvent represents an event to be published
type OutboxEvent struct {
	CreatedAt     time.Time
	AvailableAt   time.Time
	DeliveredAt   *time.Time
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	CommandID     string
	CorrelationID string
	Status        OutboxStatus
	LastError     string
	Payload       json.RawMessage
	Attempts      int
}

// TransferCompletedPayload is the JSON body of a TransferCompleted event.
// Consumers rely on transferId and commandId; the rest lets them rebuild the fact.
type TransferCompletedPayload struct {
	TransferID    string    `json:"transferId"`
	CommandID     string    `json:"commandId"`
	CorrelationID string    `json:"correlationId,omitempty"`
	FromAccountID string    `json:"fromAccountId"`
	ToAccountID   string    `json:"toAccountId"`
	Currency      string    `json:"currency"`
	OccurredAt    time.Time `json:"occurredAt"`
	AmountMinor   int64     `json:"amountMinor"`
	FromSequence  int64     `json:"fromSequence"`
	ToSequence    int64     `json:"toSequence"`
}

// NewTransferCompletedEvent builds the pending outbox event for a posted transfer.
func NewTransferCompletedEvent(id string, transfer *Transfer, correlationID string, debit, credit *LedgerEntry) (*OutboxEvent, error) {
	payload, err := json.Marshal(TransferCompletedPayload{
		TransferID:    transfer.ID,
		CommandID:     transfer.CommandID,
		CorrelationID: correlationID,
		FromAccountID: transfer.FromAccountID,
		ToAccountID:   transfer.ToAccountID,
		AmountMinor:   transfer.Money.Amount(),
		Currency:      transfer.Money.Currency().Code(),
		FromSequence:  debit.Sequence,
		ToSequence:    credit.Sequence,
		OccurredAt:    transfer.CreatedAt.UTC(),
	})
	if err != nil {
		return nil, err
	}

	return &OutboxEvent{
		ID:            id,
		AggregateType: AggregateTypeTransfer,
		AggregateID:   transfer.ID,
		EventType:     EventTypeTransferCompleted,
		Payload:       payload,
		CommandID:     transfer.CommandID,
		CorrelationID: correlationID,
		Status:        OutboxStatusPending,
		CreatedAt:     transfer.CreatedAt,
		AvailableAt:   transfer.CreatedAt,
	}, nil
}
