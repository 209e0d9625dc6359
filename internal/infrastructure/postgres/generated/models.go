package generated

import (
	"github.com/jackc/pgx/v5/pgtype"
)

type Account struct {
	ID            string             `json:"id"`
	Currency      string             `json:"currency"`
	Status        string             `json:"status"`
	AllowNegative bool               `json:"allow_negative"`
	CreatedAt     pgtype.Timestamptz `json:"created_at"`
}

type AccountSequence struct {
	AccountID    string `json:"account_id"`
	NextSequence int64  `json:"next_sequence"`
}

type BalanceSnapshot struct {
	AccountID    string             `json:"account_id"`
	AsOfSequence int64              `json:"as_of_sequence"`
	BalanceMinor int64              `json:"balance_minor"`
	UpdatedAt    pgtype.Timestamptz `json:"updated_at"`
}

type Command struct {
	CommandID     string             `json:"command_id"`
	CommandType   string             `json:"command_type"`
	CorrelationID pgtype.Text        `json:"correlation_id"`
	Status        string             `json:"status"`
	CreatedAt     pgtype.Timestamptz `json:"created_at"`
	AppliedAt     pgtype.Timestamptz `json:"applied_at"`
}

type LedgerEntry struct {
	ID          string             `json:"id"`
	TransferID  string             `json:"transfer_id"`
	AccountID   string             `json:"account_id"`
	Sequence    int64              `json:"sequence"`
	Direction   string             `json:"direction"`
	AmountMinor int64              `json:"amount_minor"`
	Currency    string             `json:"currency"`
	CreatedAt   pgtype.Timestamptz `json:"created_at"`
}

type OutboxEvent struct {
	ID            string             `json:"id"`
	AggregateType string             `json:"aggregate_type"`
	AggregateID   string             `json:"aggregate_id"`
	EventType     string             `json:"event_type"`
	CommandID     string             `json:"command_id"`
	CorrelationID pgtype.Text        `json:"correlation_id"`
	Payload       []byte             `json:"payload"`
	Status        string             `json:"status"`
	Attempts      int32              `json:"attempts"`
	LastError     pgtype.Text        `json:"last_error"`
	AvailableAt   pgtype.Timestamptz `json:"available_at"`
	CreatedAt     pgtype.Timestamptz `json:"created_at"`
	DeliveredAt   pgtype.Timestamptz `json:"delivered_at"`
}

type Transfer struct {
	ID            string             `json:"id"`
	CommandID     string             `json:"command_id"`
	FromAccountID string             `json:"from_account_id"`
	ToAccountID   string             `json:"to_account_id"`
	AmountMinor   int64              `json:"amount_minor"`
	Currency      string             `json:"currency"`
	CreatedAt     pgtype.Timestamptz `json:"created_at"`
}
