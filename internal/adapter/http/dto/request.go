package dto

import (
	"fmt"
	"strings"

	"github.com/iho/ledgercore/internal/domain"
	"github.com/iho/ledgercore/internal/usecase"
)

// OpenAccountRequest represents a request to open an account.
type OpenAccountRequest struct {
	ID            string `json:"id,omitempty"`
	Currency      string `json:"currency"`
	AllowNegative bool   `json:"allow_negative"`
}

// ToUseCaseInput converts to use case input.
func (r *OpenAccountRequest) ToUseCaseInput() usecase.OpenAccountInput {
	return usecase.OpenAccountInput{
		ID:            r.ID,
		Currency:      r.Currency,
		AllowNegative: r.AllowNegative,
	}
}

// SetAccountStatusRequest represents a request to freeze, close or reopen an account.
type SetAccountStatusRequest struct {
	Status string `json:"status"`
}

// ToStatus parses the requested status.
func (r *SetAccountStatusRequest) ToStatus() (domain.AccountStatus, error) {
	return domain.ParseAccountStatus(strings.ToUpper(strings.TrimSpace(r.Status)))
}

// TransferRequest represents a transfer command. The amount is given either in
// minor units or as a major-unit decimal string, never both.
type TransferRequest struct {
	AmountMinor   *int64 `json:"amount_minor,omitempty"`
	CommandID     string `json:"command_id,omitempty"`
	FromAccountID string `json:"from_account_id"`
	ToAccountID   string `json:"to_account_id"`
	Amount        string `json:"amount,omitempty"`
	Currency      string `json:"currency"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// ToCommand builds a TransferCommand. idempotencyKey and correlationID come
// from request headers and fill in fields the body leaves empty.
func (r *TransferRequest) ToCommand(idempotencyKey, correlationID string) (usecase.TransferCommand, error) {
	commandID := r.CommandID
	switch {
	case commandID == "":
		commandID = idempotencyKey
	case idempotencyKey != "" && idempotencyKey != commandID:
		return usecase.TransferCommand{}, fmt.Errorf("%w: command_id and Idempotency-Key differ", domain.ErrInvalidIDFormat)
	}

	if r.CorrelationID != "" {
		correlationID = r.CorrelationID
	}

	money, err := r.money()
	if err != nil {
		return usecase.TransferCommand{}, err
	}

	return usecase.TransferCommand{
		CommandID:     commandID,
		FromAccountID: r.FromAccountID,
		ToAccountID:   r.ToAccountID,
		CorrelationID: correlationID,
		Money:         money,
	}, nil
}

func (r *TransferRequest) money() (domain.Money, error) {
	switch {
	case r.AmountMinor != nil && r.Amount != "":
		return domain.Money{}, fmt.Errorf("%w: give amount or amount_minor, not both", domain.ErrInvalidAmount)
	case r.AmountMinor != nil:
		c, err := domain.NewCurrency(r.Currency)
		if err != nil {
			return domain.Money{}, err
		}
		return domain.NewMoney(*r.AmountMinor, c)
	case r.Amount != "":
		return domain.ParseMoney(r.Amount, r.Currency)
	default:
		return domain.Money{}, fmt.Errorf("%w: amount is required", domain.ErrInvalidAmount)
	}
}
