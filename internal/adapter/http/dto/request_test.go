package dto

import (
	"errors"
	"testing"

	"github.com/iho/ledgercore/internal/domain"
	"github.com/iho/ledgercore/internal/usecase"
)

func int64Ptr(v int64) *int64 { return &v }

func TestOpenAccountRequest_ToUseCaseInput(t *testing.T) {
	req := &OpenAccountRequest{ID: "wallet_1", Currency: "USD", AllowNegative: true}

	got := req.ToUseCaseInput()
	want := usecase.OpenAccountInput{ID: "wallet_1", Currency: "USD", AllowNegative: true}

	if got != want {
		t.Fatalf("ToUseCaseInput() = %+v, want %+v", got, want)
	}
}

func TestSetAccountStatusRequest_ToStatus(t *testing.T) {
	status, err := (&SetAccountStatusRequest{Status: " frozen "}).ToStatus()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != domain.AccountStatusFrozen {
		t.Fatalf("expected FROZEN, got %s", status)
	}

	if _, err := (&SetAccountStatusRequest{Status: "gone"}).ToStatus(); !errors.Is(err, domain.ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
}

func TestTransferRequest_ToCommand(t *testing.T) {
	tests := []struct {
		name           string
		request        *TransferRequest
		idempotencyKey string
		correlationID  string
		wantCommandID  string
		wantCorrelated string
		wantMinor      int64
		wantErr        error
	}{
		{
			name:          "minor units",
			request:       &TransferRequest{CommandID: "cmd-1", FromAccountID: "a", ToAccountID: "b", AmountMinor: int64Ptr(1234), Currency: "USD"},
			wantCommandID: "cmd-1",
			wantMinor:     1234,
		},
		{
			name:          "decimal amount",
			request:       &TransferRequest{CommandID: "cmd-1", FromAccountID: "a", ToAccountID: "b", Amount: "12.34", Currency: "USD"},
			wantCommandID: "cmd-1",
			wantMinor:     1234,
		},
		{
			name:           "headers fill in command and correlation ids",
			request:        &TransferRequest{FromAccountID: "a", ToAccountID: "b", Amount: "1", Currency: "JPY"},
			idempotencyKey: "key-1",
			correlationID:  "corr-1",
			wantCommandID:  "key-1",
			wantCorrelated: "corr-1",
			wantMinor:      1,
		},
		{
			name:           "body correlation id wins",
			request:        &TransferRequest{CommandID: "cmd-1", FromAccountID: "a", ToAccountID: "b", Amount: "1", Currency: "USD", CorrelationID: "body"},
			idempotencyKey: "cmd-1",
			correlationID:  "header",
			wantCommandID:  "cmd-1",
			wantCorrelated: "body",
			wantMinor:      100,
		},
		{
			name:           "conflicting command ids",
			request:        &TransferRequest{CommandID: "cmd-1", Amount: "1", Currency: "USD"},
			idempotencyKey: "cmd-2",
			wantErr:        domain.ErrInvalidIDFormat,
		},
		{
			name:    "both amounts",
			request: &TransferRequest{AmountMinor: int64Ptr(1), Amount: "1", Currency: "USD"},
			wantErr: domain.ErrInvalidAmount,
		},
		{
			name:    "no amount",
			request: &TransferRequest{Currency: "USD"},
			wantErr: domain.ErrInvalidAmount,
		},
		{
			name:    "too precise",
			request: &TransferRequest{Amount: "1.001", Currency: "USD"},
			wantErr: domain.ErrInvalidAmount,
		},
		{
			name:    "bad currency",
			request: &TransferRequest{AmountMinor: int64Ptr(1), Currency: "dollars"},
			wantErr: domain.ErrInvalidCurrency,
		},
		{
			name:    "negative minor",
			request: &TransferRequest{AmountMinor: int64Ptr(-5), Currency: "USD"},
			wantErr: domain.ErrInvalidAmount,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, err := tt.request.ToCommand(tt.idempotencyKey, tt.correlationID)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if cmd.CommandID != tt.wantCommandID {
				t.Fatalf("expected command id %q, got %q", tt.wantCommandID, cmd.CommandID)
			}
			if cmd.CorrelationID != tt.wantCorrelated {
				t.Fatalf("expected correlation id %q, got %q", tt.wantCorrelated, cmd.CorrelationID)
			}
			if cmd.Money.Amount() != tt.wantMinor {
				t.Fatalf("expected %d minor units, got %d", tt.wantMinor, cmd.Money.Amount())
			}
			if cmd.FromAccountID != tt.request.FromAccountID || cmd.ToAccountID != tt.request.ToAccountID {
				t.Fatalf("accounts not carried over: %+v", cmd)
			}
		})
	}
}
