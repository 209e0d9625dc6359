package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/iho/ledgercore/internal/adapter/http/dto"
	"github.com/iho/ledgercore/internal/domain"
	"github.com/iho/ledgercore/internal/usecase"
)

type transferServiceStub struct {
	transferFn func(ctx context.Context, cmd usecase.TransferCommand) (usecase.TransferOutcome, error)
}

func (s *transferServiceStub) Transfer(ctx context.Context, cmd usecase.TransferCommand) (usecase.TransferOutcome, error) {
	return s.transferFn(ctx, cmd)
}

type transferReaderStub struct {
	getFn func(ctx context.Context, id string) (*domain.Transfer, error)
}

func (s *transferReaderStub) Transfer(ctx context.Context, id string) (*domain.Transfer, error) {
	return s.getFn(ctx, id)
}

func postTransfer(t *testing.T, h *TransferHandler, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/transfers", bytes.NewReader(raw))
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	h.Create(rec, req)

	return rec
}

func TestTransferHandler_Create_Success(t *testing.T) {
	var captured usecase.TransferCommand
	handler := NewTransferHandler(&transferServiceStub{
		transferFn: func(ctx context.Context, cmd usecase.TransferCommand) (usecase.TransferOutcome, error) {
			captured = cmd
			return usecase.TransferOutcome{TransferResult: usecase.TransferResult{TransferID: "tr-1", CommandID: cmd.CommandID}}, nil
		},
	}, nil)

	rec := postTransfer(t, handler, dto.TransferRequest{
		FromAccountID: "acc-1",
		ToAccountID:   "acc-2",
		Amount:        "100",
		Currency:      "USD",
	}, map[string]string{IdempotencyKeyHeader: "key-1", CorrelationIDHeader: "corr-1"})

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	if captured.CommandID != "key-1" || captured.CorrelationID != "corr-1" || captured.Money.Amount() != 10000 {
		t.Fatalf("unexpected command: %+v", captured)
	}

	var resp dto.TransferResultResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.TransferID != "tr-1" || resp.CommandID != "key-1" || resp.Replayed {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestTransferHandler_Create_ReplayAnswers200(t *testing.T) {
	handler := NewTransferHandler(&transferServiceStub{
		transferFn: func(ctx context.Context, cmd usecase.TransferCommand) (usecase.TransferOutcome, error) {
			return usecase.TransferOutcome{TransferResult: usecase.TransferResult{TransferID: "tr-1", CommandID: cmd.CommandID}, Replayed: true}, nil
		},
	}, nil)

	minor := int64(5)
	rec := postTransfer(t, handler, dto.TransferRequest{
		CommandID: "cmd-1", FromAccountID: "a", ToAccountID: "b", AmountMinor: &minor, Currency: "USD",
	}, nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestTransferHandler_Create_Errors(t *testing.T) {
	minor := int64(5)
	valid := dto.TransferRequest{CommandID: "cmd-1", FromAccountID: "a", ToAccountID: "b", AmountMinor: &minor, Currency: "USD"}

	tests := []struct {
		name   string
		body   any
		err    error
		status int
	}{
		{name: "missing amount", body: dto.TransferRequest{CommandID: "cmd-1", Currency: "USD"}, status: http.StatusBadRequest},
		{name: "insufficient funds", body: valid, err: fmt.Errorf("debit a: %w", domain.ErrInsufficientFunds), status: http.StatusUnprocessableEntity},
		{name: "unknown account", body: valid, err: domain.ErrAccountNotFound, status: http.StatusNotFound},
		{name: "frozen account", body: valid, err: domain.ErrAccountNotOpen, status: http.StatusBadRequest},
		{name: "inconsistency", body: valid, err: domain.ErrIdempotencyInconsistency, status: http.StatusInternalServerError},
		{name: "storage", body: valid, err: errors.New("connection reset"), status: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewTransferHandler(&transferServiceStub{
				transferFn: func(ctx context.Context, cmd usecase.TransferCommand) (usecase.TransferOutcome, error) {
					if tt.err == nil {
						t.Fatal("Transfer should not be called")
					}
					return usecase.TransferOutcome{}, tt.err
				},
			}, nil)

			rec := postTransfer(t, handler, tt.body, nil)
			if rec.Code != tt.status {
				t.Fatalf("expected %d, got %d", tt.status, rec.Code)
			}
		})
	}
}

func TestTransferHandler_Create_InvalidBody(t *testing.T) {
	handler := NewTransferHandler(&transferServiceStub{
		transferFn: func(ctx context.Context, cmd usecase.TransferCommand) (usecase.TransferOutcome, error) {
			t.Fatal("Transfer should not be called")
			return usecase.TransferOutcome{}, nil
		},
	}, nil)

	req := httptest.NewRequest(http.MethodPost, "/transfers", bytes.NewBufferString("{bad json"))
	rec := httptest.NewRecorder()

	handler.Create(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestTransferHandler_Get(t *testing.T) {
	money, err := domain.NewMoney(250, domain.MustCurrency("USD"))
	if err != nil {
		t.Fatalf("money: %v", err)
	}
	transfer, err := domain.NewTransfer("tr-1", "cmd-1", "a", "b", money, time.Now().UTC())
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}

	handler := NewTransferHandler(nil, &transferReaderStub{
		getFn: func(ctx context.Context, id string) (*domain.Transfer, error) {
			if id != "tr-1" {
				return nil, domain.ErrTransferNotFound
			}
			return transfer, nil
		},
	})

	rec := httptest.NewRecorder()
	handler.Get(rec, setChiURLParam(httptest.NewRequest(http.MethodGet, "/transfers/tr-1", nil), "id", "tr-1"))

	var resp dto.TransferResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if rec.Code != http.StatusOK || resp.Amount != "2.50" {
		t.Fatalf("unexpected response %d: %+v", rec.Code, resp)
	}

	rec = httptest.NewRecorder()
	handler.Get(rec, setChiURLParam(httptest.NewRequest(http.MethodGet, "/transfers/nope", nil), "id", "nope"))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
