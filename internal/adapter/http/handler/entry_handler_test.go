package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/iho/ledgercore/internal/adapter/http/dto"
	"github.com/iho/ledgercore/internal/domain"
)

type entryListerStub struct {
	accountFn  func(ctx context.Context, id string, after int64, limit int) ([]*domain.LedgerEntry, error)
	transferFn func(ctx context.Context, id string) ([]*domain.LedgerEntry, error)
}

func (s *entryListerStub) Entries(ctx context.Context, id string, after int64, limit int) ([]*domain.LedgerEntry, error) {
	return s.accountFn(ctx, id, after, limit)
}

func (s *entryListerStub) TransferEntries(ctx context.Context, id string) ([]*domain.LedgerEntry, error) {
	return s.transferFn(ctx, id)
}

func testEntry(t *testing.T, seq int64, dir domain.Direction) *domain.LedgerEntry {
	t.Helper()

	money, err := domain.NewMoney(100, domain.MustCurrency("USD"))
	if err != nil {
		t.Fatalf("money: %v", err)
	}

	e, err := domain.NewLedgerEntry("e-"+string(dir), "tr-1", "acc-1", seq, dir, money, time.Now().UTC())
	if err != nil {
		t.Fatalf("entry: %v", err)
	}
	return e
}

func TestEntryHandler_ListByAccountReturnsCursor(t *testing.T) {
	var gotAfter int64
	var gotLimit int
	stub := &entryListerStub{
		accountFn: func(ctx context.Context, id string, after int64, limit int) ([]*domain.LedgerEntry, error) {
			gotAfter, gotLimit = after, limit
			return []*domain.LedgerEntry{testEntry(t, 6, domain.DirectionCredit), testEntry(t, 7, domain.DirectionDebit)}, nil
		},
	}
	handler := NewEntryHandler(stub, stub)

	req := setChiURLParam(httptest.NewRequest(http.MethodGet, "/accounts/acc-1/entries?after_sequence=5&limit=2", nil), "id", "acc-1")
	rec := httptest.NewRecorder()
	handler.ListByAccount(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if gotAfter != 5 || gotLimit != 2 {
		t.Fatalf("expected after=5 limit=2, got after=%d limit=%d", gotAfter, gotLimit)
	}

	var resp dto.ListEntriesResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Entries) != 2 || resp.NextAfterSequence != 7 {
		t.Fatalf("unexpected page: %+v", resp)
	}
}

func TestEntryHandler_ListByAccountNotFound(t *testing.T) {
	stub := &entryListerStub{
		accountFn: func(ctx context.Context, id string, after int64, limit int) ([]*domain.LedgerEntry, error) {
			return nil, domain.ErrAccountNotFound
		},
	}

	rec := httptest.NewRecorder()
	NewEntryHandler(stub, stub).ListByAccount(rec, setChiURLParam(httptest.NewRequest(http.MethodGet, "/accounts/x/entries", nil), "id", "x"))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestEntryHandler_ListByTransfer(t *testing.T) {
	stub := &entryListerStub{
		transferFn: func(ctx context.Context, id string) ([]*domain.LedgerEntry, error) {
			if id != "tr-1" {
				return nil, domain.ErrTransferNotFound
			}
			return []*domain.LedgerEntry{testEntry(t, 1, domain.DirectionDebit), testEntry(t, 1, domain.DirectionCredit)}, nil
		},
	}
	handler := NewEntryHandler(stub, stub)

	rec := httptest.NewRecorder()
	handler.ListByTransfer(rec, setChiURLParam(httptest.NewRequest(http.MethodGet, "/transfers/tr-1/entries", nil), "id", "tr-1"))

	var resp []dto.EntryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(resp))
	}

	rec = httptest.NewRecorder()
	handler.ListByTransfer(rec, setChiURLParam(httptest.NewRequest(http.MethodGet, "/transfers/x/entries", nil), "id", "x"))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
