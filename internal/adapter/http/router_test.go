package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/iho/ledgercore/internal/adapter/http/dto"
	"github.com/iho/ledgercore/internal/adapter/http/handler"
	"github.com/iho/ledgercore/internal/adapter/repository/memory"
	"github.com/iho/ledgercore/internal/infrastructure/clock"
	"github.com/iho/ledgercore/internal/infrastructure/idgen"
	"github.com/iho/ledgercore/internal/infrastructure/metrics"
	"github.com/iho/ledgercore/internal/usecase"
)

type onceRetrier struct{}

func (onceRetrier) Retry(_ context.Context, fn func() error) error { return fn() }

// newTestRouter wires the router to the in-memory backend.
func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	store := memory.NewStore()
	txm := memory.NewTxManager(store)
	accounts := memory.NewAccountRepository(store)
	transfers := memory.NewTransferRepository(store)
	entries := memory.NewEntryRepository(store)
	snapshots := memory.NewSnapshotRepository(store)
	ids := idgen.NewULIDGenerator()
	clk := clock.NewManual(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	transferHandler := usecase.NewTransferHandler(usecase.TransferHandlerDeps{
		Commands:  memory.NewCommandStore(store),
		Accounts:  accounts,
		Sequences: memory.NewSequenceAllocator(store),
		Transfers: transfers,
		Entries:   entries,
		Snapshots: snapshots,
		Outbox:    memory.NewOutboxRepository(store),
		IDGen:     ids,
		Clock:     clk,
		Logger:    zerolog.Nop(),
	})

	service := usecase.NewTransferService(txm, transferHandler, onceRetrier{}, zerolog.Nop(), usecase.WithMetrics(m))
	accountUC := usecase.NewAccountUseCase(txm, accounts, entries, snapshots, ids, clk, m)
	ledgerUC := usecase.NewLedgerUseCase(accounts, transfers, entries, snapshots, entries, clk, m)

	return NewRouter(RouterConfig{
		AccountHandler:  handler.NewAccountHandler(accountUC),
		TransferHandler: handler.NewTransferHandler(service, ledgerUC),
		EntryHandler:    handler.NewEntryHandler(accountUC, ledgerUC),
		LedgerHandler:   handler.NewLedgerHandler(ledgerUC),
		HealthHandler:   handler.NewHealthHandler(),
		Metrics:         m,
		MetricsHandler:  promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		Logger:          zerolog.Nop(),
	})
}

func do(t *testing.T, router http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("failed to decode %s: %v", rec.Body.String(), err)
	}
	return v
}

func TestNewRouter_HealthEndpointAvailable(t *testing.T) {
	router := newTestRouter(t)

	for _, path := range []string{"/health", "/ready"} {
		if rec := do(t, router, http.MethodGet, path, "", nil); rec.Code != http.StatusOK {
			t.Fatalf("expected %s to return 200, got %d", path, rec.Code)
		}
	}
}

func TestNewRouter_RegistersKeyRoutes(t *testing.T) {
	router := newTestRouter(t)

	chiRoutes, ok := router.(chi.Router)
	if !ok {
		t.Fatal("router does not implement chi.Routes")
	}

	seen := map[string]bool{}
	if err := chi.Walk(chiRoutes, func(method string, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		seen[method+" "+route] = true
		return nil
	}); err != nil {
		t.Fatalf("walk failed: %v", err)
	}

	expected := []string{
		"GET /health",
		"GET /ready",
		"GET /metrics",
		"POST /api/v1/accounts/",
		"GET /api/v1/accounts/",
		"GET /api/v1/accounts/{id}",
		"PATCH /api/v1/accounts/{id}/status",
		"GET /api/v1/accounts/{id}/balance",
		"GET /api/v1/accounts/{id}/entries",
		"GET /api/v1/accounts/{id}/verify",
		"POST /api/v1/transfers/",
		"GET /api/v1/transfers/{id}",
		"GET /api/v1/transfers/{id}/entries",
		"GET /api/v1/transfers/{id}/verify",
		"GET /api/v1/ledger/verify",
	}

	for _, route := range expected {
		if !seen[route] {
			t.Fatalf("expected route %s to be registered", route)
		}
	}
}

func TestNewRouter_TransferLifecycle(t *testing.T) {
	router := newTestRouter(t)

	for _, body := range []string{
		`{"id":"issuer","currency":"USD","allow_negative":true}`,
		`{"id":"alice","currency":"USD"}`,
	} {
		if rec := do(t, router, http.MethodPost, "/api/v1/accounts", body, nil); rec.Code != http.StatusCreated {
			t.Fatalf("expected 201 opening account, got %d: %s", rec.Code, rec.Body.String())
		}
	}

	if rec := do(t, router, http.MethodPost, "/api/v1/accounts", `{"id":"alice","currency":"USD"}`, nil); rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate account, got %d", rec.Code)
	}

	fund := `{"from_account_id":"issuer","to_account_id":"alice","amount":"10.00","currency":"USD"}`
	headers := map[string]string{handler.IdempotencyKeyHeader: "fund-1", handler.CorrelationIDHeader: "corr-1"}

	first := do(t, router, http.MethodPost, "/api/v1/transfers", fund, headers)
	if first.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", first.Code, first.Body.String())
	}
	created := decode[dto.TransferResultResponse](t, first)

	replay := do(t, router, http.MethodPost, "/api/v1/transfers", fund, headers)
	if replay.Code != http.StatusOK {
		t.Fatalf("expected 200 on replay, got %d", replay.Code)
	}
	if got := decode[dto.TransferResultResponse](t, replay); got.TransferID != created.TransferID || !got.Replayed {
		t.Fatalf("expected replay of %s, got %+v", created.TransferID, got)
	}

	overdraw := `{"command_id":"pay-1","from_account_id":"alice","to_account_id":"issuer","amount_minor":5000,"currency":"USD"}`
	if rec := do(t, router, http.MethodPost, "/api/v1/transfers", overdraw, nil); rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}

	balance := decode[dto.BalanceResponse](t, do(t, router, http.MethodGet, "/api/v1/accounts/alice/balance", "", nil))
	if balance.Balance != "10.00" || balance.AsOfSequence != 1 {
		t.Fatalf("unexpected balance: %+v", balance)
	}

	transfer := decode[dto.TransferResponse](t, do(t, router, http.MethodGet, "/api/v1/transfers/"+created.TransferID, "", nil))
	if transfer.CommandID != "fund-1" || transfer.AmountMinor != 1000 {
		t.Fatalf("unexpected transfer: %+v", transfer)
	}

	entries := decode[[]dto.EntryResponse](t, do(t, router, http.MethodGet, "/api/v1/transfers/"+created.TransferID+"/entries", "", nil))
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}

	page := decode[dto.ListEntriesResponse](t, do(t, router, http.MethodGet, "/api/v1/accounts/alice/entries", "", nil))
	if len(page.Entries) != 1 || page.NextAfterSequence != 1 {
		t.Fatalf("unexpected entries page: %+v", page)
	}

	report := decode[dto.LedgerReportResponse](t, do(t, router, http.MethodGet, "/api/v1/ledger/verify", "", nil))
	if !report.Consistent || report.Accounts != 2 {
		t.Fatalf("expected consistent ledger, got %+v", report)
	}

	if rec := do(t, router, http.MethodGet, "/api/v1/transfers/"+created.TransferID+"/verify", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 verifying transfer, got %d", rec.Code)
	}
}

func TestNewRouter_FrozenAccountRejectsTransfers(t *testing.T) {
	router := newTestRouter(t)

	do(t, router, http.MethodPost, "/api/v1/accounts", `{"id":"issuer","currency":"USD","allow_negative":true}`, nil)
	do(t, router, http.MethodPost, "/api/v1/accounts", `{"id":"alice","currency":"USD"}`, nil)

	rec := do(t, router, http.MethodPatch, "/api/v1/accounts/alice/status", `{"status":"FROZEN"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 freezing account, got %d", rec.Code)
	}

	body := `{"command_id":"fund-1","from_account_id":"issuer","to_account_id":"alice","amount_minor":100,"currency":"USD"}`
	if rec := do(t, router, http.MethodPost, "/api/v1/transfers", body, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for frozen account, got %d", rec.Code)
	}

	if rec := do(t, router, http.MethodGet, "/api/v1/accounts/ghost", "", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestNewRouter_RejectsUnstorableCommandIDs(t *testing.T) {
	router := newTestRouter(t)

	do(t, router, http.MethodPost, "/api/v1/accounts", `{"id":"issuer","currency":"USD","allow_negative":true}`, nil)
	do(t, router, http.MethodPost, "/api/v1/accounts", `{"id":"alice","currency":"USD"}`, nil)

	for _, body := range []string{
		`{"command_id":"fund\u0000-1","from_account_id":"issuer","to_account_id":"alice","amount_minor":100,"currency":"USD"}`,
		`{"command_id":"fund-1","correlation_id":"trace\u0000","from_account_id":"issuer","to_account_id":"alice","amount_minor":100,"currency":"USD"}`,
	} {
		if rec := do(t, router, http.MethodPost, "/api/v1/transfers", body, nil); rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for %s, got %d: %s", body, rec.Code, rec.Body.String())
		}
	}
}

func TestNewRouter_ExposesMetrics(t *testing.T) {
	router := newTestRouter(t)

	do(t, router, http.MethodGet, "/health", "", nil)

	rec := do(t, router, http.MethodGet, "/metrics", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `ledgercore_http_requests_total{method="GET",path="/health",status="200"} 1`) {
		t.Fatalf("expected request counter in metrics output")
	}
}
