package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/ledgercore/internal/adapter/http/dto"
	"github.com/iho/ledgercore/internal/usecase"
)

// LedgerVerifier recomputes ledger invariants.
type LedgerVerifier interface {
	VerifyAccount(ctx context.Context, accountID string) (*usecase.AccountReport, error)
	VerifyTransfer(ctx context.Context, transferID string) (*usecase.TransferReport, error)
	VerifyAll(ctx context.Context) (*usecase.LedgerReport, error)
}

// LedgerHandler handles ledger-wide operations.
// Reports are returned with 200 either way; the consistent field carries the verdict.
type LedgerHandler struct {
	ledgerUC LedgerVerifier
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(ledgerUC LedgerVerifier) *LedgerHandler {
	return &LedgerHandler{ledgerUC: ledgerUC}
}

// VerifyAccount checks one account's sequence and snapshot.
func (h *LedgerHandler) VerifyAccount(w http.ResponseWriter, r *http.Request) {
	report, err := h.ledgerUC.VerifyAccount(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, "failed to verify account", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.AccountReportFromUseCase(report))
}

// VerifyTransfer checks that one transfer's entries balance.
func (h *LedgerHandler) VerifyTransfer(w http.ResponseWriter, r *http.Request) {
	report, err := h.ledgerUC.VerifyTransfer(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, "failed to verify transfer", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.TransferReportFromUseCase(report))
}

// VerifyAll checks every account and the per-currency totals.
func (h *LedgerHandler) VerifyAll(w http.ResponseWriter, r *http.Request) {
	report, err := h.ledgerUC.VerifyAll(r.Context())
	if err != nil {
		writeDomainError(w, r, "failed to verify ledger", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.LedgerReportFromUseCase(report))
}
