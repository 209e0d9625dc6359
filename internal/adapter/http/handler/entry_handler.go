package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/ledgercore/internal/adapter/http/dto"
	"github.com/iho/ledgercore/internal/domain"
)

// AccountEntryLister lists an account's entries by sequence number.
type AccountEntryLister interface {
	Entries(ctx context.Context, id string, afterSequence int64, limit int) ([]*domain.LedgerEntry, error)
}

// TransferEntryLister lists the entries a transfer posted.
type TransferEntryLister interface {
	TransferEntries(ctx context.Context, transferID string) ([]*domain.LedgerEntry, error)
}

// EntryHandler handles entry-related HTTP requests.
type EntryHandler struct {
	accounts  AccountEntryLister
	transfers TransferEntryLister
}

// NewEntryHandler creates a new EntryHandler.
func NewEntryHandler(accounts AccountEntryLister, transfers TransferEntryLister) *EntryHandler {
	return &EntryHandler{accounts: accounts, transfers: transfers}
}

// ListByAccount lists entries for an account after the after_sequence cursor.
func (h *EntryHandler) ListByAccount(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "id")
	if accountID == "" {
		writeError(w, http.StatusBadRequest, "missing account ID", "")
		return
	}

	limit := parseIntQuery(r, "limit", domain.DefaultPageSize)
	after := parseInt64Query(r, "after_sequence", 0)

	entries, err := h.accounts.Entries(r.Context(), accountID, after, limit)
	if err != nil {
		writeDomainError(w, r, "failed to list entries", err)
		return
	}

	resp := dto.ListEntriesResponse{Entries: dto.EntriesFromDomain(entries)}
	if len(entries) > 0 {
		resp.NextAfterSequence = entries[len(entries)-1].Sequence
	}

	writeJSON(w, http.StatusOK, resp)
}

// ListByTransfer lists entries for a transfer.
func (h *EntryHandler) ListByTransfer(w http.ResponseWriter, r *http.Request) {
	transferID := chi.URLParam(r, "id")
	if transferID == "" {
		writeError(w, http.StatusBadRequest, "missing transfer ID", "")
		return
	}

	entries, err := h.transfers.TransferEntries(r.Context(), transferID)
	if err != nil {
		writeDomainError(w, r, "failed to list entries", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.EntriesFromDomain(entries))
}
