package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/ledgercore/internal/adapter/http/dto"
	"github.com/iho/ledgercore/internal/domain"
	"github.com/iho/ledgercore/internal/usecase"
)

// TransferCommander executes transfer commands.
type TransferCommander interface {
	Transfer(ctx context.Context, cmd usecase.TransferCommand) (usecase.TransferOutcome, error)
}

// TransferReader loads recorded transfers.
type TransferReader interface {
	Transfer(ctx context.Context, transferID string) (*domain.Transfer, error)
}

// TransferHandler handles transfer-related HTTP requests.
type TransferHandler struct {
	commands TransferCommander
	reader   TransferReader
}

// NewTransferHandler creates a new TransferHandler.
func NewTransferHandler(commands TransferCommander, reader TransferReader) *TransferHandler {
	return &TransferHandler{commands: commands, reader: reader}
}

// Create executes a transfer command. A first execution answers 201, a replay
// of an earlier command id answers 200 with the original result.
func (h *TransferHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	cmd, err := req.ToCommand(r.Header.Get(IdempotencyKeyHeader), r.Header.Get(CorrelationIDHeader))
	if err != nil {
		writeDomainError(w, r, "invalid transfer", err)
		return
	}

	outcome, err := h.commands.Transfer(r.Context(), cmd)
	if err != nil {
		writeDomainError(w, r, "transfer rejected", err)
		return
	}

	status := http.StatusCreated
	if outcome.Replayed {
		status = http.StatusOK
	}

	writeJSON(w, status, dto.TransferResultFromOutcome(outcome))
}

// Get retrieves a transfer by ID.
func (h *TransferHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing transfer ID", "")
		return
	}

	transfer, err := h.reader.Transfer(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, "failed to get transfer", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.TransferFromDomain(transfer))
}
