package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pennyledger/pennyledger/internal/ledger"
	"github.com/pennyledger/pennyledger/pkg/money"
)

// TransferEngine extends LedgerEngine with transfer read operations.
type TransferEngine interface {
	LedgerEngine
	GetTransfer(ctx context.Context, id uuid.UUID) (*ledger.Transfer, error)
	ListTransfers(ctx context.Context, filters ledger.RecordFilters) ([]*ledger.Transfer, error)
}

// TransferHandler handles transfer HTTP requests
type TransferHandler struct {
	engine TransferEngine
}

// NewTransferHandler creates a new transfer handler
func NewTransferHandler(engine TransferEngine) *TransferHandler {
	return &TransferHandler{engine: engine}
}

// transferPayload is the wire shape of a transfer request. DestAmount and
// DestCurrency are optional for same-currency transfers.
type transferPayload struct {
	SourceAccount  string  `json:"source_account"`
	DestAccount    string  `json:"dest_account"`
	SourceAmount   string  `json:"source_amount"`
	SourceCurrency string  `json:"source_currency"`
	DestAmount     *string `json:"dest_amount,omitempty"`
	DestCurrency   string  `json:"dest_currency,omitempty"`
	Date           string  `json:"date"` // RFC3339
	Comment        string  `json:"comment,omitempty"`
}

// TransferResponse is one transfer in a listing
type TransferResponse struct {
	ID             string `json:"id"`
	SourceAccount  string `json:"source_account"`
	DestAccount    string `json:"dest_account"`
	SourceAmount   string `json:"source_amount"`
	SourceCurrency string `json:"source_currency"`
	DestAmount     string `json:"dest_amount"`
	DestCurrency   string `json:"dest_currency"`
	Date           string `json:"date"`
	Comment        string `json:"comment,omitempty"`
}

// TransferListResponse is a transfer listing
type TransferListResponse struct {
	Transfers []TransferResponse `json:"transfers"`
}

// CreateTransfer handles POST /transfers
func (h *TransferHandler) CreateTransfer(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeTransferRequest(w, r)
	if !ok {
		return
	}

	result, err := h.engine.InsertTransfer(r.Context(), req)
	if err != nil {
		respondLedgerError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, toCommitResponse(result))
}

// UpdateTransfer handles PUT /transfers/{id}
func (h *TransferHandler) UpdateTransfer(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	req, ok := decodeTransferRequest(w, r)
	if !ok {
		return
	}

	result, err := h.engine.UpdateTransfer(r.Context(), id, req)
	if err != nil {
		respondLedgerError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, toCommitResponse(result))
}

// DeleteTransfer handles DELETE /transfers/{id}
func (h *TransferHandler) DeleteTransfer(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	result, err := h.engine.DeleteTransfer(r.Context(), id)
	if err != nil {
		respondLedgerError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, toCommitResponse(result))
}

// GetTransfer handles GET /transfers/{id}
func (h *TransferHandler) GetTransfer(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	tr, err := h.engine.GetTransfer(r.Context(), id)
	if err != nil {
		respondLedgerError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, toTransferResponse(tr))
}

// ListTransfers handles GET /transfers
func (h *TransferHandler) ListTransfers(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	filters := ledger.RecordFilters{Limit: 100}

	if from := query.Get("from"); from != "" {
		t, err := time.Parse(time.RFC3339, from)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "invalid from date (use RFC3339)")
			return
		}
		filters.From = &t
	}

	if to := query.Get("to"); to != "" {
		t, err := time.Parse(time.RFC3339, to)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "invalid to date (use RFC3339)")
			return
		}
		filters.To = &t
	}

	transfers, err := h.engine.ListTransfers(r.Context(), filters)
	if err != nil {
		respondLedgerError(w, err)
		return
	}

	out := make([]TransferResponse, len(transfers))
	for i, tr := range transfers {
		out[i] = toTransferResponse(tr)
	}

	respondWithJSON(w, http.StatusOK, TransferListResponse{Transfers: out})
}

func decodeTransferRequest(w http.ResponseWriter, r *http.Request) (ledger.TransferRequest, bool) {
	var payload transferPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return ledger.TransferRequest{}, false
	}

	sourceAmount, err := money.Parse(payload.SourceAmount)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid source_amount format")
		return ledger.TransferRequest{}, false
	}

	var destAmount *decimal.Decimal
	if payload.DestAmount != nil {
		d, err := money.Parse(*payload.DestAmount)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "invalid dest_amount format")
			return ledger.TransferRequest{}, false
		}
		destAmount = &d
	}

	date, err := time.Parse(time.RFC3339, payload.Date)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid date format (use RFC3339)")
		return ledger.TransferRequest{}, false
	}

	return ledger.TransferRequest{
		SourceAccountName: payload.SourceAccount,
		DestAccountName:   payload.DestAccount,
		SourceAmount:      sourceAmount,
		SourceCurrency:    payload.SourceCurrency,
		DestAmount:        destAmount,
		DestCurrency:      payload.DestCurrency,
		Date:              date,
		Comment:           payload.Comment,
	}, true
}

func toTransferResponse(tr *ledger.Transfer) TransferResponse {
	return TransferResponse{
		ID:             tr.ID.String(),
		SourceAccount:  tr.SourceAccount.String(),
		DestAccount:    tr.DestAccount.String(),
		SourceAmount:   tr.SourceAmount.String(),
		SourceCurrency: tr.SourceCurrency,
		DestAmount:     tr.DestAmount.String(),
		DestCurrency:   tr.DestCurrency,
		Date:           tr.Date.Format(time.RFC3339),
		Comment:        tr.Comment,
	}
}
