package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pennyledger/pennyledger/internal/ledger"
	"github.com/pennyledger/pennyledger/pkg/money"
)

// LedgerEngine defines the engine operations the transaction and transfer
// handlers need.
type LedgerEngine interface {
	InsertSimpleTransaction(ctx context.Context, req ledger.SimpleTransactionRequest) (*ledger.CommitResult, error)
	UpdateSimpleTransaction(ctx context.Context, id uuid.UUID, req ledger.SimpleTransactionRequest) (*ledger.CommitResult, error)
	DeleteSimpleTransaction(ctx context.Context, id uuid.UUID) (*ledger.CommitResult, error)
	InsertTransfer(ctx context.Context, req ledger.TransferRequest) (*ledger.CommitResult, error)
	UpdateTransfer(ctx context.Context, id uuid.UUID, req ledger.TransferRequest) (*ledger.CommitResult, error)
	DeleteTransfer(ctx context.Context, id uuid.UUID) (*ledger.CommitResult, error)
	ListTransactions(ctx context.Context, filters ledger.RecordFilters) ([]*ledger.SimpleTransaction, error)
}

// TransactionHandler handles expense/income HTTP requests
type TransactionHandler struct {
	engine LedgerEngine
}

// NewTransactionHandler creates a new transaction handler
func NewTransactionHandler(engine LedgerEngine) *TransactionHandler {
	return &TransactionHandler{engine: engine}
}

// simpleTransactionPayload is the wire shape of an expense/income request
type simpleTransactionPayload struct {
	AccountName string `json:"account_name"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	Kind        string `json:"kind"` // expense or income
	Category    string `json:"category"`
	Date        string `json:"date"` // RFC3339
	Comment     string `json:"comment,omitempty"`
}

// BalanceResponse is the post-commit balance of one touched account
type BalanceResponse struct {
	AccountID string `json:"account_id"`
	Name      string `json:"name"`
	Currency  string `json:"currency"`
	Balance   string `json:"balance"`
}

// CommitResponse reports a committed mutation
type CommitResponse struct {
	RecordID string            `json:"record_id"`
	Balances []BalanceResponse `json:"balances"`
}

// TransactionResponse is one row of the unified transaction listing
type TransactionResponse struct {
	ID             string `json:"id"`
	AccountID      string `json:"account_id"`
	Amount         string `json:"amount"`
	Currency       string `json:"currency"`
	Kind           string `json:"kind"`
	Category       string `json:"category"`
	Date           string `json:"date"`
	Comment        string `json:"comment,omitempty"`
	TransferLinkID string `json:"transfer_link_id,omitempty"`
}

// TransactionListResponse is a paginated transaction listing
type TransactionListResponse struct {
	Transactions []TransactionResponse `json:"transactions"`
	Page         int                   `json:"page"`
	PageSize     int                   `json:"page_size"`
}

// CreateTransaction handles POST /transactions
func (h *TransactionHandler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeSimpleRequest(w, r)
	if !ok {
		return
	}

	result, err := h.engine.InsertSimpleTransaction(r.Context(), req)
	if err != nil {
		respondLedgerError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, toCommitResponse(result))
}

// UpdateTransaction handles PUT /transactions/{id}
func (h *TransactionHandler) UpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	req, ok := decodeSimpleRequest(w, r)
	if !ok {
		return
	}

	result, err := h.engine.UpdateSimpleTransaction(r.Context(), id, req)
	if err != nil {
		respondLedgerError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, toCommitResponse(result))
}

// DeleteTransaction handles DELETE /transactions/{id}
func (h *TransactionHandler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	result, err := h.engine.DeleteSimpleTransaction(r.Context(), id)
	if err != nil {
		respondLedgerError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, toCommitResponse(result))
}

// ListTransactions handles GET /transactions
func (h *TransactionHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	page, _ := strconv.Atoi(query.Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(query.Get("page_size"))
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	filters := ledger.RecordFilters{
		Limit:  pageSize,
		Offset: (page - 1) * pageSize,
	}

	if accountID := query.Get("account_id"); accountID != "" {
		id, err := uuid.Parse(accountID)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "invalid account_id")
			return
		}
		filters.AccountID = &id
	}

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

	txs, err := h.engine.ListTransactions(r.Context(), filters)
	if err != nil {
		respondLedgerError(w, err)
		return
	}

	out := make([]TransactionResponse, len(txs))
	for i, tx := range txs {
		out[i] = toTransactionResponse(tx)
	}

	respondWithJSON(w, http.StatusOK, TransactionListResponse{
		Transactions: out,
		Page:         page,
		PageSize:     pageSize,
	})
}

func decodeSimpleRequest(w http.ResponseWriter, r *http.Request) (ledger.SimpleTransactionRequest, bool) {
	var payload simpleTransactionPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return ledger.SimpleTransactionRequest{}, false
	}

	amount, err := money.Parse(payload.Amount)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid amount format")
		return ledger.SimpleTransactionRequest{}, false
	}

	date, err := time.Parse(time.RFC3339, payload.Date)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid date format (use RFC3339)")
		return ledger.SimpleTransactionRequest{}, false
	}

	return ledger.SimpleTransactionRequest{
		AccountName: payload.AccountName,
		Amount:      amount,
		Currency:    payload.Currency,
		Kind:        ledger.Kind(payload.Kind),
		Category:    payload.Category,
		Date:        date,
		Comment:     payload.Comment,
	}, true
}

func parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := chi.URLParam(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid id")
		return uuid.Nil, false
	}
	return id, true
}

func toCommitResponse(result *ledger.CommitResult) CommitResponse {
	balances := make([]BalanceResponse, len(result.Balances))
	for i, b := range result.Balances {
		balances[i] = BalanceResponse{
			AccountID: b.AccountID.String(),
			Name:      b.Name,
			Currency:  b.Currency,
			Balance:   b.Balance.String(),
		}
	}
	return CommitResponse{
		RecordID: result.RecordID.String(),
		Balances: balances,
	}
}

func toTransactionResponse(tx *ledger.SimpleTransaction) TransactionResponse {
	resp := TransactionResponse{
		ID:        tx.ID.String(),
		AccountID: tx.AccountID.String(),
		Amount:    tx.Amount.String(),
		Currency:  tx.Currency,
		Kind:      tx.Kind.String(),
		Category:  tx.Category,
		Date:      tx.Date.Format(time.RFC3339),
		Comment:   tx.Comment,
	}
	if tx.TransferLinkID != nil {
		resp.TransferLinkID = tx.TransferLinkID.String()
	}
	return resp
}
