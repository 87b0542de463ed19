package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pennyledger/pennyledger/internal/account"
	"github.com/pennyledger/pennyledger/internal/ledger"
	"github.com/pennyledger/pennyledger/pkg/money"
)

// AccountService defines the account operations the handler needs.
type AccountService interface {
	Create(ctx context.Context, req account.CreateRequest) (*ledger.Account, error)
	Get(ctx context.Context, id uuid.UUID) (*ledger.Account, error)
	List(ctx context.Context, includeArchived bool) ([]*ledger.Account, error)
	Rename(ctx context.Context, id uuid.UUID, name string) (*ledger.Account, error)
	Archive(ctx context.Context, id uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// AccountHandler handles account HTTP requests
type AccountHandler struct {
	service AccountService
}

// NewAccountHandler creates a new account handler
func NewAccountHandler(service AccountService) *AccountHandler {
	return &AccountHandler{service: service}
}

type createAccountPayload struct {
	Name           string `json:"name"`
	Currency       string `json:"currency"`
	InitialBalance string `json:"initial_balance,omitempty"`
}

type renameAccountPayload struct {
	Name string `json:"name"`
}

// AccountResponse is one account in API responses
type AccountResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Currency  string `json:"currency"`
	Balance   string `json:"balance"`
	Active    bool   `json:"active"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// AccountListResponse is an account listing
type AccountListResponse struct {
	Accounts []AccountResponse `json:"accounts"`
}

// CreateAccount handles POST /accounts
func (h *AccountHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var payload createAccountPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	initial := decimal.Zero
	if payload.InitialBalance != "" {
		var err error
		initial, err = money.Parse(payload.InitialBalance)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "invalid initial_balance format")
			return
		}
	}

	acc, err := h.service.Create(r.Context(), account.CreateRequest{
		Name:           payload.Name,
		Currency:       payload.Currency,
		InitialBalance: initial,
	})
	if err != nil {
		respondLedgerError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, toAccountResponse(acc))
}

// GetAccount handles GET /accounts/{id}
func (h *AccountHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	acc, err := h.service.Get(r.Context(), id)
	if err != nil {
		respondLedgerError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, toAccountResponse(acc))
}

// ListAccounts handles GET /accounts
func (h *AccountHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	includeArchived := r.URL.Query().Get("include_archived") == "true"

	accounts, err := h.service.List(r.Context(), includeArchived)
	if err != nil {
		respondLedgerError(w, err)
		return
	}

	out := make([]AccountResponse, len(accounts))
	for i, acc := range accounts {
		out[i] = toAccountResponse(acc)
	}

	respondWithJSON(w, http.StatusOK, AccountListResponse{Accounts: out})
}

// RenameAccount handles PUT /accounts/{id}
func (h *AccountHandler) RenameAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	var payload renameAccountPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	acc, err := h.service.Rename(r.Context(), id, payload.Name)
	if err != nil {
		respondLedgerError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, toAccountResponse(acc))
}

// DeleteAccount handles DELETE /accounts/{id}. The default is a soft
// archive; ?hard=true removes the account permanently, which is refused
// while any transaction still references it.
func (h *AccountHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	var err error
	if r.URL.Query().Get("hard") == "true" {
		err = h.service.Delete(r.Context(), id)
	} else {
		err = h.service.Archive(r.Context(), id)
	}
	if err != nil {
		respondLedgerError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func toAccountResponse(acc *ledger.Account) AccountResponse {
	return AccountResponse{
		ID:        acc.ID.String(),
		Name:      acc.Name,
		Currency:  acc.Currency,
		Balance:   acc.Balance.String(),
		Active:    acc.Active,
		CreatedAt: acc.CreatedAt.Format(time.RFC3339),
		UpdatedAt: acc.UpdatedAt.Format(time.RFC3339),
	}
}
