package handler_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pennyledger/pennyledger/internal/account"
	"github.com/pennyledger/pennyledger/internal/ledger"
	"github.com/pennyledger/pennyledger/internal/store/memory"
	"github.com/pennyledger/pennyledger/internal/transport/httpapi"
	"github.com/pennyledger/pennyledger/internal/transport/httpapi/handler"
	"github.com/pennyledger/pennyledger/pkg/logger"
)

func newTestRouter(t *testing.T) *chi.Mux {
	t.Helper()

	store := memory.New()
	log := logger.NewDefault("test")
	engine := ledger.NewEngine(store, log)
	accountSvc := account.NewService(store, log)

	return httpapi.NewRouter(httpapi.Config{
		Logger:             log,
		AllowedOrigins:     []string{"http://localhost:5173"},
		RateLimitRPS:       1000,
		RateLimitBurst:     1000,
		AccountHandler:     handler.NewAccountHandler(accountSvc),
		TransactionHandler: handler.NewTransactionHandler(engine),
		TransferHandler:    handler.NewTransferHandler(engine),
		HealthHandler:      handler.NewHealthHandler(nil),
	})
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

func createAccount(t *testing.T, router http.Handler, name, currency, balance string) handler.AccountResponse {
	t.Helper()
	rec := doJSON(t, router, http.MethodPost, "/api/v1/accounts", map[string]string{
		"name":            name,
		"currency":        currency,
		"initial_balance": balance,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeBody[handler.AccountResponse](t, rec)
}

func TestHealthEndpoint(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/health/ready", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAccountEndpoints(t *testing.T) {
	router := newTestRouter(t)

	acc := createAccount(t, router, "Cash", "EUR", "100")
	assert.Equal(t, "Cash", acc.Name)
	assert.Equal(t, "EUR", acc.Currency)
	assert.Equal(t, "100", acc.Balance)
	assert.True(t, acc.Active)

	t.Run("duplicate name conflicts", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, "/api/v1/accounts", map[string]string{
			"name": "cash", "currency": "EUR",
		})
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("get by id", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodGet, "/api/v1/accounts/"+acc.ID, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		got := decodeBody[handler.AccountResponse](t, rec)
		assert.Equal(t, acc.ID, got.ID)
	})

	t.Run("rename", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPut, "/api/v1/accounts/"+acc.ID, map[string]string{"name": "Wallet"})
		require.Equal(t, http.StatusOK, rec.Code)
		got := decodeBody[handler.AccountResponse](t, rec)
		assert.Equal(t, "Wallet", got.Name)
	})

	t.Run("list", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodGet, "/api/v1/accounts", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		got := decodeBody[handler.AccountListResponse](t, rec)
		assert.Len(t, got.Accounts, 1)
	})

	t.Run("archive then exclude from listing", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodDelete, "/api/v1/accounts/"+acc.ID, nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)

		list := decodeBody[handler.AccountListResponse](t, doJSON(t, router, http.MethodGet, "/api/v1/accounts", nil))
		assert.Empty(t, list.Accounts)

		all := decodeBody[handler.AccountListResponse](t, doJSON(t, router, http.MethodGet, "/api/v1/accounts?include_archived=true", nil))
		assert.Len(t, all.Accounts, 1)
	})

	t.Run("invalid id is a bad request", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodGet, "/api/v1/accounts/not-a-uuid", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestTransactionEndpoints(t *testing.T) {
	router := newTestRouter(t)
	createAccount(t, router, "Cash", "EUR", "100")

	payload := map[string]string{
		"account_name": "Cash",
		"amount":       "20",
		"currency":     "EUR",
		"kind":         "expense",
		"category":     "Groceries",
		"date":         "2026-03-14T12:00:00Z",
	}

	rec := doJSON(t, router, http.MethodPost, "/api/v1/transactions", payload)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeBody[handler.CommitResponse](t, rec)
	require.Len(t, created.Balances, 1)
	assert.Equal(t, "80", created.Balances[0].Balance)

	t.Run("update", func(t *testing.T) {
		payload["kind"] = "income"
		payload["amount"] = "50"
		rec := doJSON(t, router, http.MethodPut, "/api/v1/transactions/"+created.RecordID, payload)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		updated := decodeBody[handler.CommitResponse](t, rec)
		require.Len(t, updated.Balances, 1)
		assert.Equal(t, "150", updated.Balances[0].Balance)
	})

	t.Run("list", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodGet, "/api/v1/transactions", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		list := decodeBody[handler.TransactionListResponse](t, rec)
		require.Len(t, list.Transactions, 1)
		assert.Equal(t, "income", list.Transactions[0].Kind)
	})

	t.Run("delete reverses the effect", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodDelete, "/api/v1/transactions/"+created.RecordID, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		deleted := decodeBody[handler.CommitResponse](t, rec)
		require.Len(t, deleted.Balances, 1)
		assert.Equal(t, "100", deleted.Balances[0].Balance)
	})

	t.Run("unknown account is not found", func(t *testing.T) {
		bad := map[string]string{}
		for k, v := range payload {
			bad[k] = v
		}
		bad["account_name"] = "Nope"
		rec := doJSON(t, router, http.MethodPost, "/api/v1/transactions", bad)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("malformed body is a bad request", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/transactions", bytes.NewBufferString("{"))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestTransferEndpoints(t *testing.T) {
	router := newTestRouter(t)
	createAccount(t, router, "T1", "EUR", "100")
	createAccount(t, router, "T2", "EUR", "100")

	payload := map[string]string{
		"source_account":  "T1",
		"dest_account":    "T2",
		"source_amount":   "20",
		"source_currency": "EUR",
		"date":            "2026-03-14T12:00:00Z",
	}

	rec := doJSON(t, router, http.MethodPost, "/api/v1/transfers", payload)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeBody[handler.CommitResponse](t, rec)
	require.Len(t, created.Balances, 2)

	balances := map[string]string{}
	for _, b := range created.Balances {
		balances[b.Name] = b.Balance
	}
	assert.Equal(t, "80", balances["T1"])
	assert.Equal(t, "120", balances["T2"])

	t.Run("get", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodGet, "/api/v1/transfers/"+created.RecordID, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		got := decodeBody[handler.TransferResponse](t, rec)
		assert.Equal(t, "20", got.SourceAmount)
		assert.Equal(t, "EUR", got.DestCurrency)
	})

	t.Run("shadow rows show up in the unified listing", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodGet, "/api/v1/transactions", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		list := decodeBody[handler.TransactionListResponse](t, rec)
		require.Len(t, list.Transactions, 2)
		for _, tx := range list.Transactions {
			assert.Equal(t, "Transfer", tx.Category)
			assert.Equal(t, created.RecordID, tx.TransferLinkID)
		}
	})

	t.Run("update amount", func(t *testing.T) {
		payload["source_amount"] = "30"
		rec := doJSON(t, router, http.MethodPut, "/api/v1/transfers/"+created.RecordID, payload)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		updated := decodeBody[handler.CommitResponse](t, rec)
		got := map[string]string{}
		for _, b := range updated.Balances {
			got[b.Name] = b.Balance
		}
		assert.Equal(t, "70", got["T1"])
		assert.Equal(t, "130", got["T2"])
	})

	t.Run("delete restores balances", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodDelete, "/api/v1/transfers/"+created.RecordID, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		deleted := decodeBody[handler.CommitResponse](t, rec)
		for _, b := range deleted.Balances {
			assert.Equal(t, "100", b.Balance)
		}
	})

	t.Run("same account transfer rejected", func(t *testing.T) {
		bad := map[string]string{
			"source_account":  "T1",
			"dest_account":    "t1",
			"source_amount":   "20",
			"source_currency": "EUR",
			"date":            "2026-03-14T12:00:00Z",
		}
		rec := doJSON(t, router, http.MethodPost, "/api/v1/transfers", bad)
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		body := decodeBody[map[string]string](t, rec)
		assert.Equal(t, "SAME_ACCOUNT_TRANSFER", body["code"])
	})
}

func TestShadowRowMutationConflicts(t *testing.T) {
	router := newTestRouter(t)
	createAccount(t, router, "T1", "EUR", "100")
	createAccount(t, router, "T2", "EUR", "100")

	rec := doJSON(t, router, http.MethodPost, "/api/v1/transfers", map[string]string{
		"source_account":  "T1",
		"dest_account":    "T2",
		"source_amount":   "20",
		"source_currency": "EUR",
		"date":            "2026-03-14T12:00:00Z",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	list := decodeBody[handler.TransactionListResponse](t, doJSON(t, router, http.MethodGet, "/api/v1/transactions", nil))
	require.NotEmpty(t, list.Transactions)
	shadowID := list.Transactions[0].ID

	del := doJSON(t, router, http.MethodDelete, fmt.Sprintf("/api/v1/transactions/%s", shadowID), nil)
	assert.Equal(t, http.StatusConflict, del.Code)
}
