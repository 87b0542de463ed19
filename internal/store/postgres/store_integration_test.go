//go:build integration

package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pennyledger/pennyledger/internal/ledger"
	"github.com/pennyledger/pennyledger/pkg/logger"
	"github.com/pennyledger/pennyledger/testutil/testdb"
)

var testDB *testdb.TestDB

func TestMain(m *testing.M) {
	ctx := context.Background()

	var err error
	testDB, err = testdb.NewTestDB(ctx)
	if err != nil {
		panic("failed to create test database: " + err.Error())
	}

	code := m.Run()

	testDB.Close(ctx)
	os.Exit(code)
}

func newStore(t *testing.T) *Store {
	t.Helper()
	require.NoError(t, testDB.Reset(context.Background()))
	return NewStore(testDB.Pool)
}

func seedAccount(t *testing.T, store *Store, name, currency, balance string) *ledger.Account {
	t.Helper()
	now := time.Now().UTC()
	acc := &ledger.Account{
		ID:        uuid.New(),
		Name:      name,
		Currency:  currency,
		Balance:   decimal.RequireFromString(balance),
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, store.CreateAccount(context.Background(), acc))
	return acc
}

func TestAccountRoundTrip(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	acc := seedAccount(t, store, "Cash", "EUR", "100.55")

	got, err := store.GetAccount(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, "Cash", got.Name)
	assert.Equal(t, "EUR", got.Currency)
	assert.True(t, got.Balance.Equal(decimal.RequireFromString("100.55")))
	assert.True(t, got.Active)
}

func TestAccountNameUniqueCaseInsensitive(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	seedAccount(t, store, "Cash", "EUR", "0")

	err := store.CreateAccount(ctx, &ledger.Account{
		ID:        uuid.New(),
		Name:      "CASH",
		Currency:  "EUR",
		Active:    true,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	})
	assert.ErrorIs(t, err, ledger.ErrAccountNameTaken)

	got, err := store.GetAccountByName(ctx, "  cash ")
	require.NoError(t, err)
	assert.Equal(t, "Cash", got.Name)
}

func TestBalancePrecisionSurvivesRoundTrip(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	acc := seedAccount(t, store, "Cash", "EUR", "0")

	// NUMERIC(20,8), well beyond cent precision
	exact := decimal.RequireFromString("12345678901.12345678")
	require.NoError(t, store.SetAccountBalance(ctx, acc.ID, exact))

	got, err := store.GetAccount(ctx, acc.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(exact), "got %s", got.Balance)
}

func TestTransactionRollback(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	acc := seedAccount(t, store, "Cash", "EUR", "100")

	txCtx, err := store.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, store.SetAccountBalance(txCtx, acc.ID, decimal.NewFromInt(5)))
	require.NoError(t, store.RollbackTx(txCtx))

	got, err := store.GetAccount(ctx, acc.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(100)))
}

func TestTransferCascadeDeletesShadowRows(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	source := seedAccount(t, store, "T1", "EUR", "100")
	dest := seedAccount(t, store, "T2", "EUR", "100")

	now := time.Now().UTC()
	tr := &ledger.Transfer{
		ID:             uuid.New(),
		SourceAccount:  source.ID,
		DestAccount:    dest.ID,
		SourceAmount:   decimal.NewFromInt(20),
		DestAmount:     decimal.NewFromInt(20),
		SourceCurrency: "EUR",
		DestCurrency:   "EUR",
		Date:           now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	require.NoError(t, store.CreateTransfer(ctx, tr))

	linkID := tr.ID
	for _, leg := range []struct {
		account uuid.UUID
		kind    ledger.Kind
	}{{source.ID, ledger.KindExpense}, {dest.ID, ledger.KindIncome}} {
		require.NoError(t, store.CreateSimple(ctx, &ledger.SimpleTransaction{
			ID:             uuid.New(),
			AccountID:      leg.account,
			Amount:         decimal.NewFromInt(20),
			Currency:       "EUR",
			Kind:           leg.kind,
			Category:       ledger.CategoryTransfer,
			Date:           now,
			TransferLinkID: &linkID,
			CreatedAt:      now,
			UpdatedAt:      now,
		}))
	}

	shadows, err := store.GetSimpleByTransferLink(ctx, tr.ID)
	require.NoError(t, err)
	require.Len(t, shadows, 2)
	assert.Equal(t, ledger.KindExpense, shadows[0].Kind)

	// ON DELETE CASCADE on transfer_link_id
	require.NoError(t, store.DeleteTransfer(ctx, tr.ID))
	shadows, err = store.GetSimpleByTransferLink(ctx, tr.ID)
	require.NoError(t, err)
	assert.Empty(t, shadows)
}

func TestDeleteAccountInUse(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	acc := seedAccount(t, store, "Cash", "EUR", "100")
	now := time.Now().UTC()
	require.NoError(t, store.CreateSimple(ctx, &ledger.SimpleTransaction{
		ID:        uuid.New(),
		AccountID: acc.ID,
		Amount:    decimal.NewFromInt(10),
		Currency:  "EUR",
		Kind:      ledger.KindExpense,
		Category:  "Groceries",
		Date:      now,
		CreatedAt: now,
		UpdatedAt: now,
	}))

	assert.ErrorIs(t, store.DeleteAccount(ctx, acc.ID), ledger.ErrAccountInUse)

	count, err := store.CountAccountRecords(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

// The engine running against the real store must fold an amount change into
// one net delta per account, not re-apply the whole transfer.
func TestEngineAgainstPostgres(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	engine := ledger.NewEngine(store, logger.NewDefault("test"))

	t1 := seedAccount(t, store, "T1", "EUR", "100")
	t2 := seedAccount(t, store, "T2", "EUR", "100")

	result, err := engine.InsertTransfer(ctx, ledger.TransferRequest{
		SourceAccountName: "T1",
		DestAccountName:   "T2",
		SourceAmount:      decimal.NewFromInt(20),
		SourceCurrency:    "EUR",
		Date:              time.Now().UTC(),
	})
	require.NoError(t, err)

	_, err = engine.UpdateTransfer(ctx, result.RecordID, ledger.TransferRequest{
		SourceAccountName: "T1",
		DestAccountName:   "T2",
		SourceAmount:      decimal.NewFromInt(30),
		SourceCurrency:    "EUR",
		Date:              time.Now().UTC(),
	})
	require.NoError(t, err)

	gotT1, err := store.GetAccount(ctx, t1.ID)
	require.NoError(t, err)
	gotT2, err := store.GetAccount(ctx, t2.ID)
	require.NoError(t, err)
	assert.True(t, gotT1.Balance.Equal(decimal.NewFromInt(70)), "T1 = %s", gotT1.Balance)
	assert.True(t, gotT2.Balance.Equal(decimal.NewFromInt(130)), "T2 = %s", gotT2.Balance)
}
