package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pennyledger/pennyledger/internal/ledger"
)

func testAccount(name string) *ledger.Account {
	now := time.Now()
	return &ledger.Account{
		ID:        uuid.New(),
		Name:      name,
		Currency:  "EUR",
		Balance:   decimal.NewFromInt(100),
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestAccountNameUniquenessIsCaseInsensitive(t *testing.T) {
	store := New()
	ctx := context.Background()

	require.NoError(t, store.CreateAccount(ctx, testAccount("Cash")))

	err := store.CreateAccount(ctx, testAccount("CASH"))
	assert.ErrorIs(t, err, ledger.ErrAccountNameTaken)

	got, err := store.GetAccountByName(ctx, "  cash ")
	require.NoError(t, err)
	assert.Equal(t, "Cash", got.Name)
}

func TestRenameCollisionRejected(t *testing.T) {
	store := New()
	ctx := context.Background()

	a := testAccount("Cash")
	b := testAccount("Bank")
	require.NoError(t, store.CreateAccount(ctx, a))
	require.NoError(t, store.CreateAccount(ctx, b))

	b.Name = "cash"
	assert.ErrorIs(t, store.UpdateAccount(ctx, b), ledger.ErrAccountNameTaken)
}

func TestListAccountsFiltersArchived(t *testing.T) {
	store := New()
	ctx := context.Background()

	active := testAccount("Active")
	archived := testAccount("Dormant")
	archived.Active = false
	require.NoError(t, store.CreateAccount(ctx, active))
	require.NoError(t, store.CreateAccount(ctx, archived))

	visible, err := store.ListAccounts(ctx, false)
	require.NoError(t, err)
	require.Len(t, visible, 1)
	assert.Equal(t, "Active", visible[0].Name)

	all, err := store.ListAccounts(ctx, true)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestRollbackRestoresSnapshot(t *testing.T) {
	store := New()
	ctx := context.Background()

	acc := testAccount("Cash")
	require.NoError(t, store.CreateAccount(ctx, acc))

	txCtx, err := store.BeginTx(ctx)
	require.NoError(t, err)

	require.NoError(t, store.SetAccountBalance(txCtx, acc.ID, decimal.NewFromInt(5)))
	require.NoError(t, store.CreateSimple(txCtx, &ledger.SimpleTransaction{
		ID:        uuid.New(),
		AccountID: acc.ID,
		Amount:    decimal.NewFromInt(95),
		Currency:  "EUR",
		Kind:      ledger.KindExpense,
	}))

	require.NoError(t, store.RollbackTx(txCtx))

	got, err := store.GetAccount(ctx, acc.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(100)))

	records, err := store.ListSimple(ctx, ledger.RecordFilters{})
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestCommitKeepsChanges(t *testing.T) {
	store := New()
	ctx := context.Background()

	acc := testAccount("Cash")
	require.NoError(t, store.CreateAccount(ctx, acc))

	txCtx, err := store.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, store.SetAccountBalance(txCtx, acc.ID, decimal.NewFromInt(42)))
	require.NoError(t, store.CommitTx(txCtx))

	got, err := store.GetAccount(ctx, acc.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(42)))
}

func TestTxManagementErrors(t *testing.T) {
	store := New()
	ctx := context.Background()

	assert.ErrorIs(t, store.CommitTx(ctx), ledger.ErrNoTx)
	assert.ErrorIs(t, store.RollbackTx(ctx), ledger.ErrNoTx)

	txCtx, err := store.BeginTx(ctx)
	require.NoError(t, err)
	_, err = store.BeginTx(txCtx)
	assert.ErrorIs(t, err, ledger.ErrTxInProgress)
	require.NoError(t, store.RollbackTx(txCtx))
}

func TestCountAccountRecords(t *testing.T) {
	store := New()
	ctx := context.Background()

	a := testAccount("Cash")
	b := testAccount("Bank")
	require.NoError(t, store.CreateAccount(ctx, a))
	require.NoError(t, store.CreateAccount(ctx, b))

	require.NoError(t, store.CreateSimple(ctx, &ledger.SimpleTransaction{
		ID:        uuid.New(),
		AccountID: a.ID,
		Amount:    decimal.NewFromInt(10),
		Currency:  "EUR",
		Kind:      ledger.KindExpense,
	}))
	require.NoError(t, store.CreateTransfer(ctx, &ledger.Transfer{
		ID:             uuid.New(),
		SourceAccount:  a.ID,
		DestAccount:    b.ID,
		SourceAmount:   decimal.NewFromInt(5),
		DestAmount:     decimal.NewFromInt(5),
		SourceCurrency: "EUR",
		DestCurrency:   "EUR",
	}))

	countA, err := store.CountAccountRecords(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, countA)

	countB, err := store.CountAccountRecords(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, countB)
}

func TestListSimplePagination(t *testing.T) {
	store := New()
	ctx := context.Background()

	acc := testAccount("Cash")
	require.NoError(t, store.CreateAccount(ctx, acc))

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, store.CreateSimple(ctx, &ledger.SimpleTransaction{
			ID:        uuid.New(),
			AccountID: acc.ID,
			Amount:    decimal.NewFromInt(1),
			Currency:  "EUR",
			Kind:      ledger.KindExpense,
			Date:      base.AddDate(0, 0, i),
		}))
	}

	page, err := store.ListSimple(ctx, ledger.RecordFilters{Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	// Newest first
	assert.True(t, page[0].Date.Equal(base.AddDate(0, 0, 2)))
	assert.True(t, page[1].Date.Equal(base.AddDate(0, 0, 1)))
}

func TestDateRangeFilters(t *testing.T) {
	store := New()
	ctx := context.Background()

	acc := testAccount("Cash")
	require.NoError(t, store.CreateAccount(ctx, acc))

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		require.NoError(t, store.CreateSimple(ctx, &ledger.SimpleTransaction{
			ID:        uuid.New(),
			AccountID: acc.ID,
			Amount:    decimal.NewFromInt(1),
			Currency:  "EUR",
			Kind:      ledger.KindIncome,
			Date:      base.AddDate(0, 0, i),
		}))
	}

	from := base.AddDate(0, 0, 1)
	to := base.AddDate(0, 0, 2)
	got, err := store.ListSimple(ctx, ledger.RecordFilters{From: &from, To: &to})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}
