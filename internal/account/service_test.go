package account_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pennyledger/pennyledger/internal/account"
	"github.com/pennyledger/pennyledger/internal/ledger"
	"github.com/pennyledger/pennyledger/internal/store/memory"
	"github.com/pennyledger/pennyledger/pkg/logger"
)

func newTestService(t *testing.T) (*account.Service, *memory.Store) {
	t.Helper()
	store := memory.New()
	return account.NewService(store, logger.NewDefault("test")), store
}

func TestCreateAccount(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	acc, err := svc.Create(ctx, account.CreateRequest{
		Name:           "Cash",
		Currency:       "eur",
		InitialBalance: decimal.RequireFromString("100.005"),
	})
	require.NoError(t, err)

	assert.Equal(t, "Cash", acc.Name)
	assert.Equal(t, "EUR", acc.Currency, "currency code is normalized")
	assert.True(t, acc.Balance.Equal(decimal.RequireFromString("100.01")), "initial balance rounds to minor units")
	assert.True(t, acc.Active)
}

func TestCreateAccountValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, account.CreateRequest{Name: "  ", Currency: "EUR"})
	assert.ErrorIs(t, err, ledger.ErrInvalidAccountName)

	_, err = svc.Create(ctx, account.CreateRequest{Name: "Cash", Currency: "NOPE"})
	assert.ErrorIs(t, err, ledger.ErrInvalidCurrency)
}

func TestCreateAccountDuplicateName(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, account.CreateRequest{Name: "Cash", Currency: "EUR"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, account.CreateRequest{Name: "CASH", Currency: "EUR"})
	assert.ErrorIs(t, err, ledger.ErrAccountNameTaken)
}

func TestRenameAccount(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	acc, err := svc.Create(ctx, account.CreateRequest{Name: "Cash", Currency: "EUR"})
	require.NoError(t, err)
	other, err := svc.Create(ctx, account.CreateRequest{Name: "Bank", Currency: "EUR"})
	require.NoError(t, err)

	renamed, err := svc.Rename(ctx, acc.ID, "Wallet")
	require.NoError(t, err)
	assert.Equal(t, "Wallet", renamed.Name)

	_, err = svc.Rename(ctx, other.ID, "wallet")
	assert.ErrorIs(t, err, ledger.ErrAccountNameTaken)
}

func TestArchiveAccount(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	acc, err := svc.Create(ctx, account.CreateRequest{Name: "Cash", Currency: "EUR"})
	require.NoError(t, err)

	require.NoError(t, svc.Archive(ctx, acc.ID))
	// Idempotent
	require.NoError(t, svc.Archive(ctx, acc.ID))

	got, err := svc.Get(ctx, acc.ID)
	require.NoError(t, err)
	assert.False(t, got.Active)

	visible, err := svc.List(ctx, false)
	require.NoError(t, err)
	assert.Empty(t, visible)
}

func TestDeleteAccount(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	acc, err := svc.Create(ctx, account.CreateRequest{Name: "Cash", Currency: "EUR"})
	require.NoError(t, err)

	t.Run("refused while records reference it", func(t *testing.T) {
		rec := &ledger.SimpleTransaction{
			ID:        uuid.New(),
			AccountID: acc.ID,
			Amount:    decimal.NewFromInt(10),
			Currency:  "EUR",
			Kind:      ledger.KindExpense,
			Date:      time.Now(),
		}
		require.NoError(t, store.CreateSimple(ctx, rec))

		assert.ErrorIs(t, svc.Delete(ctx, acc.ID), ledger.ErrAccountInUse)

		require.NoError(t, store.DeleteSimple(ctx, rec.ID))
	})

	t.Run("succeeds once empty", func(t *testing.T) {
		require.NoError(t, svc.Delete(ctx, acc.ID))

		var notFound *ledger.RecordNotFoundError
		_, err := svc.Get(ctx, acc.ID)
		assert.ErrorAs(t, err, &notFound)
	})
}
