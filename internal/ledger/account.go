package ledger

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pennyledger/pennyledger/pkg/money"
)

// Account holds identity, currency and the cached balance for one account.
//
// The balance is denormalized for fast reads and is reconcilable from the
// records referencing the account: at all times
// balance == initial balance + sum of signed effects of every persisted
// record. Only the Engine mutates it.
type Account struct {
	ID        uuid.UUID
	Name      string
	Currency  string
	Balance   decimal.Decimal
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate validates the account
func (a *Account) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return ErrInvalidAccountName
	}

	if !money.ValidCode(a.Currency) {
		return ErrInvalidCurrency
	}

	return nil
}
