package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Kind distinguishes the two simple transaction directions
type Kind string

const (
	KindExpense Kind = "expense"
	KindIncome  Kind = "income"
)

// IsValid returns true for a known kind
func (k Kind) IsValid() bool {
	return k == KindExpense || k == KindIncome
}

// String returns the kind as a string
func (k Kind) String() string {
	return string(k)
}

// CategoryTransfer is the category assigned to the shadow rows a transfer
// materializes for unified listing.
const CategoryTransfer = "Transfer"

// SimpleTransaction is an expense or income against a single account.
//
// Amount is always positive; the kind determines the sign of the balance
// effect. A non-nil TransferLinkID marks the row as a shadow leg of a
// transfer; such rows are owned by the transfer's lifecycle and are never
// mutated through the simple-transaction operations.
type SimpleTransaction struct {
	ID             uuid.UUID
	AccountID      uuid.UUID
	Amount         decimal.Decimal
	Currency       string
	Kind           Kind
	Category       string
	Date           time.Time
	Comment        string
	TransferLinkID *uuid.UUID
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IsShadow returns true if the row is a generated leg of a transfer
func (t *SimpleTransaction) IsShadow() bool {
	return t.TransferLinkID != nil
}

// Validate validates the record shape
func (t *SimpleTransaction) Validate() error {
	if !t.Kind.IsValid() {
		return ErrInvalidKind
	}

	if t.Amount.Sign() <= 0 {
		return ErrInvalidAmount
	}

	if t.Currency == "" {
		return ErrInvalidCurrency
	}

	return nil
}

// Transfer moves value between two accounts. DestAmount equals SourceAmount
// when both accounts share a currency; for cross-currency transfers the
// caller supplies the destination amount, the engine never derives FX rates.
type Transfer struct {
	ID             uuid.UUID
	SourceAccount  uuid.UUID
	DestAccount    uuid.UUID
	SourceAmount   decimal.Decimal
	DestAmount     decimal.Decimal
	SourceCurrency string
	DestCurrency   string
	Date           time.Time
	Comment        string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Validate validates the record shape
func (t *Transfer) Validate() error {
	if t.SourceAmount.Sign() <= 0 || t.DestAmount.Sign() <= 0 {
		return ErrInvalidAmount
	}

	if t.SourceAccount == t.DestAccount {
		return ErrSameAccountTransfer
	}

	if t.SourceCurrency == "" || t.DestCurrency == "" {
		return ErrInvalidCurrency
	}

	return nil
}
