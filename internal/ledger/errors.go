package ledger

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Validation errors. These are expected, recoverable-by-user conditions;
// they always leave zero side effects and are never retried automatically.
var (
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrInvalidKind         = errors.New("invalid transaction kind")
	ErrInvalidCurrency     = errors.New("invalid currency code")
	ErrInvalidAccountName  = errors.New("account name cannot be empty")
	ErrSameAccountTransfer = errors.New("transfer source and destination are the same account")
	ErrCurrencyMismatch    = errors.New("currency mismatch")
	ErrDestAmountMismatch  = errors.New("destination amount must equal source amount for same-currency transfers")
	ErrTransferOwnedRecord = errors.New("record is owned by a transfer and cannot be modified directly")
	ErrAccountInUse        = errors.New("account has referencing records")
	ErrAccountNameTaken    = errors.New("account name already exists")
)

// Store errors
var (
	// ErrNotFound is returned by stores when a row does not exist. The
	// engine wraps it into AccountNotFoundError or RecordNotFoundError.
	ErrNotFound = errors.New("not found")

	ErrTxInProgress = errors.New("transaction already in progress")
	ErrNoTx         = errors.New("no transaction in context")
)

// AccountNotFoundError reports an account name with no case-insensitive
// match among active accounts.
type AccountNotFoundError struct {
	Name string
}

func (e *AccountNotFoundError) Error() string {
	return fmt.Sprintf("account not found: %s", e.Name)
}

// RecordNotFoundError reports a record id with no persisted row.
type RecordNotFoundError struct {
	ID uuid.UUID
}

func (e *RecordNotFoundError) Error() string {
	return fmt.Sprintf("record not found: %s", e.ID)
}

// StorageError wraps a persistence-layer failure. The operation it aborted
// left no partial state, so retrying the whole operation is safe.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage failure: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err is one of the expected validation
// failures rather than a storage failure.
func IsValidation(err error) bool {
	var accErr *AccountNotFoundError
	var recErr *RecordNotFoundError
	if errors.As(err, &accErr) || errors.As(err, &recErr) {
		return true
	}
	for _, sentinel := range []error{
		ErrInvalidAmount, ErrInvalidKind, ErrInvalidCurrency, ErrInvalidAccountName,
		ErrSameAccountTransfer, ErrCurrencyMismatch, ErrDestAmountMismatch,
		ErrTransferOwnedRecord,
		ErrAccountInUse, ErrAccountNameTaken,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}
