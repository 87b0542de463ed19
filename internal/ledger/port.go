package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Store defines the interface for ledger persistence operations.
//
// Implementations carry an open transaction in the context returned by
// BeginTx; every method called with that context runs inside it. Lookups by
// account name are case-insensitive, with uniqueness enforced at the store
// level.
type Store interface {
	// Account operations
	CreateAccount(ctx context.Context, account *Account) error
	GetAccount(ctx context.Context, id uuid.UUID) (*Account, error)
	GetAccountByName(ctx context.Context, name string) (*Account, error)
	GetAccountForUpdate(ctx context.Context, id uuid.UUID) (*Account, error)
	ListAccounts(ctx context.Context, includeArchived bool) ([]*Account, error)
	UpdateAccount(ctx context.Context, account *Account) error
	SetAccountBalance(ctx context.Context, id uuid.UUID, balance decimal.Decimal) error
	DeleteAccount(ctx context.Context, id uuid.UUID) error
	CountAccountRecords(ctx context.Context, id uuid.UUID) (int, error)

	// Simple transaction operations
	CreateSimple(ctx context.Context, tx *SimpleTransaction) error
	GetSimple(ctx context.Context, id uuid.UUID) (*SimpleTransaction, error)
	UpdateSimple(ctx context.Context, tx *SimpleTransaction) error
	DeleteSimple(ctx context.Context, id uuid.UUID) error
	ListSimple(ctx context.Context, filters RecordFilters) ([]*SimpleTransaction, error)
	GetSimpleByTransferLink(ctx context.Context, linkID uuid.UUID) ([]*SimpleTransaction, error)
	DeleteSimpleByTransferLink(ctx context.Context, linkID uuid.UUID) error

	// Transfer operations
	CreateTransfer(ctx context.Context, tr *Transfer) error
	GetTransfer(ctx context.Context, id uuid.UUID) (*Transfer, error)
	UpdateTransfer(ctx context.Context, tr *Transfer) error
	DeleteTransfer(ctx context.Context, id uuid.UUID) error
	ListTransfers(ctx context.Context, filters RecordFilters) ([]*Transfer, error)

	// Transaction management
	BeginTx(ctx context.Context) (context.Context, error)
	CommitTx(ctx context.Context) error
	RollbackTx(ctx context.Context) error
}

// RecordFilters defines filters for listing records
type RecordFilters struct {
	AccountID *uuid.UUID
	From      *time.Time
	To        *time.Time
	Limit     int
	Offset    int
}
