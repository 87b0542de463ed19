// Package account manages account identity and lifecycle: creation,
// renaming, archiving and hard deletion. Balances are never mutated here;
// that is the ledger engine's exclusive job.
package account

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pennyledger/pennyledger/internal/ledger"
	"github.com/pennyledger/pennyledger/pkg/logger"
	"github.com/pennyledger/pennyledger/pkg/money"
)

// CreateRequest describes a new account
type CreateRequest struct {
	Name           string
	Currency       string
	InitialBalance decimal.Decimal
}

// Service provides account management operations
type Service struct {
	store ledger.Store
	log   *logger.Logger
}

// NewService creates a new account service
func NewService(store ledger.Store, log *logger.Logger) *Service {
	return &Service{store: store, log: log}
}

// Create creates a new active account. Name uniqueness is case-insensitive
// and enforced by the store.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*ledger.Account, error) {
	now := time.Now()
	account := &ledger.Account{
		ID:        uuid.New(),
		Name:      strings.TrimSpace(req.Name),
		Currency:  money.NormalizeCode(req.Currency),
		Balance:   money.Round(req.InitialBalance, req.Currency),
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := account.Validate(); err != nil {
		return nil, err
	}

	if err := s.store.CreateAccount(ctx, account); err != nil {
		if errors.Is(err, ledger.ErrAccountNameTaken) || ledger.IsValidation(err) {
			return nil, err
		}
		return nil, &ledger.StorageError{Op: "create account", Err: err}
	}

	s.log.Info("account created", "id", account.ID, "name", account.Name, "currency", account.Currency)
	return account, nil
}

// Get retrieves an account by id
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*ledger.Account, error) {
	account, err := s.store.GetAccount(ctx, id)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return nil, &ledger.RecordNotFoundError{ID: id}
		}
		return nil, &ledger.StorageError{Op: "get account", Err: err}
	}
	return account, nil
}

// List lists accounts, optionally including archived ones
func (s *Service) List(ctx context.Context, includeArchived bool) ([]*ledger.Account, error) {
	accounts, err := s.store.ListAccounts(ctx, includeArchived)
	if err != nil {
		return nil, &ledger.StorageError{Op: "list accounts", Err: err}
	}
	return accounts, nil
}

// Rename changes an account's display name, keeping case-insensitive
// uniqueness.
func (s *Service) Rename(ctx context.Context, id uuid.UUID, name string) (*ledger.Account, error) {
	account, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	account.Name = strings.TrimSpace(name)
	account.UpdatedAt = time.Now()
	if err := account.Validate(); err != nil {
		return nil, err
	}

	if err := s.store.UpdateAccount(ctx, account); err != nil {
		if errors.Is(err, ledger.ErrAccountNameTaken) {
			return nil, err
		}
		return nil, &ledger.StorageError{Op: "rename account", Err: err}
	}

	return account, nil
}

// Archive soft-deletes an account. Archived accounts keep their records
// and balance but no longer resolve for new transactions.
func (s *Service) Archive(ctx context.Context, id uuid.UUID) error {
	account, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	if !account.Active {
		return nil
	}

	account.Active = false
	account.UpdatedAt = time.Now()
	if err := s.store.UpdateAccount(ctx, account); err != nil {
		return &ledger.StorageError{Op: "archive account", Err: err}
	}

	s.log.Info("account archived", "id", id)
	return nil
}

// Delete hard-deletes an account. Refused with ErrAccountInUse while any
// record still references it; archive instead.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	err := s.inTx(ctx, func(txCtx context.Context) error {
		if _, err := s.Get(txCtx, id); err != nil {
			return err
		}

		count, err := s.store.CountAccountRecords(txCtx, id)
		if err != nil {
			return &ledger.StorageError{Op: "count records", Err: err}
		}
		if count > 0 {
			return ledger.ErrAccountInUse
		}

		if err := s.store.DeleteAccount(txCtx, id); err != nil {
			return &ledger.StorageError{Op: "delete account", Err: err}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.log.Info("account deleted", "id", id)
	return nil
}

func (s *Service) inTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	txCtx, err := s.store.BeginTx(ctx)
	if err != nil {
		return &ledger.StorageError{Op: "begin", Err: err}
	}

	committed := false
	defer func() {
		if !committed {
			_ = s.store.RollbackTx(txCtx)
		}
	}()

	if err := fn(txCtx); err != nil {
		return err
	}

	if err := s.store.CommitTx(txCtx); err != nil {
		return &ledger.StorageError{Op: "commit", Err: err}
	}

	committed = true
	return nil
}
