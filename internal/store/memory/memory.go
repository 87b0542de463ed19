// Package memory provides an in-memory ledger.Store used by unit tests and
// by the server in development mode when no database is configured.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pennyledger/pennyledger/internal/ledger"
)

type ctxKey string

const txContextKey ctxKey = "memory_tx"

type state struct {
	accounts  map[uuid.UUID]ledger.Account
	simples   map[uuid.UUID]ledger.SimpleTransaction
	transfers map[uuid.UUID]ledger.Transfer
}

func newState() *state {
	return &state{
		accounts:  make(map[uuid.UUID]ledger.Account),
		simples:   make(map[uuid.UUID]ledger.SimpleTransaction),
		transfers: make(map[uuid.UUID]ledger.Transfer),
	}
}

func (s *state) clone() *state {
	c := newState()
	for id, a := range s.accounts {
		c.accounts[id] = a
	}
	for id, t := range s.simples {
		c.simples[id] = cloneSimple(t)
	}
	for id, t := range s.transfers {
		c.transfers[id] = t
	}
	return c
}

func cloneSimple(t ledger.SimpleTransaction) ledger.SimpleTransaction {
	if t.TransferLinkID != nil {
		link := *t.TransferLinkID
		t.TransferLinkID = &link
	}
	return t
}

// Store is a mutex-serialized in-memory implementation of ledger.Store.
// BeginTx snapshots the whole state and holds the store's write lock until
// CommitTx or RollbackTx, giving the same single-writer-at-a-time semantics
// the Postgres store gets from row locks.
type Store struct {
	txMu     sync.Mutex
	mu       sync.Mutex
	data     *state
	snapshot *state
	txToken  *struct{}
}

// New creates an empty in-memory store
func New() *Store {
	return &Store{data: newState()}
}

// BeginTx acquires the writer lock and snapshots the current state.
func (s *Store) BeginTx(ctx context.Context) (context.Context, error) {
	if s.holds(ctx) {
		return ctx, ledger.ErrTxInProgress
	}

	s.txMu.Lock()
	s.mu.Lock()
	s.snapshot = s.data.clone()
	s.txToken = &struct{}{}
	token := s.txToken
	s.mu.Unlock()

	return context.WithValue(ctx, txContextKey, token), nil
}

// CommitTx discards the snapshot and releases the writer lock.
func (s *Store) CommitTx(ctx context.Context) error {
	if !s.holds(ctx) {
		return ledger.ErrNoTx
	}

	s.mu.Lock()
	s.snapshot = nil
	s.txToken = nil
	s.mu.Unlock()

	s.txMu.Unlock()
	return nil
}

// RollbackTx restores the snapshot and releases the writer lock.
func (s *Store) RollbackTx(ctx context.Context) error {
	if !s.holds(ctx) {
		return ledger.ErrNoTx
	}

	s.mu.Lock()
	s.data = s.snapshot
	s.snapshot = nil
	s.txToken = nil
	s.mu.Unlock()

	s.txMu.Unlock()
	return nil
}

func (s *Store) holds(ctx context.Context) bool {
	token, ok := ctx.Value(txContextKey).(*struct{})
	if !ok {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.txToken != nil && token == s.txToken
}

// lock serializes an operation against any open transaction. Calls made
// with the transaction's context already hold the writer lock.
func (s *Store) lock(ctx context.Context) func() {
	if s.holds(ctx) {
		return func() {}
	}
	s.txMu.Lock()
	return s.txMu.Unlock
}

// Account operations

func (s *Store) CreateAccount(ctx context.Context, account *ledger.Account) error {
	defer s.lock(ctx)()

	if err := account.Validate(); err != nil {
		return err
	}

	for _, existing := range s.data.accounts {
		if strings.EqualFold(existing.Name, account.Name) {
			return ledger.ErrAccountNameTaken
		}
	}

	s.data.accounts[account.ID] = *account
	return nil
}

func (s *Store) GetAccount(ctx context.Context, id uuid.UUID) (*ledger.Account, error) {
	defer s.lock(ctx)()

	account, ok := s.data.accounts[id]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	return &account, nil
}

func (s *Store) GetAccountByName(ctx context.Context, name string) (*ledger.Account, error) {
	defer s.lock(ctx)()

	for _, account := range s.data.accounts {
		if strings.EqualFold(account.Name, strings.TrimSpace(name)) {
			a := account
			return &a, nil
		}
	}
	return nil, ledger.ErrNotFound
}

// GetAccountForUpdate is identical to GetAccount here: the writer lock held
// by the surrounding transaction already excludes other writers.
func (s *Store) GetAccountForUpdate(ctx context.Context, id uuid.UUID) (*ledger.Account, error) {
	return s.GetAccount(ctx, id)
}

func (s *Store) ListAccounts(ctx context.Context, includeArchived bool) ([]*ledger.Account, error) {
	defer s.lock(ctx)()

	accounts := make([]*ledger.Account, 0, len(s.data.accounts))
	for _, account := range s.data.accounts {
		if !includeArchived && !account.Active {
			continue
		}
		a := account
		accounts = append(accounts, &a)
	}
	sort.Slice(accounts, func(i, j int) bool {
		return strings.ToLower(accounts[i].Name) < strings.ToLower(accounts[j].Name)
	})
	return accounts, nil
}

func (s *Store) UpdateAccount(ctx context.Context, account *ledger.Account) error {
	defer s.lock(ctx)()

	if _, ok := s.data.accounts[account.ID]; !ok {
		return ledger.ErrNotFound
	}

	for id, existing := range s.data.accounts {
		if id != account.ID && strings.EqualFold(existing.Name, account.Name) {
			return ledger.ErrAccountNameTaken
		}
	}

	s.data.accounts[account.ID] = *account
	return nil
}

func (s *Store) SetAccountBalance(ctx context.Context, id uuid.UUID, balance decimal.Decimal) error {
	defer s.lock(ctx)()

	account, ok := s.data.accounts[id]
	if !ok {
		return ledger.ErrNotFound
	}

	account.Balance = balance
	s.data.accounts[id] = account
	return nil
}

func (s *Store) DeleteAccount(ctx context.Context, id uuid.UUID) error {
	defer s.lock(ctx)()

	if _, ok := s.data.accounts[id]; !ok {
		return ledger.ErrNotFound
	}

	delete(s.data.accounts, id)
	return nil
}

func (s *Store) CountAccountRecords(ctx context.Context, id uuid.UUID) (int, error) {
	defer s.lock(ctx)()

	count := 0
	for _, t := range s.data.simples {
		if t.AccountID == id {
			count++
		}
	}
	for _, t := range s.data.transfers {
		if t.SourceAccount == id || t.DestAccount == id {
			count++
		}
	}
	return count, nil
}

// Simple transaction operations

func (s *Store) CreateSimple(ctx context.Context, tx *ledger.SimpleTransaction) error {
	defer s.lock(ctx)()

	if _, ok := s.data.accounts[tx.AccountID]; !ok {
		return ledger.ErrNotFound
	}

	s.data.simples[tx.ID] = cloneSimple(*tx)
	return nil
}

func (s *Store) GetSimple(ctx context.Context, id uuid.UUID) (*ledger.SimpleTransaction, error) {
	defer s.lock(ctx)()

	tx, ok := s.data.simples[id]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	out := cloneSimple(tx)
	return &out, nil
}

func (s *Store) UpdateSimple(ctx context.Context, tx *ledger.SimpleTransaction) error {
	defer s.lock(ctx)()

	if _, ok := s.data.simples[tx.ID]; !ok {
		return ledger.ErrNotFound
	}

	s.data.simples[tx.ID] = cloneSimple(*tx)
	return nil
}

func (s *Store) DeleteSimple(ctx context.Context, id uuid.UUID) error {
	defer s.lock(ctx)()

	if _, ok := s.data.simples[id]; !ok {
		return ledger.ErrNotFound
	}

	delete(s.data.simples, id)
	return nil
}

func (s *Store) ListSimple(ctx context.Context, filters ledger.RecordFilters) ([]*ledger.SimpleTransaction, error) {
	defer s.lock(ctx)()

	out := make([]*ledger.SimpleTransaction, 0, len(s.data.simples))
	for _, tx := range s.data.simples {
		if filters.AccountID != nil && tx.AccountID != *filters.AccountID {
			continue
		}
		if filters.From != nil && tx.Date.Before(*filters.From) {
			continue
		}
		if filters.To != nil && tx.Date.After(*filters.To) {
			continue
		}
		t := cloneSimple(tx)
		out = append(out, &t)
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].ID.String() < out[j].ID.String()
	})

	return paginate(out, filters.Offset, filters.Limit), nil
}

func (s *Store) GetSimpleByTransferLink(ctx context.Context, linkID uuid.UUID) ([]*ledger.SimpleTransaction, error) {
	defer s.lock(ctx)()

	var out []*ledger.SimpleTransaction
	for _, tx := range s.data.simples {
		if tx.TransferLinkID != nil && *tx.TransferLinkID == linkID {
			t := cloneSimple(tx)
			out = append(out, &t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Kind < out[j].Kind })
	return out, nil
}

func (s *Store) DeleteSimpleByTransferLink(ctx context.Context, linkID uuid.UUID) error {
	defer s.lock(ctx)()

	for id, tx := range s.data.simples {
		if tx.TransferLinkID != nil && *tx.TransferLinkID == linkID {
			delete(s.data.simples, id)
		}
	}
	return nil
}

// Transfer operations

func (s *Store) CreateTransfer(ctx context.Context, tr *ledger.Transfer) error {
	defer s.lock(ctx)()

	s.data.transfers[tr.ID] = *tr
	return nil
}

func (s *Store) GetTransfer(ctx context.Context, id uuid.UUID) (*ledger.Transfer, error) {
	defer s.lock(ctx)()

	tr, ok := s.data.transfers[id]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	return &tr, nil
}

func (s *Store) UpdateTransfer(ctx context.Context, tr *ledger.Transfer) error {
	defer s.lock(ctx)()

	if _, ok := s.data.transfers[tr.ID]; !ok {
		return ledger.ErrNotFound
	}

	s.data.transfers[tr.ID] = *tr
	return nil
}

func (s *Store) DeleteTransfer(ctx context.Context, id uuid.UUID) error {
	defer s.lock(ctx)()

	if _, ok := s.data.transfers[id]; !ok {
		return ledger.ErrNotFound
	}

	delete(s.data.transfers, id)
	return nil
}

func (s *Store) ListTransfers(ctx context.Context, filters ledger.RecordFilters) ([]*ledger.Transfer, error) {
	defer s.lock(ctx)()

	out := make([]*ledger.Transfer, 0, len(s.data.transfers))
	for _, tr := range s.data.transfers {
		if filters.AccountID != nil && tr.SourceAccount != *filters.AccountID && tr.DestAccount != *filters.AccountID {
			continue
		}
		if filters.From != nil && tr.Date.Before(*filters.From) {
			continue
		}
		if filters.To != nil && tr.Date.After(*filters.To) {
			continue
		}
		t := tr
		out = append(out, &t)
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].ID.String() < out[j].ID.String()
	})

	return paginate(out, filters.Offset, filters.Limit), nil
}

func paginate[T any](items []T, offset, limit int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return nil
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
