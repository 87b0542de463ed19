package ledger

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pennyledger/pennyledger/pkg/logger"
	"github.com/pennyledger/pennyledger/pkg/money"
)

// SimpleTransactionRequest is the already-typed request shape for an
// expense or income, as produced by the UI form or the voice parser.
type SimpleTransactionRequest struct {
	AccountName string
	Amount      decimal.Decimal
	Currency    string
	Kind        Kind
	Category    string
	Date        time.Time
	Comment     string
}

// TransferRequest is the request shape for a transfer. DestAmount and
// DestCurrency are optional: when both accounts share a currency they
// default to the source side, otherwise the caller must supply them.
type TransferRequest struct {
	SourceAccountName string
	DestAccountName   string
	SourceAmount      decimal.Decimal
	SourceCurrency    string
	DestAmount        *decimal.Decimal
	DestCurrency      string
	Date              time.Time
	Comment           string
}

// AccountBalance is the post-commit balance of one touched account.
type AccountBalance struct {
	AccountID uuid.UUID
	Name      string
	Currency  string
	Balance   decimal.Decimal
}

// CommitResult reports a committed mutation: the record id and the
// post-commit balances of every account the operation touched.
type CommitResult struct {
	RecordID uuid.UUID
	Balances []AccountBalance
}

// Engine translates record mutations into atomic sets of account balance
// deltas. It owns no persistent state, only the invariant that every
// account balance equals its initial balance plus the signed effects of all
// records currently referencing it. All balance mutation flows through it.
type Engine struct {
	store Store
	log   *logger.Logger
}

// NewEngine creates a new ledger transaction engine
func NewEngine(store Store, log *logger.Logger) *Engine {
	return &Engine{store: store, log: log}
}

// InsertSimpleTransaction validates and commits a new expense or income.
func (e *Engine) InsertSimpleTransaction(ctx context.Context, req SimpleTransactionRequest) (*CommitResult, error) {
	var result *CommitResult

	err := e.inTx(ctx, func(txCtx context.Context) error {
		account, err := e.resolveAccount(txCtx, req.AccountName)
		if err != nil {
			return err
		}

		now := time.Now()
		rec := &SimpleTransaction{
			ID:        uuid.New(),
			AccountID: account.ID,
			Amount:    req.Amount,
			Currency:  money.NormalizeCode(req.Currency),
			Kind:      req.Kind,
			Category:  req.Category,
			Date:      req.Date,
			Comment:   req.Comment,
			CreatedAt: now,
			UpdatedAt: now,
		}

		if err := validateSimple(rec, account); err != nil {
			return err
		}

		balances, err := e.applyDeltas(txCtx, MergeEffects(SimpleEffects(rec)))
		if err != nil {
			return err
		}

		if err := e.store.CreateSimple(txCtx, rec); err != nil {
			return &StorageError{Op: "create transaction", Err: err}
		}

		result = &CommitResult{RecordID: rec.ID, Balances: balances}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.log.Info("transaction committed", "id", result.RecordID, "kind", req.Kind.String())
	return result, nil
}

// UpdateSimpleTransaction replaces a persisted expense/income with a new
// state. The reversal of the old record and the effects of the new one are
// merged into a single net delta per account before anything is written, so
// the operation collapses correctly even when old and new share an account.
func (e *Engine) UpdateSimpleTransaction(ctx context.Context, id uuid.UUID, req SimpleTransactionRequest) (*CommitResult, error) {
	var result *CommitResult

	err := e.inTx(ctx, func(txCtx context.Context) error {
		old, err := e.fetchSimple(txCtx, id)
		if err != nil {
			return err
		}

		if old.IsShadow() {
			return ErrTransferOwnedRecord
		}

		account, err := e.resolveAccount(txCtx, req.AccountName)
		if err != nil {
			return err
		}

		rec := &SimpleTransaction{
			ID:        old.ID,
			AccountID: account.ID,
			Amount:    req.Amount,
			Currency:  money.NormalizeCode(req.Currency),
			Kind:      req.Kind,
			Category:  req.Category,
			Date:      req.Date,
			Comment:   req.Comment,
			CreatedAt: old.CreatedAt,
			UpdatedAt: time.Now(),
		}

		if err := validateSimple(rec, account); err != nil {
			return err
		}

		merged := MergeEffects(Negate(SimpleEffects(old)), SimpleEffects(rec))
		balances, err := e.applyDeltas(txCtx, merged)
		if err != nil {
			return err
		}

		if err := e.store.UpdateSimple(txCtx, rec); err != nil {
			return &StorageError{Op: "update transaction", Err: err}
		}

		result = &CommitResult{RecordID: rec.ID, Balances: balances}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.log.Info("transaction updated", "id", id)
	return result, nil
}

// DeleteSimpleTransaction removes an expense/income and reverses its effect.
func (e *Engine) DeleteSimpleTransaction(ctx context.Context, id uuid.UUID) (*CommitResult, error) {
	var result *CommitResult

	err := e.inTx(ctx, func(txCtx context.Context) error {
		rec, err := e.fetchSimple(txCtx, id)
		if err != nil {
			return err
		}

		if rec.IsShadow() {
			return ErrTransferOwnedRecord
		}

		balances, err := e.applyDeltas(txCtx, MergeEffects(Negate(SimpleEffects(rec))))
		if err != nil {
			return err
		}

		if err := e.store.DeleteSimple(txCtx, id); err != nil {
			return &StorageError{Op: "delete transaction", Err: err}
		}

		result = &CommitResult{RecordID: id, Balances: balances}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.log.Info("transaction deleted", "id", id)
	return result, nil
}

// InsertTransfer validates and commits a new transfer together with its two
// shadow rows.
func (e *Engine) InsertTransfer(ctx context.Context, req TransferRequest) (*CommitResult, error) {
	var result *CommitResult

	err := e.inTx(ctx, func(txCtx context.Context) error {
		tr, source, dest, err := e.buildTransfer(txCtx, uuid.New(), req, time.Time{})
		if err != nil {
			return err
		}

		if err := validateTransfer(tr, source, dest); err != nil {
			return err
		}

		balances, err := e.applyDeltas(txCtx, MergeEffects(TransferEffects(tr)))
		if err != nil {
			return err
		}

		if err := e.store.CreateTransfer(txCtx, tr); err != nil {
			return &StorageError{Op: "create transfer", Err: err}
		}

		if err := e.createShadowRows(txCtx, tr); err != nil {
			return err
		}

		result = &CommitResult{RecordID: tr.ID, Balances: balances}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.log.Info("transfer committed", "id", result.RecordID)
	return result, nil
}

// UpdateTransfer replaces a persisted transfer with a new state. Old
// reversal and new effects are merged per account key, which also covers
// accounts swapped between source and destination positions and accounts
// entering or leaving the pair.
func (e *Engine) UpdateTransfer(ctx context.Context, id uuid.UUID, req TransferRequest) (*CommitResult, error) {
	var result *CommitResult

	err := e.inTx(ctx, func(txCtx context.Context) error {
		old, err := e.fetchTransfer(txCtx, id)
		if err != nil {
			return err
		}

		tr, source, dest, err := e.buildTransfer(txCtx, old.ID, req, old.CreatedAt)
		if err != nil {
			return err
		}

		if err := validateTransfer(tr, source, dest); err != nil {
			return err
		}

		merged := MergeEffects(Negate(TransferEffects(old)), TransferEffects(tr))
		balances, err := e.applyDeltas(txCtx, merged)
		if err != nil {
			return err
		}

		if err := e.store.UpdateTransfer(txCtx, tr); err != nil {
			return &StorageError{Op: "update transfer", Err: err}
		}

		if err := e.refreshShadowRows(txCtx, tr); err != nil {
			return err
		}

		result = &CommitResult{RecordID: tr.ID, Balances: balances}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.log.Info("transfer updated", "id", id)
	return result, nil
}

// DeleteTransfer removes a transfer, its shadow rows and its balance effects.
func (e *Engine) DeleteTransfer(ctx context.Context, id uuid.UUID) (*CommitResult, error) {
	var result *CommitResult

	err := e.inTx(ctx, func(txCtx context.Context) error {
		tr, err := e.fetchTransfer(txCtx, id)
		if err != nil {
			return err
		}

		balances, err := e.applyDeltas(txCtx, MergeEffects(Negate(TransferEffects(tr))))
		if err != nil {
			return err
		}

		if err := e.store.DeleteSimpleByTransferLink(txCtx, tr.ID); err != nil {
			return &StorageError{Op: "delete shadow rows", Err: err}
		}

		if err := e.store.DeleteTransfer(txCtx, id); err != nil {
			return &StorageError{Op: "delete transfer", Err: err}
		}

		result = &CommitResult{RecordID: id, Balances: balances}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.log.Info("transfer deleted", "id", id)
	return result, nil
}

// ListTransactions returns the unified transaction listing, shadow rows
// included.
func (e *Engine) ListTransactions(ctx context.Context, filters RecordFilters) ([]*SimpleTransaction, error) {
	return e.store.ListSimple(ctx, filters)
}

// GetTransfer retrieves a transfer by id
func (e *Engine) GetTransfer(ctx context.Context, id uuid.UUID) (*Transfer, error) {
	tr, err := e.store.GetTransfer(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, &RecordNotFoundError{ID: id}
		}
		return nil, &StorageError{Op: "get transfer", Err: err}
	}
	return tr, nil
}

// ListTransfers lists transfers with filters
func (e *Engine) ListTransfers(ctx context.Context, filters RecordFilters) ([]*Transfer, error) {
	return e.store.ListTransfers(ctx, filters)
}

// inTx runs fn inside one store transaction. Validation, delta computation
// and the commit all happen between BeginTx and CommitTx; any error rolls
// everything back so the operation is all-or-nothing.
func (e *Engine) inTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	txCtx, err := e.store.BeginTx(ctx)
	if err != nil {
		return &StorageError{Op: "begin", Err: err}
	}

	committed := false
	defer func() {
		if !committed {
			_ = e.store.RollbackTx(txCtx)
		}
	}()

	if err := fn(txCtx); err != nil {
		return err
	}

	if err := e.store.CommitTx(txCtx); err != nil {
		return &StorageError{Op: "commit", Err: err}
	}

	committed = true
	return nil
}

// resolveAccount canonicalizes an account name reference: one
// case-insensitive lookup among active accounts, inside the current
// transaction.
func (e *Engine) resolveAccount(ctx context.Context, name string) (*Account, error) {
	account, err := e.store.GetAccountByName(ctx, name)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, &AccountNotFoundError{Name: name}
		}
		return nil, &StorageError{Op: "resolve account", Err: err}
	}

	if !account.Active {
		return nil, &AccountNotFoundError{Name: name}
	}

	return account, nil
}

func (e *Engine) fetchSimple(ctx context.Context, id uuid.UUID) (*SimpleTransaction, error) {
	rec, err := e.store.GetSimple(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, &RecordNotFoundError{ID: id}
		}
		return nil, &StorageError{Op: "get transaction", Err: err}
	}
	return rec, nil
}

func (e *Engine) fetchTransfer(ctx context.Context, id uuid.UUID) (*Transfer, error) {
	tr, err := e.store.GetTransfer(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, &RecordNotFoundError{ID: id}
		}
		return nil, &StorageError{Op: "get transfer", Err: err}
	}
	return tr, nil
}

// buildTransfer resolves both account names and normalizes the destination
// side of the request. A missing destination amount is only legal when both
// accounts share a currency.
func (e *Engine) buildTransfer(ctx context.Context, id uuid.UUID, req TransferRequest, createdAt time.Time) (*Transfer, *Account, *Account, error) {
	source, err := e.resolveAccount(ctx, req.SourceAccountName)
	if err != nil {
		return nil, nil, nil, err
	}

	dest, err := e.resolveAccount(ctx, req.DestAccountName)
	if err != nil {
		return nil, nil, nil, err
	}

	sourceCurrency := money.NormalizeCode(req.SourceCurrency)
	if sourceCurrency == "" {
		sourceCurrency = source.Currency
	}

	var destAmount decimal.Decimal
	destCurrency := money.NormalizeCode(req.DestCurrency)

	switch {
	case req.DestAmount != nil:
		destAmount = *req.DestAmount
		if destCurrency == "" {
			destCurrency = dest.Currency
		}
	case sameCurrency(source.Currency, dest.Currency):
		destAmount = req.SourceAmount
		if destCurrency == "" {
			destCurrency = sourceCurrency
		}
	default:
		return nil, nil, nil, ErrCurrencyMismatch
	}

	now := time.Now()
	if createdAt.IsZero() {
		createdAt = now
	}

	tr := &Transfer{
		ID:             id,
		SourceAccount:  source.ID,
		DestAccount:    dest.ID,
		SourceAmount:   req.SourceAmount,
		DestAmount:     destAmount,
		SourceCurrency: sourceCurrency,
		DestCurrency:   destCurrency,
		Date:           req.Date,
		Comment:        req.Comment,
		CreatedAt:      createdAt,
		UpdatedAt:      now,
	}

	return tr, source, dest, nil
}

// applyDeltas locks every touched account in a stable order, rounds each
// net delta once to the account currency's minor-unit scale and writes the
// new balance. One read, one write per account per operation.
func (e *Engine) applyDeltas(ctx context.Context, deltas map[uuid.UUID]decimal.Decimal) ([]AccountBalance, error) {
	ids := make([]uuid.UUID, 0, len(deltas))
	for id := range deltas {
		ids = append(ids, id)
	}
	// Stable lock order across concurrent operations.
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })

	balances := make([]AccountBalance, 0, len(ids))
	for _, id := range ids {
		account, err := e.store.GetAccountForUpdate(ctx, id)
		if err != nil {
			return nil, &StorageError{Op: "lock account", Err: err}
		}

		net := money.Round(deltas[id], account.Currency)
		newBalance := account.Balance.Add(net)

		if err := e.store.SetAccountBalance(ctx, id, newBalance); err != nil {
			return nil, &StorageError{Op: "update balance", Err: err}
		}

		balances = append(balances, AccountBalance{
			AccountID: account.ID,
			Name:      account.Name,
			Currency:  account.Currency,
			Balance:   newBalance,
		})
	}

	return balances, nil
}

// createShadowRows materializes the two linked simple rows of a transfer:
// an expense on the source and an income on the destination, both tagged
// with the transfer category and link id.
func (e *Engine) createShadowRows(ctx context.Context, tr *Transfer) error {
	for _, rec := range shadowRowsFor(tr) {
		if err := e.store.CreateSimple(ctx, rec); err != nil {
			return &StorageError{Op: "create shadow row", Err: err}
		}
	}
	return nil
}

// refreshShadowRows rewrites a transfer's shadow rows in place after an
// update, preserving their ids when both legs are present.
func (e *Engine) refreshShadowRows(ctx context.Context, tr *Transfer) error {
	existing, err := e.store.GetSimpleByTransferLink(ctx, tr.ID)
	if err != nil {
		return &StorageError{Op: "load shadow rows", Err: err}
	}

	fresh := shadowRowsFor(tr)
	if len(existing) != len(fresh) {
		if err := e.store.DeleteSimpleByTransferLink(ctx, tr.ID); err != nil {
			return &StorageError{Op: "reset shadow rows", Err: err}
		}
		return e.createShadowRows(ctx, tr)
	}

	byKind := make(map[Kind]*SimpleTransaction, len(existing))
	for _, rec := range existing {
		byKind[rec.Kind] = rec
	}

	for _, next := range fresh {
		prev, ok := byKind[next.Kind]
		if !ok {
			if err := e.store.DeleteSimpleByTransferLink(ctx, tr.ID); err != nil {
				return &StorageError{Op: "reset shadow rows", Err: err}
			}
			return e.createShadowRows(ctx, tr)
		}

		next.ID = prev.ID
		next.CreatedAt = prev.CreatedAt
		if err := e.store.UpdateSimple(ctx, next); err != nil {
			return &StorageError{Op: "update shadow row", Err: err}
		}
	}

	return nil
}

func shadowRowsFor(tr *Transfer) []*SimpleTransaction {
	now := time.Now()
	linkID := tr.ID

	return []*SimpleTransaction{
		{
			ID:             uuid.New(),
			AccountID:      tr.SourceAccount,
			Amount:         tr.SourceAmount,
			Currency:       tr.SourceCurrency,
			Kind:           KindExpense,
			Category:       CategoryTransfer,
			Date:           tr.Date,
			Comment:        tr.Comment,
			TransferLinkID: &linkID,
			CreatedAt:      now,
			UpdatedAt:      now,
		},
		{
			ID:             uuid.New(),
			AccountID:      tr.DestAccount,
			Amount:         tr.DestAmount,
			Currency:       tr.DestCurrency,
			Kind:           KindIncome,
			Category:       CategoryTransfer,
			Date:           tr.Date,
			Comment:        tr.Comment,
			TransferLinkID: &linkID,
			CreatedAt:      now,
			UpdatedAt:      now,
		},
	}
}
