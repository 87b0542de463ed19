package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/pennyledger/pennyledger/internal/ledger"
)

// Store implements ledger.Store using PostgreSQL
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new PostgreSQL ledger store
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const accountColumns = `id, name, currency, balance::text, active, created_at, updated_at`

// Account operations

func (s *Store) CreateAccount(ctx context.Context, account *ledger.Account) error {
	if err := account.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO accounts (id, name, currency, balance, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	q := s.getQueryer(ctx)
	_, err := q.Exec(ctx, query,
		account.ID,
		account.Name,
		account.Currency,
		account.Balance.String(),
		account.Active,
		account.CreatedAt,
		account.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ledger.ErrAccountNameTaken
		}
		return fmt.Errorf("failed to create account: %w", err)
	}

	return nil
}

func (s *Store) GetAccount(ctx context.Context, id uuid.UUID) (*ledger.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return s.scanAccount(s.getQueryer(ctx).QueryRow(ctx, query, id))
}

// GetAccountByName resolves a name case-insensitively, matching the unique
// index on LOWER(name).
func (s *Store) GetAccountByName(ctx context.Context, name string) (*ledger.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE LOWER(name) = LOWER(TRIM($1))`
	return s.scanAccount(s.getQueryer(ctx).QueryRow(ctx, query, name))
}

// GetAccountForUpdate reads an account under a row-level lock. Only
// meaningful inside a transaction started with BeginTx.
func (s *Store) GetAccountForUpdate(ctx context.Context, id uuid.UUID) (*ledger.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1 FOR UPDATE`
	return s.scanAccount(s.getQueryer(ctx).QueryRow(ctx, query, id))
}

func (s *Store) ListAccounts(ctx context.Context, includeArchived bool) ([]*ledger.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts`
	if !includeArchived {
		query += ` WHERE active`
	}
	query += ` ORDER BY LOWER(name) ASC`

	rows, err := s.getQueryer(ctx).Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*ledger.Account
	for rows.Next() {
		account, err := s.scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}

	return accounts, rows.Err()
}

func (s *Store) UpdateAccount(ctx context.Context, account *ledger.Account) error {
	query := `
		UPDATE accounts
		SET name = $2, currency = $3, active = $4, updated_at = $5
		WHERE id = $1
	`

	tag, err := s.getQueryer(ctx).Exec(ctx, query,
		account.ID, account.Name, account.Currency, account.Active, time.Now())
	if err != nil {
		if isUniqueViolation(err) {
			return ledger.ErrAccountNameTaken
		}
		return fmt.Errorf("failed to update account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ledger.ErrNotFound
	}

	return nil
}

func (s *Store) SetAccountBalance(ctx context.Context, id uuid.UUID, balance decimal.Decimal) error {
	query := `UPDATE accounts SET balance = $2, updated_at = $3 WHERE id = $1`

	tag, err := s.getQueryer(ctx).Exec(ctx, query, id, balance.String(), time.Now())
	if err != nil {
		return fmt.Errorf("failed to set balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ledger.ErrNotFound
	}

	return nil
}

func (s *Store) DeleteAccount(ctx context.Context, id uuid.UUID) error {
	tag, err := s.getQueryer(ctx).Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ledger.ErrAccountInUse
		}
		return fmt.Errorf("failed to delete account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ledger.ErrNotFound
	}

	return nil
}

func (s *Store) CountAccountRecords(ctx context.Context, id uuid.UUID) (int, error) {
	query := `
		SELECT (SELECT COUNT(*) FROM transactions WHERE account_id = $1)
		     + (SELECT COUNT(*) FROM transfers WHERE source_account = $1 OR dest_account = $1)
	`

	var count int
	if err := s.getQueryer(ctx).QueryRow(ctx, query, id).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}

	return count, nil
}

const simpleColumns = `id, account_id, amount::text, currency, kind, category, occurred_at, comment, transfer_link_id, created_at, updated_at`

// Simple transaction operations

func (s *Store) CreateSimple(ctx context.Context, tx *ledger.SimpleTransaction) error {
	query := `
		INSERT INTO transactions (id, account_id, amount, currency, kind, category, occurred_at, comment, transfer_link_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := s.getQueryer(ctx).Exec(ctx, query,
		tx.ID,
		tx.AccountID,
		tx.Amount.String(),
		tx.Currency,
		string(tx.Kind),
		tx.Category,
		tx.Date,
		tx.Comment,
		tx.TransferLinkID,
		tx.CreatedAt,
		tx.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}

	return nil
}

func (s *Store) GetSimple(ctx context.Context, id uuid.UUID) (*ledger.SimpleTransaction, error) {
	query := `SELECT ` + simpleColumns + ` FROM transactions WHERE id = $1`
	return s.scanSimple(s.getQueryer(ctx).QueryRow(ctx, query, id))
}

func (s *Store) UpdateSimple(ctx context.Context, tx *ledger.SimpleTransaction) error {
	query := `
		UPDATE transactions
		SET account_id = $2, amount = $3, currency = $4, kind = $5, category = $6,
		    occurred_at = $7, comment = $8, updated_at = $9
		WHERE id = $1
	`

	tag, err := s.getQueryer(ctx).Exec(ctx, query,
		tx.ID,
		tx.AccountID,
		tx.Amount.String(),
		tx.Currency,
		string(tx.Kind),
		tx.Category,
		tx.Date,
		tx.Comment,
		tx.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ledger.ErrNotFound
	}

	return nil
}

func (s *Store) DeleteSimple(ctx context.Context, id uuid.UUID) error {
	tag, err := s.getQueryer(ctx).Exec(ctx, `DELETE FROM transactions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ledger.ErrNotFound
	}

	return nil
}

func (s *Store) ListSimple(ctx context.Context, filters ledger.RecordFilters) ([]*ledger.SimpleTransaction, error) {
	query := `SELECT ` + simpleColumns + ` FROM transactions WHERE 1=1`
	args := []any{}

	if filters.AccountID != nil {
		args = append(args, *filters.AccountID)
		query += fmt.Sprintf(" AND account_id = $%d", len(args))
	}
	if filters.From != nil {
		args = append(args, *filters.From)
		query += fmt.Sprintf(" AND occurred_at >= $%d", len(args))
	}
	if filters.To != nil {
		args = append(args, *filters.To)
		query += fmt.Sprintf(" AND occurred_at <= $%d", len(args))
	}

	query += " ORDER BY occurred_at DESC, id ASC"

	if filters.Limit > 0 {
		args = append(args, filters.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filters.Offset > 0 {
		args = append(args, filters.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	return s.querySimples(ctx, query, args...)
}

func (s *Store) GetSimpleByTransferLink(ctx context.Context, linkID uuid.UUID) ([]*ledger.SimpleTransaction, error) {
	query := `SELECT ` + simpleColumns + ` FROM transactions WHERE transfer_link_id = $1 ORDER BY kind ASC`
	return s.querySimples(ctx, query, linkID)
}

func (s *Store) DeleteSimpleByTransferLink(ctx context.Context, linkID uuid.UUID) error {
	_, err := s.getQueryer(ctx).Exec(ctx, `DELETE FROM transactions WHERE transfer_link_id = $1`, linkID)
	if err != nil {
		return fmt.Errorf("failed to delete shadow rows: %w", err)
	}
	return nil
}

const transferColumns = `id, source_account, dest_account, source_amount::text, dest_amount::text, source_currency, dest_currency, occurred_at, comment, created_at, updated_at`

// Transfer operations

func (s *Store) CreateTransfer(ctx context.Context, tr *ledger.Transfer) error {
	query := `
		INSERT INTO transfers (id, source_account, dest_account, source_amount, dest_amount, source_currency, dest_currency, occurred_at, comment, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := s.getQueryer(ctx).Exec(ctx, query,
		tr.ID,
		tr.SourceAccount,
		tr.DestAccount,
		tr.SourceAmount.String(),
		tr.DestAmount.String(),
		tr.SourceCurrency,
		tr.DestCurrency,
		tr.Date,
		tr.Comment,
		tr.CreatedAt,
		tr.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create transfer: %w", err)
	}

	return nil
}

func (s *Store) GetTransfer(ctx context.Context, id uuid.UUID) (*ledger.Transfer, error) {
	query := `SELECT ` + transferColumns + ` FROM transfers WHERE id = $1`
	return s.scanTransfer(s.getQueryer(ctx).QueryRow(ctx, query, id))
}

func (s *Store) UpdateTransfer(ctx context.Context, tr *ledger.Transfer) error {
	query := `
		UPDATE transfers
		SET source_account = $2, dest_account = $3, source_amount = $4, dest_amount = $5,
		    source_currency = $6, dest_currency = $7, occurred_at = $8, comment = $9, updated_at = $10
		WHERE id = $1
	`

	tag, err := s.getQueryer(ctx).Exec(ctx, query,
		tr.ID,
		tr.SourceAccount,
		tr.DestAccount,
		tr.SourceAmount.String(),
		tr.DestAmount.String(),
		tr.SourceCurrency,
		tr.DestCurrency,
		tr.Date,
		tr.Comment,
		tr.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update transfer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ledger.ErrNotFound
	}

	return nil
}

func (s *Store) DeleteTransfer(ctx context.Context, id uuid.UUID) error {
	tag, err := s.getQueryer(ctx).Exec(ctx, `DELETE FROM transfers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete transfer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ledger.ErrNotFound
	}

	return nil
}

func (s *Store) ListTransfers(ctx context.Context, filters ledger.RecordFilters) ([]*ledger.Transfer, error) {
	query := `SELECT ` + transferColumns + ` FROM transfers WHERE 1=1`
	args := []any{}

	if filters.AccountID != nil {
		args = append(args, *filters.AccountID)
		query += fmt.Sprintf(" AND (source_account = $%d OR dest_account = $%d)", len(args), len(args))
	}
	if filters.From != nil {
		args = append(args, *filters.From)
		query += fmt.Sprintf(" AND occurred_at >= $%d", len(args))
	}
	if filters.To != nil {
		args = append(args, *filters.To)
		query += fmt.Sprintf(" AND occurred_at <= $%d", len(args))
	}

	query += " ORDER BY occurred_at DESC, id ASC"

	if filters.Limit > 0 {
		args = append(args, filters.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filters.Offset > 0 {
		args = append(args, filters.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.getQueryer(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transfers: %w", err)
	}
	defer rows.Close()

	var transfers []*ledger.Transfer
	for rows.Next() {
		tr, err := s.scanTransfer(rows)
		if err != nil {
			return nil, err
		}
		transfers = append(transfers, tr)
	}

	return transfers, rows.Err()
}

// Transaction management. The open pgx transaction is carried in the
// context so every store method transparently runs inside it.

type ctxKey string

const txContextKey ctxKey = "pgx_tx"

func (s *Store) BeginTx(ctx context.Context) (context.Context, error) {
	if tx := s.getTxFromContext(ctx); tx != nil {
		return ctx, ledger.ErrTxInProgress
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return ctx, fmt.Errorf("failed to begin transaction: %w", err)
	}

	return context.WithValue(ctx, txContextKey, tx), nil
}

func (s *Store) CommitTx(ctx context.Context) error {
	tx := s.getTxFromContext(ctx)
	if tx == nil {
		return ledger.ErrNoTx
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (s *Store) RollbackTx(ctx context.Context) error {
	tx := s.getTxFromContext(ctx)
	if tx == nil {
		return ledger.ErrNoTx
	}

	if err := tx.Rollback(ctx); err != nil {
		if errors.Is(err, pgx.ErrTxClosed) {
			return nil
		}
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}

	return nil
}

func (s *Store) getTxFromContext(ctx context.Context) pgx.Tx {
	if tx, ok := ctx.Value(txContextKey).(pgx.Tx); ok {
		return tx
	}
	return nil
}

// getQueryer returns the transaction if one exists in context, otherwise
// the pool, so methods work both inside and outside transactions.
func (s *Store) getQueryer(ctx context.Context) interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
} {
	if tx := s.getTxFromContext(ctx); tx != nil {
		return tx
	}
	return s.pool
}

// Scan helpers

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanAccount(row rowScanner) (*ledger.Account, error) {
	var account ledger.Account
	var balance string

	err := row.Scan(
		&account.ID,
		&account.Name,
		&account.Currency,
		&balance,
		&account.Active,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ledger.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan account: %w", err)
	}

	if account.Balance, err = decimal.NewFromString(balance); err != nil {
		return nil, fmt.Errorf("invalid balance value: %w", err)
	}

	return &account, nil
}

func (s *Store) scanSimple(row rowScanner) (*ledger.SimpleTransaction, error) {
	var tx ledger.SimpleTransaction
	var amount string
	var kind string
	var linkID sql.NullString

	err := row.Scan(
		&tx.ID,
		&tx.AccountID,
		&amount,
		&tx.Currency,
		&kind,
		&tx.Category,
		&tx.Date,
		&tx.Comment,
		&linkID,
		&tx.CreatedAt,
		&tx.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ledger.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan transaction: %w", err)
	}

	if tx.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("invalid amount value: %w", err)
	}
	tx.Kind = ledger.Kind(kind)

	if linkID.Valid {
		id, err := uuid.Parse(linkID.String)
		if err != nil {
			return nil, fmt.Errorf("invalid transfer link id: %w", err)
		}
		tx.TransferLinkID = &id
	}

	return &tx, nil
}

func (s *Store) scanTransfer(row rowScanner) (*ledger.Transfer, error) {
	var tr ledger.Transfer
	var sourceAmount, destAmount string

	err := row.Scan(
		&tr.ID,
		&tr.SourceAccount,
		&tr.DestAccount,
		&sourceAmount,
		&destAmount,
		&tr.SourceCurrency,
		&tr.DestCurrency,
		&tr.Date,
		&tr.Comment,
		&tr.CreatedAt,
		&tr.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ledger.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan transfer: %w", err)
	}

	if tr.SourceAmount, err = decimal.NewFromString(sourceAmount); err != nil {
		return nil, fmt.Errorf("invalid source amount: %w", err)
	}
	if tr.DestAmount, err = decimal.NewFromString(destAmount); err != nil {
		return nil, fmt.Errorf("invalid dest amount: %w", err)
	}

	return &tr, nil
}

func (s *Store) querySimples(ctx context.Context, query string, args ...any) ([]*ledger.SimpleTransaction, error) {
	rows, err := s.getQueryer(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var txs []*ledger.SimpleTransaction
	for rows.Next() {
		tx, err := s.scanSimple(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}

	return txs, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}
