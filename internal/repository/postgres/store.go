package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"bankcore/internal/domain"
	"bankcore/internal/repository"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// LedgerStore persists the ledger in Postgres. Mutations run inside a single
// database transaction; LockAccount issues SELECT ... FOR UPDATE, so the row
// stays exclusively held until commit or rollback.
type LedgerStore struct {
	db *sql.DB
}

func NewLedgerStore(db *sql.DB) *LedgerStore {
	return &LedgerStore{db: db}
}

var _ repository.LedgerStore = (*LedgerStore)(nil)

type pgTx struct {
	tx *sql.Tx
}

func (s *LedgerStore) Mutate(ctx context.Context, fn func(tx repository.LedgerTx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (t *pgTx) LockAccount(ctx context.Context, id string) (*domain.Account, error) {
	query := `
		SELECT id, user_id, number, balance, status, created_at, last_activity_at
		FROM accounts
		WHERE id = $1
		FOR UPDATE
	`
	return scanAccount(t.tx.QueryRowContext(ctx, query, id), id)
}

func (t *pgTx) UpdateBalance(ctx context.Context, id string, balance decimal.Decimal) error {
	query := `
		UPDATE accounts
		SET balance = $1, last_activity_at = NOW()
		WHERE id = $2
	`
	result, err := t.tx.ExecContext(ctx, query, balance, id)
	if err != nil {
		return fmt.Errorf("update balance for account %s: %w", id, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("%w: account %s", repository.ErrNotFound, id)
	}
	return nil
}

func (t *pgTx) AppendTransaction(ctx context.Context, txn *domain.Transaction) error {
	query := `
		INSERT INTO transactions (id, kind, amount, account_id, to_account_id, created_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6)
	`
	_, err := t.tx.ExecContext(ctx, query,
		txn.ID, string(txn.Kind), txn.Amount, txn.AccountID, txn.ToAccountID, txn.CreatedAt)
	if err != nil {
		return fmt.Errorf("append transaction: %w", translateError(err))
	}

	// Outbox row committed with the mutation; the outbox processor publishes
	// it after the fact.
	payload, err := json.Marshal(txn)
	if err != nil {
		return fmt.Errorf("encode outbox payload: %w", err)
	}
	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO outbox_events (type, payload, status)
		VALUES ($1, $2, 'pending')
	`, "transaction."+string(txn.Kind), payload)
	if err != nil {
		return fmt.Errorf("append outbox event: %w", err)
	}
	return nil
}

func (s *LedgerStore) SaveAccount(ctx context.Context, account *domain.Account) error {
	query := `
		INSERT INTO accounts (id, user_id, number, balance, status, created_at, last_activity_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		RETURNING created_at, last_activity_at
	`
	err := s.db.QueryRowContext(ctx, query,
		account.ID, account.UserID, account.Number, account.Balance, string(account.Status)).
		Scan(&account.CreatedAt, &account.LastActivityAt)
	if err != nil {
		return fmt.Errorf("save account: %w", translateError(err))
	}
	return nil
}

func (s *LedgerStore) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	query := `
		SELECT id, user_id, number, balance, status, created_at, last_activity_at
		FROM accounts
		WHERE id = $1
	`
	return scanAccount(s.db.QueryRowContext(ctx, query, id), id)
}

func (s *LedgerStore) GetAccountByNumber(ctx context.Context, number string) (*domain.Account, error) {
	query := `
		SELECT id, user_id, number, balance, status, created_at, last_activity_at
		FROM accounts
		WHERE number = $1
	`
	return scanAccount(s.db.QueryRowContext(ctx, query, number), number)
}

func (s *LedgerStore) GetAccountsByUser(ctx context.Context, userID string) ([]*domain.Account, error) {
	query := `
		SELECT id, user_id, number, balance, status, created_at, last_activity_at
		FROM accounts
		WHERE user_id = $1
		ORDER BY created_at
	`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("get accounts for user %s: %w", userID, err)
	}
	defer rows.Close()

	var result []*domain.Account
	for rows.Next() {
		var a domain.Account
		if err := rows.Scan(&a.ID, &a.UserID, &a.Number, &a.Balance, &a.Status, &a.CreatedAt, &a.LastActivityAt); err != nil {
			return nil, err
		}
		result = append(result, &a)
	}
	return result, rows.Err()
}

func (s *LedgerStore) UpdateAccountStatus(ctx context.Context, id string, status domain.AccountStatus) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE accounts
		SET status = $1, last_activity_at = NOW()
		WHERE id = $2
	`, string(status), id)
	if err != nil {
		return fmt.Errorf("update status for account %s: %w", id, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("%w: account %s", repository.ErrNotFound, id)
	}
	return nil
}

func (s *LedgerStore) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	query := `
		SELECT id, kind, amount, account_id, COALESCE(to_account_id, ''), created_at
		FROM transactions
		WHERE id = $1
	`
	var t domain.Transaction
	err := s.db.QueryRowContext(ctx, query, id).
		Scan(&t.ID, &t.Kind, &t.Amount, &t.AccountID, &t.ToAccountID, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: transaction %s", repository.ErrNotFound, id)
		}
		return nil, fmt.Errorf("get transaction %s: %w", id, err)
	}
	return &t, nil
}

func (s *LedgerStore) GetTransactionsByAccount(ctx context.Context, accountID string, limit, offset int) ([]*domain.Transaction, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, kind, amount, account_id, COALESCE(to_account_id, ''), created_at
		FROM transactions
		WHERE account_id = $1 OR to_account_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := s.db.QueryContext(ctx, query, accountID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("get transactions for account %s: %w", accountID, err)
	}
	defer rows.Close()

	var result []*domain.Transaction
	for rows.Next() {
		var t domain.Transaction
		if err := rows.Scan(&t.ID, &t.Kind, &t.Amount, &t.AccountID, &t.ToAccountID, &t.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, &t)
	}
	return result, rows.Err()
}

func scanAccount(row *sql.Row, key string) (*domain.Account, error) {
	var a domain.Account
	err := row.Scan(&a.ID, &a.UserID, &a.Number, &a.Balance, &a.Status, &a.CreatedAt, &a.LastActivityAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: account %s", repository.ErrNotFound, key)
		}
		return nil, fmt.Errorf("fetch account %s: %w", key, err)
	}
	return &a, nil
}

func translateError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return fmt.Errorf("%w: %s", repository.ErrDuplicate, pqErr.Constraint)
	}
	return err
}
