package repository

import (
	"context"
	"errors"

	"bankcore/internal/domain"

	"github.com/shopspring/decimal"
)

// LedgerTx is the view of a store inside one atomic mutation. LockAccount
// grants exclusive access to the account row until the surrounding Mutate
// call returns; callers that touch several accounts must lock them in
// ascending ID order.
type LedgerTx interface {
	LockAccount(ctx context.Context, id string) (*domain.Account, error)
	UpdateBalance(ctx context.Context, id string, balance decimal.Decimal) error
	AppendTransaction(ctx context.Context, tx *domain.Transaction) error
}

// LedgerStore persists accounts and the transaction audit log. Mutate runs
// fn inside a transaction: either every write fn performed is committed, or
// none is.
type LedgerStore interface {
	Mutate(ctx context.Context, fn func(tx LedgerTx) error) error

	SaveAccount(ctx context.Context, account *domain.Account) error
	GetAccount(ctx context.Context, id string) (*domain.Account, error)
	GetAccountByNumber(ctx context.Context, number string) (*domain.Account, error)
	GetAccountsByUser(ctx context.Context, userID string) ([]*domain.Account, error)
	UpdateAccountStatus(ctx context.Context, id string, status domain.AccountStatus) error

	GetTransaction(ctx context.Context, id string) (*domain.Transaction, error)
	GetTransactionsByAccount(ctx context.Context, accountID string, limit, offset int) ([]*domain.Transaction, error)
}

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate entry")
)
