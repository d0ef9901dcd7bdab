package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TransactionKind string

const (
	KindDeposit  TransactionKind = "deposit"
	KindWithdraw TransactionKind = "withdraw"
	KindTransfer TransactionKind = "transfer"
)

// Transaction is one entry of the append-only audit log. It is created
// exactly once, when a mutation commits, and is never updated or deleted.
// ToAccountID is set only for transfers.
type Transaction struct {
	ID          string          `json:"id"`
	Kind        TransactionKind `json:"kind"`
	Amount      decimal.Decimal `json:"amount"`
	AccountID   string          `json:"account_id"`
	ToAccountID string          `json:"to_account_id,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

func NewTransaction(kind TransactionKind, amount decimal.Decimal, accountID string) *Transaction {
	return &Transaction{
		ID:        uuid.NewString(),
		Kind:      kind,
		Amount:    amount,
		AccountID: accountID,
		CreatedAt: time.Now().UTC(),
	}
}

func (t *Transaction) WithDestination(toAccountID string) *Transaction {
	t.ToAccountID = toAccountID
	return t
}
