package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type AccountStatus string

const (
	AccountActive AccountStatus = "active"
	AccountClosed AccountStatus = "closed"
)

// Account holds funds for exactly one user. Balance never goes below zero
// after a committed mutation.
type Account struct {
	ID             string          `json:"id"`
	UserID         string          `json:"user_id"`
	Number         string          `json:"number"`
	Balance        decimal.Decimal `json:"balance"`
	Status         AccountStatus   `json:"status"`
	CreatedAt      time.Time       `json:"created_at"`
	LastActivityAt time.Time       `json:"last_activity_at"`
}

func (a *Account) OwnedBy(userID string) bool {
	return a.UserID == userID
}
