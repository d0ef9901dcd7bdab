package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"bankcore/internal/domain"
	"bankcore/internal/repository"

	"github.com/shopspring/decimal"
)

// LedgerStore is the in-memory implementation used by tests and local runs.
// Mutate holds the store-wide write lock for the whole callback, so every
// mutation observes and produces a consistent state; writes are staged and
// applied only when the callback succeeds.
type LedgerStore struct {
	mu           sync.RWMutex
	accounts     map[string]*domain.Account
	numberIndex  map[string]string
	userIndex    map[string][]string
	transactions map[string]*domain.Transaction
	txIndex      map[string][]string
}

func NewLedgerStore() *LedgerStore {
	return &LedgerStore{
		accounts:     make(map[string]*domain.Account),
		numberIndex:  make(map[string]string),
		userIndex:    make(map[string][]string),
		transactions: make(map[string]*domain.Transaction),
		txIndex:      make(map[string][]string),
	}
}

type memTx struct {
	store    *LedgerStore
	balances map[string]decimal.Decimal
	appended []*domain.Transaction
}

func (s *LedgerStore) Mutate(ctx context.Context, fn func(tx repository.LedgerTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{store: s, balances: make(map[string]decimal.Decimal)}
	if err := fn(tx); err != nil {
		return err
	}

	now := time.Now()
	for id, balance := range tx.balances {
		account := s.accounts[id]
		account.Balance = balance
		account.LastActivityAt = now
	}
	for _, t := range tx.appended {
		s.transactions[t.ID] = t
		s.txIndex[t.AccountID] = append(s.txIndex[t.AccountID], t.ID)
		if t.ToAccountID != "" {
			s.txIndex[t.ToAccountID] = append(s.txIndex[t.ToAccountID], t.ID)
		}
	}
	return nil
}

func (tx *memTx) LockAccount(ctx context.Context, id string) (*domain.Account, error) {
	account, exists := tx.store.accounts[id]
	if !exists {
		return nil, fmt.Errorf("%w: account %s", repository.ErrNotFound, id)
	}
	cp := *account
	if staged, ok := tx.balances[id]; ok {
		cp.Balance = staged
	}
	return &cp, nil
}

func (tx *memTx) UpdateBalance(ctx context.Context, id string, balance decimal.Decimal) error {
	if _, exists := tx.store.accounts[id]; !exists {
		return fmt.Errorf("%w: account %s", repository.ErrNotFound, id)
	}
	tx.balances[id] = balance
	return nil
}

func (tx *memTx) AppendTransaction(ctx context.Context, t *domain.Transaction) error {
	if _, exists := tx.store.transactions[t.ID]; exists {
		return fmt.Errorf("%w: transaction %s", repository.ErrDuplicate, t.ID)
	}
	tx.appended = append(tx.appended, t)
	return nil
}

func (s *LedgerStore) SaveAccount(ctx context.Context, account *domain.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.accounts[account.ID]; exists {
		return fmt.Errorf("%w: account %s", repository.ErrDuplicate, account.ID)
	}
	if _, exists := s.numberIndex[account.Number]; exists {
		return fmt.Errorf("%w: account number %s", repository.ErrDuplicate, account.Number)
	}

	account.CreatedAt = time.Now()
	account.LastActivityAt = account.CreatedAt
	s.accounts[account.ID] = account
	s.numberIndex[account.Number] = account.ID
	s.userIndex[account.UserID] = append(s.userIndex[account.UserID], account.ID)

	return nil
}

func (s *LedgerStore) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, exists := s.accounts[id]
	if !exists {
		return nil, fmt.Errorf("%w: account %s", repository.ErrNotFound, id)
	}
	cp := *account
	return &cp, nil
}

func (s *LedgerStore) GetAccountByNumber(ctx context.Context, number string) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, exists := s.numberIndex[number]
	if !exists {
		return nil, fmt.Errorf("%w: account number %s", repository.ErrNotFound, number)
	}
	cp := *s.accounts[id]
	return &cp, nil
}

func (s *LedgerStore) GetAccountsByUser(ctx context.Context, userID string) ([]*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids, exists := s.userIndex[userID]
	if !exists {
		return nil, fmt.Errorf("%w: user %s", repository.ErrNotFound, userID)
	}

	var result []*domain.Account
	for _, id := range ids {
		if account, ok := s.accounts[id]; ok {
			cp := *account
			result = append(result, &cp)
		}
	}
	return result, nil
}

func (s *LedgerStore) UpdateAccountStatus(ctx context.Context, id string, status domain.AccountStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, exists := s.accounts[id]
	if !exists {
		return fmt.Errorf("%w: account %s", repository.ErrNotFound, id)
	}
	account.Status = status
	account.LastActivityAt = time.Now()
	return nil
}

func (s *LedgerStore) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, exists := s.transactions[id]
	if !exists {
		return nil, fmt.Errorf("%w: transaction %s", repository.ErrNotFound, id)
	}
	cp := *t
	return &cp, nil
}

func (s *LedgerStore) GetTransactionsByAccount(ctx context.Context, accountID string, limit, offset int) ([]*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids, exists := s.txIndex[accountID]
	if !exists {
		if _, ok := s.accounts[accountID]; !ok {
			return nil, fmt.Errorf("%w: account %s", repository.ErrNotFound, accountID)
		}
		return []*domain.Transaction{}, nil
	}

	sorted := make([]string, len(ids))
	copy(sorted, ids)
	sort.Slice(sorted, func(i, j int) bool {
		return s.transactions[sorted[i]].CreatedAt.After(s.transactions[sorted[j]].CreatedAt)
	})

	start := offset
	if start < 0 {
		start = 0
	}
	end := start + limit
	if end > len(sorted) || limit <= 0 {
		end = len(sorted)
	}
	if start >= len(sorted) {
		return []*domain.Transaction{}, nil
	}

	var result []*domain.Transaction
	for _, id := range sorted[start:end] {
		cp := *s.transactions[id]
		result = append(result, &cp)
	}
	return result, nil
}
