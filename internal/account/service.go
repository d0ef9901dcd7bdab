package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strconv"

	"bankcore/internal/domain"
	"bankcore/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrUnauthorized    = errors.New("caller does not own the account")
	ErrBalanceNotZero  = errors.New("account balance must be zero before closing")
	ErrAlreadyClosed   = errors.New("account is already closed")
)

// numberAttempts bounds retries when a generated account number collides.
const numberAttempts = 5

// Service manages account lifecycle. Accounts open with a zero balance and
// are closed, never deleted, so the audit log keeps resolving.
type Service struct {
	store  repository.LedgerStore
	logger *slog.Logger
}

func NewService(store repository.LedgerStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  store,
		logger: logger,
	}
}

func (s *Service) Open(ctx context.Context, userID string) (*domain.Account, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id is required")
	}

	var lastErr error
	for i := 0; i < numberAttempts; i++ {
		account := &domain.Account{
			ID:      uuid.NewString(),
			UserID:  userID,
			Number:  newAccountNumber(),
			Balance: decimal.Zero,
			Status:  domain.AccountActive,
		}
		err := s.store.SaveAccount(ctx, account)
		if err == nil {
			s.logger.InfoContext(ctx, "Account opened",
				slog.String("account_id", account.ID),
				slog.String("user_id", userID))
			return account, nil
		}
		if !errors.Is(err, repository.ErrDuplicate) {
			return nil, fmt.Errorf("open account: %w", err)
		}
		lastErr = err
	}
	return nil, fmt.Errorf("open account: %w", lastErr)
}

func (s *Service) Close(ctx context.Context, accountID, requestingUserID string) error {
	account, err := s.Get(ctx, accountID)
	if err != nil {
		return err
	}
	if !account.OwnedBy(requestingUserID) {
		return ErrUnauthorized
	}
	if account.Status == domain.AccountClosed {
		return ErrAlreadyClosed
	}
	if !account.Balance.IsZero() {
		return ErrBalanceNotZero
	}

	if err := s.store.UpdateAccountStatus(ctx, accountID, domain.AccountClosed); err != nil {
		return fmt.Errorf("close account: %w", err)
	}
	s.logger.InfoContext(ctx, "Account closed",
		slog.String("account_id", accountID),
		slog.String("user_id", requestingUserID))
	return nil
}

func (s *Service) Get(ctx context.Context, accountID string) (*domain.Account, error) {
	account, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, accountID)
		}
		return nil, err
	}
	return account, nil
}

func (s *Service) GetByNumber(ctx context.Context, number string) (*domain.Account, error) {
	account, err := s.store.GetAccountByNumber(ctx, number)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: number %s", ErrAccountNotFound, number)
		}
		return nil, err
	}
	return account, nil
}

func (s *Service) ListByUser(ctx context.Context, userID string) ([]*domain.Account, error) {
	accounts, err := s.store.GetAccountsByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return []*domain.Account{}, nil
		}
		return nil, err
	}
	return accounts, nil
}

// Statement lists the transactions touching one account, newest first. Only
// the owner may read it.
func (s *Service) Statement(ctx context.Context, accountID, requestingUserID string, limit, offset int) ([]*domain.Transaction, error) {
	account, err := s.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if !account.OwnedBy(requestingUserID) {
		return nil, ErrUnauthorized
	}
	return s.store.GetTransactionsByAccount(ctx, accountID, limit, offset)
}

// newAccountNumber returns a random externally-displayed 10-digit number.
func newAccountNumber() string {
	return strconv.FormatInt(1000000000+rand.Int64N(9000000000), 10)
}
