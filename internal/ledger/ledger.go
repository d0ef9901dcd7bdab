package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"bankcore/internal/domain"
	"bankcore/internal/repository"

	"github.com/shopspring/decimal"
)

// Service owns the deposit/withdraw/transfer logic and its invariants: no
// balance ever goes negative, and a balance change commits together with its
// audit record or not at all. Every operation takes the requesting user
// explicitly; ownership of the source account is the sole authorization
// check.
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

// MutationResult reports a committed single-account mutation.
type MutationResult struct {
	TransactionID string
	Balance       decimal.Decimal
}

// TransferResult reports a committed transfer.
type TransferResult struct {
	TransactionID string
	FromBalance   decimal.Decimal
	ToBalance     decimal.Decimal
}

func (s *Service) Deposit(ctx context.Context, accountID string, amount decimal.Decimal, requestingUserID string) (MutationResult, error) {
	if !amount.IsPositive() {
		return MutationResult{}, ErrInvalidAmount
	}

	var result MutationResult
	err := s.store.Mutate(ctx, func(tx repository.LedgerTx) error {
		account, err := s.lockOwned(ctx, tx, accountID, requestingUserID)
		if err != nil {
			return err
		}

		newBalance := account.Balance.Add(amount)
		if err := tx.UpdateBalance(ctx, accountID, newBalance); err != nil {
			return err
		}

		txn := domain.NewTransaction(domain.KindDeposit, amount, accountID)
		if err := tx.AppendTransaction(ctx, txn); err != nil {
			return err
		}

		result = MutationResult{TransactionID: txn.ID, Balance: newBalance}
		return nil
	})
	if err != nil {
		return MutationResult{}, err
	}

	s.logger.InfoContext(ctx, "Deposit committed",
		slog.String("account_id", accountID),
		slog.String("transaction_id", result.TransactionID),
		slog.String("amount", amount.String()))
	return result, nil
}

func (s *Service) Withdraw(ctx context.Context, accountID string, amount decimal.Decimal, requestingUserID string) (MutationResult, error) {
	if !amount.IsPositive() {
		return MutationResult{}, ErrInvalidAmount
	}

	var result MutationResult
	err := s.store.Mutate(ctx, func(tx repository.LedgerTx) error {
		account, err := s.lockOwned(ctx, tx, accountID, requestingUserID)
		if err != nil {
			return err
		}
		if account.Balance.LessThan(amount) {
			return ErrInsufficientFunds
		}

		newBalance := account.Balance.Sub(amount)
		if err := tx.UpdateBalance(ctx, accountID, newBalance); err != nil {
			return err
		}

		txn := domain.NewTransaction(domain.KindWithdraw, amount, accountID)
		if err := tx.AppendTransaction(ctx, txn); err != nil {
			return err
		}

		result = MutationResult{TransactionID: txn.ID, Balance: newBalance}
		return nil
	})
	if err != nil {
		return MutationResult{}, err
	}

	s.logger.InfoContext(ctx, "Withdrawal committed",
		slog.String("account_id", accountID),
		slog.String("transaction_id", result.TransactionID),
		slog.String("amount", amount.String()))
	return result, nil
}

func (s *Service) Transfer(ctx context.Context, fromID, toID string, amount decimal.Decimal, requestingUserID string) (TransferResult, error) {
	if !amount.IsPositive() {
		return TransferResult{}, ErrInvalidAmount
	}
	if fromID == toID {
		return TransferResult{}, ErrSameAccount
	}

	var result TransferResult
	err := s.store.Mutate(ctx, func(tx repository.LedgerTx) error {
		// Lock both rows in ascending ID order so opposing concurrent
		// transfers cannot deadlock.
		firstID, secondID := fromID, toID
		if firstID > secondID {
			firstID, secondID = secondID, firstID
		}

		first, err := lockAccount(ctx, tx, firstID)
		if err != nil {
			return err
		}
		second, err := lockAccount(ctx, tx, secondID)
		if err != nil {
			return err
		}

		from, to := first, second
		if from.ID != fromID {
			from, to = second, first
		}

		// Only the source must belong to the caller; anyone may receive.
		if !from.OwnedBy(requestingUserID) {
			return ErrUnauthorized
		}
		if from.Status != domain.AccountActive || to.Status != domain.AccountActive {
			return ErrAccountClosed
		}
		if from.Balance.LessThan(amount) {
			return ErrInsufficientFunds
		}

		fromBalance := from.Balance.Sub(amount)
		toBalance := to.Balance.Add(amount)
		if err := tx.UpdateBalance(ctx, from.ID, fromBalance); err != nil {
			return err
		}
		if err := tx.UpdateBalance(ctx, to.ID, toBalance); err != nil {
			return err
		}

		txn := domain.NewTransaction(domain.KindTransfer, amount, fromID).WithDestination(toID)
		if err := tx.AppendTransaction(ctx, txn); err != nil {
			return err
		}

		result = TransferResult{
			TransactionID: txn.ID,
			FromBalance:   fromBalance,
			ToBalance:     toBalance,
		}
		return nil
	})
	if err != nil {
		return TransferResult{}, err
	}

	s.logger.InfoContext(ctx, "Transfer committed",
		slog.String("from_account", fromID),
		slog.String("to_account", toID),
		slog.String("transaction_id", result.TransactionID),
		slog.String("amount", amount.String()))
	return result, nil
}

func (s *Service) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	return s.store.GetTransaction(ctx, id)
}

// lockOwned locks a single account row and enforces the ownership and
// status preconditions shared by deposits and withdrawals.
func (s *Service) lockOwned(ctx context.Context, tx repository.LedgerTx, accountID, requestingUserID string) (*domain.Account, error) {
	account, err := lockAccount(ctx, tx, accountID)
	if err != nil {
		return nil, err
	}
	if !account.OwnedBy(requestingUserID) {
		return nil, ErrUnauthorized
	}
	if account.Status != domain.AccountActive {
		return nil, ErrAccountClosed
	}
	return account, nil
}

func lockAccount(ctx context.Context, tx repository.LedgerTx, accountID string) (*domain.Account, error) {
	account, err := tx.LockAccount(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, accountID)
		}
		return nil, err
	}
	return account, nil
}
