package memory

import (
	"context"
	"errors"
	"testing"

	"bankcore/internal/domain"
	"bankcore/internal/repository"

	"github.com/shopspring/decimal"
)

func saveAccount(t *testing.T, store *LedgerStore, id, userID, number string, balance int64) {
	t.Helper()
	acc := &domain.Account{
		ID:      id,
		UserID:  userID,
		Number:  number,
		Balance: decimal.NewFromInt(balance),
		Status:  domain.AccountActive,
	}
	if err := store.SaveAccount(context.Background(), acc); err != nil {
		t.Fatalf("save account: %v", err)
	}
}

func TestLedgerStore_SaveAndGet(t *testing.T) {
	store := NewLedgerStore()
	saveAccount(t, store, "a1", "u1", "1000000001", 100)

	got, err := store.GetAccount(context.Background(), "a1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.UserID != "u1" || !got.Balance.Equal(decimal.NewFromInt(100)) {
		t.Errorf("unexpected account: %+v", got)
	}

	byNumber, err := store.GetAccountByNumber(context.Background(), "1000000001")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if byNumber.ID != "a1" {
		t.Errorf("expected a1, got %s", byNumber.ID)
	}
}

func TestLedgerStore_DuplicateNumber(t *testing.T) {
	store := NewLedgerStore()
	saveAccount(t, store, "a1", "u1", "1000000001", 0)

	err := store.SaveAccount(context.Background(), &domain.Account{
		ID:     "a2",
		UserID: "u2",
		Number: "1000000001",
		Status: domain.AccountActive,
	})
	if !errors.Is(err, repository.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

// A failing mutation callback must leave no trace: staged balance updates
// and appended transactions are discarded together.
func TestLedgerStore_MutateRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	store := NewLedgerStore()
	saveAccount(t, store, "a1", "u1", "1000000001", 100)

	boom := errors.New("boom")
	err := store.Mutate(ctx, func(tx repository.LedgerTx) error {
		if err := tx.UpdateBalance(ctx, "a1", decimal.NewFromInt(500)); err != nil {
			return err
		}
		if err := tx.AppendTransaction(ctx, domain.NewTransaction(domain.KindDeposit, decimal.NewFromInt(400), "a1")); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected callback error, got %v", err)
	}

	got, _ := store.GetAccount(ctx, "a1")
	if !got.Balance.Equal(decimal.NewFromInt(100)) {
		t.Errorf("balance changed despite rollback: %s", got.Balance)
	}
	txns, _ := store.GetTransactionsByAccount(ctx, "a1", 0, 0)
	if len(txns) != 0 {
		t.Errorf("expected no transactions, got %d", len(txns))
	}
}

// A staged balance must be visible to a later LockAccount in the same
// mutation, or a transfer would double-spend within its own transaction.
func TestLedgerStore_MutateSeesStagedBalance(t *testing.T) {
	ctx := context.Background()
	store := NewLedgerStore()
	saveAccount(t, store, "a1", "u1", "1000000001", 100)

	err := store.Mutate(ctx, func(tx repository.LedgerTx) error {
		if err := tx.UpdateBalance(ctx, "a1", decimal.NewFromInt(70)); err != nil {
			return err
		}
		acc, err := tx.LockAccount(ctx, "a1")
		if err != nil {
			return err
		}
		if !acc.Balance.Equal(decimal.NewFromInt(70)) {
			t.Errorf("expected staged balance 70, got %s", acc.Balance)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLedgerStore_GetTransactionsByAccount(t *testing.T) {
	ctx := context.Background()
	store := NewLedgerStore()
	saveAccount(t, store, "a1", "u1", "1000000001", 100)
	saveAccount(t, store, "a2", "u2", "1000000002", 100)

	err := store.Mutate(ctx, func(tx repository.LedgerTx) error {
		t1 := domain.NewTransaction(domain.KindDeposit, decimal.NewFromInt(10), "a1")
		t2 := domain.NewTransaction(domain.KindTransfer, decimal.NewFromInt(20), "a1").WithDestination("a2")
		if err := tx.AppendTransaction(ctx, t1); err != nil {
			return err
		}
		return tx.AppendTransaction(ctx, t2)
	})
	if err != nil {
		t.Fatalf("mutate failed: %v", err)
	}

	forA1, err := store.GetTransactionsByAccount(ctx, "a1", 0, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(forA1) != 2 {
		t.Fatalf("expected 2 transactions for a1, got %d", len(forA1))
	}

	// Transfer is indexed under the destination too.
	forA2, err := store.GetTransactionsByAccount(ctx, "a2", 0, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(forA2) != 1 || forA2[0].Kind != domain.KindTransfer {
		t.Fatalf("unexpected transactions for a2: %+v", forA2)
	}

	if _, err := store.GetTransactionsByAccount(ctx, "missing", 0, 0); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
