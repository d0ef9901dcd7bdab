package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"

	"bankcore/internal/domain"
	"bankcore/internal/repository/memory"

	"github.com/shopspring/decimal"
)

func newTestService(t *testing.T) (*Service, *memory.LedgerStore) {
	t.Helper()
	store := memory.NewLedgerStore()
	return NewService(store, nil), store
}

func mustAccount(t *testing.T, store *memory.LedgerStore, id, userID, number string, balance string) {
	t.Helper()
	acc := &domain.Account{
		ID:      id,
		UserID:  userID,
		Number:  number,
		Balance: decimal.RequireFromString(balance),
		Status:  domain.AccountActive,
	}
	if err := store.SaveAccount(context.Background(), acc); err != nil {
		t.Fatalf("save account failed: %v", err)
	}
}

func balanceOf(t *testing.T, store *memory.LedgerStore, id string) decimal.Decimal {
	t.Helper()
	acc, err := store.GetAccount(context.Background(), id)
	if err != nil {
		t.Fatalf("get account failed: %v", err)
	}
	return acc.Balance
}

func transactionCount(t *testing.T, store *memory.LedgerStore, accountID string) int {
	t.Helper()
	txns, err := store.GetTransactionsByAccount(context.Background(), accountID, 0, 0)
	if err != nil {
		t.Fatalf("get transactions failed: %v", err)
	}
	return len(txns)
}

func TestDeposit_Success(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)
	mustAccount(t, store, "a1", "u1", "1000000001", "1000.00")

	result, err := svc.Deposit(ctx, "a1", decimal.RequireFromString("250.00"), "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Balance.Equal(decimal.RequireFromString("1250.00")) {
		t.Errorf("expected balance 1250.00, got %s", result.Balance)
	}
	if result.TransactionID == "" {
		t.Error("expected a transaction id")
	}

	txns, _ := store.GetTransactionsByAccount(ctx, "a1", 0, 0)
	if len(txns) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(txns))
	}
	if txns[0].Kind != domain.KindDeposit || !txns[0].Amount.Equal(decimal.RequireFromString("250.00")) {
		t.Errorf("unexpected transaction: %+v", txns[0])
	}
}

func TestDeposit_InvalidAmount(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)
	mustAccount(t, store, "a1", "u1", "1000000001", "100.00")

	for _, raw := range []string{"-5", "0"} {
		_, err := svc.Deposit(ctx, "a1", decimal.RequireFromString(raw), "u1")
		if !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("amount=%s: expected ErrInvalidAmount, got %v", raw, err)
		}
	}
	if got := balanceOf(t, store, "a1"); !got.Equal(decimal.RequireFromString("100.00")) {
		t.Errorf("balance changed on rejected deposit: %s", got)
	}
	if n := transactionCount(t, store, "a1"); n != 0 {
		t.Errorf("expected no transactions, got %d", n)
	}
}

func TestDeposit_AccountNotFound(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Deposit(context.Background(), "missing", decimal.NewFromInt(10), "u1")
	if !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestDeposit_Unauthorized(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)
	mustAccount(t, store, "a1", "u1", "1000000001", "100.00")

	_, err := svc.Deposit(ctx, "a1", decimal.NewFromInt(10), "u2")
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if got := balanceOf(t, store, "a1"); !got.Equal(decimal.RequireFromString("100.00")) {
		t.Errorf("balance changed on unauthorized deposit: %s", got)
	}
}

func TestWithdraw_InsufficientFunds(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)
	mustAccount(t, store, "a1", "u1", "1000000001", "50.00")

	_, err := svc.Withdraw(ctx, "a1", decimal.RequireFromString("50.01"), "u1")
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if got := balanceOf(t, store, "a1"); !got.Equal(decimal.RequireFromString("50.00")) {
		t.Errorf("balance changed on failed withdrawal: %s", got)
	}
	if n := transactionCount(t, store, "a1"); n != 0 {
		t.Errorf("expected no transactions, got %d", n)
	}
}

func TestDepositThenWithdraw_RestoresBalance(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)
	mustAccount(t, store, "a1", "u1", "1000000001", "340.00")

	amount := decimal.RequireFromString("75.25")
	if _, err := svc.Deposit(ctx, "a1", amount, "u1"); err != nil {
		t.Fatalf("deposit failed: %v", err)
	}
	if _, err := svc.Withdraw(ctx, "a1", amount, "u1"); err != nil {
		t.Fatalf("withdraw failed: %v", err)
	}

	if got := balanceOf(t, store, "a1"); !got.Equal(decimal.RequireFromString("340.00")) {
		t.Errorf("expected balance restored to 340.00, got %s", got)
	}
	if n := transactionCount(t, store, "a1"); n != 2 {
		t.Errorf("expected exactly 2 transactions, got %d", n)
	}
}

func TestTransfer_Success(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)
	// Destination belongs to a different user: only source ownership is
	// checked.
	mustAccount(t, store, "a1", "u1", "1000000001", "1250.00")
	mustAccount(t, store, "a2", "u2", "1000000002", "0.00")

	amount := decimal.RequireFromString("300.00")
	result, err := svc.Transfer(ctx, "a1", "a2", amount, "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.FromBalance.Equal(decimal.RequireFromString("950.00")) {
		t.Errorf("expected from balance 950.00, got %s", result.FromBalance)
	}
	if !result.ToBalance.Equal(decimal.RequireFromString("300.00")) {
		t.Errorf("expected to balance 300.00, got %s", result.ToBalance)
	}

	// Conservation: total funds unchanged.
	total := balanceOf(t, store, "a1").Add(balanceOf(t, store, "a2"))
	if !total.Equal(decimal.RequireFromString("1250.00")) {
		t.Errorf("total changed after transfer: %s", total)
	}

	// Exactly one record, visible from both sides.
	txns, _ := store.GetTransactionsByAccount(ctx, "a1", 0, 0)
	if len(txns) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(txns))
	}
	txn := txns[0]
	if txn.Kind != domain.KindTransfer || txn.AccountID != "a1" || txn.ToAccountID != "a2" || !txn.Amount.Equal(amount) {
		t.Errorf("unexpected transaction: %+v", txn)
	}
	if n := transactionCount(t, store, "a2"); n != 1 {
		t.Errorf("expected transfer visible on destination, got %d records", n)
	}
}

func TestTransfer_SameAccount(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)
	mustAccount(t, store, "a1", "u1", "1000000001", "100.00")

	_, err := svc.Transfer(ctx, "a1", "a1", decimal.NewFromInt(10), "u1")
	if !errors.Is(err, ErrSameAccount) {
		t.Fatalf("expected ErrSameAccount, got %v", err)
	}
}

func TestTransfer_Unauthorized(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)
	mustAccount(t, store, "a1", "u1", "1000000001", "100.00")
	mustAccount(t, store, "a2", "u2", "1000000002", "100.00")

	// u2 owns the destination but not the source.
	_, err := svc.Transfer(ctx, "a1", "a2", decimal.NewFromInt(10), "u2")
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if got := balanceOf(t, store, "a1"); !got.Equal(decimal.RequireFromString("100.00")) {
		t.Errorf("source balance changed: %s", got)
	}
}

func TestTransfer_InsufficientFunds(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)
	mustAccount(t, store, "a1", "u1", "1000000001", "100.00")
	mustAccount(t, store, "a2", "u2", "1000000002", "0.00")

	_, err := svc.Transfer(ctx, "a1", "a2", decimal.NewFromInt(500), "u1")
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if n := transactionCount(t, store, "a1"); n != 0 {
		t.Errorf("expected no transactions, got %d", n)
	}
}

func TestWithdraw_ClosedAccount(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)
	mustAccount(t, store, "a1", "u1", "1000000001", "100.00")
	if err := store.UpdateAccountStatus(ctx, "a1", domain.AccountClosed); err != nil {
		t.Fatal(err)
	}

	_, err := svc.Withdraw(ctx, "a1", decimal.NewFromInt(10), "u1")
	if !errors.Is(err, ErrAccountClosed) {
		t.Fatalf("expected ErrAccountClosed, got %v", err)
	}
}

// Two concurrent withdrawals that jointly overdraw the account: exactly one
// must commit.
func TestConcurrentWithdrawals_ExactlyOneSucceeds(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)
	mustAccount(t, store, "a1", "u1", "1000000001", "100.00")

	amount := decimal.NewFromInt(60)
	errs := make([]error, 2)
	var wg sync.WaitGroup
	wg.Add(2)
	for i := 0; i < 2; i++ {
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Withdraw(ctx, "a1", amount, "u1")
		}(i)
	}
	wg.Wait()

	var failures int
	for _, err := range errs {
		if err != nil {
			if !errors.Is(err, ErrInsufficientFunds) {
				t.Fatalf("unexpected error: %v", err)
			}
			failures++
		}
	}
	if failures != 1 {
		t.Fatalf("expected exactly one failure, got %d", failures)
	}
	if got := balanceOf(t, store, "a1"); !got.Equal(decimal.NewFromInt(40)) {
		t.Errorf("expected final balance 40, got %s", got)
	}
	if n := transactionCount(t, store, "a1"); n != 1 {
		t.Errorf("expected exactly 1 transaction, got %d", n)
	}
}

// Opposing concurrent transfers conserve total funds and never produce a
// negative balance.
func TestConcurrentTransfers_Conservation(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)
	mustAccount(t, store, "a1", "u1", "1000000001", "1000.00")
	mustAccount(t, store, "a2", "u2", "1000000002", "1000.00")

	const n = 100
	one := decimal.NewFromInt(1)
	var wg sync.WaitGroup
	wg.Add(2 * n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			if _, err := svc.Transfer(ctx, "a1", "a2", one, "u1"); err != nil {
				t.Errorf("a1->a2: %v", err)
			}
		}()
		go func() {
			defer wg.Done()
			if _, err := svc.Transfer(ctx, "a2", "a1", one, "u2"); err != nil {
				t.Errorf("a2->a1: %v", err)
			}
		}()
	}
	wg.Wait()

	b1 := balanceOf(t, store, "a1")
	b2 := balanceOf(t, store, "a2")
	if b1.IsNegative() || b2.IsNegative() {
		t.Fatalf("negative balance: a1=%s a2=%s", b1, b2)
	}
	if total := b1.Add(b2); !total.Equal(decimal.NewFromInt(2000)) {
		t.Fatalf("total=%s want 2000", total)
	}
}
