package validator

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseAmount(t *testing.T) {
	v := NewMutationValidator()

	amount, err := v.ParseAmount("10.50")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !amount.Equal(decimal.RequireFromString("10.50")) {
		t.Errorf("expected 10.50, got %s", amount)
	}

	for _, raw := range []string{"", "abc", "-5", "0", "NaN", "1e309e"} {
		if _, err := v.ParseAmount(raw); !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("amount=%q: expected ErrInvalidAmount, got %v", raw, err)
		}
	}
}

func TestValidateAccountNumber(t *testing.T) {
	v := NewMutationValidator()

	if err := v.ValidateAccountNumber("1234567890"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	for _, number := range []string{"", "123", "12345678901", "12345abcde"} {
		if err := v.ValidateAccountNumber(number); !errors.Is(err, ErrInvalidAccountNumber) {
			t.Errorf("number=%q: expected ErrInvalidAccountNumber, got %v", number, err)
		}
	}
}

func TestValidateTransfer(t *testing.T) {
	v := NewMutationValidator()

	if err := v.ValidateTransfer("a1", "a2"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := v.ValidateTransfer("a1", "a1"); !errors.Is(err, ErrSameAccount) {
		t.Errorf("expected ErrSameAccount, got %v", err)
	}
	if err := v.ValidateTransfer("", "a2"); !errors.Is(err, ErrMissingAccount) {
		t.Errorf("expected ErrMissingAccount, got %v", err)
	}
}
