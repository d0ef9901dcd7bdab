package validator

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrInvalidAccountNumber = errors.New("invalid account number")
	ErrMissingAccount       = errors.New("account is required")
	ErrSameAccount          = errors.New("cannot transfer to same account")
)

// MutationValidator checks raw request input before it reaches the ledger.
// The ledger re-checks its own invariants; this layer exists to reject
// unparseable or obviously malformed input with a 400.
type MutationValidator struct {
	numberRegex *regexp.Regexp
}

func NewMutationValidator() *MutationValidator {
	return &MutationValidator{
		numberRegex: regexp.MustCompile(`^[0-9]{10}$`),
	}
}

// ParseAmount parses a decimal amount from its wire form and rejects
// anything that is not a finite positive number.
func (v *MutationValidator) ParseAmount(raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, fmt.Errorf("%w: amount is required", ErrInvalidAmount)
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}
	if !amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: must be greater than zero", ErrInvalidAmount)
	}
	return amount, nil
}

func (v *MutationValidator) ValidateAccountNumber(number string) error {
	if !v.numberRegex.MatchString(number) {
		return fmt.Errorf("%w: %q", ErrInvalidAccountNumber, number)
	}
	return nil
}

func (v *MutationValidator) ValidateTransfer(fromID, toID string) error {
	var errs []error

	if fromID == "" || toID == "" {
		errs = append(errs, ErrMissingAccount)
	}
	if fromID != "" && fromID == toID {
		errs = append(errs, ErrSameAccount)
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
