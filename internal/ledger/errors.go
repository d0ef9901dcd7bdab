package ledger

import "errors"

// Classified mutation failures. The HTTP layer maps these onto status codes;
// anything else that comes out of a mutation is a persistence failure.
var (
	ErrAccountNotFound   = errors.New("account not found")
	ErrUnauthorized      = errors.New("caller does not own the account")
	ErrInvalidAmount     = errors.New("amount must be greater than zero")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrSameAccount       = errors.New("cannot transfer to same account")
	ErrAccountClosed     = errors.New("account is closed")
)
