package ledger

import "errors"

// Structural errors. These are always returned as hard failures, including
// from the Try* operations.
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNegativeAmount  = errors.New("amount cannot be negative")
	ErrUnknownAccount  = errors.New("account not found")
)

// Business-rule errors. The Try* operations report these as a false result
// instead of an error.
var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInsufficientCash  = errors.New("insufficient cash in circulation")
)

// IsBusinessRule reports whether err is one of the insufficient-funds or
// insufficient-cash failures.
func IsBusinessRule(err error) bool {
	return errors.Is(err, ErrInsufficientFunds) || errors.Is(err, ErrInsufficientCash)
}
