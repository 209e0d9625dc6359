package domain

import "errors"

var (
	// Value construction errors
	ErrInvalidCurrency = errors.New("invalid currency code")
	ErrInvalidAmount   = errors.New("amount must be positive")
	ErrInvalidSequence = errors.New("sequence must be >= 1")
	ErrMissingField    = errors.New("required field is missing")
	ErrInvalidIDFormat = errors.New("invalid ID format")

	// Account errors
	ErrAccountNotFound  = errors.New("account not found")
	ErrAccountExists    = errors.New("account already exists")
	ErrAccountNotOpen   = errors.New("account is not open")
	ErrCurrencyMismatch = errors.New("currency does not match account currency")
	ErrInvalidStatus    = errors.New("invalid account status")

	// Transfer errors
	ErrSameAccount      = errors.New("cannot transfer to same account")
	ErrTransferNotFound = errors.New("transfer not found")
	ErrCommandNotFound  = errors.New("command not found")

	// Balance policy errors
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrBalanceOverflow   = errors.New("balance would overflow")

	// ErrIdempotencyInconsistency means a command was admitted without its transfer
	// being recorded in the same unit of work. It is never expected at runtime.
	ErrIdempotencyInconsistency = errors.New("idempotency inconsistency: command exists without transfer")
)

var validationErrors = []error{
	ErrInvalidCurrency,
	ErrInvalidAmount,
	ErrInvalidSequence,
	ErrMissingField,
	ErrInvalidIDFormat,
	ErrAccountNotFound,
	ErrAccountNotOpen,
	ErrCurrencyMismatch,
	ErrInvalidStatus,
	ErrSameAccount,
}

// IsValidation reports whether err is a rejected-command validation failure.
func IsValidation(err error) bool {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}

	return false
}

// IsPolicy reports whether err is a balance policy failure.
func IsPolicy(err error) bool {
	return errors.Is(err, ErrInsufficientFunds) || errors.Is(err, ErrBalanceOverflow)
}
