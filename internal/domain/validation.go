package domain

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Validation constants
const (
	MaxAccountIDLength = 64
	MaxPageSize        = 1000
	DefaultPageSize    = 50
)

var accountIDRegex = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidateCommandID validates a caller-supplied idempotency key.
func ValidateCommandID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: command id", ErrMissingField)
	}

	if len(id) > MaxCommandIDLength {
		return fmt.Errorf("%w: command id exceeds %d characters", ErrInvalidIDFormat, MaxCommandIDLength)
	}

	if !storableText(id) {
		return fmt.Errorf("%w: command id must be valid UTF-8 without NUL bytes", ErrInvalidIDFormat)
	}

	return nil
}

// ValidateCorrelationID validates an optional caller correlation id.
func ValidateCorrelationID(id string) error {
	if len(id) > MaxCommandIDLength {
		return fmt.Errorf("%w: correlation id exceeds %d characters", ErrInvalidIDFormat, MaxCommandIDLength)
	}

	if !storableText(id) {
		return fmt.Errorf("%w: correlation id must be valid UTF-8 without NUL bytes", ErrInvalidIDFormat)
	}

	return nil
}

// storableText reports whether s fits a Postgres text column.
func storableText(s string) bool {
	return utf8.ValidString(s) && !strings.ContainsRune(s, 0)
}

// ValidateAccountID validates an account identifier.
func ValidateAccountID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: account id", ErrMissingField)
	}

	if len(id) > MaxAccountIDLength || !accountIDRegex.MatchString(id) {
		return fmt.Errorf("%w: account id %q", ErrInvalidIDFormat, id)
	}

	return nil
}

// ValidatePagination validates and limits pagination parameters
func ValidatePagination(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultPageSize
	}

	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	if offset < 0 {
		offset = 0
	}

	return limit, offset
}
