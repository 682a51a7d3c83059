package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrCodeNotFound        = errors.New("code not found")
	ErrCodeAlreadyUsed     = errors.New("code already used")
	ErrAccountNotFound     = errors.New("account not found")
	ErrNotEligible         = errors.New("user is not eligible")
	ErrBanned              = errors.New("user is banned")
	ErrNotAdmin            = errors.New("admin access required")
	ErrPersistence         = errors.New("persistence failure")
)

// ValidationError reports bad user input
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NewValidationError creates a validation error for field
func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidation reports whether err is a ValidationError
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
