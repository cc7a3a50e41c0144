package utils

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrValidation        = errors.New("validation error")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrRateLimited       = errors.New("rate limited")
	ErrAccountLookup     = errors.New("account lookup failed")
	ErrTokenStore        = errors.New("token store error")
	ErrEmailDispatch     = errors.New("email dispatch failed")
	ErrInvalidResetToken = errors.New("invalid or expired reset token")
	ErrInvalidQuestion   = errors.New("invalid quiz question")
	ErrDatabaseError     = errors.New("database error")
	ErrEmailTaken        = errors.New("email already registered")
	ErrBadCredentials    = errors.New("invalid email or password")
	ErrInternal          = errors.New("internal error")
)

// RateLimitedError reports a throttle denial and when the window rolls over.
type RateLimitedError struct {
	RetryAt time.Time
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited until %s", e.RetryAt.UTC().Format(time.RFC3339))
}

func (e *RateLimitedError) Unwrap() error { return ErrRateLimited }

// ValidationError carries per-field messages for the 400 response.
type ValidationError struct {
	Details map[string]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %v", e.Details)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Details: map[string]string{field: message}}
}
