// Package common defines shared constants and sentinel errors used across
// the server and client layers. Callers should use errors.Is to match these
// values.
package common

import (
	"errors"
	"fmt"
)

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Service-level errors.
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorForbidden    = errors.New("forbidden")
	ErrorValidation   = errors.New("validation error")

	// Auth errors. ErrInvalidToken is also returned for expired capability
	// tokens so callers cannot tell the two apart.
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrTokenExpired = errors.New("token expired")

	// Finalization errors.
	ErrAlreadyFinalized = errors.New("document already finalized")
	ErrFatalIO          = errors.New("document could not be read")
	ErrProcessing       = errors.New("signature processing failed")

	// ErrSignaturesChanged means a signature was removed while the document
	// was being rendered. Retrying picks up the current set.
	ErrSignaturesChanged = errors.New("signatures changed during finalization")
)

// ValidationError describes a rejected input field. It matches
// ErrorValidation with errors.Is.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrorValidation }

// NewValidationError returns a *ValidationError for field.
func NewValidationError(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}
