// Package apperr defines the error taxonomy shared by every component.
// Callers classify errors with errors.Is against the sentinel kinds.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrValidation   = errors.New("validation error")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrStorage      = errors.New("storage failure")
)

// Error is an error of a known kind carrying a caller-facing message and
// an optional JSON-able details payload.
type Error struct {
	Kind    error
	Message string
	Details any
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

// New returns an error of the given kind.
func New(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WithDetails returns an error of the given kind with a details payload.
func WithDetails(kind error, details any, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Details: details}
}

// Storage wraps a backing store failure.
func Storage(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStorage, err)
}

// Message returns the caller-facing message of err: the message of the
// outermost *Error in the chain, or err.Error() otherwise.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// Details returns the details payload attached to err, if any.
func Details(err error) any {
	var e *Error
	if errors.As(err, &e) {
		return e.Details
	}
	return nil
}
