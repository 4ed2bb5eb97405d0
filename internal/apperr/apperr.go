// Package apperr defines the error kinds returned by the booking core.
package apperr

import (
	"errors"
	"fmt"
)

// Error kinds. Every core failure wraps exactly one of these.
var (
	// ErrValidation is returned for missing or malformed input.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned when a referenced facility, booking or site is absent.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned for double bookings and duplicate unique keys.
	ErrConflict = errors.New("conflict")

	// ErrInvalidState is returned when a lifecycle guard rejects an action.
	ErrInvalidState = errors.New("invalid state")

	// ErrForbidden is returned when the caller lacks the role or ownership.
	ErrForbidden = errors.New("forbidden")

	// ErrDependency is returned when storage or a gateway is unreachable.
	ErrDependency = errors.New("dependency failure")
)

// Error carries a kind, a caller-facing message and an optional cause.
type Error struct {
	Kind    error
	Message string
	Code    string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return e.Message + ": " + e.Err.Error()
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Kind.Error() + ": " + e.Err.Error()
	}
	return e.Kind.Error()
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// New creates an Error of the given kind.
func New(kind error, code, format string, args ...any) *Error {
	return &Error{Kind: kind, Code: code, Message: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...any) *Error {
	return New(ErrValidation, "VALIDATION_ERROR", format, args...)
}

func NotFound(what string) *Error {
	return New(ErrNotFound, "NOT_FOUND", "%s not found", what)
}

func Conflict(format string, args ...any) *Error {
	return New(ErrConflict, "CONFLICT", format, args...)
}

func InvalidState(format string, args ...any) *Error {
	return New(ErrInvalidState, "INVALID_STATE", format, args...)
}

func Forbidden(format string, args ...any) *Error {
	return New(ErrForbidden, "FORBIDDEN", format, args...)
}

// Dependency wraps a storage or gateway failure. The cause is kept for logs
// but the message stays generic.
func Dependency(op string, err error) *Error {
	return &Error{Kind: ErrDependency, Code: "DEPENDENCY_FAILURE", Message: op, Err: err}
}

// Is reports whether err is of the given kind.
func Is(err, kind error) bool {
	return errors.Is(err, kind)
}

// CodeOf returns the machine-readable code carried by err, if any.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return "INTERNAL_ERROR"
}

// MessageOf returns the caller-facing message of err. Dependency failures
// never expose their cause.
func MessageOf(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return "internal server error"
	}
	if errors.Is(e.Kind, ErrDependency) {
		return "service temporarily unavailable"
	}
	if e.Message != "" {
		return e.Message
	}
	return e.Kind.Error()
}
