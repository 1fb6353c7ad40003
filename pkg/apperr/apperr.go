// Package apperr defines the error kinds shared by every feature service.
//
// Services declare their sentinels with New and return them (or a Detail of
// them) so the transport layer can pick a status code from the Kind alone.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error independently of the package that raised it
type Kind int

const (
	Internal Kind = iota
	NotFound
	Conflict
	Forbidden
	LimitExceeded
	InvalidState
	Validation
	Unauthenticated
	Unauthorized
	Storage
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "NOT_FOUND"
	case Conflict:
		return "CONFLICT"
	case Forbidden:
		return "FORBIDDEN"
	case LimitExceeded:
		return "LIMIT_EXCEEDED"
	case InvalidState:
		return "INVALID_STATE"
	case Validation:
		return "VALIDATION_FAILED"
	case Unauthenticated:
		return "UNAUTHENTICATED"
	case Unauthorized:
		return "UNAUTHORIZED"
	case Storage:
		return "STORAGE_ERROR"
	default:
		return "INTERNAL_ERROR"
	}
}

// Error is a classified, human-readable error
type Error struct {
	Kind    Kind
	Message string
	// Fields holds per-field messages for validation failures
	Fields map[string]string

	cause error
}

// New creates a sentinel error of the given kind
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Detail returns an error with a more specific message that still matches
// sentinel under errors.Is
func Detail(sentinel *Error, format string, args ...any) *Error {
	return &Error{
		Kind:    sentinel.Kind,
		Message: fmt.Sprintf(format, args...),
		cause:   sentinel,
	}
}

// Wrap classifies err as kind, keeping it reachable through errors.Unwrap
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, cause: err}
}

// Invalid builds a validation error from per-field messages
func Invalid(fields map[string]string) *Error {
	return &Error{Kind: Validation, Message: "validation failed", Fields: fields}
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

// KindOf reports the kind of the first *Error in err's chain, or Internal
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// IsExpected reports whether err is a recoverable, user-facing outcome
func IsExpected(err error) bool {
	switch KindOf(err) {
	case Internal, Storage:
		return false
	default:
		return true
	}
}
