// Package errs defines the error kinds the service exposes to callers and
// uses internally to decide retry and degradation behavior.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an error into one of the externally stable categories.
type Kind int

const (
	KindUnknown Kind = iota
	KindUnauthorized
	KindInvalidRequest
	KindNotFound
	KindContentTooLarge
	KindUnavailable
	KindTimeout
	KindInvalidModel
	KindRetrievalFailed
	KindOverloaded
	KindStorage
)

func (k Kind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindInvalidRequest:
		return "invalid_request"
	case KindNotFound:
		return "not_found"
	case KindContentTooLarge:
		return "content_too_large"
	case KindUnavailable:
		return "unavailable"
	case KindTimeout:
		return "timeout"
	case KindInvalidModel:
		return "invalid_model"
	case KindRetrievalFailed:
		return "retrieval_failed"
	case KindOverloaded:
		return "overloaded"
	case KindStorage:
		return "storage_error"
	default:
		return "unknown"
	}
}

// Error carries a kind, a caller-safe message, and an optional wrapped cause.
// The cause is for logs only and must never reach an HTTP response.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an Error of the given kind with a caller-safe message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap attaches a cause to a new Error of the given kind.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the kind from err, walking the wrap chain.
// Errors that carry no kind report KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Retryable reports whether an operation failing with err may be retried.
// Only dependency unavailability and per-call timeouts are retryable; all
// other kinds are fatal for the attempt budget.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindUnavailable, KindTimeout:
		return true
	default:
		return false
	}
}

// PublicMessage returns the message safe to expose to API callers. Unknown
// errors collapse to a generic message so internal detail never leaks.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return "internal error"
}
