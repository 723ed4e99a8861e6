// Package apperr classifies the errors the list core can surface.
package apperr

import (
	"errors"
	"fmt"
)

// Kind groups errors by how the caller recovers from them.
type Kind int

const (
	// KindUnknown is an unclassified failure.
	KindUnknown Kind = iota
	// KindPermissionDenied comes from opening a subscription; callers fall back to local-only mode.
	KindPermissionDenied
	// KindMalformed marks persisted data that could not be decoded.
	KindMalformed
	// KindValidation marks input rejected before any write.
	KindValidation
	// KindAuth carries a message meant to be shown to the user as-is.
	KindAuth
	// KindOperation is a failed write path (history save, delete) reported as a blocking alert.
	KindOperation
)

func (k Kind) String() string {
	switch k {
	case KindPermissionDenied:
		return "permission denied"
	case KindMalformed:
		return "malformed data"
	case KindValidation:
		return "validation"
	case KindAuth:
		return "auth"
	case KindOperation:
		return "operation"
	default:
		return "unknown"
	}
}

// Error is an application error with a kind, the operation it came from and a user-facing message.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

// Error implements the error interface
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the wrapped error
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a new Error
func New(kind Kind, op, message string, err error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Err: err}
}

// Auth builds an authentication error carrying the provider message.
func Auth(message string) *Error {
	return &Error{Kind: KindAuth, Message: message}
}

// Operation wraps a failed write path so it names the operation.
func Operation(op string, err error) *Error {
	return &Error{Kind: KindOperation, Op: op, Message: "failed", Err: err}
}

// Validation builds a validation error.
func Validation(message string, err error) *Error {
	return &Error{Kind: KindValidation, Message: message, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// UserMessage is what an alert shows: the message of an auth error, or the full text otherwise.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind == KindAuth {
		return e.Message
	}
	return err.Error()
}
