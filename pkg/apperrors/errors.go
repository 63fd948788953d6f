package apperrors

import (
	"errors"
	"fmt"
)

// Kind classifies an error into the closed set of business failures the
// API exposes. Callers branch on the kind, never on message text.
type Kind string

const (
	KindNotFound               Kind = "not_found"
	KindInvalidState           Kind = "invalid_state"
	KindUnauthorized           Kind = "unauthorized"
	KindInvalidQuantity        Kind = "invalid_quantity"
	KindInsufficientValidators Kind = "insufficient_validators"
	KindAlreadyIssued          Kind = "already_issued"
	KindDeadlineExpired        Kind = "deadline_expired"
	KindMissingReason          Kind = "missing_reason"
	KindNoDeadline             Kind = "no_deadline"
)

// Error carries a kind and a human-readable message. Internal detail
// (locks, transactions, SQL) never goes into the message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an error of the given kind.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an underlying error.
func Wrap(err error, kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

func NotFound(format string, args ...interface{}) *Error {
	return New(KindNotFound, format, args...)
}

func InvalidState(format string, args ...interface{}) *Error {
	return New(KindInvalidState, format, args...)
}

func Unauthorized(format string, args ...interface{}) *Error {
	return New(KindUnauthorized, format, args...)
}

func InvalidQuantity(format string, args ...interface{}) *Error {
	return New(KindInvalidQuantity, format, args...)
}

func InsufficientValidators(format string, args ...interface{}) *Error {
	return New(KindInsufficientValidators, format, args...)
}

func AlreadyIssued(format string, args ...interface{}) *Error {
	return New(KindAlreadyIssued, format, args...)
}

func DeadlineExpired(format string, args ...interface{}) *Error {
	return New(KindDeadlineExpired, format, args...)
}

func MissingReason(format string, args ...interface{}) *Error {
	return New(KindMissingReason, format, args...)
}

func NoDeadline(format string, args ...interface{}) *Error {
	return New(KindNoDeadline, format, args...)
}

// KindOf extracts the kind from an error chain. Unclassified errors
// report an empty kind.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind anywhere in its chain.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
