package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind represents the type of error
type Kind int

const (
	ErrInternal Kind = iota
	ErrNotFound
	ErrInvalidInput
	ErrSessionExpired
	ErrTransport
	ErrInvalidCredentials
	ErrValidationRejected
	ErrCancelled
	ErrAmbiguous
)

var kindNames = map[Kind]string{
	ErrInternal:           "internal",
	ErrNotFound:           "not_found",
	ErrInvalidInput:       "invalid_input",
	ErrSessionExpired:     "session_expired",
	ErrTransport:          "transport",
	ErrInvalidCredentials: "invalid_credentials",
	ErrValidationRejected: "validation_rejected",
	ErrCancelled:          "cancelled",
	ErrAmbiguous:          "ambiguous",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is an application-level error with a kind for classification
type Error struct {
	Kind    Kind
	Message string
	Err     error // underlying error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Constructor functions for common error types

func NotFound(msg string) *Error {
	return &Error{Kind: ErrNotFound, Message: msg}
}

func NotFoundf(format string, args ...interface{}) *Error {
	return &Error{Kind: ErrNotFound, Message: fmt.Sprintf(format, args...)}
}

func InvalidInput(msg string) *Error {
	return &Error{Kind: ErrInvalidInput, Message: msg}
}

func InvalidInputf(format string, args ...interface{}) *Error {
	return &Error{Kind: ErrInvalidInput, Message: fmt.Sprintf(format, args...)}
}

// SessionExpired covers both an expired portal session and a registration
// period that is not open yet; either way the caller has to log in again.
func SessionExpired(msg string) *Error {
	return &Error{Kind: ErrSessionExpired, Message: msg}
}

func Transport(err error, msg string) *Error {
	return &Error{Kind: ErrTransport, Message: msg, Err: err}
}

func Transportf(format string, args ...interface{}) *Error {
	return &Error{Kind: ErrTransport, Message: fmt.Sprintf(format, args...)}
}

func InvalidCredentials(msg string) *Error {
	return &Error{Kind: ErrInvalidCredentials, Message: msg}
}

func ValidationRejected(msg string) *Error {
	return &Error{Kind: ErrValidationRejected, Message: msg}
}

// Cancelled wraps the context error that stopped an operation.
func Cancelled(err error) *Error {
	return &Error{Kind: ErrCancelled, Message: "stopped by user", Err: err}
}

func Ambiguousf(format string, args ...interface{}) *Error {
	return &Error{Kind: ErrAmbiguous, Message: fmt.Sprintf(format, args...)}
}

func Internal(err error) *Error {
	return &Error{Kind: ErrInternal, Message: "internal error", Err: err}
}

func Internalf(format string, args ...interface{}) *Error {
	return &Error{Kind: ErrInternal, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an error with additional context
func Wrap(err error, kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or ErrInternal.
func KindOf(err error) Kind {
	var appErr *Error
	if stderrors.As(err, &appErr) {
		return appErr.Kind
	}
	return ErrInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	if err == nil {
		return false
	}
	var appErr *Error
	if !stderrors.As(err, &appErr) {
		return false
	}
	return appErr.Kind == kind
}
