package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for the transport layer.
type Kind string

const (
	Unauthenticated   Kind = "unauthenticated"
	InvalidCredential Kind = "invalid_credential"
	Forbidden         Kind = "forbidden"
	NotFound          Kind = "not_found"
	Conflict          Kind = "conflict"
	InvalidState      Kind = "invalid_state"
	Validation        Kind = "validation"
	ExternalService   Kind = "external_service"
	Internal          Kind = "internal"
)

// Error carries a Kind, a human readable message and an optional cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
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

func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

func NewNotFound(format string, args ...interface{}) *Error {
	return New(NotFound, format, args...)
}

func NewConflict(format string, args ...interface{}) *Error {
	return New(Conflict, format, args...)
}

func NewInvalidState(format string, args ...interface{}) *Error {
	return New(InvalidState, format, args...)
}

func NewValidation(format string, args ...interface{}) *Error {
	return New(Validation, format, args...)
}

func NewForbidden(format string, args ...interface{}) *Error {
	return New(Forbidden, format, args...)
}

// KindOf returns the Kind of the first *Error in err's chain, or Internal.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return Internal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Message returns the outermost *Error message, falling back to err.Error().
func Message(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}

// HTTPStatus maps a Kind to its HTTP status code.
func HTTPStatus(kind Kind) int {
	switch kind {
	case Unauthenticated, InvalidCredential:
		return http.StatusUnauthorized
	case Forbidden:
		return http.StatusForbidden
	case NotFound:
		return http.StatusNotFound
	case Conflict, InvalidState:
		return http.StatusConflict
	case Validation:
		return http.StatusBadRequest
	case ExternalService:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
