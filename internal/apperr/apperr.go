package apperr

import (
	"errors"
	"net/http"
)

type Kind string

const (
	KindNotFound     Kind = "not_found"
	KindForbidden    Kind = "forbidden"
	KindConflict     Kind = "conflict"
	KindValidation   Kind = "validation"
	KindUnauthorized Kind = "unauthorized"
	KindInternal     Kind = "internal"
)

// Error is the error type every service returns for expected failure
// conditions. Unexpected failures are plain wrapped errors and map to
// KindInternal at the boundary.
type Error struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func NotFound(msg string) *Error {
	return New(KindNotFound, msg)
}

func Forbidden(msg string) *Error {
	return New(KindForbidden, msg)
}

func Conflict(msg string) *Error {
	return New(KindConflict, msg)
}

func Validation(msg string) *Error {
	return New(KindValidation, msg)
}

func Unauthorized(msg string) *Error {
	return New(KindUnauthorized, msg)
}

func Internal(msg string, err error) *Error {
	return Wrap(KindInternal, msg, err)
}

// KindOf reports the kind of the first *Error in err's chain, or
// KindInternal when there is none.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Message returns the user-facing message of err. Internal errors are
// collapsed to a generic message so storage details do not leak.
func Message(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) && appErr.Kind != KindInternal {
		return appErr.Message
	}
	return "Internal server error"
}

func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindConflict:
		return http.StatusConflict
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
