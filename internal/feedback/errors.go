package feedback

import (
	"errors"
	"net/http"
)

// Error kinds. Use errors.Is against these to classify a failure.
var (
	ErrValidation       = errors.New("validation error")
	ErrNotFound         = errors.New("feedback not found")
	ErrMethodNotAllowed = errors.New("method not allowed")
)

// Error is an expected, client-facing failure: a missing field, an unknown id or
// an unsupported method. It is answered without being logged as a failure.
type Error struct {
	Status  int
	Message string
	Kind    error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Kind }

func validationError(msg string) *Error {
	return &Error{Status: http.StatusBadRequest, Message: msg, Kind: ErrValidation}
}

func notFoundError() *Error {
	return &Error{Status: http.StatusNotFound, Message: "Feedback not found", Kind: ErrNotFound}
}

func methodNotAllowedError() *Error {
	return &Error{Status: http.StatusMethodNotAllowed, Message: "Method Not Allowed", Kind: ErrMethodNotAllowed}
}
