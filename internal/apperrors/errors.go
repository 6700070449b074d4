package apperrors

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/limaJavier/timetabler/pkg/model"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Details any    `json:"details,omitempty"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrValidation        = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInvalidInput      = New("INVALID_INPUT", http.StatusUnprocessableEntity, "timetable input is invalid")
	ErrUnsupportedFormat = New("UNSUPPORTED_FORMAT", http.StatusBadRequest, "unsupported export format")
	ErrNotFound          = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrStoreDisabled     = New("STORE_DISABLED", http.StatusNotImplemented, "run history is disabled")
	ErrTimeout           = New("TIMEOUT", http.StatusGatewayTimeout, "timetable generation timed out")
	ErrInternal          = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	if mapped := FromModelError(err); mapped != nil {
		return mapped
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// FromModelError maps engine failures that abort a whole run; nil when err is not one of them
func FromModelError(err error) *Error {
	var invalid *model.InvalidInputError
	if errors.As(err, &invalid) {
		mapped := Wrap(err, ErrInvalidInput.Code, ErrInvalidInput.Status, ErrInvalidInput.Message)
		mapped.Details = invalid.Issues
		return mapped
	}
	if errors.Is(err, model.ErrOutOfRange) {
		return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
	}
	return nil
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}
