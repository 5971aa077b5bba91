// Package errors provides coded application errors shared by the service,
// repository and handler layers.
package errors

import (
	stderrors "errors"
	"fmt"

	"github.com/rotisserie/eris"
)

// ErrorCode classifies an application error
type ErrorCode string

const (
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	ErrCodeNotFound     ErrorCode = "NOT_FOUND"
	ErrCodeConflict     ErrorCode = "CONFLICT"
	ErrCodeUnavailable  ErrorCode = "UNAVAILABLE"
	ErrCodeInternal     ErrorCode = "INTERNAL"
)

// AppError is an error carrying a code and, for input errors, the offending field
type AppError struct {
	Code    ErrorCode
	Message string
	Field   string
	Err     error
}

// Error implements error
func (e *AppError) Error() string {
	msg := e.Message
	if e.Field != "" {
		msg = fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, eris.Cause(e.Err))
	}
	return msg
}

// Unwrap returns the wrapped cause
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates an error with a code
func New(code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Wrap attaches a code and message to err, keeping its stack
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{Code: code, Message: message, Err: eris.Wrap(err, message)}
}

// InvalidInput reports a bad request field
func InvalidInput(field, message string) *AppError {
	return &AppError{Code: ErrCodeInvalidInput, Message: message, Field: field}
}

// NotFound reports a missing resource
func NotFound(resource, id string) *AppError {
	return &AppError{Code: ErrCodeNotFound, Message: fmt.Sprintf("%s '%s' not found", resource, id)}
}

// CodeOf returns the code of the first AppError in err's chain, or
// ErrCodeInternal when there is none.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternal
}

// Is reports whether err has the given code
func Is(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

// Stack renders err with its wrap trace, for debug logging
func Stack(err error) string {
	return eris.ToString(err, true)
}
