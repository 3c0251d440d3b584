package storage

import (
	"errors"
	"fmt"
)

// ErrNotInitialized is returned when an operation is attempted before the
// backend is opened or after it is closed.
var ErrNotInitialized = errors.New("storage: not initialized")

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("storage: not found")

// ErrorCode classifies backend failures for callers that substitute
// zero-value results one layer up.
type ErrorCode string

const (
	ErrCodeInit   ErrorCode = "INIT_ERROR"
	ErrCodeRecord ErrorCode = "RECORD_ERROR"
	ErrCodeUpdate ErrorCode = "UPDATE_ERROR"
	ErrCodeQuery  ErrorCode = "QUERY_ERROR"
)

// Error wraps a backend failure with its code and originating operation.
type Error struct {
	Code ErrorCode
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("storage: %s [%s]: %v", e.Op, e.Code, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// WrapError builds a typed storage error around a backend failure.
func WrapError(code ErrorCode, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Op: op, Err: err}
}

// CodeOf extracts the error code from a wrapped storage error, or "" when the
// error did not originate in a backend.
func CodeOf(err error) ErrorCode {
	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}
