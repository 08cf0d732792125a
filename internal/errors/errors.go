// Package errors provides unified error handling with structured error codes.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Code classifies an error for handling policy decisions.
type Code int

const (
	CodeUnknown        Code = iota
	CodeConnection          // device/stream unreachable at startup - fatal
	CodeTransientRead       // single grab failure - retried, never surfaced
	CodeResourceLoad        // a clip or model failed to load - skipped
	CodeClassification      // capability returned no usable result this tick
	CodeReleaseTimeout      // device teardown exceeded its bound - logged
	CodeConfig              // invalid configuration value
)

// String returns the code name for logging.
func (c Code) String() string {
	switch c {
	case CodeConnection:
		return "CONNECTION"
	case CodeTransientRead:
		return "TRANSIENT_READ"
	case CodeResourceLoad:
		return "RESOURCE_LOAD"
	case CodeClassification:
		return "CLASSIFICATION"
	case CodeReleaseTimeout:
		return "RELEASE_TIMEOUT"
	case CodeConfig:
		return "CONFIG"
	default:
		return "UNKNOWN"
	}
}

// AppError is the base error type with structured error code and metadata.
type AppError struct {
	Code     Code
	Message  string
	Metadata map[string]string
	Cause    error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	s := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if len(e.Metadata) > 0 {
		s += fmt.Sprintf(" %v", e.Metadata)
	}
	if e.Cause != nil {
		s += fmt.Sprintf(" caused by: %v", e.Cause)
	}
	return s
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *AppError) Unwrap() error { return e.Cause }

// New creates a new AppError with the given code and message.
func New(code Code, msg string) *AppError {
	return &AppError{Code: code, Message: msg}
}

// Newf creates a new AppError with formatted message.
func Newf(code Code, format string, args ...interface{}) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an existing error with an AppError.
func Wrap(err error, code Code, msg string) *AppError {
	return &AppError{Code: code, Message: msg, Cause: err}
}

// Wrapf wraps an existing error with formatted message.
func Wrapf(err error, code Code, format string, args ...interface{}) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...), Cause: err}
}

// WithMetadata adds metadata to an AppError.
func (e *AppError) WithMetadata(key, value string) *AppError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]string)
	}
	e.Metadata[key] = value
	return e
}

// IsCode checks if an error (or anything it wraps) carries a specific code.
func IsCode(err error, code Code) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}
