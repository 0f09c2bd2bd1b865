// Package errors defines stable error codes for all gitgraph failure modes.
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents stable error codes for all failure modes
type ErrorCode string

const (
	// RepositoryUnavailable indicates the root is not a valid or readable git repository
	RepositoryUnavailable ErrorCode = "REPOSITORY_UNAVAILABLE"
	// CorruptObject indicates a git object could not be read or parsed
	CorruptObject ErrorCode = "CORRUPT_OBJECT"
	// PathNotFound indicates the requested path is absent from the working tree
	PathNotFound ErrorCode = "PATH_NOT_FOUND"
	// InvalidArgument indicates a caller-supplied argument is out of range
	InvalidArgument ErrorCode = "INVALID_ARGUMENT"
	// ScanCancelled indicates a history scan was cancelled by the caller
	ScanCancelled ErrorCode = "SCAN_CANCELLED"
	// InternalError indicates an unexpected error
	InternalError ErrorCode = "INTERNAL_ERROR"
)

// GraphError represents a gitgraph error with a stable code and message
type GraphError struct {
	Code    ErrorCode   `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
	cause   error
}

// New creates a new GraphError
func New(code ErrorCode, message string, cause error) *GraphError {
	return &GraphError{
		Code:    code,
		Message: message,
		cause:   cause,
	}
}

// Error implements the error interface
func (e *GraphError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *GraphError) Unwrap() error {
	return e.cause
}

// WithDetails adds details to the error
func (e *GraphError) WithDetails(details interface{}) *GraphError {
	e.Details = details
	return e
}

// HasCode reports whether err is (or wraps) a GraphError with the given code.
func HasCode(err error, code ErrorCode) bool {
	var ge *GraphError
	if stderrors.As(err, &ge) {
		return ge.Code == code
	}
	return false
}

// CodeOf returns the error code of err, or InternalError for foreign errors.
func CodeOf(err error) ErrorCode {
	var ge *GraphError
	if stderrors.As(err, &ge) {
		return ge.Code
	}
	return InternalError
}
