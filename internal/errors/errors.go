// Package errors provides structured errors for memory engine operations.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a specific error type for memory operations.
type ErrorCode string

const (
	// ErrCodeInvalidArgument indicates invalid input (empty content,
	// out-of-range numeric, self-referencing relationship).
	ErrCodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"
	// ErrCodeNotFound indicates an unknown memory or relationship identifier.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrCodeDependencyFailure indicates the persistence layer or embedding
	// model is unreachable. Callers may retry.
	ErrCodeDependencyFailure ErrorCode = "DEPENDENCY_FAILURE"
	// ErrCodeBatchPartialFailure indicates some items of a batch operation
	// failed. Per-item outcomes are reported alongside.
	ErrCodeBatchPartialFailure ErrorCode = "BATCH_PARTIAL_FAILURE"
	// ErrCodeContextCanceled indicates the operation was canceled.
	ErrCodeContextCanceled ErrorCode = "CONTEXT_CANCELED"
)

// MemoryError represents a structured error for memory engine operations.
type MemoryError struct {
	Code    ErrorCode
	Message string
	Cause   error
	Context map[string]any
}

// Error implements the error interface.
func (e *MemoryError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *MemoryError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error.
func (e *MemoryError) WithContext(key string, value any) *MemoryError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// GetCode returns the error code.
func (e *MemoryError) GetCode() ErrorCode {
	return e.Code
}

// Retryable reports whether the caller may retry the failed operation.
func (e *MemoryError) Retryable() bool {
	return e.Code == ErrCodeDependencyFailure
}

// Convenience constructors for common error types.

// InvalidArgument creates an invalid argument error.
func InvalidArgument(format string, args ...any) *MemoryError {
	return &MemoryError{Code: ErrCodeInvalidArgument, Message: fmt.Sprintf(format, args...)}
}

// NotFound creates a not found error for the given resource and id.
func NotFound(resource, id string) *MemoryError {
	return &MemoryError{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("%s not found: %s", resource, id),
	}
}

// DependencyFailure creates a retryable dependency failure error.
func DependencyFailure(msg string, cause error) *MemoryError {
	return &MemoryError{Code: ErrCodeDependencyFailure, Message: msg, Cause: cause}
}

// BatchPartialFailure creates a batch partial failure error.
func BatchPartialFailure(failed, total int) *MemoryError {
	return &MemoryError{
		Code:    ErrCodeBatchPartialFailure,
		Message: fmt.Sprintf("%d of %d batch items failed", failed, total),
	}
}

// ContextCanceled creates a context canceled error.
func ContextCanceled(cause error) *MemoryError {
	return &MemoryError{Code: ErrCodeContextCanceled, Message: "operation canceled", Cause: cause}
}

// CodeOf extracts the ErrorCode from an error chain, or "" if the chain
// contains no MemoryError.
func CodeOf(err error) ErrorCode {
	var me *MemoryError
	if errors.As(err, &me) {
		return me.Code
	}
	return ""
}

// IsNotFound reports whether the error chain contains a NOT_FOUND error.
func IsNotFound(err error) bool {
	return CodeOf(err) == ErrCodeNotFound
}

// IsInvalidArgument reports whether the error chain contains an
// INVALID_ARGUMENT error.
func IsInvalidArgument(err error) bool {
	return CodeOf(err) == ErrCodeInvalidArgument
}
