package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType represents the classification of an error
type ErrorType int

const (
	// ErrorTypeTransient indicates a temporary failure that can be retried
	ErrorTypeTransient ErrorType = iota
	// ErrorTypePermanent indicates a permanent failure that should not be retried
	ErrorTypePermanent
	// ErrorTypeTimeout indicates a timeout error
	ErrorTypeTimeout
)

// Reservation error codes surfaced to callers.
const (
	CodeNotFound               = "NOT_FOUND"
	CodeValidation             = "VALIDATION_ERROR"
	CodeInvalidState           = "INVALID_STATE"
	CodeOutOfStock             = "OUT_OF_STOCK"
	CodeLockTimeout            = "LOCK_TIMEOUT"
	CodeExternalServiceFailure = "EXTERNAL_SERVICE_FAILURE"
)

// Sentinels for errors.Is checks. Matching is by code only.
var (
	ErrNotFound               = &CustomError{Type: ErrorTypePermanent, Code: CodeNotFound}
	ErrValidation             = &CustomError{Type: ErrorTypePermanent, Code: CodeValidation}
	ErrInvalidState           = &CustomError{Type: ErrorTypePermanent, Code: CodeInvalidState}
	ErrOutOfStock             = &CustomError{Type: ErrorTypePermanent, Code: CodeOutOfStock}
	ErrLockTimeout            = &CustomError{Type: ErrorTypeTransient, Code: CodeLockTimeout}
	ErrExternalServiceFailure = &CustomError{Type: ErrorTypePermanent, Code: CodeExternalServiceFailure}
)

// CustomError is a custom error with classification and context
type CustomError struct {
	Type    ErrorType
	Message string
	Cause   error
	Code    string
}

// NewTransientError creates a new transient error
func NewTransientError(code, message string, cause error) *CustomError {
	return &CustomError{
		Type:    ErrorTypeTransient,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewPermanentError creates a new permanent error
func NewPermanentError(code, message string, cause error) *CustomError {
	return &CustomError{
		Type:    ErrorTypePermanent,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewTimeoutError creates a new timeout error
func NewTimeoutError(code, message string) *CustomError {
	return &CustomError{
		Type:    ErrorTypeTimeout,
		Code:    code,
		Message: message,
	}
}

// NewNotFoundError reports a missing member, ticket, pool or order.
func NewNotFoundError(format string, args ...any) *CustomError {
	return NewPermanentError(CodeNotFound, fmt.Sprintf(format, args...), nil)
}

// NewValidationError reports malformed input.
func NewValidationError(format string, args ...any) *CustomError {
	return NewPermanentError(CodeValidation, fmt.Sprintf(format, args...), nil)
}

// NewInvalidStateError reports an illegal state transition.
func NewInvalidStateError(format string, args ...any) *CustomError {
	return NewPermanentError(CodeInvalidState, fmt.Sprintf(format, args...), nil)
}

// NewOutOfStockError reports a pool with no remaining stock.
func NewOutOfStockError(format string, args ...any) *CustomError {
	return NewPermanentError(CodeOutOfStock, fmt.Sprintf(format, args...), nil)
}

// NewLockTimeoutError reports a pool lock that was not granted in time.
// It is the only transient reservation error.
func NewLockTimeoutError(message string, cause error) *CustomError {
	return NewTransientError(CodeLockTimeout, message, cause)
}

// NewExternalServiceError reports a failed synchronous registration call.
func NewExternalServiceError(message string, cause error) *CustomError {
	return NewPermanentError(CodeExternalServiceFailure, message, cause)
}

// Error implements the error interface
func (e *CustomError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause
func (e *CustomError) Unwrap() error {
	return e.Cause
}

// Is matches any CustomError carrying the same code.
func (e *CustomError) Is(target error) bool {
	t, ok := target.(*CustomError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// IsTransient returns true if the error is transient
func (e *CustomError) IsTransient() bool {
	return e.Type == ErrorTypeTransient
}

// IsPermanent returns true if the error is permanent
func (e *CustomError) IsPermanent() bool {
	return e.Type == ErrorTypePermanent
}

// IsTimeout returns true if the error is a timeout
func (e *CustomError) IsTimeout() bool {
	return e.Type == ErrorTypeTimeout
}

// ClassifyError attempts to classify a regular error
func ClassifyError(err error) ErrorType {
	if err == nil {
		return ErrorTypePermanent
	}

	var customErr *CustomError
	if stderrors.As(err, &customErr) {
		return customErr.Type
	}

	// Default to permanent for unknown errors
	return ErrorTypePermanent
}

// CodeOf returns the code of the outermost CustomError in the chain, or "".
func CodeOf(err error) string {
	var customErr *CustomError
	if stderrors.As(err, &customErr) {
		return customErr.Code
	}
	return ""
}

// HasCode reports whether the outermost CustomError in the chain has code.
func HasCode(err error, code string) bool {
	return err != nil && CodeOf(err) == code
}

// IsRetryable reports whether the caller may retry the whole operation.
func IsRetryable(err error) bool {
	return err != nil && ClassifyError(err) == ErrorTypeTransient
}
