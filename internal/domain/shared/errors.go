package shared

import (
	"errors"
	"fmt"
)

// Error kind codes shared by every layer
const (
	CodeValidation  = "VALIDATION_ERROR"
	CodeNotFound    = "NOT_FOUND"
	CodeConflict    = "CONFLICT"
	CodePersistence = "PERSISTENCE_ERROR"
)

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	cause   error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause, if any
func (e *DomainError) Unwrap() error {
	return e.cause
}

// Is reports whether target is a DomainError with the same code.
// Sentinel errors such as ErrNotFound match any error of their kind.
func (e *DomainError) Is(target error) bool {
	var t *DomainError
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// WithCause returns a copy of e that wraps cause
func (e *DomainError) WithCause(cause error) *DomainError {
	return &DomainError{Code: e.Code, Message: e.Message, cause: cause}
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// NewValidationError reports malformed or out-of-range input
func NewValidationError(format string, args ...any) *DomainError {
	return NewDomainError(CodeValidation, fmt.Sprintf(format, args...))
}

// NewNotFoundError reports a missing invoice, payment or other record
func NewNotFoundError(resource string, id any) *DomainError {
	return NewDomainError(CodeNotFound, fmt.Sprintf("%s %v not found", resource, id))
}

// NewConflictError reports a uniqueness or idempotency collision
func NewConflictError(format string, args ...any) *DomainError {
	return NewDomainError(CodeConflict, fmt.Sprintf(format, args...))
}

// NewPersistenceError wraps a storage failure
func NewPersistenceError(message string, cause error) *DomainError {
	return &DomainError{
		Code:    CodePersistence,
		Message: message,
		cause:   cause,
	}
}

// Common domain errors
var (
	ErrNotFound    = NewDomainError(CodeNotFound, "Resource not found")
	ErrValidation  = NewDomainError(CodeValidation, "Invalid input provided")
	ErrConflict    = NewDomainError(CodeConflict, "Resource was modified by another process")
	ErrPersistence = NewDomainError(CodePersistence, "Storage operation failed")
)

// ErrorCode extracts the domain error code, or "" for foreign errors
func ErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// IsNotFound reports whether err is a NOT_FOUND domain error
func IsNotFound(err error) bool { return ErrorCode(err) == CodeNotFound }

// IsValidation reports whether err is a VALIDATION_ERROR domain error
func IsValidation(err error) bool { return ErrorCode(err) == CodeValidation }

// IsConflict reports whether err is a CONFLICT domain error
func IsConflict(err error) bool { return ErrorCode(err) == CodeConflict }

// IsPersistence reports whether err is a PERSISTENCE_ERROR domain error
func IsPersistence(err error) bool { return ErrorCode(err) == CodePersistence }
