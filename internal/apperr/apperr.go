// Package apperr defines the closed error taxonomy shared by the persistence
// core and its callers.
//
// Every error crossing the core's boundary is an *Error carrying a stable
// machine-readable code, a human-readable message, an optional field name and
// optional structured details. The HTTP layer maps kinds to status codes but
// performs no business logic; the client layer maps kinds to recovery actions.
package apperr

import (
	"errors"
	"fmt"
)

// Kind categorizes an error for retry and recovery decisions.
type Kind string

const (
	// KindValidation means the caller supplied invalid or incomplete data.
	// Recoverable by correcting input, never retried automatically.
	KindValidation Kind = "VALIDATION"

	// KindNotFound means a referenced entity does not exist.
	KindNotFound Kind = "NOT_FOUND"

	// KindConflict means a duplicate unique value or a version mismatch.
	// Recoverable by reload-and-retry with fresh data.
	KindConflict Kind = "CONFLICT"

	// KindDatabase means an engine-level fault such as a lock-wait timeout
	// or an integrity failure. Retryable only when transient.
	KindDatabase Kind = "DATABASE"
)

// Stable error codes within each kind.
const (
	CodeMissingField    = "MISSING_FIELD"
	CodeMalformedField  = "MALFORMED_FIELD"
	CodeUnknownKey      = "UNKNOWN_KEY"
	CodeTerminalState   = "TERMINAL_STATE"
	CodeBadTransition   = "BAD_TRANSITION"
	CodeCaseNotFound    = "CASE_NOT_FOUND"
	CodeDuplicateRef    = "DUPLICATE_EXTERNAL_REF"
	CodeVersionMismatch = "VERSION_MISMATCH"
	CodeBusy            = "DB_BUSY"
	CodeIntegrity       = "DB_INTEGRITY"
	CodeInternal        = "DB_INTERNAL"
)

// Error is the structured error value forming the wire contract.
type Error struct {
	// Kind identifies the error category.
	Kind Kind `json:"kind"`

	// Code identifies the specific condition within the kind.
	Code string `json:"code"`

	// Message is a human-readable description.
	Message string `json:"message"`

	// Field names the offending input field, when one exists.
	Field string `json:"field,omitempty"`

	// Details carries additional context, e.g. conflicting version numbers.
	Details map[string]any `json:"details,omitempty"`

	// cause is the wrapped underlying error, not serialized.
	cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s/%s: %s (field=%s)", e.Kind, e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("%s/%s: %s", e.Kind, e.Code, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is/As chains.
func (e *Error) Unwrap() error {
	return e.cause
}

// Validation creates a ValidationError for the given field.
func Validation(code, field, format string, args ...any) *Error {
	return &Error{
		Kind:    KindValidation,
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Field:   field,
	}
}

// NotFound creates a NotFoundError.
func NotFound(code, format string, args ...any) *Error {
	return &Error{
		Kind:    KindNotFound,
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Conflict creates a ConflictError.
func Conflict(code, format string, args ...any) *Error {
	return &Error{
		Kind:    KindConflict,
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// VersionMismatch creates a ConflictError carrying the expected and actual
// version numbers so callers can reload and merge.
func VersionMismatch(expected, actual int64) *Error {
	return &Error{
		Kind:    KindConflict,
		Code:    CodeVersionMismatch,
		Message: fmt.Sprintf("stale update: expected version %d, stored version is %d", expected, actual),
		Field:   "version",
		Details: map[string]any{
			"expected_version": expected,
			"actual_version":   actual,
		},
	}
}

// Database wraps an engine-level fault. The cause is preserved for logging
// but never serialized across the boundary.
func Database(code string, cause error, format string, args ...any) *Error {
	return &Error{
		Kind:    KindDatabase,
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		cause:   cause,
	}
}

// WithDetails attaches structured details and returns the same error.
func (e *Error) WithDetails(details map[string]any) *Error {
	e.Details = details
	return e
}

// IsValidation reports whether err is a validation error.
// Uses errors.As to handle wrapped errors.
func IsValidation(err error) bool { return isKind(err, KindValidation) }

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool { return isKind(err, KindNotFound) }

// IsConflict reports whether err is a conflict error.
func IsConflict(err error) bool { return isKind(err, KindConflict) }

// IsDatabase reports whether err is an engine-level error.
func IsDatabase(err error) bool { return isKind(err, KindDatabase) }

// Retryable reports whether err represents a transient condition a caller
// may retry unchanged. Only the bounded lock-wait ("busy") condition
// qualifies; conflicts require fresh data and validation requires corrected
// input, so neither is retryable as-is.
func Retryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == KindDatabase && e.Code == CodeBusy
	}
	return false
}

func isKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
