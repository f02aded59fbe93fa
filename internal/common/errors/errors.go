// Package errors provides the standardized error type shared by beacon components.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

// Domain errors
const (
	ErrCodeNotFound         ErrorCode = "NOT_FOUND"
	ErrCodeUnauthorized     ErrorCode = "UNAUTHORIZED"
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrCodeDispatchFailed   ErrorCode = "DISPATCH_FAILED"
)

// Infrastructure errors
const (
	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryExecutionFailed     ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeConfigInvalid            ErrorCode = "CONFIG_INVALID"
	ErrCodeExternalService          ErrorCode = "EXTERNAL_SERVICE_ERROR"
	ErrCodeTimeout                  ErrorCode = "TIMEOUT_ERROR"
	ErrCodeInternal                 ErrorCode = "INTERNAL_ERROR"
)

// Sentinels for errors.Is. A *StandardError matches a sentinel when the codes agree.
var (
	ErrNotFound         = &StandardError{Code: ErrCodeNotFound, Message: "not found"}
	ErrUnauthorized     = &StandardError{Code: ErrCodeUnauthorized, Message: "unauthorized"}
	ErrValidationFailed = &StandardError{Code: ErrCodeValidationFailed, Message: "validation failed"}
	ErrDispatchFailed   = &StandardError{Code: ErrCodeDispatchFailed, Message: "dispatch failed"}
)

// FieldError names the offending input field and the rule it broke.
type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

func (f FieldError) String() string {
	return fmt.Sprintf("%s: %s (%s)", f.Field, f.Message, f.Rule)
}

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Fields    []FieldError           `json:"fields,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	cause     error
}

func (e *StandardError) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.String())
	}
	return fmt.Sprintf("StandardError[%s]: %s: %s", e.Code, e.Message, strings.Join(parts, "; "))
}

// Is reports whether target is a StandardError with the same code.
func (e *StandardError) Is(target error) bool {
	t, ok := target.(*StandardError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// WithMetadata attaches a key/value pair and returns the receiver.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// ==========================
// 2. Error Constructors
// ==========================

// NewNotFoundError reports that an entity referenced by id does not exist.
func NewNotFoundError(entity string, id interface{}) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotFound,
		Message:   fmt.Sprintf("%s not found", entity),
		Details:   fmt.Sprintf("%s id: %v", entity, id),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewUnauthorizedError reports a failed authorization gate. The message never
// includes entity state.
func NewUnauthorizedError(action string) *StandardError {
	return &StandardError{
		Code:      ErrCodeUnauthorized,
		Message:   fmt.Sprintf("not allowed to %s", action),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewValidationError reports caller-supplied data that violates a rule.
func NewValidationError(fields ...FieldError) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidationFailed,
		Message:   "validation failed",
		Fields:    fields,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDispatchFailedError wraps a single recipient's send failure.
func NewDispatchFailedError(recipient string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDispatchFailed,
		Message:   "notification delivery failed",
		Details:   fmt.Sprintf("recipient: %s, error: %s", recipient, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewDatabaseConnectionFailedError creates a retryable database connection error.
func NewDatabaseConnectionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseConnectionFailed,
		Message:   "Database connection error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewQueryExecutionFailedError creates a retryable query execution error.
func NewQueryExecutionFailedError(operation string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeQueryExecutionFailed,
		Message:   "Database query execution error",
		Details:   fmt.Sprintf("operation: %s, error: %s", operation, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewConfigInvalidError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeConfigInvalid,
		Message:   "Invalid configuration",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewExternalServiceError(service string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeExternalService,
		Message:   fmt.Sprintf("External service '%s' error", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewTimeoutError(service string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeTimeout,
		Message:   fmt.Sprintf("Service '%s' timeout", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// ==========================
// 3. Helpers
// ==========================

// AsStandard unwraps err to a *StandardError, or wraps it as INTERNAL_ERROR.
func AsStandard(err error) *StandardError {
	if err == nil {
		return nil
	}
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// CodeOf returns the error code carried by err, or "" for nil.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	return AsStandard(err).Code
}

// IsNotFound, IsUnauthorized and IsValidation are shorthands over errors.Is.
func IsNotFound(err error) bool     { return stderrors.Is(err, ErrNotFound) }
func IsUnauthorized(err error) bool { return stderrors.Is(err, ErrUnauthorized) }
func IsValidation(err error) bool   { return stderrors.Is(err, ErrValidationFailed) }

// IsRetryable reports whether the failure is transient.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return AsStandard(err).Retryable
}

// GetRetryCount returns how many times a job failing with code should be retried.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDatabaseConnectionFailed, ErrCodeQueryExecutionFailed:
		return 3
	case ErrCodeExternalService, ErrCodeTimeout, ErrCodeDispatchFailed:
		return 2
	default:
		return 0
	}
}

// GetErrorCategory groups codes for logging and metrics labels.
func GetErrorCategory(code ErrorCode) string {
	c := string(code)
	switch {
	case code == ErrCodeNotFound || code == ErrCodeValidationFailed || code == ErrCodeUnauthorized:
		return "caller"
	case strings.Contains(c, "DATABASE") || strings.Contains(c, "QUERY"):
		return "database"
	case code == ErrCodeDispatchFailed:
		return "notification"
	case code == ErrCodeConfigInvalid:
		return "configuration"
	case strings.Contains(c, "EXTERNAL") || strings.Contains(c, "TIMEOUT"):
		return "external"
	default:
		return "internal"
	}
}
