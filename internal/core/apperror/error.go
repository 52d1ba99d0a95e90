// Package apperror provides structured error handling following RFC 7807 Problem Details.
// All accounting rule violations are reported as AppError so callers can surface
// the error kind and the offending identifiers verbatim.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes following domain-driven design
const (
	// Infrastructure errors (5xx)
	CodeInternal = "INTERNAL_ERROR"
	CodeDatabase = "DATABASE_ERROR"
	CodeTimeout  = "TIMEOUT_ERROR"

	// Validation errors (400)
	CodeValidation   = "VALIDATION_ERROR"
	CodeInvalidInput = "INVALID_INPUT"

	// Business rule violations (422)
	CodeBusinessRule            = "BUSINESS_RULE_VIOLATION"
	CodeUnbalancedEntry         = "UNBALANCED_ENTRY"
	CodeInvalidAccount          = "INVALID_ACCOUNT"
	CodePeriodClosed            = "PERIOD_CLOSED"
	CodePeriodNotFound          = "PERIOD_NOT_FOUND"
	CodeInvalidPeriodTransition = "INVALID_PERIOD_TRANSITION"
	CodeReconciliationMismatch  = "RECONCILIATION_MISMATCH"
	CodeEntryAlreadyReversed    = "ENTRY_ALREADY_REVERSED"

	// Retryable contention (409)
	CodeSequenceContention     = "SEQUENCE_CONTENTION"
	CodeLockTimeout            = "LOCK_TIMEOUT"
	CodeConcurrentModification = "CONCURRENT_MODIFICATION"

	// Not found (404)
	CodeNotFound = "NOT_FOUND"

	// Conflict (409)
	CodeConflict  = "CONFLICT"
	CodeDuplicate = "DUPLICATE_ENTRY"
)

// AppError is the standard error type for the accounting core.
type AppError struct {
	// Code is a machine-readable error identifier
	Code string `json:"code"`

	// Message is a human-readable error description
	Message string `json:"message"`

	// Details carries the offending identifiers (entry id, account code, period id...)
	Details map[string]any `json:"details,omitempty"`

	// HTTPStatus is the suggested status code for transports that need one
	HTTPStatus int `json:"-"`

	// Err is the underlying error (not exposed in JSON)
	Err error `json:"-"`
}

// Error implements error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail adds a key-value pair to error details
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause sets the underlying error
func (e *AppError) WithCause(err error) *AppError {
	e.Err = err
	return e
}

// --- Factory functions ---

// NewValidation creates a validation error (400)
func NewValidation(message string) *AppError {
	return &AppError{
		Code:       CodeValidation,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewNotFound creates a not found error (404)
func NewNotFound(entity string, id any) *AppError {
	return &AppError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", entity),
		HTTPStatus: http.StatusNotFound,
		Details:    map[string]any{"entity": entity, "id": id},
	}
}

// NewBusinessRule creates a business rule violation error (422)
func NewBusinessRule(code, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: http.StatusUnprocessableEntity,
	}
}

// NewUnbalancedEntry is returned when debit and credit totals differ.
// The entry is never auto-corrected.
func NewUnbalancedEntry(debit, credit string) *AppError {
	return &AppError{
		Code:       CodeUnbalancedEntry,
		Message:    fmt.Sprintf("entry is unbalanced: debit %s, credit %s", debit, credit),
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    map[string]any{"debit_total": debit, "credit_total": credit},
	}
}

// NewInvalidAccount is returned for malformed or unknown account codes.
func NewInvalidAccount(code, reason string) *AppError {
	return &AppError{
		Code:       CodeInvalidAccount,
		Message:    fmt.Sprintf("invalid account %q: %s", code, reason),
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    map[string]any{"account_code": code},
	}
}

// NewPeriodClosed creates error when trying to post into a closed period.
func NewPeriodClosed(periodID any, status string) *AppError {
	return &AppError{
		Code:       CodePeriodClosed,
		Message:    fmt.Sprintf("period %v is %s and accepts no postings", periodID, status),
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    map[string]any{"period_id": periodID, "status": status},
	}
}

// NewPeriodNotFound is returned when no period covers a date.
func NewPeriodNotFound(companyID any, date string) *AppError {
	return &AppError{
		Code:       CodePeriodNotFound,
		Message:    fmt.Sprintf("no fiscal period covers %s", date),
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    map[string]any{"company_id": companyID, "date": date},
	}
}

// NewInvalidPeriodTransition is returned for a status change the state machine forbids.
func NewInvalidPeriodTransition(periodID any, from, to string) *AppError {
	return &AppError{
		Code:       CodeInvalidPeriodTransition,
		Message:    fmt.Sprintf("period %v cannot move from %s to %s", periodID, from, to),
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    map[string]any{"period_id": periodID, "from": from, "to": to},
	}
}

// NewReconciliationMismatch is returned when lines from different accounts
// or companies are grouped together.
func NewReconciliationMismatch(message string) *AppError {
	return &AppError{
		Code:       CodeReconciliationMismatch,
		Message:    message,
		HTTPStatus: http.StatusUnprocessableEntity,
	}
}

// NewEntryAlreadyReversed is returned when reversing an entry a second time.
func NewEntryAlreadyReversed(entryID any) *AppError {
	return &AppError{
		Code:       CodeEntryAlreadyReversed,
		Message:    fmt.Sprintf("entry %v is already reversed", entryID),
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"entry_id": entryID},
	}
}

// NewSequenceContention is returned when a counter row lock could not be
// acquired in time. The whole containing transaction should be retried.
func NewSequenceContention(key string) *AppError {
	return &AppError{
		Code:       CodeSequenceContention,
		Message:    fmt.Sprintf("counter %s is busy, retry the transaction", key),
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"counter": key},
	}
}

// NewLockTimeout is returned when a row lock wait exceeded the transaction limit.
func NewLockTimeout(resource string) *AppError {
	return &AppError{
		Code:       CodeLockTimeout,
		Message:    fmt.Sprintf("timed out waiting for lock on %s", resource),
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"resource": resource},
	}
}

// NewConcurrentModification creates a serialization failure error
func NewConcurrentModification(entity string, id any) *AppError {
	return &AppError{
		Code:       CodeConcurrentModification,
		Message:    "Record was modified concurrently. Retry the operation.",
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"entity": entity, "id": id},
	}
}

// NewInternal creates an internal error (hides details from client)
func NewInternal(err error) *AppError {
	return &AppError{
		Code:       CodeInternal,
		Message:    "Internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// NewConflict creates a conflict error (409)
func NewConflict(message string) *AppError {
	return &AppError{
		Code:       CodeConflict,
		Message:    message,
		HTTPStatus: http.StatusConflict,
	}
}

// NewDuplicate creates a duplicate entry error (409)
func NewDuplicate(entity, field, value string) *AppError {
	return &AppError{
		Code:       CodeDuplicate,
		Message:    fmt.Sprintf("%s with this %s already exists", entity, field),
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"entity": entity, "field": field, "value": value},
	}
}

// --- Helper functions ---

// IsAppError checks if error is AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// AsAppError extracts AppError from error chain
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// HasCode reports whether err carries the given AppError code.
func HasCode(err error, code string) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == code
	}
	return false
}

// GetHTTPStatus returns appropriate HTTP status for any error
func GetHTTPStatus(err error) int {
	if appErr, ok := AsAppError(err); ok {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

// IsNotFound checks if error is CodeNotFound
func IsNotFound(err error) bool {
	return HasCode(err, CodeNotFound)
}

// IsRetryable reports whether the caller may retry the whole transaction.
// Only lock contention qualifies; every other error needs intervention.
func IsRetryable(err error) bool {
	appErr, ok := AsAppError(err)
	if !ok {
		return false
	}
	switch appErr.Code {
	case CodeSequenceContention, CodeLockTimeout, CodeConcurrentModification:
		return true
	}
	return false
}
