// Package errors provides the unified error type and factory functions for the
// compliance engine.  Every layer (domain, application, infrastructure,
// interfaces) uses AppError as the single carrier for structured error
// information, enabling consistent HTTP responses, logging, and retry
// decisions.
package errors

import (
	"errors"
	"fmt"
)

// AppError is the single structured error type used throughout the engine.
// It satisfies the standard error interface and supports Go 1.13+ error
// wrapping so that errors.Is / errors.As / errors.Unwrap work transparently
// across layers.
//
// Usage:
//
//	return errors.NotFound("schedule sch-42 not found")
//	return errors.Wrap(dbErr, errors.ErrCodeDatabaseError, "failed to upsert deadline")
type AppError struct {
	// Code is the typed error code that identifies the failure category.
	Code ErrorCode

	// Message is the primary human-readable description, suitable for API
	// responses returned to callers.
	Message string

	// Detail carries supplementary context (entity IDs, query parameters)
	// that aids debugging without leaking internals to end users.
	Detail string

	// Cause is the underlying error, enabling errors.Is / errors.As traversal
	// of the full chain.
	Cause error
}

// Error implements the standard error interface.
// Format: "[<code>] <message>: <detail>"; the detail segment is omitted when
// Detail is empty.
func (e *AppError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Detail)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithDetail returns a shallow copy of the receiver with Detail set.
// Safe to call on a nil pointer (returns nil).
func (e *AppError) WithDetail(detail string) *AppError {
	if e == nil {
		return nil
	}
	clone := *e
	clone.Detail = detail
	return &clone
}

// WithCause returns a shallow copy of the receiver with Cause set to err.
func (e *AppError) WithCause(err error) *AppError {
	if e == nil {
		return nil
	}
	clone := *e
	clone.Cause = err
	return &clone
}

// New constructs a fresh AppError with the given code and message.
func New(code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Newf constructs a fresh AppError with a formatted message.
func Newf(code ErrorCode, format string, args ...interface{}) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap constructs an AppError that wraps an existing error.  If err is nil,
// Wrap returns nil so it can be used inline on a repository call result.
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{Code: code, Message: message, Cause: err}
}

// IsCode reports whether any error in err's chain is an *AppError with the
// given code.
func IsCode(err error, code ErrorCode) bool {
	var ae *AppError
	for err != nil {
		if errors.As(err, &ae) && ae.Code == code {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}

// GetCode extracts the ErrorCode from the first *AppError in err's chain,
// or ErrCodeInternal when none is present.
func GetCode(err error) ErrorCode {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ErrCodeInternal
}

// IsNotFound reports whether err's chain carries any not-found code.
func IsNotFound(err error) bool {
	return IsCode(err, ErrCodeNotFound) ||
		IsCode(err, ErrCodeScheduleNotFound) ||
		IsCode(err, ErrCodeDeadlineNotFound) ||
		IsCode(err, ErrCodeRiskScoreNotFound) ||
		IsCode(err, ErrCodeSiteNotFound) ||
		IsCode(err, ErrCodeObligationNotFound)
}

// IsValidation reports whether err's chain carries a validation code.
func IsValidation(err error) bool {
	return IsCode(err, ErrCodeValidation) ||
		IsCode(err, ErrCodeBadRequest) ||
		IsCode(err, ErrCodeFrequencyInvalid) ||
		IsCode(err, ErrCodeBaseDateInvalid) ||
		IsCode(err, ErrCodeRecurrenceEventInvalid) ||
		IsCode(err, ErrCodeDeadlineCursorBad)
}

// IsConflict reports whether err's chain carries a conflict code.
func IsConflict(err error) bool {
	return IsCode(err, ErrCodeConflict) ||
		IsCode(err, ErrCodeScheduleConflict) ||
		IsCode(err, ErrCodeScheduleNotActive) ||
		IsCode(err, ErrCodeDeadlineTerminal) ||
		IsCode(err, ErrCodeTransitionInvalid)
}

// IsNoop reports whether err is a ConcurrencyNoop — a duplicate creation or a
// lost compare-and-swap race that callers must treat as success.
func IsNoop(err error) bool {
	return IsCode(err, ErrCodeConcurrencyNoop)
}

// IsTransient reports whether err looks like a transient persistence or
// external-service failure worth retrying with backoff.
func IsTransient(err error) bool {
	return IsCode(err, ErrCodeDatabaseError) ||
		IsCode(err, ErrCodeCacheError) ||
		IsCode(err, ErrCodeServiceUnavailable) ||
		IsCode(err, ErrCodeTimeout)
}

// Convenience factories.  Call sites read naturally:
//
//	return errors.Conflict("an active schedule already exists for obligation x")

// NotFound constructs an ErrCodeNotFound AppError.
func NotFound(message string) *AppError {
	return &AppError{Code: ErrCodeNotFound, Message: message}
}

// InvalidParam constructs an ErrCodeValidation AppError.
func InvalidParam(message string) *AppError {
	return &AppError{Code: ErrCodeValidation, Message: message}
}

// Conflict constructs an ErrCodeConflict AppError.
func Conflict(message string) *AppError {
	return &AppError{Code: ErrCodeConflict, Message: message}
}

// Internal constructs an ErrCodeInternal AppError.  Always log the underlying
// cause before or after calling Internal.
func Internal(message string) *AppError {
	return &AppError{Code: ErrCodeInternal, Message: message}
}

// Noop constructs an ErrCodeConcurrencyNoop AppError.
func Noop(message string) *AppError {
	return &AppError{Code: ErrCodeConcurrencyNoop, Message: message}
}
