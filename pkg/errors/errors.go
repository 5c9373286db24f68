package errors

import (
	stderrors "errors"
	"fmt"
)

type AppError struct {
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

func Wrap(err error, code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// CodeOf returns the code of the outermost AppError in the chain, or
// ErrCodeInternalError for foreign errors.
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternalError
}

// As is errors.As from the standard library.
func As(err error, target interface{}) bool {
	return stderrors.As(err, target)
}

// Is reports whether err carries the given code.
func Is(err error, code string) bool {
	return err != nil && CodeOf(err) == code
}

// Common error codes
const (
	ErrCodeValidation        = "VALIDATION_ERROR"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeForbidden         = "FORBIDDEN"
	ErrCodeInternalError     = "INTERNAL_ERROR"
	ErrCodeInsufficientFunds = "INSUFFICIENT_FUNDS"
	ErrCodeAlreadyExists     = "ALREADY_EXISTS"
	ErrCodeRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
)

// Economy error codes
const (
	ErrCodeQuotaExceeded       = "QUOTA_EXCEEDED"
	ErrCodeNoEligiblePrizes    = "NO_ELIGIBLE_PRIZES"
	ErrCodeStockExhausted      = "STOCK_EXHAUSTED"
	ErrCodeMarketNotOpen       = "MARKET_NOT_OPEN"
	ErrCodeAlreadySettled      = "ALREADY_SETTLED"
	ErrCodeInvalidState        = "INVALID_STATE"
	ErrCodeAlreadyClaimed      = "ALREADY_CLAIMED"
	ErrCodeTaskNotCompleted    = "TASK_NOT_COMPLETED"
	ErrCodeIdempotencyConflict = "IDEMPOTENCY_CONFLICT"
	ErrCodeInvariantViolation  = "INVARIANT_VIOLATION"
)
