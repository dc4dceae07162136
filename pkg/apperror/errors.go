package apperror

import (
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches two AppErrors by code, so callers can write
// errors.Is(err, apperror.ErrConflict()) without holding the same instance.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// ---- Accounts (ACC) ----

func ErrAccountNotFound() *AppError {
	return New("ACC_001", "Account not found", http.StatusNotFound)
}

func ErrDuplicateIdentifier(identifier string) *AppError {
	return New("ACC_002", fmt.Sprintf("Account identifier %s already exists", identifier), http.StatusConflict)
}

func ErrNonZeroBalance() *AppError {
	return New("ACC_003", "Account balance must be zero before deletion", http.StatusConflict)
}

func ErrExhaustedIdentifierSpace(attempts int) *AppError {
	return New("ACC_004", fmt.Sprintf("Could not allocate a unique account identifier after %d attempts", attempts), http.StatusInternalServerError)
}

// ---- Ledger operations (LED) ----

func ErrInvalidAmount() *AppError {
	return New("LED_001", "Amount must be greater than zero", http.StatusBadRequest)
}

func ErrInsufficientFunds(balance decimal.Decimal) *AppError {
	return New("LED_002", fmt.Sprintf("Requested amount exceeds available balance of %s", balance.StringFixed(2)), http.StatusPaymentRequired)
}

func ErrSameAccount() *AppError {
	return New("LED_003", "Origin and destination accounts must differ", http.StatusBadRequest)
}

func ErrConflict() *AppError {
	return New("LED_004", "Account was concurrently modified", http.StatusConflict)
}

func ErrTooManyConflicts() *AppError {
	return New("LED_005", "Operation abandoned after repeated write conflicts", http.StatusServiceUnavailable)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

func ErrLockTimeout(err error) *AppError {
	return Wrap("SYS_002", "Lock acquisition timeout", http.StatusServiceUnavailable, err)
}

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}

// Validation returns a LED_001-style validation error with a custom message.
func Validation(message string) *AppError {
	return New("LED_001", message, http.StatusBadRequest)
}
