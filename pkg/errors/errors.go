package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorCode represents application-specific error codes
type ErrorCode string

const (
	// Validation errors
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"

	// Authentication / authorization errors
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden    ErrorCode = "FORBIDDEN"

	// Not found errors
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// Conflict errors
	ErrCodeConflict ErrorCode = "CONFLICT"

	// Rate limiting errors
	ErrCodeRateLimitExceeded ErrorCode = "RATE_LIMIT_EXCEEDED"

	// Internal / dependency errors
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
	ErrCodeStore    ErrorCode = "STORE_ERROR"
	ErrCodeUpstream ErrorCode = "UPSTREAM_ERROR"
)

// AppError represents a structured application error with code, message, and HTTP status
type AppError struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	StatusCode int       `json:"-"`
	Details    any       `json:"details,omitempty"`
	Err        error     `json:"-"`
}

// Error implements the error interface, returning a formatted error message
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError with the given code and message.
// The status code defaults to 500 Internal Server Error
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
	}
}

// NewWithStatus creates a new AppError with a specific HTTP status code
func NewWithStatus(code ErrorCode, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// WrapWithStatus wraps an existing error with an AppError and specific status code
func WrapWithStatus(code ErrorCode, message string, statusCode int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
		Err:        err,
	}
}

// WithDetails adds additional details to an AppError for debugging
func (e *AppError) WithDetails(details any) *AppError {
	e.Details = details
	return e
}

// Validation errors
func InvalidInputError(message string) *AppError {
	return NewWithStatus(ErrCodeInvalidInput, message, http.StatusBadRequest)
}

func MissingFieldError(field string) *AppError {
	return NewWithStatus(ErrCodeInvalidInput, fmt.Sprintf("Missing required field: %s", field), http.StatusBadRequest)
}

// Authentication errors
func UnauthorizedError(message string) *AppError {
	return NewWithStatus(ErrCodeUnauthorized, message, http.StatusUnauthorized)
}

// Authorization errors
func ForbiddenError(message string) *AppError {
	return NewWithStatus(ErrCodeForbidden, message, http.StatusForbidden)
}

// Not found errors
func NotFoundError(resource string) *AppError {
	return NewWithStatus(ErrCodeNotFound, fmt.Sprintf("%s not found", resource), http.StatusNotFound)
}

// Conflict errors
func ConflictError(message string) *AppError {
	return NewWithStatus(ErrCodeConflict, message, http.StatusConflict)
}

// Rate limiting errors
func RateLimitExceededError() *AppError {
	return NewWithStatus(ErrCodeRateLimitExceeded, "Rate limit exceeded", http.StatusTooManyRequests)
}

// Internal errors
func InternalError(message string) *AppError {
	return NewWithStatus(ErrCodeInternal, message, http.StatusInternalServerError)
}

// StoreError wraps a persistence failure. No retry is attempted by the
// service layer; the caller re-triggers the action.
func StoreError(err error) *AppError {
	return WrapWithStatus(ErrCodeStore, "Document store unavailable", http.StatusServiceUnavailable, err)
}

// UpstreamError wraps a failure of the text-completion service
func UpstreamError(err error) *AppError {
	return WrapWithStatus(ErrCodeUpstream, "Assistant service unavailable", http.StatusBadGateway, err)
}

// IsAppError checks if an error is (or wraps) an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// HasCode reports whether err is an AppError carrying the given code
func HasCode(err error, code ErrorCode) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// GetAppError extracts AppError from an error, wrapping non-AppErrors as InternalError
func GetAppError(err error) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return InternalError(err.Error())
}
