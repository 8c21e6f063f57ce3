package errors

import (
	"fmt"
	"net/http"
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	ErrorTypeValidation      ErrorType = "validation"
	ErrorTypeDecode          ErrorType = "decode"
	ErrorTypeCandidateEncode ErrorType = "candidate_encode"
	ErrorTypeFallbackEncode  ErrorType = "fallback_encode"
	ErrorTypeIO              ErrorType = "io"
	ErrorTypeNetwork         ErrorType = "network"
	ErrorTypeTimeout         ErrorType = "timeout"
	ErrorTypeInternal        ErrorType = "internal"
)

// AppError represents a structured application error. Path carries the
// source image path and Attempted the format/mode combination that was
// being produced, so a failure can be diagnosed without internal state.
type AppError struct {
	Type       ErrorType `json:"type"`
	Message    string    `json:"message"`
	Path       string    `json:"path,omitempty"`
	Attempted  string    `json:"attempted,omitempty"`
	StatusCode int       `json:"status_code"`
	Cause      error     `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Type, e.Message)
	if e.Path != "" {
		msg += fmt.Sprintf(" [%s]", e.Path)
	}
	if e.Attempted != "" {
		msg += fmt.Sprintf(" (attempted: %s)", e.Attempted)
	}
	if e.Cause != nil {
		msg += fmt.Sprintf(": %v", e.Cause)
	}
	return msg
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// NewValidationError creates a new validation error
func NewValidationError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Message:    message,
		StatusCode: http.StatusBadRequest,
		Cause:      cause,
	}
}

// NewDecodeError reports a source file that is not a readable image.
// Fatal for that single image only; the batch continues.
func NewDecodeError(path string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeDecode,
		Message:    "source is not a readable image",
		Path:       path,
		StatusCode: http.StatusUnprocessableEntity,
		Cause:      cause,
	}
}

// NewCandidateError reports a single trial encoding that could not be
// produced. Recovered locally by skipping the candidate.
func NewCandidateError(path, attempted string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeCandidateEncode,
		Message:    "candidate encode failed",
		Path:       path,
		Attempted:  attempted,
		StatusCode: http.StatusUnprocessableEntity,
		Cause:      cause,
	}
}

// NewFallbackError reports that no safe encoding could be produced at
// all. Escalated to the caller as a per-image error.
func NewFallbackError(path, attempted string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeFallbackEncode,
		Message:    "fallback encode failed",
		Path:       path,
		Attempted:  attempted,
		StatusCode: http.StatusUnprocessableEntity,
		Cause:      cause,
	}
}

// NewIOError reports a failure reading the source or writing output.
func NewIOError(path string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeIO,
		Message:    "file I/O failed",
		Path:       path,
		StatusCode: http.StatusInternalServerError,
		Cause:      cause,
	}
}

// NewNetworkError creates a new network error
func NewNetworkError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeNetwork,
		Message:    message,
		StatusCode: http.StatusBadGateway,
		Cause:      cause,
	}
}

// NewTimeoutError creates a new timeout error
func NewTimeoutError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeTimeout,
		Message:    message,
		StatusCode: http.StatusGatewayTimeout,
		Cause:      cause,
	}
}

// NewInternalError creates a new internal error
func NewInternalError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Cause:      cause,
	}
}

// IsType checks if the error is of a specific type
func IsType(err error, errorType ErrorType) bool {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Type == errorType
	}
	return false
}

// GetStatusCode extracts the HTTP status code from an error
func GetStatusCode(err error) int {
	if appErr, ok := err.(*AppError); ok {
		return appErr.StatusCode
	}
	return http.StatusInternalServerError
}
