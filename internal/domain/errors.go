package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a requested record does not exist
var ErrNotFound = errors.New("not found")

// APIError represents a standardized error response
type APIError struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error codes for different failure scenarios
const (
	ErrInvalidInput    = "INVALID_INPUT"
	ErrDatabaseError   = "DATABASE_ERROR"
	ErrExternalService = "EXTERNAL_SERVICE_ERROR"
	ErrExtraction      = "EXTRACTION_ERROR"
	ErrAuthentication  = "AUTHENTICATION_ERROR"
	ErrInternalServer  = "INTERNAL_SERVER_ERROR"
	ErrValidation      = "VALIDATION_ERROR"
	ErrNotFoundCode    = "NOT_FOUND"
	ErrQueueFull       = "QUEUE_FULL"
)

// NewAPIError creates a new APIError with timestamp
func NewAPIError(code, message, details, requestID string) *APIError {
	return &APIError{
		Code:      code,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
		RequestID: requestID,
	}
}

// ValidationError represents input validation errors
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}

// ExtractionError reports language model output that does not match the
// expected record schema.
type ExtractionError struct {
	Field  string
	Reason string
	Raw    string
}

// Error implements the error interface
func (e *ExtractionError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("field '%s': %s", e.Field, e.Reason)
}

// ExternalServiceError wraps a failure of a remote collaborator
type ExternalServiceError struct {
	Service string
	Err     error
}

// Error implements the error interface
func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Service, e.Err)
}

// Unwrap returns the underlying cause
func (e *ExternalServiceError) Unwrap() error {
	return e.Err
}
