package models

import "fmt"

// Error codes for structured error handling
const (
	ErrCodeNotFound            = "NOT_FOUND"
	ErrCodeValidationFailed    = "VALIDATION_FAILED"
	ErrCodeUpstreamUnavailable = "UPSTREAM_UNAVAILABLE"
	ErrCodeNotConfigured       = "NOT_CONFIGURED"
	ErrCodeInternalError       = "INTERNAL_ERROR"
)

// APIError represents a structured error with code and optional details
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Err     error                  `json:"-"` // Original error (not exposed to client)
}

// Error implements the error interface
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *APIError) Unwrap() error {
	return e.Err
}

// NewAPIError creates a new APIError
func NewAPIError(code, message string, details map[string]interface{}) *APIError {
	return &APIError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// WrapError wraps an existing error with an APIError
func WrapError(code, message string, err error, details map[string]interface{}) *APIError {
	return &APIError{
		Code:    code,
		Message: message,
		Details: details,
		Err:     err,
	}
}

// NewUpstreamError reports that the monitoring endpoint could not be read
func NewUpstreamError(endpoint string, err error) *APIError {
	return WrapError(
		ErrCodeUpstreamUnavailable,
		"Unable to reach the cluster monitoring endpoint",
		err,
		map[string]interface{}{
			"endpoint": endpoint,
		},
	)
}

// NewNotConfiguredError reports a feature whose configuration is missing
func NewNotConfiguredError(feature string) *APIError {
	return NewAPIError(
		ErrCodeNotConfigured,
		fmt.Sprintf("%s is not configured", feature),
		map[string]interface{}{
			"feature": feature,
		},
	)
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource string) *APIError {
	return NewAPIError(
		ErrCodeNotFound,
		fmt.Sprintf("%s not found", resource),
		map[string]interface{}{
			"resource": resource,
		},
	)
}

// NewValidationError creates a validation error
func NewValidationError(message string, fields []string) *APIError {
	return NewAPIError(
		ErrCodeValidationFailed,
		message,
		map[string]interface{}{
			"invalid_fields": fields,
		},
	)
}
