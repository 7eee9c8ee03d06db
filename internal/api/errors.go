package api

import (
	"errors"
	"log"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/jaredcannon/clusterview/internal/models"
)

// Global validator instance
var validate = validator.New()

// ErrorResponse represents a sanitized error response for API clients
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Code    string                 `json:"code,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// sanitizeError returns a user-friendly error message and logs the detailed error
func sanitizeError(err error, userMessage string) string {
	if err == nil {
		return userMessage
	}

	log.Printf("[API Error] %s: %v", userMessage, err)

	errStr := err.Error()

	// Database errors
	if strings.Contains(errStr, "record not found") {
		return "Resource not found"
	}
	if strings.Contains(errStr, "database is locked") {
		return "History storage is busy, try again"
	}

	// Keychain/credential errors
	if strings.Contains(errStr, "keyring") || strings.Contains(errStr, "keychain") || strings.Contains(errStr, "credentials") {
		return "Failed to manage credentials securely"
	}

	// Monitoring endpoint errors
	if strings.Contains(errStr, "connection refused") || strings.Contains(errStr, "no such host") {
		return "Unable to connect to the cluster monitoring endpoint"
	}
	if strings.Contains(errStr, "deadline exceeded") || strings.Contains(errStr, "timeout") {
		return "The cluster monitoring endpoint timed out"
	}

	// Config errors
	if strings.Contains(errStr, "cluster config") {
		return "Cluster config could not be read"
	}

	return userMessage
}

// HandleError is a helper to return sanitized error responses. Structured
// APIErrors keep their code and details.
func HandleError(c *fiber.Ctx, statusCode int, err error, defaultMessage string) error {
	var apiErr *models.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Err != nil {
			log.Printf("[API Error] %s: %v", apiErr.Message, apiErr.Err)
		}
		return c.Status(statusCode).JSON(ErrorResponse{
			Error:   apiErr.Message,
			Code:    apiErr.Code,
			Details: apiErr.Details,
		})
	}

	sanitized := sanitizeError(err, defaultMessage)
	return c.Status(statusCode).JSON(ErrorResponse{
		Error: sanitized,
		Code:  models.ErrCodeInternalError,
	})
}

// ValidateRequest validates a request struct. The returned APIError lists
// the offending fields and is meant for HandleError with a 400.
func ValidateRequest(req interface{}) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	log.Printf("[Validation Error] %v", err)

	fields := []string{}
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		for _, fe := range validationErrs {
			fields = append(fields, fe.Field())
		}
	}

	return models.NewValidationError("Invalid request - please check your input and try again", fields)
}
