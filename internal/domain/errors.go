package domain

// APIError is an RFC 7807 style problem body returned by every failing endpoint
type APIError struct {
	Type   string            `json:"type"`
	Title  string            `json:"title"`
	Status int               `json:"status"`
	Detail string            `json:"detail,omitempty"`
	Errors map[string]string `json:"errors,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return e.Title
}

// Problem types
const (
	ErrorTypeValidation       = "validation_error"
	ErrorTypeNotFound         = "not_found"
	ErrorTypeBadRequest       = "bad_request"
	ErrorTypeConflict         = "conflict"
	ErrorTypeTooLarge         = "payload_too_large"
	ErrorTypeRateLimited      = "rate_limited"
	ErrorTypePartialFailure   = "partial_failure"
	ErrorTypeInternal         = "internal_error"
	ErrorTypeServiceUnhealthy = "service_unavailable"
)

// validationMessages maps validator tags without a parameter to readable text
var validationMessages = map[string]string{
	"required": "This field is required",
	"email":    "Must be a valid email address",
	"uuid":     "Must be a valid UUID",
	"url":      "Must be a valid URL",
	"numeric":  "Must be a numeric value",
}

// GetValidationMessage returns a human-readable message for a validation tag
func GetValidationMessage(tag string) string {
	if msg, ok := validationMessages[tag]; ok {
		return msg
	}
	return "Validation failed: " + tag
}
