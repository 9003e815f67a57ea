// Package errors provides standardized error handling for the popup client.
package errors

import (
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeAuthTokenMissing ErrorCode = "AUTH_TOKEN_MISSING"
	ErrCodeAuthRejected     ErrorCode = "AUTH_REJECTED"

	ErrCodeRequestTimeout       ErrorCode = "REQUEST_TIMEOUT"
	ErrCodeConnectionFailed     ErrorCode = "CONNECTION_FAILED"
	ErrCodeRequestEncodeFailed  ErrorCode = "REQUEST_ENCODE_FAILED"
	ErrCodeResponseDecodeFailed ErrorCode = "RESPONSE_DECODE_FAILED"

	ErrCodeDefinitionInvalid   ErrorCode = "DEFINITION_INVALID"
	ErrCodeConditionParseError ErrorCode = "CONDITION_PARSE_ERROR"

	ErrCodeTemplateNotFound     ErrorCode = "TEMPLATE_NOT_FOUND"
	ErrCodeTemplateParamMissing ErrorCode = "TEMPLATE_PARAM_MISSING"
	ErrCodeTemplateRenderFailed ErrorCode = "TEMPLATE_RENDER_FAILED"
	ErrCodeRegistryLoadFailed   ErrorCode = "REGISTRY_LOAD_FAILED"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// ==========================
// 2. Error Constructors
// ==========================

// NewAuthTokenMissingError creates a non-retryable missing token error.
// The message matches what the popup service's callers expect verbatim.
func NewAuthTokenMissingError() *StandardError {
	return &StandardError{
		Code:      ErrCodeAuthTokenMissing,
		Message:   "POPUP_AUTH_TOKEN environment variable not set",
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewAuthRejectedError creates a non-retryable authentication error.
func NewAuthRejectedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeAuthRejected,
		Message:   "Popup server rejected the auth token",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewRequestTimeoutError creates a retryable transport timeout error.
func NewRequestTimeoutError(host string) *StandardError {
	return &StandardError{
		Code:      ErrCodeRequestTimeout,
		Message:   "Request timed out",
		Details:   fmt.Sprintf("host: %s", host),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewConnectionFailedError creates a retryable connection error.
func NewConnectionFailedError(host string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeConnectionFailed,
		Message:   fmt.Sprintf("Cannot connect to popup server at %s", host),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewRequestEncodeFailedError creates a non-retryable body encoding error.
func NewRequestEncodeFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeRequestEncodeFailed,
		Message:   "Failed to encode popup request body",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewResponseDecodeFailedError creates a non-retryable response decoding error.
func NewResponseDecodeFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeResponseDecodeFailed,
		Message:   "Failed to decode popup server response",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDefinitionInvalidError creates a non-retryable definition validation error.
func NewDefinitionInvalidError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeDefinitionInvalid,
		Message:   "Popup definition failed schema validation",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewConditionParseError creates a non-retryable condition parse error.
func NewConditionParseError(expr string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeConditionParseError,
		Message:   "Failed to parse when condition",
		Details:   fmt.Sprintf("expr: %s, error: %s", expr, err.Error()),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewTemplateNotFoundError creates a non-retryable template error.
func NewTemplateNotFoundError(name string) *StandardError {
	return &StandardError{
		Code:      ErrCodeTemplateNotFound,
		Message:   "Template not found in registry",
		Details:   fmt.Sprintf("template: %s", name),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewTemplateParamMissingError creates a non-retryable missing parameter error.
func NewTemplateParamMissingError(template, param string) *StandardError {
	return &StandardError{
		Code:      ErrCodeTemplateParamMissing,
		Message:   "Required template parameter not provided",
		Details:   fmt.Sprintf("template: %s, param: %s", template, param),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewTemplateRenderFailedError creates a non-retryable render error.
func NewTemplateRenderFailedError(template string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeTemplateRenderFailed,
		Message:   "Template rendering failed",
		Details:   fmt.Sprintf("template: %s, error: %s", template, err.Error()),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewRegistryLoadFailedError creates a non-retryable registry load error.
func NewRegistryLoadFailedError(path string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeRegistryLoadFailed,
		Message:   "Failed to load template registry",
		Details:   fmt.Sprintf("path: %s, error: %s", path, err.Error()),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 3. Utility Functions
// ==========================

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	switch code {
	case ErrCodeRequestTimeout, ErrCodeConnectionFailed:
		return true
	default:
		return false
	}
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "AUTH"):
		return "AUTH"
	case strings.Contains(codeStr, "TIMEOUT") || strings.Contains(codeStr, "CONNECTION"):
		return "TRANSPORT"
	case strings.Contains(codeStr, "ENCODE") || strings.Contains(codeStr, "DECODE"):
		return "CODEC"
	case strings.Contains(codeStr, "TEMPLATE") || strings.Contains(codeStr, "REGISTRY"):
		return "TEMPLATE"
	case strings.Contains(codeStr, "DEFINITION") || strings.Contains(codeStr, "CONDITION"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
