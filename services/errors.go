package services

import (
	"errors"
	"fmt"
)

// ErrorType represents the type/category of error
type ErrorType string

const (
	ErrorTypeValidation    ErrorType = "validation"
	ErrorTypeRateLimit     ErrorType = "rate_limit"
	ErrorTypeConfiguration ErrorType = "configuration"
	ErrorTypeExternal      ErrorType = "external"
	ErrorTypeInternal      ErrorType = "internal"
)

// ErrorCode narrows an ErrorType to the specific failure
type ErrorCode string

const (
	CodeEmptyQuery           ErrorCode = "empty_query"
	CodeQueryTooLong         ErrorCode = "query_too_long"
	CodeRateLimitExceeded    ErrorCode = "rate_limit_exceeded"
	CodeConfigurationMissing ErrorCode = "configuration_missing"
	CodeEmbeddingFailed      ErrorCode = "embedding_failed"
	CodeSearchFailed         ErrorCode = "search_failed"
	CodeTitleLookupFailed    ErrorCode = "title_lookup_failed"
	CodeGenerationFailed     ErrorCode = "generation_failed"
)

// DomainError represents a structured error with additional context.
// Message is safe to show to the caller; Err carries the underlying cause.
type DomainError struct {
	Type    ErrorType
	Code    ErrorCode
	Message string
	Err     error
	Details map[string]interface{}
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is. Errors match on Type, and on Code when the target sets one.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	if e.Type != t.Type {
		return false
	}
	return t.Code == "" || e.Code == t.Code
}

// WithDetail adds a detail to the error
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewDomainError creates a new domain error
func NewDomainError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}

// NewCodedError creates a domain error with a specific code
func NewCodedError(errType ErrorType, code ErrorCode, message string, err error) *DomainError {
	e := NewDomainError(errType, message, err)
	e.Code = code
	return e
}

// Domain error variables, used as errors.Is targets

var (
	ErrEmptyQuery           = NewCodedError(ErrorTypeValidation, CodeEmptyQuery, "Query is required", nil)
	ErrQueryTooLong         = NewCodedError(ErrorTypeValidation, CodeQueryTooLong, "Query too long", nil)
	ErrRateLimitExceeded    = NewCodedError(ErrorTypeRateLimit, CodeRateLimitExceeded, "Rate limit exceeded. Please wait a minute.", nil)
	ErrConfigurationMissing = NewCodedError(ErrorTypeConfiguration, CodeConfigurationMissing, "configuration missing", nil)

	ErrEmbeddingFailed   = NewCodedError(ErrorTypeExternal, CodeEmbeddingFailed, "embedding failed", nil)
	ErrSearchFailed      = NewCodedError(ErrorTypeExternal, CodeSearchFailed, "search failed", nil)
	ErrTitleLookupFailed = NewCodedError(ErrorTypeExternal, CodeTitleLookupFailed, "title lookup failed", nil)
	ErrGenerationFailed  = NewCodedError(ErrorTypeExternal, CodeGenerationFailed, "generation failed", nil)
)

// Constructors for the request-time failures

// NewQueryTooLongError reports the configured maximum in its message
func NewQueryTooLongError(max int) *DomainError {
	return NewCodedError(ErrorTypeValidation, CodeQueryTooLong,
		fmt.Sprintf("Query too long. Maximum %d characters allowed.", max), nil).
		WithDetail("max_length", max)
}

// NewConfigurationMissingError reports an unconfigured collaborator
func NewConfigurationMissingError(what string) *DomainError {
	return NewCodedError(ErrorTypeConfiguration, CodeConfigurationMissing,
		fmt.Sprintf("Missing configuration: %s", what), nil)
}

// NewCollaboratorError wraps a collaborator failure; the message carries
// the prefix for the stage followed by the collaborator's own message.
func NewCollaboratorError(code ErrorCode, err error) *DomainError {
	return NewCodedError(ErrorTypeExternal, code, fmt.Sprintf("%s: %v", stagePrefix(code), err), err)
}

func stagePrefix(code ErrorCode) string {
	switch code {
	case CodeEmbeddingFailed:
		return "Embedding error"
	case CodeSearchFailed:
		return "Search error"
	case CodeTitleLookupFailed:
		return "Title lookup error"
	case CodeGenerationFailed:
		return "Generation error"
	default:
		return "Collaborator error"
	}
}

// Error type checking helper functions

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeValidation
	}
	return false
}

// IsRateLimitError checks if an error is a rate limit error
func IsRateLimitError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeRateLimit
	}
	return false
}

// IsConfigurationError checks if an error is a missing configuration error
func IsConfigurationError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeConfiguration
	}
	return false
}

// IsInternalError checks if an error is an internal error
func IsInternalError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeInternal
	}
	return false
}

// IsExternalError checks if an error is a collaborator error
func IsExternalError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeExternal
	}
	return false
}

// GetErrorType returns the ErrorType of a domain error, or empty string if not a domain error
func GetErrorType(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ""
}

// GetErrorCode returns the ErrorCode of a domain error, or empty string if not a domain error
func GetErrorCode(err error) ErrorCode {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return ""
}

// GetErrorMessage returns the caller-facing message of a domain error, or err.Error() otherwise
func GetErrorMessage(err error) string {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Message
	}
	return err.Error()
}

// GetErrorDetails returns the details map of a domain error, or nil if not a domain error
func GetErrorDetails(err error) map[string]interface{} {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Details
	}
	return nil
}

// WrapInternal wraps an error as an internal error
func WrapInternal(message string, err error) error {
	return NewDomainError(ErrorTypeInternal, message, err)
}
