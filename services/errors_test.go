package services

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDomainError(t *testing.T) {
	baseErr := errors.New("base error")
	domainErr := NewDomainError(ErrorTypeInternal, "query log failed", baseErr)

	assert.Equal(t, ErrorTypeInternal, domainErr.Type)
	assert.Empty(t, domainErr.Code)
	assert.Equal(t, "query log failed", domainErr.Message)
	assert.Equal(t, baseErr, domainErr.Err)
	assert.NotNil(t, domainErr.Details)
}

func TestDomainError_Error(t *testing.T) {
	tests := []struct {
		name    string
		err     *DomainError
		wantMsg string
	}{
		{
			name: "error with wrapped error",
			err: &DomainError{
				Type:    ErrorTypeExternal,
				Message: "Search error: timeout",
				Err:     errors.New("timeout"),
			},
			wantMsg: "external: Search error: timeout (timeout)",
		},
		{
			name: "error without wrapped error",
			err: &DomainError{
				Type:    ErrorTypeValidation,
				Message: "Query is required",
			},
			wantMsg: "validation: Query is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantMsg, tt.err.Error())
		})
	}
}

func TestDomainError_Unwrap(t *testing.T) {
	baseErr := errors.New("connection refused")
	domainErr := NewCollaboratorError(CodeSearchFailed, baseErr)

	assert.Equal(t, baseErr, errors.Unwrap(domainErr))
	assert.True(t, errors.Is(domainErr, baseErr))
}

func TestDomainError_Is(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
		want   bool
	}{
		{
			name:   "same type and code",
			err:    NewQueryTooLongError(500),
			target: ErrQueryTooLong,
			want:   true,
		},
		{
			name:   "same type different code",
			err:    NewQueryTooLongError(500),
			target: ErrEmptyQuery,
			want:   false,
		},
		{
			name:   "target without code matches any code of the type",
			err:    NewCollaboratorError(CodeGenerationFailed, errors.New("boom")),
			target: NewDomainError(ErrorTypeExternal, "any", nil),
			want:   true,
		},
		{
			name:   "different type",
			err:    NewConfigurationMissingError("OPENAI_API_KEY"),
			target: ErrSearchFailed,
			want:   false,
		},
		{
			name:   "wrapped domain error",
			err:    fmt.Errorf("pipeline: %w", NewCollaboratorError(CodeSearchFailed, errors.New("x"))),
			target: ErrSearchFailed,
			want:   true,
		},
		{
			name:   "non-domain error",
			err:    errors.New("plain"),
			target: ErrSearchFailed,
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errors.Is(tt.err, tt.target))
		})
	}
}

func TestDomainError_WithDetail(t *testing.T) {
	err := NewDomainError(ErrorTypeRateLimit, "limited", nil).
		WithDetail("retry_after", 60).
		WithDetail("remaining", 0)

	assert.Equal(t, 60, err.Details["retry_after"])
	assert.Equal(t, 0, err.Details["remaining"])

	bare := &DomainError{Type: ErrorTypeInternal}
	bare.WithDetail("k", "v")
	assert.Equal(t, "v", bare.Details["k"])
}

func TestNewQueryTooLongError(t *testing.T) {
	err := NewQueryTooLongError(500)

	assert.Equal(t, "Query too long. Maximum 500 characters allowed.", err.Message)
	assert.Equal(t, 500, err.Details["max_length"])
	assert.True(t, IsValidationError(err))

	assert.Equal(t, "Query too long. Maximum 120 characters allowed.", NewQueryTooLongError(120).Message)
}

func TestNewCollaboratorError(t *testing.T) {
	cause := errors.New("upstream unavailable")

	tests := []struct {
		code ErrorCode
		want string
	}{
		{code: CodeEmbeddingFailed, want: "Embedding error: upstream unavailable"},
		{code: CodeSearchFailed, want: "Search error: upstream unavailable"},
		{code: CodeTitleLookupFailed, want: "Title lookup error: upstream unavailable"},
		{code: CodeGenerationFailed, want: "Generation error: upstream unavailable"},
		{code: ErrorCode("other"), want: "Collaborator error: upstream unavailable"},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			err := NewCollaboratorError(tt.code, cause)
			assert.Equal(t, tt.want, err.Message)
			assert.Equal(t, tt.code, err.Code)
			assert.True(t, IsExternalError(err))
		})
	}
}

func TestErrorTypeCheckers(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		checker func(error) bool
		want    bool
	}{
		{"validation", ErrEmptyQuery, IsValidationError, true},
		{"rate limit", ErrRateLimitExceeded, IsRateLimitError, true},
		{"configuration", NewConfigurationMissingError("x"), IsConfigurationError, true},
		{"external", ErrGenerationFailed, IsExternalError, true},
		{"internal", WrapInternal("db", errors.New("x")), IsInternalError, true},
		{"external wrapped", NewCollaboratorError(CodeSearchFailed, errors.New("x")), IsExternalError, true},
		{"mismatch", ErrEmptyQuery, IsRateLimitError, false},
		{"plain error", errors.New("x"), IsValidationError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.checker(tt.err))
		})
	}
}

func TestErrorAccessors(t *testing.T) {
	err := fmt.Errorf("wrap: %w", NewQueryTooLongError(10))

	assert.Equal(t, ErrorTypeValidation, GetErrorType(err))
	assert.Equal(t, CodeQueryTooLong, GetErrorCode(err))
	assert.Equal(t, "Query too long. Maximum 10 characters allowed.", GetErrorMessage(err))
	require.NotNil(t, GetErrorDetails(err))

	plain := errors.New("plain failure")
	assert.Empty(t, GetErrorType(plain))
	assert.Empty(t, GetErrorCode(plain))
	assert.Equal(t, "plain failure", GetErrorMessage(plain))
	assert.Nil(t, GetErrorDetails(plain))
}
