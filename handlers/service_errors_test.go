package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/paper-rag/services"
	"github.com/upb/paper-rag/utils"
	"go.uber.org/zap"
)

func TestHandleServiceError(t *testing.T) {
	logger := zap.NewNop()

	tests := []struct {
		name           string
		err            error
		expose         bool
		expectedStatus int
		expectedError  string
	}{
		{
			name:           "empty query",
			err:            services.ErrEmptyQuery,
			expose:         true,
			expectedStatus: http.StatusBadRequest,
			expectedError:  "Query is required",
		},
		{
			name:           "query too long",
			err:            services.NewQueryTooLongError(500),
			expose:         false,
			expectedStatus: http.StatusBadRequest,
			expectedError:  "Query too long. Maximum 500 characters allowed.",
		},
		{
			name:           "rate limit",
			err:            services.ErrRateLimitExceeded,
			expose:         true,
			expectedStatus: http.StatusTooManyRequests,
			expectedError:  "Rate limit exceeded. Please wait a minute.",
		},
		{
			name:           "collaborator error exposed",
			err:            services.NewCollaboratorError(services.CodeSearchFailed, errors.New("timeout")),
			expose:         true,
			expectedStatus: http.StatusInternalServerError,
			expectedError:  "Search error: timeout",
		},
		{
			name:           "collaborator error hidden",
			err:            services.NewCollaboratorError(services.CodeSearchFailed, errors.New("timeout")),
			expose:         false,
			expectedStatus: http.StatusInternalServerError,
			expectedError:  "Internal server error",
		},
		{
			name:           "configuration missing",
			err:            services.NewConfigurationMissingError("generation provider"),
			expose:         true,
			expectedStatus: http.StatusInternalServerError,
			expectedError:  services.GetErrorMessage(services.NewConfigurationMissingError("generation provider")),
		},
		{
			name:           "internal error is never exposed",
			err:            services.WrapInternal("rate limiter unavailable", errors.New("dial tcp: refused")),
			expose:         true,
			expectedStatus: http.StatusInternalServerError,
			expectedError:  "Internal server error",
		},
		{
			name:           "plain error",
			err:            errors.New("boom"),
			expose:         true,
			expectedStatus: http.StatusInternalServerError,
			expectedError:  "boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			HandleServiceError(w, tt.err, logger, tt.expose)

			assert.Equal(t, tt.expectedStatus, w.Code)

			var response utils.ErrorResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
			assert.Equal(t, tt.expectedError, response.Error)
		})
	}
}

func TestHandleServiceError_NilError(t *testing.T) {
	w := httptest.NewRecorder()
	HandleServiceError(w, nil, zap.NewNop(), true)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())
}
