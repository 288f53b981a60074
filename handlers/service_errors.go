package handlers

import (
	"net/http"

	"github.com/upb/paper-rag/services"
	"github.com/upb/paper-rag/utils"
	"go.uber.org/zap"
)

// genericErrorMessage replaces server-side messages when they must not reach the client
const genericErrorMessage = "Internal server error"

// HandleServiceError maps domain errors to HTTP responses.
// Server-side failures pass their message through only when exposeMessages is set.
func HandleServiceError(w http.ResponseWriter, err error, logger *zap.Logger, exposeMessages bool) {
	if err == nil {
		return
	}

	message := services.GetErrorMessage(err)

	var writeErr error
	switch {
	case services.IsValidationError(err):
		logger.Warn("request rejected",
			zap.String("error_code", string(services.GetErrorCode(err))),
			zap.String("reason", message),
			zap.Any("details", services.GetErrorDetails(err)))
		writeErr = utils.WriteBadRequest(w, message)

	case services.IsRateLimitError(err):
		logger.Warn("rate limit exceeded")
		writeErr = utils.WriteTooManyRequests(w, message)

	case services.IsConfigurationError(err), services.IsExternalError(err):
		logger.Error("chat request failed",
			zap.String("error_type", string(services.GetErrorType(err))),
			zap.String("error_code", string(services.GetErrorCode(err))),
			zap.Error(err))
		if !exposeMessages || message == "" {
			message = genericErrorMessage
		}
		writeErr = utils.WriteInternalServerError(w, message)

	case services.IsInternalError(err):
		// internal messages describe our own plumbing and never reach the client
		logger.Error("internal server error", zap.String("reason", message), zap.Error(err))
		writeErr = utils.WriteInternalServerError(w, genericErrorMessage)

	default:
		logger.Error("internal server error",
			zap.String("error_type", string(services.GetErrorType(err))),
			zap.Error(err))
		if !exposeMessages || message == "" {
			message = genericErrorMessage
		}
		writeErr = utils.WriteInternalServerError(w, message)
	}

	if writeErr != nil {
		logger.Error("failed to write error response", zap.Error(writeErr))
	}
}
