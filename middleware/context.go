package middleware

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/upb/paper-rag/internal/observability"
)

// HeaderRequestID carries the request ID in both directions
const HeaderRequestID = "X-Request-Id"

// RequestID attaches a request ID to the context and echoes it in the response.
// It reuses chi's request ID or the caller's header when present.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := strings.TrimSpace(r.Header.Get(HeaderRequestID))
		if reqID == "" {
			reqID = middleware.GetReqID(r.Context())
		}
		if reqID == "" {
			reqID = uuid.New().String()
		}

		w.Header().Set(HeaderRequestID, reqID)
		ctx := observability.WithRequestID(r.Context(), reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
