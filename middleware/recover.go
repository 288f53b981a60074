package middleware

import (
	"errors"
	"net/http"
	"runtime/debug"

	"github.com/upb/paper-rag/internal/observability"
	"github.com/upb/paper-rag/utils"
	"go.uber.org/zap"
)

// Recoverer turns a handler panic into the JSON 500 body every endpoint uses
func Recoverer(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(rec)
				}

				if logger != nil {
					observability.LoggerFromContext(r.Context(), logger).Error("panic recovered",
						zap.Any("panic", rec),
						zap.ByteString("stack", debug.Stack()))
				}
				_ = utils.WriteInternalServerError(w, "")
			}()

			next.ServeHTTP(w, r)
		})
	}
}
