package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
	"github.com/upb/paper-rag/utils"
)

// Headers every response carries so browser clients on any origin can read errors too
const (
	corsAllowOrigin  = "*"
	corsAllowHeaders = "authorization, x-client-info, apikey, content-type"
	corsAllowMethods = "POST, OPTIONS"
)

// CORS sets the cross-origin headers on every response, including 4xx and 5xx,
// and answers preflight requests itself. With no origins, or with "*", any
// origin is allowed; otherwise the origin is echoed only when it matches.
func CORS(allowedOrigins ...string) func(http.Handler) http.Handler {
	wildcard := len(allowedOrigins) == 0
	for _, o := range allowedOrigins {
		if o == "*" {
			wildcard = true
		}
	}
	if wildcard {
		allowedOrigins = []string{"*"}
	}

	c := cors.New(cors.Options{
		AllowedOrigins:     allowedOrigins,
		AllowedMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:     []string{"Authorization", "X-Client-Info", "Apikey", "Content-Type"},
		ExposedHeaders:     []string{HeaderRequestID, "Retry-After", "X-RateLimit-Remaining"},
		OptionsPassthrough: true,
		MaxAge:             300,
	})

	return func(next http.Handler) http.Handler {
		return c.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			if wildcard {
				h.Set("Access-Control-Allow-Origin", corsAllowOrigin)
			}
			h.Set("Access-Control-Allow-Headers", corsAllowHeaders)
			h.Set("Access-Control-Allow-Methods", corsAllowMethods)

			if r.Method == http.MethodOptions {
				_ = utils.WriteText(w, http.StatusOK, "ok")
				return
			}
			next.ServeHTTP(w, r)
		}))
	}
}
