package chat

import "context"

type contextKey string

const clientKeyKey contextKey = "client_key"

// WithClientKey stores the rate-limit identity of the caller in the context
func WithClientKey(ctx context.Context, clientKey string) context.Context {
	return context.WithValue(ctx, clientKeyKey, clientKey)
}

// ClientKeyFromContext returns the caller identity or "unknown"
func ClientKeyFromContext(ctx context.Context) string {
	if val, ok := ctx.Value(clientKeyKey).(string); ok && val != "" {
		return val
	}
	return "unknown"
}
