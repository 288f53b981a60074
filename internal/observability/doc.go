// Package observability provides structured logging, metrics, and tracing
// for the paper chat service.
//
// This package implements:
//   - zap logger construction from level and format settings
//   - Request ID propagation through context
//   - Prometheus collectors for the chat pipeline stages
//   - OpenTelemetry tracing with stdout or OTLP export
package observability
