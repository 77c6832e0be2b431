// Package trace correlates log events with the operation that produced them.
//
// When the context carries a sampled OpenTelemetry span, its trace and span IDs are
// used. Otherwise a correlation ID stored with WithCorrelationID identifies the work.
package trace

import (
	"context"

	"github.com/google/uuid"
	oteltrace "go.opentelemetry.io/otel/trace"
)

type contextKey string

const correlationIDKey contextKey = "correlation_id"

// Log field names.
const (
	FieldTraceID       = "trace_id"
	FieldSpanID        = "span_id"
	FieldCorrelationID = "correlation_id"
)

// WithCorrelationID stores id in ctx. An empty id leaves ctx unchanged.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, correlationIDKey, id)
}

// CorrelationID returns the correlation ID stored in ctx.
func CorrelationID(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(correlationIDKey).(string)
	return id, ok && id != ""
}

// EnsureCorrelationID returns ctx carrying a correlation ID, generating one when absent.
func EnsureCorrelationID(ctx context.Context) (context.Context, string) {
	if id, ok := CorrelationID(ctx); ok {
		return ctx, id
	}
	id := uuid.NewString()
	return WithCorrelationID(ctx, id), id
}

// LogFields returns the identifiers to attach to a log event emitted under ctx, or nil.
func LogFields(ctx context.Context) map[string]any {
	if ctx == nil {
		return nil
	}
	fields := map[string]any{}
	if sc := oteltrace.SpanContextFromContext(ctx); sc.IsValid() {
		fields[FieldTraceID] = sc.TraceID().String()
		fields[FieldSpanID] = sc.SpanID().String()
	}
	if id, ok := CorrelationID(ctx); ok {
		fields[FieldCorrelationID] = id
	}
	if len(fields) == 0 {
		return nil
	}
	return fields
}
