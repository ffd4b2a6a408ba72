package observability

import (
	"context"
)

// Context keys for observability
type contextKey string

const (
	requestIDKey contextKey = "request_id"
	operationKey contextKey = "operation"
)

// WithRequestID adds request ID to context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// GetRequestID gets the request ID from context
func GetRequestID(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// WithOperation adds operation name to context
func WithOperation(ctx context.Context, operation string) context.Context {
	return context.WithValue(ctx, operationKey, operation)
}

// GetOperation gets the operation name from context
func GetOperation(ctx context.Context) string {
	if v, ok := ctx.Value(operationKey).(string); ok {
		return v
	}
	return ""
}

// ContextFields returns the observability metadata in ctx as log fields
func ContextFields(ctx context.Context) map[string]interface{} {
	fields := make(map[string]interface{})
	if requestID := GetRequestID(ctx); requestID != "" {
		fields["request_id"] = requestID
	}
	if operation := GetOperation(ctx); operation != "" {
		fields["operation"] = operation
	}
	return fields
}

// LoggerFromContext returns logger enriched with the metadata in ctx
func LoggerFromContext(ctx context.Context, logger Logger) Logger {
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(fields)
}
