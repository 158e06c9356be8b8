package logger

import "context"

type ctxKey int

const (
	loggerKey ctxKey = iota
	requestIDKey
	attrsKey
)

// WithLogger stores l in ctx.
func WithLogger(ctx context.Context, l Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// FromContext returns the logger stored in ctx, or Default().
func FromContext(ctx context.Context) Logger {
	if l, ok := ctx.Value(loggerKey).(Logger); ok {
		return l
	}
	return Default()
}

// WithRequestID stores the HTTP request ID in ctx.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext returns the request ID stored in ctx, or "".
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// WithAttrs returns a context carrying extra key/value pairs for log
// records. Pairs accumulate across calls; the parent is not modified.
func WithAttrs(ctx context.Context, args ...any) context.Context {
	if len(args) == 0 {
		return ctx
	}
	prev, _ := ctx.Value(attrsKey).([]any)
	merged := make([]any, 0, len(prev)+len(args))
	merged = append(merged, prev...)
	merged = append(merged, args...)
	return context.WithValue(ctx, attrsKey, merged)
}

// ContextAttrs returns the request ID and WithAttrs pairs carried by ctx,
// ready to pass to Logger.With.
func ContextAttrs(ctx context.Context) []any {
	var attrs []any
	if id := RequestIDFromContext(ctx); id != "" {
		attrs = append(attrs, "request_id", id)
	}
	if extra, ok := ctx.Value(attrsKey).([]any); ok {
		attrs = append(attrs, extra...)
	}
	return attrs
}

// L returns the context's logger enriched with ContextAttrs.
func L(ctx context.Context) Logger {
	l := FromContext(ctx)
	if attrs := ContextAttrs(ctx); len(attrs) > 0 {
		l = l.With(attrs...)
	}
	return l
}
