package logger

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

type ctxKey struct{}

type fieldsKey struct{}

// ContextWithLogger stores a logger in the context.
func ContextWithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext extracts a logger from the context.
// Returns zap.NewNop() if no logger is found.
func FromContext(ctx context.Context) *zap.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*zap.Logger); ok {
		return l
	}
	return zap.NewNop()
}

// Fields collects request-scoped fields for the canonical request log line.
type Fields struct {
	mu     sync.Mutex
	fields []zap.Field
}

// ContextWithFields attaches an empty field collector to the context.
func ContextWithFields(ctx context.Context) (context.Context, *Fields) {
	f := &Fields{}
	return context.WithValue(ctx, fieldsKey{}, f), f
}

// Annotate appends fields to the request's canonical log line.
// It is a no-op when the context carries no collector.
func Annotate(ctx context.Context, fields ...zap.Field) {
	f, ok := ctx.Value(fieldsKey{}).(*Fields)
	if !ok {
		return
	}
	f.mu.Lock()
	f.fields = append(f.fields, fields...)
	f.mu.Unlock()
}

// List returns a copy of the collected fields.
func (f *Fields) List() []zap.Field {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]zap.Field, len(f.fields))
	copy(out, f.fields)
	return out
}
