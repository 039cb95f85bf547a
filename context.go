package weft

import (
	"context"
)

type contextKeyType struct{}

var contextKey = contextKeyType{}

// IntoContext attaches the span handle to a context so code further
// down a call chain (possibly on other goroutines) can parent its own
// spans explicitly.
func (s *Span) IntoContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, contextKey, s)
}

// SpanFromContext retrieves a span handle stored with IntoContext.
func SpanFromContext(ctx context.Context) (*Span, bool) {
	v := ctx.Value(contextKey)
	if v == nil {
		return nil, false
	}
	return v.(*Span), true
}

// SpanFromContextOrDisabled retrieves the context's span, or an inert
// handle on which every operation is a no-op.
func SpanFromContextOrDisabled(ctx context.Context) *Span {
	if s, ok := SpanFromContext(ctx); ok {
		return s
	}
	return disabledSpan
}
