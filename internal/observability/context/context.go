// Package context carries request-scoped correlation values used by logging
// and tracing.
package context

import "context"

type requestIDKey struct{}
type businessIDKey struct{}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey{}).(string); ok {
		return v
	}
	return ""
}

func WithBusinessID(ctx context.Context, businessID string) context.Context {
	if businessID == "" {
		return ctx
	}
	return context.WithValue(ctx, businessIDKey{}, businessID)
}

func BusinessIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(businessIDKey{}).(string); ok {
		return v
	}
	return ""
}
