// Package requestcontext carries per-request values (request ID, client IP,
// authenticated issuer) through context.Context.
package requestcontext

import "context"

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	clientIPKey  contextKey = "client_ip"
	issuerIDKey  contextKey = "issuer_id"
)

// WithRequestID stores the correlation ID for the current request.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestID returns the correlation ID, or "" when none is set.
func RequestID(ctx context.Context) string {
	v, _ := ctx.Value(requestIDKey).(string)
	return v
}

// WithClientIP stores the caller's address.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey, ip)
}

// ClientIP returns the caller's address, or "" when none is set.
func ClientIP(ctx context.Context) string {
	v, _ := ctx.Value(clientIPKey).(string)
	return v
}

// WithIssuerID marks the request as made by an authorized issuer.
func WithIssuerID(ctx context.Context, issuerID string) context.Context {
	return context.WithValue(ctx, issuerIDKey, issuerID)
}

// IssuerID returns the authorized issuer, or "" for anonymous callers.
func IssuerID(ctx context.Context) string {
	v, _ := ctx.Value(issuerIDKey).(string)
	return v
}
