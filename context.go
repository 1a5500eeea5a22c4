package ledgerAuth

import "context"

type clientIPContextKey struct{}
type requestIDContextKey struct{}
type claimsContextKey struct{}

// WithClientIP attaches the caller's IP address to ctx. The Engine uses it
// for per-IP login throttling and audit events.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

// WithRequestID attaches a request identifier that is copied into audit
// events.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDContextKey{}, requestID)
}

// WithSessionClaims stores verified claims in ctx.
func WithSessionClaims(ctx context.Context, claims *SessionClaims) context.Context {
	return context.WithValue(ctx, claimsContextKey{}, claims)
}

// SessionClaimsFromContext returns the claims stored by WithSessionClaims.
func SessionClaimsFromContext(ctx context.Context) (*SessionClaims, bool) {
	claims := claimsFromContext(ctx)
	return claims, claims != nil
}

func claimsFromContext(ctx context.Context) *SessionClaims {
	if ctx == nil {
		return nil
	}
	claims, _ := ctx.Value(claimsContextKey{}).(*SessionClaims)
	return claims
}

func clientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	ip, _ := ctx.Value(clientIPContextKey{}).(string)
	return ip
}

func requestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDContextKey{}).(string)
	return id
}
