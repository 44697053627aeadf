package core

import "context"

type ctxKey int

const (
	principalKey ctxKey = iota
	correlationKey
)

// WithPrincipal returns a context carrying the authenticated principal.
// The gate attaches it once a request is admitted; handlers read it back
// with PrincipalFromContext. Raw tokens never travel in the context.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext returns the principal attached by the gate, or
// ok=false for requests that never passed it.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey).(*Principal)
	return p, ok
}

// WithCorrelationID returns a context carrying the request correlation ID.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey, id)
}

// CorrelationIDFromContext returns the request correlation ID, or "" when
// the correlation middleware did not run.
func CorrelationIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey).(string)
	return id
}
