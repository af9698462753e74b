package auth

import "context"

type contextKey struct{}

var sessionContextKey = contextKey{}

// ContextWithSession attaches the validated session record to the
// request context. Only the access gate writes it.
func ContextWithSession(ctx context.Context, session Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, session)
}

// SessionFromContext returns the session record attached by the access
// gate. Handlers must use this record, not client cookies, for any
// authorization decision.
func SessionFromContext(ctx context.Context) (Session, bool) {
	session, ok := ctx.Value(sessionContextKey).(Session)
	return session, ok
}
