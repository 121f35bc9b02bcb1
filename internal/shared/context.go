package shared

import "context"

// The session rides the request context between the session middleware,
// which loads and later commits it, and the access layer, which reads the
// logged-in user from it. The unexported key keeps other packages from
// planting sessions of their own.
type sessionContextKey struct{}

// ContextWithSession attaches a loaded session to the request context.
func ContextWithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sess)
}

// SessionFromContext returns the request session, or nil outside the
// session middleware.
func SessionFromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(sessionContextKey{}).(*Session)
	return sess
}
