package handler

import "context"

type contextKey string

// usernameKey carries the gate-verified username. Handlers read it
// instead of trusting the auth header again.
const usernameKey contextKey = "korrosync.username"

// WithUsername records the verified username in the context.
func WithUsername(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, usernameKey, username)
}

// UsernameFromContext returns the verified username, or "".
func UsernameFromContext(ctx context.Context) string {
	if username, ok := ctx.Value(usernameKey).(string); ok {
		return username
	}
	return ""
}
