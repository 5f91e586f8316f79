package fcontext

import (
	"context"
)

type (
	requestID struct{}
	sessionID struct{}
)

// WithRequestID adds request id to ctx
func WithRequestID(ctx context.Context, rid string) context.Context {
	return context.WithValue(ctx, requestID{}, rid)
}

// RequestID gets request id from context.
func RequestID(ctx context.Context) string {
	rid, _ := ctx.Value(requestID{}).(string)
	return rid
}

// WithSessionID adds id of the websocket session to ctx.
func WithSessionID(ctx context.Context, sid string) context.Context {
	return context.WithValue(ctx, sessionID{}, sid)
}

// SessionID gets session id from context.
func SessionID(ctx context.Context) string {
	sid, _ := ctx.Value(sessionID{}).(string)
	return sid
}

// ShortSecret returns a prefix of the secret which is safe to log.
func ShortSecret(secret string) string {
	const keep = 8
	if len(secret) <= keep {
		return secret
	}

	return secret[:keep] + "..."
}
