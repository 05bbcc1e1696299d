package middleware

import (
	"context"

	"github.com/paywallet/paywallet-backend/internal/guard"
)

type contextKey string

const (
	ctxUserID   contextKey = "user_id"
	ctxAccessID contextKey = "access_id"
	ctxIdentity contextKey = "identity"
)

func UserIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxUserID).(string); ok {
		return v
	}
	return ""
}

// AccessIDFromContext returns the session identifier for session callers.
// API key callers have no session and get an empty string.
func AccessIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxAccessID).(string); ok {
		return v
	}
	return ""
}

func IdentityFromContext(ctx context.Context) guard.Identity {
	if ctx == nil {
		return guard.Identity{}
	}
	if v, ok := ctx.Value(ctxIdentity).(guard.Identity); ok {
		return v
	}
	return guard.Identity{}
}

// WithIdentity injects the authenticated principal into the context.
func WithIdentity(ctx context.Context, identity guard.Identity) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, ctxIdentity, identity)
	return context.WithValue(ctx, ctxUserID, identity.UserID.String())
}

func withAccessID(ctx context.Context, accessID string) context.Context {
	return context.WithValue(ctx, ctxAccessID, accessID)
}
