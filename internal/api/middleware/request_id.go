package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"realmsteward.io/steward/internal/governance/authz"
)

type contextKey string

const (
	// RequestIDHeader is the HTTP header for request tracing.
	RequestIDHeader = "X-Request-ID"

	ctxKeyRequestID contextKey = "request_id"
	ctxKeyActor     contextKey = "actor"
)

// RequestID injects a unique request ID into the context and response header.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(RequestIDHeader)
		if rid == "" {
			id, _ := uuid.NewV7()
			rid = id.String()
		}
		c.Set(string(ctxKeyRequestID), rid)
		c.Writer.Header().Set(RequestIDHeader, rid)
		c.Request = c.Request.WithContext(
			context.WithValue(c.Request.Context(), ctxKeyRequestID, rid),
		)
		c.Next()
	}
}

// GetRequestID extracts request ID from context.
func GetRequestID(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyRequestID).(string); ok {
		return v
	}
	return ""
}

// WithActor stores the authenticated actor in ctx.
func WithActor(ctx context.Context, actor authz.Actor) context.Context {
	return context.WithValue(ctx, ctxKeyActor, actor)
}

// ActorFrom returns the authenticated actor, or the zero Actor when the
// request carried no valid token.
func ActorFrom(ctx context.Context) authz.Actor {
	if v, ok := ctx.Value(ctxKeyActor).(authz.Actor); ok {
		return v
	}
	return authz.Actor{}
}
