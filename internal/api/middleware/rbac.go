package middleware

import (
	"github.com/gin-gonic/gin"

	apperrors "realmsteward.io/steward/internal/pkg/errors"
)

// RequireAdmin rejects actors without the admin role claim. It must run
// after JWTAuth. Record-level permissions stay with the lifecycle controller;
// this gate only guards whole route groups.
func RequireAdmin(adminRole string) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := ActorFrom(c.Request.Context())
		if !actor.Authenticated() {
			abortWith(c, apperrors.ErrUnauthenticated())
			return
		}
		if !actor.IsAdmin(adminRole) {
			abortWith(c, apperrors.Forbidden(apperrors.CodeForbidden, "admin role required"))
			return
		}
		c.Next()
	}
}
