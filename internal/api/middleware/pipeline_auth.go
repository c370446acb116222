package middleware

import (
	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	apperrors "realmsteward.io/steward/internal/pkg/errors"
)

// PipelineAuth accepts requests whose bearer token matches the bcrypt hash of
// the CI pipeline's shared secret. An empty hash rejects every request.
func PipelineAuth(tokenHash string) gin.HandlerFunc {
	hash := []byte(tokenHash)
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok || len(hash) == 0 {
			abortWith(c, apperrors.ErrUnauthenticated())
			return
		}
		if err := bcrypt.CompareHashAndPassword(hash, []byte(token)); err != nil {
			abortWith(c, apperrors.Unauthorized(apperrors.CodeUnauthorized, "invalid pipeline credential"))
			return
		}
		c.Next()
	}
}
