// Package middleware provides HTTP middleware for Realm Steward.
package middleware

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apperrors "realmsteward.io/steward/internal/pkg/errors"
	"realmsteward.io/steward/internal/pkg/logger"
)

// ErrorHandler is a Gin middleware that provides centralized error handling.
// It captures errors added via c.Error() and returns a consistent JSON response.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		rid := GetRequestID(c.Request.Context())

		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			log := logger.Warn
			if appErr.HTTPStatus >= http.StatusInternalServerError {
				log = logger.Error
			}
			log("Request error",
				zap.String("request_id", rid),
				zap.String("code", appErr.Code),
				zap.String("message", appErr.Message),
				zap.Int("status", appErr.HTTPStatus),
				zap.Error(appErr.Err),
			)
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}

		// Fallback: generic 500 error
		logger.Error("Unhandled request error",
			zap.String("request_id", rid),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, apperrors.ErrProcessing(err))
	}
}

// Recovery turns a panic into a PROCESSING_ERROR response.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.Error("Recovered from panic",
			zap.String("request_id", GetRequestID(c.Request.Context())),
			zap.String("path", c.Request.URL.Path),
			zap.Any("panic", recovered),
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, apperrors.ErrProcessing(fmt.Errorf("panic: %v", recovered)))
	})
}
