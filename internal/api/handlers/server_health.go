package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Health is the probe response body.
type Health struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// GetLiveness handles GET /health/live.
func (s *Server) GetLiveness(c *gin.Context) {
	c.JSON(http.StatusOK, Health{Status: "ok"})
}

// GetReadiness handles GET /health/ready.
func (s *Server) GetReadiness(c *gin.Context) {
	if s.db == nil {
		c.JSON(http.StatusOK, Health{Status: "ok"})
		return
	}

	checks := make(map[string]string)
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := s.db.Ping(ctx); err != nil {
		checks["database"] = "error"
		c.JSON(http.StatusServiceUnavailable, Health{Status: "degraded", Checks: checks})
		return
	}
	checks["database"] = "ok"
	c.JSON(http.StatusOK, Health{Status: "ok", Checks: checks})
}
