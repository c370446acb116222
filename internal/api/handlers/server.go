// Package handlers maps HTTP requests onto lifecycle operations.
//
// Handlers stay thin: they decode the request, resolve the actor from the
// request context and delegate to the lifecycle controller. Every error is
// reported through c.Error and rendered by middleware.ErrorHandler.
package handlers

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"

	"realmsteward.io/steward/internal/api/middleware"
	"realmsteward.io/steward/internal/governance/authz"
	"realmsteward.io/steward/internal/lifecycle"
	apperrors "realmsteward.io/steward/internal/pkg/errors"
)

// Pinger reports database reachability for the readiness probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server holds the handler dependencies.
type Server struct {
	lifecycle *lifecycle.Controller
	db        Pinger
}

// ServerDeps holds all dependencies for creating a Server.
// Manual DI: the composition root fills it in.
type ServerDeps struct {
	Lifecycle *lifecycle.Controller
	// DB is nil in memory mode; readiness then reports no database check.
	DB Pinger
}

// NewServer creates a new Server with all dependencies.
func NewServer(deps ServerDeps) *Server {
	return &Server{
		lifecycle: deps.Lifecycle,
		db:        deps.DB,
	}
}

func actorOf(c *gin.Context) authz.Actor {
	return middleware.ActorFrom(c.Request.Context())
}

// realmID parses the :id path parameter. Malformed ids are treated like
// unknown ones.
func realmID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		fail(c, apperrors.BadRequest(apperrors.CodeInvalidRequest, "realm request not found"))
		return 0, false
	}
	return id, true
}

// bindJSON decodes the body into dst. Unknown keys are ignored.
func bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		fail(c, apperrors.BadRequest(apperrors.CodeInvalidRequest, "malformed request body").WithParams(map[string]interface{}{
			"reason": err.Error(),
		}))
		return false
	}
	return true
}

func fail(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}
