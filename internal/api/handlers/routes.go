package handlers

import (
	"github.com/gin-gonic/gin"
)

// RouteGuards are the per-group middleware chains applied by RegisterRoutes.
type RouteGuards struct {
	// Authenticated resolves the actor for user-facing routes.
	Authenticated []gin.HandlerFunc
	// Admin runs after Authenticated on /admin routes.
	Admin []gin.HandlerFunc
	// Pipeline authenticates CI callbacks.
	Pipeline []gin.HandlerFunc
}

// RegisterRoutes mounts every endpoint below api (normally /api/v1).
func RegisterRoutes(api *gin.RouterGroup, s *Server, g RouteGuards) {
	health := api.Group("/health")
	health.GET("/live", s.GetLiveness)
	health.GET("/ready", s.GetReadiness)

	authed := api.Group("", g.Authenticated...)
	authed.POST("/realms", s.CreateRealm)
	authed.GET("/realms", s.ListRealms)
	authed.GET("/realms/:id", s.GetRealm)
	authed.PUT("/realms/:id", s.UpdateRealm)
	authed.GET("/realms/:id/info", s.GetRealmInfo)

	admin := authed.Group("/admin", g.Admin...)
	admin.POST("/realms/:id/approve", s.ApproveRealm)
	admin.POST("/realms/:id/decline", s.DeclineRealm)
	admin.POST("/realms/:id/restore", s.RestoreRealm)
	admin.POST("/realms/:id/restore-archived", s.RestoreArchivedRealm)
	admin.DELETE("/realms/:id", s.DeleteRealm)
	admin.GET("/realms/:id/events", s.ListRealmEvents)

	pipeline := api.Group("/pipeline", g.Pipeline...)
	pipeline.PUT("/results", s.PutPipelineResults)
}
