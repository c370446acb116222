package app

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"realmsteward.io/steward/internal/api/handlers"
	"realmsteward.io/steward/internal/api/middleware"
	"realmsteward.io/steward/internal/config"
)

// defaultAllowedOrigins is used when server.allowed_origins is empty.
var defaultAllowedOrigins = []string{
	"http://localhost:3000",
	"http://localhost:5173",
}

func newRouter(cfg *config.Config, server *handlers.Server, jwtCfg middleware.JWTConfig, registry *prometheus.Registry) *gin.Engine {
	router := gin.New()
	router.Use(middleware.Recovery(), middleware.RequestID(), middleware.ErrorHandler())
	router.Use(cors.New(buildCORSConfig(cfg)))

	if registry != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	}

	handlers.RegisterRoutes(router.Group("/api/v1"), server, handlers.RouteGuards{
		Authenticated: []gin.HandlerFunc{middleware.JWTAuth(jwtCfg)},
		Admin:         []gin.HandlerFunc{middleware.RequireAdmin(cfg.Security.AdminRole)},
		Pipeline:      []gin.HandlerFunc{middleware.PipelineAuth(cfg.Security.PipelineTokenHash)},
	})
	return router
}

// buildCORSConfig never combines a wildcard origin with credentials. A "*"
// entry is honoured only with server.unsafe_allow_all_origins, which also
// disables credentials.
func buildCORSConfig(cfg *config.Config) cors.Config {
	c := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:    []string{middleware.RequestIDHeader},
		AllowCredentials: cfg.Server.AllowCredentials,
		MaxAge:           12 * time.Hour,
	}

	if cfg.Server.UnsafeAllowAllOrigins {
		c.AllowAllOrigins = true
		c.AllowCredentials = false
		return c
	}

	origins := make([]string, 0, len(cfg.Server.AllowedOrigins))
	for _, o := range cfg.Server.AllowedOrigins {
		o = strings.TrimSpace(o)
		if o == "" || o == "*" {
			continue
		}
		origins = append(origins, o)
	}
	if len(origins) == 0 {
		origins = append(origins, defaultAllowedOrigins...)
	}
	c.AllowOrigins = origins
	return c
}
