// Package api wires the admin/control HTTP surface: a gin.Engine
// exposing health, rule management, whitelist management, stats, a
// one-shot threat analyzer, and the no-browser /scan endpoint.
// Grounded on the teacher's api/router.go, which lays out the same
// global-middleware-then-protected-group shape.
package api

import (
	"github.com/gin-gonic/gin"

	"github.com/hybridguard/filterengine/api/handler"
	"github.com/hybridguard/filterengine/api/middleware"
	"github.com/hybridguard/filterengine/config"
)

// NewRouter creates a configured Gin engine with all routes and
// middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if enabled) → RateLimit
//
// Health endpoint is intentionally outside auth so monitoring probes
// always work.
func NewRouter(a *handler.App, cfg *config.Config) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	v1 := r.Group("/api/v1")

	// Health — no auth required.
	v1.GET("/health", handler.Health(a))

	// Protected group — auth + rate limit.
	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(cfg.RateLimit))

	protected.POST("/rules/custom", handler.PostCustomRule(a))
	protected.GET("/rules", handler.GetRules(a))

	protected.GET("/whitelist", handler.GetWhitelist(a))
	protected.POST("/whitelist", handler.PostWhitelist(a))
	protected.DELETE("/whitelist", handler.DeleteWhitelist(a))

	protected.GET("/stats", handler.GetStats(a))

	protected.POST("/threat/analyze", handler.PostThreatAnalyze(a))

	protected.POST("/scan", handler.PostScan(a))

	return r
}
