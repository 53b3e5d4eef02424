// Package api wires the gin router that fronts the HTTP transport: the
// health probe and the MCP endpoint with its middleware chain.
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/harvest/api/handler"
	"github.com/use-agent/harvest/api/middleware"
	"github.com/use-agent/harvest/browser"
	"github.com/use-agent/harvest/cache"
	"github.com/use-agent/harvest/config"
)

// NewRouter creates a configured gin engine.
//
// Middleware chain:
//
//	Global:  Recovery, Logger
//	/mcp:    Auth (if enabled), RateLimit (if enabled)
//
// The health endpoint is mounted outside the protected group.
func NewRouter(mcpHandler http.Handler, session *browser.Session, cc *cache.Cache, cfg *config.Config, version string, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	r.GET("/health", handler.Health(session, cc, version, startTime))

	protected := r.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	if cfg.RateLimit.Enabled {
		protected.Use(middleware.RateLimit(cfg.RateLimit))
	}

	// The streamable endpoint speaks POST for calls, GET for streams and
	// DELETE for session teardown.
	protected.Any("/mcp", gin.WrapH(mcpHandler))

	return r
}
