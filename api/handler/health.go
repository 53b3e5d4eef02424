// Package handler holds the plain HTTP handlers mounted beside the RPC
// endpoint.
package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/harvest/browser"
	"github.com/use-agent/harvest/cache"
)

// healthPayload is the GET /health response body.
type healthPayload struct {
	Status        string         `json:"status"`
	Version       string         `json:"version"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	Browser       browser.Status `json:"browser"`
	CacheEntries  int            `json:"cache_entries"`
}

// Health returns the liveness handler. The browser snapshot it reports is
// bounded and never waits behind a render in flight.
func Health(session *browser.Session, cc *cache.Cache, version string, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, healthPayload{
			Status:        "healthy",
			Version:       version,
			UptimeSeconds: int64(time.Since(startTime).Seconds()),
			Browser:       session.Snapshot(),
			CacheEntries:  cc.Snapshot().Entries,
		})
	}
}
