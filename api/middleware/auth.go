// Package middleware guards the RPC endpoint. The health route is mounted
// outside this chain.
package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/harvest/models"
)

// errorBody is the JSON shape for requests rejected before they reach a tool.
type errorBody struct {
	Error *models.ErrorDetail `json:"error"`
}

// abortWith rejects the request with a coded error body.
func abortWith(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, errorBody{
		Error: &models.ErrorDetail{Code: code, Message: msg},
	})
}

// keyRing holds the configured API keys as raw bytes.
type keyRing [][]byte

func newKeyRing(keys []string) keyRing {
	ring := make(keyRing, 0, len(keys))
	for _, k := range keys {
		if k != "" {
			ring = append(ring, []byte(k))
		}
	}
	return ring
}

// contains matches candidate against every key in constant time per key.
func (r keyRing) contains(candidate string) bool {
	raw := []byte(candidate)
	found := false
	for _, k := range r {
		if subtle.ConstantTimeCompare(k, raw) == 1 {
			found = true
		}
	}
	return found
}

// Auth returns API-key authentication middleware. The key arrives either as
//
//	X-API-Key: <key>
//	Authorization: Bearer <key>
//
// With no configured keys the middleware passes everything through.
func Auth(apiKeys []string) gin.HandlerFunc {
	ring := newKeyRing(apiKeys)
	if len(ring) == 0 {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		key := apiKeyFrom(c)
		switch {
		case key == "":
			abortWith(c, http.StatusUnauthorized, models.ErrCodeUnauthorized,
				"missing API key: provide X-API-Key header or Authorization: Bearer <key>")
		case !ring.contains(key):
			abortWith(c, http.StatusUnauthorized, models.ErrCodeUnauthorized,
				"invalid API key")
		default:
			c.Set("api_key", key)
			c.Next()
		}
	}
}

// apiKeyFrom pulls the key from X-API-Key or a bearer Authorization header.
func apiKeyFrom(c *gin.Context) string {
	if key := c.GetHeader("X-API-Key"); key != "" {
		return key
	}
	if token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer "); ok {
		return token
	}
	return ""
}
