// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements the admin surface's static API-key check. The key is
// compared in constant time against the configured secret, and the middleware
// fails closed: when no secret is configured at all, every admin request is
// rejected rather than allowed through.
package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// APIKeyHeader is the header admin clients authenticate with.
const APIKeyHeader = "X-API-Key"

// APIKeyAuth returns a middleware that requires the X-API-Key header to match
// expected. An empty expected secret rejects all requests (and logs a warning
// once per request, since a misconfigured deployment should be loud).
func APIKeyAuth(expected string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if expected == "" {
			log.Warn().Msg("admin API key not configured; rejecting admin request")
			unauthorized(c)
			return
		}
		got := c.GetHeader(APIKeyHeader)
		if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(expected)) != 1 {
			unauthorized(c)
			return
		}
		c.Next()
	}
}

func unauthorized(c *gin.Context) {
	rid, _ := c.Get(requestIDKey)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"request_id": asString(rid),
		"code":       "unauthorized",
		"message":    "unauthorized",
	})
}
