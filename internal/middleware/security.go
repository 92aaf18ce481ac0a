package middleware

import "github.com/gin-gonic/gin"

// contentSecurityPolicy blocks everything except API calls and websocket
// upgrades back to this host; the server renders no HTML of its own.
const contentSecurityPolicy = "default-src 'none'; connect-src 'self' ws: wss:"

// SecurityHeaders hardens every response. Responses carry session rosters
// and conversation content, so caching is disabled outright.
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("Referrer-Policy", "no-referrer")
		c.Header("Content-Security-Policy", contentSecurityPolicy)
		c.Header("Cache-Control", "no-store")
		c.Next()
	}
}
