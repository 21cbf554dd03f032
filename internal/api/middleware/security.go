package middleware

import (
	"github.com/gin-gonic/gin"
)

// SecurityHeaders adds various security headers to the response
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "no-referrer")
		c.Header("Cache-Control", "no-store")
		c.Next()
	}
}

// ContentSecurityPolicy adds CSP headers. The API only serves JSON and a
// WebSocket stream, so nothing is allowed to load.
func ContentSecurityPolicy(isDev bool) gin.HandlerFunc {
	connectSrc := "'self'"
	if isDev {
		connectSrc += " ws: wss:"
	}
	policy := "default-src 'none'; " +
		"connect-src " + connectSrc + "; " +
		"frame-ancestors 'none';"

	return func(c *gin.Context) {
		c.Header("Content-Security-Policy", policy)
		c.Next()
	}
}
