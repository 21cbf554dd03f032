package middleware

import (
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/rmia46/roam-mc-server-manager/internal/config"
	"github.com/rmia46/roam-mc-server-manager/internal/logging"
	"github.com/rmia46/roam-mc-server-manager/internal/server"
)

const defaultMethods = "GET, POST, PUT, DELETE, OPTIONS"

// CORS answers cross-origin requests from the configured control clients.
// Preflights from other origins are refused.
func CORS(cfg config.CORSConfig) gin.HandlerFunc {
	methods := defaultMethods
	if len(cfg.AllowedMethods) > 0 {
		methods = strings.Join(cfg.AllowedMethods, ", ")
	}
	wildcard := containsWildcard(cfg.AllowedOrigins)

	return func(c *gin.Context) {
		header := c.Writer.Header()
		header.Add("Vary", "Origin")

		origin := c.GetHeader("Origin")
		allowed := OriginAllowed(origin, cfg.AllowedOrigins)
		if origin != "" && allowed {
			header.Set("Access-Control-Allow-Origin", origin)
			if !wildcard {
				header.Set("Access-Control-Allow-Credentials", "true")
			}
		}

		if c.Request.Method != http.MethodOptions {
			c.Next()
			return
		}
		if !allowed {
			c.AbortWithStatus(http.StatusForbidden)
			return
		}
		header.Set("Access-Control-Allow-Headers", "Content-Type, Accept, Origin, Cache-Control, X-Requested-With")
		header.Set("Access-Control-Allow-Methods", methods)
		header.Set("Access-Control-Max-Age", "600")
		c.AbortWithStatus(http.StatusNoContent)
	}
}

// OriginAllowed reports whether a browser origin may use the control API.
// Requests without an Origin header come from the CLI and are allowed.
func OriginAllowed(origin string, allowedOrigins []string) bool {
	if origin == "" {
		return true
	}
	for _, allowed := range allowedOrigins {
		allowed = strings.TrimSpace(allowed)
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

func containsWildcard(allowedOrigins []string) bool {
	for _, allowed := range allowedOrigins {
		if strings.TrimSpace(allowed) == "*" {
			return true
		}
	}
	return false
}

// Logger writes one record per request. Failed requests carry the error the
// handler attached and its supervisor error kind.
func Logger() gin.HandlerFunc {
	return requestLogger(logging.L)
}

func requestLogger(logger func() *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.Request.URL.Path
		status := c.Writer.Status()
		if isHousekeepingPath(path) && status < http.StatusBadRequest && gin.Mode() != gin.DebugMode {
			return
		}

		attrs := []any{
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"latency_ms", time.Since(start).Milliseconds(),
			"ip", c.ClientIP(),
		}
		if query := c.Request.URL.RawQuery; query != "" {
			attrs = append(attrs, "query", query)
		}
		if last := c.Errors.Last(); last != nil {
			attrs = append(attrs, "error", last.Err.Error(), "error_kind", server.KindOf(last.Err).String())
		}

		switch {
		case status >= http.StatusInternalServerError:
			logger().Error("http_request", attrs...)
		case status >= http.StatusBadRequest:
			logger().Warn("http_request", attrs...)
		default:
			logger().Info("http_request", attrs...)
		}
	}
}

// Recovery turns a handler panic into a 500 and logs it
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logging.L().Error("http_panic",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"panic", fmt.Sprint(recovered),
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	})
}

// Liveness, scrape and event stream requests bypass rate limiting and are
// only logged when they fail.
func isHousekeepingPath(path string) bool {
	switch path {
	case "/health", "/metrics", "/api/v1/events":
		return true
	}
	return false
}

// RateLimit gives each client a token bucket refilled at requestsPerMinute,
// with a burst of one minute's allowance.
func RateLimit(enabled bool, requestsPerMinute int) gin.HandlerFunc {
	if !enabled || requestsPerMinute <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	limiters := newClientLimiters(requestsPerMinute)
	retryAfter := strconv.Itoa(int(math.Ceil(60 / float64(requestsPerMinute))))

	return func(c *gin.Context) {
		if isHousekeepingPath(c.Request.URL.Path) {
			c.Next()
			return
		}
		if !limiters.allow(c.ClientIP()) {
			c.Header("Retry-After", retryAfter)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "Rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}

const idleClientTTL = 10 * time.Minute

type clientLimiters struct {
	limit rate.Limit
	burst int
	now   func() time.Time

	mu        sync.Mutex
	clients   map[string]*clientLimiter
	lastSweep time.Time
}

type clientLimiter struct {
	bucket   *rate.Limiter
	lastSeen time.Time
}

func newClientLimiters(requestsPerMinute int) *clientLimiters {
	return &clientLimiters{
		limit:     rate.Limit(float64(requestsPerMinute) / 60),
		burst:     requestsPerMinute,
		now:       time.Now,
		clients:   make(map[string]*clientLimiter),
		lastSweep: time.Now(),
	}
}

func (l *clientLimiters) allow(key string) bool {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) > idleClientTTL {
		for k, client := range l.clients {
			if now.Sub(client.lastSeen) > idleClientTTL {
				delete(l.clients, k)
			}
		}
		l.lastSweep = now
	}

	client, ok := l.clients[key]
	if !ok {
		client = &clientLimiter{bucket: rate.NewLimiter(l.limit, l.burst)}
		l.clients[key] = client
	}
	client.lastSeen = now
	return client.bucket.AllowN(now, 1)
}
