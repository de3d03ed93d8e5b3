package gateway

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/provisia/warden/internal/limiter"
	"github.com/provisia/warden/internal/metrics"
)

func LoggerMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		if raw != "" {
			path = path + "?" + raw
		}

		logger.Info("HTTP request",
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", latency,
			"client_ip", c.ClientIP(),
			"user_agent", c.Request.UserAgent(),
		)
	}
}

func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, X-API-Key, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Header("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

// RateLimitMiddleware gates a route group with a named preset, keyed by
// client IP. Denials answer 429; degraded checks pass through with the
// headers still set.
func RateLimitMiddleware(l *limiter.Limiter, registry *limiter.Registry, preset string) gin.HandlerFunc {
	return func(c *gin.Context) {
		cfg, ok := registry.Get(preset)
		if !ok {
			c.Next()
			return
		}

		res := l.Check(c.Request.Context(), c.ClientIP(), cfg)
		recordAdmission(res)
		writeRateLimitHeaders(c, res)

		if !res.Allowed {
			message := cfg.ErrorMessage
			if message == "" {
				message = "rate limit exceeded"
			}
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":               message,
				"retry_after_seconds": res.RetryAfter,
			})
			return
		}

		c.Next()
	}
}

func writeRateLimitHeaders(c *gin.Context, res limiter.Result) {
	c.Header("X-RateLimit-Limit", strconv.FormatInt(res.Limit, 10))
	c.Header("X-RateLimit-Remaining", strconv.FormatInt(res.Remaining, 10))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(res.ResetTime, 10))
	if !res.Allowed {
		c.Header("Retry-After", strconv.Itoa(int(res.RetryAfter+0.5)))
	}
}

func recordAdmission(res limiter.Result) {
	outcome := "allowed"
	if !res.Allowed {
		outcome = "denied"
	}
	metrics.AdmissionChecks.WithLabelValues(res.Strategy.String(), outcome).Inc()
	if fallback, _ := res.Metadata["fallback"].(bool); fallback {
		metrics.AdmissionFallbacks.Inc()
	}
}
