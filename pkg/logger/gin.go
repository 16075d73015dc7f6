package logger

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	headerRequestID = "X-Request-Id"
	ginLoggerKey    = "logger"
	maxRequestIDLen = 128
)

// probePaths are polled by orchestrators and scrapers; their summaries go to debug.
var probePaths = map[string]bool{
	"/healthz": true,
	"/readyz":  true,
	"/metrics": true,
}

// Middleware tags every request with a request id (echoed in X-Request-Id),
// makes the tagged logger available through From(ctx) and FromGin, and logs
// one summary line per request once handlers have run.
func Middleware(l *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		rid := c.GetHeader(headerRequestID)
		if rid == "" || len(rid) > maxRequestIDLen {
			rid = uuid.NewString()
		}
		c.Writer.Header().Set(headerRequestID, rid)

		reqLog := l.With("request_id", rid)
		c.Set(ginLoggerKey, reqLog)
		c.Request = c.Request.WithContext(With(c.Request.Context(), reqLog))

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		status := c.Writer.Status()

		attrs := []any{
			slog.String("method", c.Request.Method),
			slog.String("path", route),
			slog.Int("status", status),
			slog.Int64("duration_ms", time.Since(start).Milliseconds()),
			slog.String("client_ip", c.ClientIP()),
		}
		// user_id and role are only present behind the auth middleware.
		if uid := c.GetString("user_id"); uid != "" {
			attrs = append(attrs, slog.String("user_id", uid), slog.String("role", c.GetString("role")))
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, slog.String("errors", c.Errors.String()))
		}

		reqLog.Log(c.Request.Context(), summaryLevel(route, status, len(c.Errors) > 0), "request", attrs...)
	}
}

func summaryLevel(route string, status int, hasErrors bool) slog.Level {
	switch {
	case status >= 500 || hasErrors:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	case probePaths[route]:
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

// FromGin returns the request logger stored by Middleware.
func FromGin(c *gin.Context) *slog.Logger {
	if l, ok := c.Value(ginLoggerKey).(*slog.Logger); ok && l != nil {
		return l
	}
	return From(c.Request.Context())
}
