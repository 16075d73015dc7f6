package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"grc-platform/internal/ai"
	"grc-platform/internal/apperr"
	"grc-platform/internal/audit"
	"grc-platform/internal/records"
	"grc-platform/internal/reporting"
	"grc-platform/internal/risk"
	"grc-platform/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Risks   *risk.Service
	Records *records.Service
	Audit   *audit.Service
	AI      *ai.Service
	Reports *reporting.Service

	// AllowedOrigins restricts websocket upgrades; empty allows any origin.
	AllowedOrigins []string
	// StreamSnapshot is how many recent entries a new stream receives first.
	StreamSnapshot int
}

// writeError maps domain error kinds to HTTP status codes.
// 5xx responses never echo internal error text.
func writeError(c *gin.Context, err error) {
	status, msg := http.StatusInternalServerError, "internal error"
	switch {
	case errors.Is(err, apperr.ErrValidation):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, apperr.ErrNotFound):
		status, msg = http.StatusNotFound, "not found"
	case errors.Is(err, apperr.ErrConflict):
		status, msg = http.StatusConflict, err.Error()
	case errors.Is(err, ai.ErrTooManyRequests):
		status, msg = http.StatusTooManyRequests, "too many concurrent AI requests"
	case errors.Is(err, ai.ErrUpstreamRateLimited):
		status, msg = http.StatusTooManyRequests, "AI service unavailable"
	case errors.Is(err, ai.ErrUpstreamPaymentRequired):
		status, msg = http.StatusPaymentRequired, "AI service unavailable"
	case errors.Is(err, ai.ErrNotConfigured):
		status, msg = http.StatusServiceUnavailable, "AI service not configured"
	case errors.Is(err, ai.ErrInvalidResponseFormat), errors.Is(err, ai.ErrUpstream):
		status, msg = http.StatusBadGateway, "generation failed"
	case errors.Is(err, apperr.ErrPersistence):
		status, msg = http.StatusServiceUnavailable, "storage unavailable"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status, msg = http.StatusGatewayTimeout, "request timed out"
	}
	if status >= 500 {
		_ = c.Error(err)
		logger.FromGin(c).Error("request failed", slog.Int("status", status), slog.Any("err", err))
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return false
	}
	return true
}

// queryInt reads an optional integer query parameter.
func queryInt(c *gin.Context, key string) (int, bool) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": key + " must be an integer"})
		return 0, false
	}
	return n, true
}

// queryTime reads an optional RFC 3339 query parameter.
func queryTime(c *gin.Context, key string) (time.Time, bool) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return time.Time{}, true
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": key + " must be RFC 3339"})
		return time.Time{}, false
	}
	return t.UTC(), true
}

func ctxOf(c *gin.Context) context.Context { return c.Request.Context() }
