package rbac

import (
	"net/http"

	"grc-platform/internal/auth"
	"grc-platform/pkg/logger"
	"grc-platform/pkg/metrics"

	"github.com/gin-gonic/gin"
)

// Denial reasons, also used as the metric label.
const (
	reasonNoRole      = "no_role"
	reasonUnknownRole = "unknown_role"
	reasonForbidden   = "forbidden"
)

// callerRole reads the role placed in context by the auth middleware. On
// failure it aborts with 401 and returns false.
func callerRole(c *gin.Context) (string, bool) {
	role, err := auth.Role(c.Request.Context())
	if err != nil || role == "" {
		deny(c, http.StatusUnauthorized, reasonNoRole, "")
		return "", false
	}
	return role, true
}

func deny(c *gin.Context, status int, reason, role string) {
	metrics.AccessDenied.WithLabelValues(reason).Inc()
	logger.FromGin(c).Warn("access denied",
		"reason", reason,
		"role", role,
		"route", c.FullPath(),
	)
	msg := "forbidden"
	switch reason {
	case reasonNoRole:
		msg = "role required"
	case reasonUnknownRole:
		msg = "unknown role"
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

// RequireKnownRole rejects callers whose role claim is outside the GRC role
// set. Mount it directly after the token middleware.
func RequireKnownRole() gin.HandlerFunc {
	return func(c *gin.Context) {
		role, ok := callerRole(c)
		if !ok {
			return
		}
		if !IsKnownRole(role) {
			deny(c, http.StatusForbidden, reasonUnknownRole, role)
			return
		}
		c.Next()
	}
}

// RequireAnyRole admits the listed roles. admin is always admitted.
func RequireAnyRole(allowed ...string) gin.HandlerFunc {
	set := make(map[string]bool, len(allowed)+1)
	for _, r := range allowed {
		set[r] = true
	}
	set[RoleAdmin] = true

	return func(c *gin.Context) {
		role, ok := callerRole(c)
		if !ok {
			return
		}
		if !set[role] {
			deny(c, http.StatusForbidden, reasonForbidden, role)
			return
		}
		c.Next()
	}
}
