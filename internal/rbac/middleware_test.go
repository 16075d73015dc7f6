package rbac

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"grc-platform/internal/auth"
	"grc-platform/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func withRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := auth.WithIdentity(c.Request.Context(), auth.Identity{UserID: "u", Role: role})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func serve(t *testing.T, chain ...gin.HandlerFunc) int {
	t.Helper()
	gin.SetMode(gin.TestMode)

	r := gin.New()
	chain = append(chain, func(c *gin.Context) { c.Status(200) })
	r.GET("/x", chain...)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	return w.Code
}

func TestRequireAnyRole_AdminBypasses(t *testing.T) {
	if code := serve(t, withRole(RoleAdmin), RequireKnownRole(), RequireAnyRole(RoleRisk)); code != 200 {
		t.Fatalf("expected 200, got %d", code)
	}
}

func TestRequireAnyRole_DeniesOtherRoles(t *testing.T) {
	if code := serve(t, withRole(RoleBoard), RequireKnownRole(), RequireAnyRole(RoleRisk, RoleManagement)); code != 403 {
		t.Fatalf("expected 403, got %d", code)
	}
}

func TestRequireAnyRole_AllowsListedRole(t *testing.T) {
	if code := serve(t, withRole(RoleManagement), RequireKnownRole(), RequireAnyRole(RoleRisk, RoleManagement)); code != 200 {
		t.Fatalf("expected 200, got %d", code)
	}
}

func TestRequireKnownRole_RejectsUnknown(t *testing.T) {
	if code := serve(t, withRole("super_admin"), RequireKnownRole()); code != 403 {
		t.Fatalf("expected 403, got %d", code)
	}
}

func TestRequireAnyRole_MissingIdentity(t *testing.T) {
	if code := serve(t, RequireAnyRole(RoleRisk)); code != 401 {
		t.Fatalf("expected 401, got %d", code)
	}
}

func TestRequireAnyRole_CountsDenials(t *testing.T) {
	before := testutil.ToFloat64(metrics.AccessDenied.WithLabelValues(reasonForbidden))
	serve(t, withRole(RoleICT), RequireAnyRole(RoleAudit))
	if got := testutil.ToFloat64(metrics.AccessDenied.WithLabelValues(reasonForbidden)); got != before+1 {
		t.Fatalf("expected forbidden counter %v, got %v", before+1, got)
	}
}
