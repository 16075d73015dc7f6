package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"grc-platform/internal/ai"
	"grc-platform/internal/audit"
	"grc-platform/internal/auth"
	"grc-platform/internal/config"
	"grc-platform/internal/httpapi"
	"grc-platform/internal/rbac"
	"grc-platform/internal/records"
	"grc-platform/internal/reporting"
	"grc-platform/internal/risk"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T, ready readiness) (*gin.Engine, *auth.Manager) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	m, err := auth.NewManager(config.AuthConfig{JWTSecret: "secret", AccessTokenTTL: time.Minute, RefreshTokenTTL: time.Hour})
	require.NoError(t, err)

	auditSvc := audit.NewService(audit.NewMemoryRepo())
	recorder := audit.NewRecorder(auditSvc)
	riskSvc := risk.NewService(risk.NewMemoryRepo(), recorder)
	recSvc := records.NewService(records.NewMemoryRepo(), recorder)
	h := httpapi.Handlers{
		Risks:   riskSvc,
		Records: recSvc,
		Audit:   auditSvc,
		AI:      ai.NewService(nil, ai.NewMemoryRepo(), recSvc, riskSvc, recorder),
		Reports: reporting.NewService(reporting.NewMemoryRepo()),
	}

	r := gin.New()
	registerRoutes(r, h, m, ready)
	return r, m
}

func tokenFor(t *testing.T, m *auth.Manager, role string) string {
	t.Helper()
	pair, err := m.IssuePair(time.Now(), auth.Subject{UserID: "u-" + role, Email: role + "@example.com", Role: role})
	require.NoError(t, err)
	return pair.AccessToken
}

func call(r http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRoutes_RequireToken(t *testing.T) {
	r, _ := newTestRouter(t, nil)

	assert.Equal(t, http.StatusOK, call(r, http.MethodGet, "/healthz", "", "").Code)
	assert.Equal(t, http.StatusUnauthorized, call(r, http.MethodGet, "/v1/risks", "", "").Code)
	assert.Equal(t, http.StatusUnauthorized, call(r, http.MethodGet, "/v1/risks", "garbage", "").Code)
}

func TestRoutes_RoleChecks(t *testing.T) {
	r, m := newTestRouter(t, nil)
	body := `{"title":"Vendor lock-in","category":"strategic","likelihood":2,"impact":3}`

	w := call(r, http.MethodPost, "/v1/risks", tokenFor(t, m, rbac.RoleAudit), body)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = call(r, http.MethodPost, "/v1/risks", tokenFor(t, m, rbac.RoleRisk), body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	// Any known role reads.
	w = call(r, http.MethodGet, "/v1/risks", tokenFor(t, m, rbac.RoleICT), "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Vendor lock-in")

	assert.Equal(t, http.StatusForbidden, call(r, http.MethodGet, "/v1/audit-logs", tokenFor(t, m, rbac.RoleICT), "").Code)
	assert.Equal(t, http.StatusOK, call(r, http.MethodGet, "/v1/audit-logs", tokenFor(t, m, rbac.RoleBoard), "").Code)

	assert.Equal(t, http.StatusForbidden, call(r, http.MethodPost, "/v1/departments", tokenFor(t, m, rbac.RoleCompliance), `{"name":"Finance","code":"fin"}`).Code)
	assert.Equal(t, http.StatusCreated, call(r, http.MethodPost, "/v1/departments", tokenFor(t, m, rbac.RoleAdmin), `{"name":"Finance","code":"fin"}`).Code)
}

func TestRoutes_UnknownRoleRejected(t *testing.T) {
	r, m := newTestRouter(t, nil)
	w := call(r, http.MethodGet, "/v1/risks", tokenFor(t, m, "janitor"), "")
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRoutes_AIWithoutGatewayIsUnavailable(t *testing.T) {
	r, m := newTestRouter(t, nil)
	w := call(r, http.MethodPost, "/v1/ai/predictions", tokenFor(t, m, rbac.RoleCompliance), "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestRoutes_Readiness(t *testing.T) {
	r, _ := newTestRouter(t, readiness{
		"postgres": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return errors.New("connection refused") },
	})
	w := call(r, http.MethodGet, "/readyz", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "redis")

	r, _ = newTestRouter(t, readiness{"postgres": func(context.Context) error { return nil }})
	assert.Equal(t, http.StatusOK, call(r, http.MethodGet, "/readyz", "", "").Code)
}

func TestRoutes_StreamRejectsWithoutToken(t *testing.T) {
	r, m := newTestRouter(t, nil)
	assert.Equal(t, http.StatusUnauthorized, call(r, http.MethodGet, "/v1/audit-logs/stream", "", "").Code)
	// A valid query token for a role without audit access is refused before upgrade.
	path := "/v1/audit-logs/stream?access_token=" + tokenFor(t, m, rbac.RoleICT)
	assert.Equal(t, http.StatusForbidden, call(r, http.MethodGet, path, "", "").Code)
}

func TestRoutes_ControlsAndHeatmap(t *testing.T) {
	r, m := newTestRouter(t, nil)
	body := `{"control_code":"ac-01","title":"Access review","category":"access","control_type":"detective"}`

	assert.Equal(t, http.StatusForbidden, call(r, http.MethodPost, "/v1/controls", tokenFor(t, m, rbac.RoleICT), body).Code)
	assert.Equal(t, http.StatusCreated, call(r, http.MethodPost, "/v1/controls", tokenFor(t, m, rbac.RoleCompliance), body).Code)
	assert.Equal(t, http.StatusOK, call(r, http.MethodGet, "/v1/controls", tokenFor(t, m, rbac.RoleICT), "").Code)
	assert.Equal(t, http.StatusForbidden,
		call(r, http.MethodPost, "/v1/policies/7d7f3c4e-5b0e-4a53-9d3c-3e8e1c1f3b2a/controls", tokenFor(t, m, rbac.RoleBoard), `{"control_id":"x"}`).Code)
	assert.Equal(t, http.StatusOK, call(r, http.MethodGet, "/v1/reports/risk-heatmap", tokenFor(t, m, rbac.RoleBoard), "").Code)
}
