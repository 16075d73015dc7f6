package httpapi

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"grc-platform/internal/records"
	"grc-platform/internal/reporting"
	"grc-platform/internal/risk"

	"github.com/gin-gonic/gin"
)

func TestRecordHandlers_PolicyPatchIsPartial(t *testing.T) {
	gin.SetMode(gin.TestMode)
	env := newEnv(nil)
	r := gin.New()
	r.Use(withIdentity("u1", "compliance"))
	pol := env.h.Policies()
	r.POST("/v1/policies", pol.Create)
	r.PATCH("/v1/policies/:id", pol.Update)

	w := do(t, r, http.MethodPost, "/v1/policies", map[string]any{
		"title": "Backup policy", "category": "ops", "version": "3.1", "status": "approved",
		"document_url": "https://docs.example.com/backup.pdf",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var created records.Policy
	_ = json.Unmarshal(w.Body.Bytes(), &created)

	w = do(t, r, http.MethodPatch, "/v1/policies/"+created.ID, map[string]any{"title": "Backup and restore"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var patched records.Policy
	_ = json.Unmarshal(w.Body.Bytes(), &patched)
	if patched.Title != "Backup and restore" || patched.Status != records.PolicyApproved || patched.Version != "3.1" {
		t.Fatalf("patch reset fields: %+v", patched)
	}
	if patched.DocumentURL == nil || patched.ApprovalDate == nil {
		t.Fatalf("patch dropped document_url or approval_date: %s", w.Body.String())
	}

	w = do(t, r, http.MethodPatch, "/v1/policies/"+created.ID, map[string]any{"document_url": ""})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	_ = json.Unmarshal(w.Body.Bytes(), &patched)
	if patched.DocumentURL != nil {
		t.Fatalf("expected document_url cleared, got %v", *patched.DocumentURL)
	}
}

func TestRecordHandlers_ControlMappings(t *testing.T) {
	gin.SetMode(gin.TestMode)
	env := newEnv(nil)
	r := gin.New()
	r.Use(withIdentity("u1", "compliance"))
	r.POST("/v1/policies", env.h.Policies().Create)
	r.POST("/v1/controls", env.h.Controls().Create)
	r.GET("/v1/controls", env.h.Controls().List)
	r.GET("/v1/policies/:id/controls", env.h.ListPolicyControls)
	r.POST("/v1/policies/:id/controls", env.h.MapPolicyControl)
	r.DELETE("/v1/policies/:id/controls/:control_id", env.h.UnmapPolicyControl)
	r.GET("/v1/controls/:id/policies", env.h.ListControlPolicies)

	w := do(t, r, http.MethodPost, "/v1/policies", map[string]any{"title": "Access control", "category": "security"})
	var pol records.Policy
	_ = json.Unmarshal(w.Body.Bytes(), &pol)
	w = do(t, r, http.MethodPost, "/v1/controls", map[string]any{
		"control_code": "ac-01", "title": "Access review", "category": "access", "control_type": "detective",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var ctl records.Control
	_ = json.Unmarshal(w.Body.Bytes(), &ctl)

	mapPath := "/v1/policies/" + pol.ID + "/controls"
	if w := do(t, r, http.MethodPost, mapPath, map[string]any{"control_id": ctl.ID}); w.Code != http.StatusCreated {
		t.Fatalf("map: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if w := do(t, r, http.MethodPost, mapPath, map[string]any{"control_id": ctl.ID}); w.Code != http.StatusConflict {
		t.Fatalf("duplicate map: expected 409, got %d", w.Code)
	}
	if w := do(t, r, http.MethodPost, mapPath, map[string]any{}); w.Code != http.StatusBadRequest {
		t.Fatalf("missing control_id: expected 400, got %d", w.Code)
	}

	var listed struct {
		Mappings []records.ControlMapping `json:"mappings"`
	}
	w = do(t, r, http.MethodGet, "/v1/controls/"+ctl.ID+"/policies", nil)
	_ = json.Unmarshal(w.Body.Bytes(), &listed)
	if w.Code != http.StatusOK || len(listed.Mappings) != 1 || listed.Mappings[0].PolicyID != pol.ID {
		t.Fatalf("list by control: unexpected %d %s", w.Code, w.Body.String())
	}

	if w := do(t, r, http.MethodDelete, mapPath+"/"+ctl.ID, nil); w.Code != http.StatusNoContent {
		t.Fatalf("unmap: expected 204, got %d: %s", w.Code, w.Body.String())
	}
	if w := do(t, r, http.MethodDelete, mapPath+"/"+ctl.ID, nil); w.Code != http.StatusNotFound {
		t.Fatalf("second unmap: expected 404, got %d", w.Code)
	}
	w = do(t, r, http.MethodGet, mapPath, nil)
	_ = json.Unmarshal(w.Body.Bytes(), &listed)
	if w.Code != http.StatusOK || len(listed.Mappings) != 0 {
		t.Fatalf("list by policy: unexpected %d %s", w.Code, w.Body.String())
	}
}

func TestReports_RiskHeatmap(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := reporting.NewMemoryRepo()
	now := time.Now().UTC()
	repo.Risks = []reporting.RiskRow{
		{ID: "a", Likelihood: 4, Impact: 5, RiskScore: 20, CreatedAt: now},
		{ID: "b", Likelihood: 1, Impact: 2, RiskScore: 2, CreatedAt: now},
	}
	h := Handlers{Reports: reporting.NewService(repo)}
	r := gin.New()
	r.GET("/v1/reports/risk-heatmap", h.RiskHeatmap)

	w := do(t, r, http.MethodGet, "/v1/reports/risk-heatmap", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var out reporting.RiskHeatmap
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Total != 2 || len(out.Cells) != 25 {
		t.Fatalf("unexpected heatmap %s", w.Body.String())
	}
	for _, c := range out.Cells {
		if c.Likelihood == 4 && c.Impact == 5 && (c.Count != 1 || c.Band != risk.BandCritical) {
			t.Fatalf("unexpected 4x5 cell %+v", c)
		}
	}

	if w := do(t, r, http.MethodGet, "/v1/reports/risk-heatmap?from=soon", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}
