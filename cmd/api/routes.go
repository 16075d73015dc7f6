package main

import (
	"context"
	"net/http"
	"time"

	"grc-platform/internal/auth"
	"grc-platform/internal/httpapi"
	"grc-platform/internal/rbac"
	"grc-platform/pkg/metrics"

	"github.com/gin-gonic/gin"
)

// readiness maps a dependency name to its probe.
type readiness map[string]func(context.Context) error

// Role sets per resource. Reads under /v1 are open to any known role.
var (
	riskWriters       = []string{rbac.RoleAdmin, rbac.RoleRisk, rbac.RoleManagement}
	riskStatusSetters = []string{rbac.RoleAdmin, rbac.RoleRisk, rbac.RoleAudit, rbac.RoleManagement}
	riskApprovers     = []string{rbac.RoleAdmin, rbac.RoleBoard, rbac.RoleManagement}

	policyWriters      = []string{rbac.RoleAdmin, rbac.RoleCompliance}
	requirementWriters = []string{rbac.RoleAdmin, rbac.RoleCompliance}
	incidentWriters    = []string{rbac.RoleAdmin, rbac.RoleAudit, rbac.RoleRisk, rbac.RoleICT, rbac.RoleCompliance}
	incidentResolvers  = []string{rbac.RoleAdmin, rbac.RoleAudit, rbac.RoleRisk, rbac.RoleICT}
	objectiveWriters   = []string{rbac.RoleAdmin, rbac.RoleManagement, rbac.RoleBoard}
	departmentWriters  = []string{rbac.RoleAdmin}
	documentWriters    = []string{rbac.RoleAdmin, rbac.RoleCompliance, rbac.RoleAudit, rbac.RoleRisk}
	controlWriters     = []string{rbac.RoleAdmin, rbac.RoleCompliance, rbac.RoleRisk}

	auditReaders = []string{rbac.RoleAdmin, rbac.RoleAudit, rbac.RoleCompliance, rbac.RoleBoard}

	aiRecommenders = []string{rbac.RoleAdmin, rbac.RoleRisk, rbac.RoleCompliance, rbac.RoleManagement}
	aiMappers      = []string{rbac.RoleAdmin, rbac.RoleCompliance}
	aiPredictors   = []string{rbac.RoleAdmin, rbac.RoleCompliance, rbac.RoleRisk}
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers delegate to internal modules.
func registerRoutes(r *gin.Engine, h httpapi.Handlers, m *auth.Manager, ready readiness) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/readyz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()
		failed := gin.H{}
		for name, probe := range ready {
			if err := probe(ctx); err != nil {
				failed[name] = err.Error()
			}
		}
		if len(failed) > 0 {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "failed": failed})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	// Browsers cannot set headers on a websocket handshake, so the stream
	// also accepts the access token as a query parameter.
	r.GET("/v1/audit-logs/stream",
		auth.RequireStreamToken(m), rbac.RequireKnownRole(), rbac.RequireAnyRole(auditReaders...),
		h.StreamAuditLogs)

	v1 := r.Group("/v1")
	v1.Use(auth.RequireAccessToken(m), rbac.RequireKnownRole())

	v1.GET("/me", func(c *gin.Context) {
		id, _ := auth.IdentityFrom(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"user_id": id.UserID, "email": id.Email, "role": id.Role})
	})

	// RISKS
	risks := v1.Group("/risks")
	{
		risks.GET("", h.ListRisks)
		risks.GET("/:id", h.GetRisk)
		risks.POST("", rbac.RequireAnyRole(riskWriters...), h.CreateRisk)
		risks.PATCH("/:id", rbac.RequireAnyRole(riskWriters...), h.UpdateRisk)
		risks.POST("/:id/status", rbac.RequireAnyRole(riskStatusSetters...), h.SetRiskStatus)
		risks.POST("/:id/approve", rbac.RequireAnyRole(riskApprovers...), h.ApproveRisk)
		risks.POST("/:id/reject", rbac.RequireAnyRole(riskApprovers...), h.RejectRisk)
	}
	v1.GET("/risk-score", h.RiskScore)

	// RECORDS
	policies := v1.Group("/policies")
	registerRecord(policies, h.Policies(), policyWriters)
	policies.GET("/:id/controls", h.ListPolicyControls)
	policies.POST("/:id/controls", rbac.RequireAnyRole(controlWriters...), h.MapPolicyControl)
	policies.DELETE("/:id/controls/:control_id", rbac.RequireAnyRole(controlWriters...), h.UnmapPolicyControl)
	registerRecord(v1.Group("/compliance-requirements"), h.Requirements(), requirementWriters)
	incidents := v1.Group("/incidents")
	registerRecord(incidents, h.Incidents(), incidentWriters)
	incidents.POST("/:id/resolve", rbac.RequireAnyRole(incidentResolvers...), h.ResolveIncident)
	registerRecord(v1.Group("/objectives"), h.Objectives(), objectiveWriters)
	registerRecord(v1.Group("/departments"), h.Departments(), departmentWriters)
	registerRecord(v1.Group("/documents"), h.Documents(), documentWriters)
	controls := v1.Group("/controls")
	registerRecord(controls, h.Controls(), controlWriters)
	controls.GET("/:id/policies", h.ListControlPolicies)

	// AUDIT
	v1.GET("/audit-logs", rbac.RequireAnyRole(auditReaders...), h.ListAuditLogs)

	// AI
	aiGroup := v1.Group("/ai")
	{
		aiGroup.GET("/recommendations", h.ListRecommendations)
		aiGroup.POST("/recommendations", rbac.RequireAnyRole(aiRecommenders...), h.GenerateRecommendations)
		aiGroup.PATCH("/recommendations/:id", rbac.RequireAnyRole(aiRecommenders...), h.UpdateRecommendation)

		aiGroup.GET("/policies/:id/mappings", h.ListPolicyMappings)
		aiGroup.POST("/policies/:id/map-regulations", rbac.RequireAnyRole(aiMappers...), h.MapPolicyRegulations)

		aiGroup.GET("/alerts", h.ListAlerts)
		aiGroup.POST("/predictions", rbac.RequireAnyRole(aiPredictors...), h.GeneratePredictions)
		aiGroup.POST("/alerts/:id/acknowledge", rbac.RequireAnyRole(aiPredictors...), h.AcknowledgeAlert)
	}

	// REPORTS
	reports := v1.Group("/reports")
	{
		reports.GET("/risk-summary", h.RiskSummary)
		reports.GET("/risk-heatmap", h.RiskHeatmap)
		reports.GET("/incidents", h.IncidentSummary)
	}
}

func registerRecord(g *gin.RouterGroup, rt httpapi.RecordRoutes, writers []string) {
	g.GET("", rt.List)
	g.GET("/:id", rt.Get)
	g.POST("", rbac.RequireAnyRole(writers...), rt.Create)
	g.PATCH("/:id", rbac.RequireAnyRole(writers...), rt.Update)
}
