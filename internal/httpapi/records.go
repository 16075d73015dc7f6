package httpapi

import (
	"context"
	"net/http"

	"grc-platform/internal/records"

	"github.com/gin-gonic/gin"
)

// The record kinds share one handler shape, so the handlers are built from
// the service's method values.

func createRecord[In, Out any](fn func(context.Context, In) (Out, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in In
		if !bindJSON(c, &in) {
			return
		}
		out, err := fn(ctxOf(c), in)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, out)
	}
}

func getRecord[Out any](fn func(context.Context, string) (Out, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		out, err := fn(ctxOf(c), c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, out)
	}
}

func listRecords[Out any](key string, fn func(context.Context, records.ListFilter) ([]Out, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, ok := queryInt(c, "limit")
		if !ok {
			return
		}
		out, err := fn(ctxOf(c), records.ListFilter{Status: c.Query("status"), Limit: limit})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{key: out})
	}
}

func updateRecord[In, Out any](fn func(context.Context, string, In) (Out, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in In
		if !bindJSON(c, &in) {
			return
		}
		out, err := fn(ctxOf(c), c.Param("id"), in)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, out)
	}
}

// RecordRoutes is the handler set for one record kind.
type RecordRoutes struct {
	List, Get, Create, Update gin.HandlerFunc
}

func (h Handlers) Policies() RecordRoutes {
	return RecordRoutes{
		List:   listRecords("policies", h.Records.ListPolicies),
		Get:    getRecord(h.Records.GetPolicy),
		Create: createRecord(h.Records.CreatePolicy),
		Update: updateRecord(h.Records.UpdatePolicy),
	}
}

func (h Handlers) Requirements() RecordRoutes {
	return RecordRoutes{
		List:   listRecords("compliance_requirements", h.Records.ListRequirements),
		Get:    getRecord(h.Records.GetRequirement),
		Create: createRecord(h.Records.CreateRequirement),
		Update: updateRecord(h.Records.UpdateRequirement),
	}
}

func (h Handlers) Incidents() RecordRoutes {
	return RecordRoutes{
		List:   listRecords("incidents", h.Records.ListIncidents),
		Get:    getRecord(h.Records.GetIncident),
		Create: createRecord(h.Records.CreateIncident),
		Update: updateRecord(h.Records.UpdateIncident),
	}
}

func (h Handlers) Objectives() RecordRoutes {
	return RecordRoutes{
		List:   listRecords("objectives", h.Records.ListObjectives),
		Get:    getRecord(h.Records.GetObjective),
		Create: createRecord(h.Records.CreateObjective),
		Update: updateRecord(h.Records.UpdateObjective),
	}
}

func (h Handlers) Departments() RecordRoutes {
	return RecordRoutes{
		List:   listRecords("departments", h.Records.ListDepartments),
		Get:    getRecord(h.Records.GetDepartment),
		Create: createRecord(h.Records.CreateDepartment),
		Update: updateRecord(h.Records.UpdateDepartment),
	}
}

func (h Handlers) Documents() RecordRoutes {
	return RecordRoutes{
		List:   listRecords("documents", h.Records.ListDocuments),
		Get:    getRecord(h.Records.GetDocument),
		Create: createRecord(h.Records.CreateDocument),
		Update: updateRecord(h.Records.UpdateDocument),
	}
}

func (h Handlers) Controls() RecordRoutes {
	return RecordRoutes{
		List:   listRecords("controls", h.Records.ListControls),
		Get:    getRecord(h.Records.GetControl),
		Create: createRecord(h.Records.CreateControl),
		Update: updateRecord(h.Records.UpdateControl),
	}
}

type mapControlRequest struct {
	ControlID string `json:"control_id" binding:"required"`
}

// MapPolicyControl handles POST /policies/:id/controls.
func (h Handlers) MapPolicyControl(c *gin.Context) {
	var req mapControlRequest
	if !bindJSON(c, &req) {
		return
	}
	out, err := h.Records.MapControl(ctxOf(c), c.Param("id"), req.ControlID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, out)
}

// UnmapPolicyControl handles DELETE /policies/:id/controls/:control_id.
func (h Handlers) UnmapPolicyControl(c *gin.Context) {
	if err := h.Records.UnmapControl(ctxOf(c), c.Param("id"), c.Param("control_id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h Handlers) ListPolicyControls(c *gin.Context) {
	h.listControlMappings(c, records.MappingFilter{PolicyID: c.Param("id")})
}

func (h Handlers) ListControlPolicies(c *gin.Context) {
	h.listControlMappings(c, records.MappingFilter{ControlID: c.Param("id")})
}

func (h Handlers) listControlMappings(c *gin.Context, f records.MappingFilter) {
	out, err := h.Records.ListControlMappings(ctxOf(c), f)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"mappings": out})
}

func (h Handlers) ResolveIncident(c *gin.Context) {
	var in records.ResolveInput
	// the body is optional
	if c.Request.ContentLength != 0 && !bindJSON(c, &in) {
		return
	}
	out, err := h.Records.ResolveIncident(ctxOf(c), c.Param("id"), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}
