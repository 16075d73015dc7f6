package httpapi

import (
	"net/http"

	"grc-platform/internal/risk"

	"github.com/gin-gonic/gin"
)

func (h Handlers) CreateRisk(c *gin.Context) {
	var req risk.CreateRequest
	if !bindJSON(c, &req) {
		return
	}
	r, err := h.Risks.Create(ctxOf(c), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, r)
}

func (h Handlers) GetRisk(c *gin.Context) {
	r, err := h.Risks.Get(ctxOf(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h Handlers) ListRisks(c *gin.Context) {
	limit, ok := queryInt(c, "limit")
	if !ok {
		return
	}
	out, err := h.Risks.List(ctxOf(c), risk.ListFilter{
		Status:         risk.Status(c.Query("status")),
		ApprovalStatus: risk.ApprovalStatus(c.Query("approval_status")),
		Category:       c.Query("category"),
		OwnerID:        c.Query("owner_id"),
		Limit:          limit,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"risks": out})
}

func (h Handlers) UpdateRisk(c *gin.Context) {
	var req risk.UpdateRequest
	if !bindJSON(c, &req) {
		return
	}
	r, err := h.Risks.Update(ctxOf(c), c.Param("id"), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h Handlers) SetRiskStatus(c *gin.Context) {
	var req statusRequest
	if !bindJSON(c, &req) {
		return
	}
	r, err := h.Risks.SetStatus(ctxOf(c), c.Param("id"), risk.Status(req.Status))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h Handlers) ApproveRisk(c *gin.Context) {
	r, err := h.Risks.Approve(ctxOf(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h Handlers) RejectRisk(c *gin.Context) {
	r, err := h.Risks.Reject(ctxOf(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

// RiskScore exposes the scorer without persisting anything.
func (h Handlers) RiskScore(c *gin.Context) {
	l, ok := queryInt(c, "likelihood")
	if !ok {
		return
	}
	i, ok := queryInt(c, "impact")
	if !ok {
		return
	}
	score, band, err := risk.Score(l, i)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"likelihood": l, "impact": i, "risk_score": score, "band": band})
}
