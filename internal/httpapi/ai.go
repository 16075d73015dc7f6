package httpapi

import (
	"net/http"

	"grc-platform/internal/ai"

	"github.com/gin-gonic/gin"
)

func (h Handlers) GenerateRecommendations(c *gin.Context) {
	var req ai.RecommendRequest
	if !bindJSON(c, &req) {
		return
	}
	out, err := h.AI.Recommend(ctxOf(c), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"recommendations": out})
}

func (h Handlers) ListRecommendations(c *gin.Context) {
	limit, ok := queryInt(c, "limit")
	if !ok {
		return
	}
	out, err := h.AI.ListRecommendations(ctxOf(c), c.Query("entity_type"), c.Query("entity_id"), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"recommendations": out})
}

func (h Handlers) UpdateRecommendation(c *gin.Context) {
	var req statusRequest
	if !bindJSON(c, &req) {
		return
	}
	out, err := h.AI.UpdateRecommendationStatus(ctxOf(c), c.Param("id"), ai.RecommendationStatus(req.Status))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h Handlers) MapPolicyRegulations(c *gin.Context) {
	out, err := h.AI.MapPolicy(ctxOf(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"mappings": out})
}

func (h Handlers) ListPolicyMappings(c *gin.Context) {
	out, err := h.AI.ListMappings(ctxOf(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"mappings": out})
}

func (h Handlers) GeneratePredictions(c *gin.Context) {
	out, err := h.AI.Predict(ctxOf(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"alerts": out})
}

func (h Handlers) ListAlerts(c *gin.Context) {
	limit, ok := queryInt(c, "limit")
	if !ok {
		return
	}
	out, err := h.AI.ListAlerts(ctxOf(c), ai.AlertStatus(c.Query("status")), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"alerts": out})
}

func (h Handlers) AcknowledgeAlert(c *gin.Context) {
	out, err := h.AI.AcknowledgeAlert(ctxOf(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}
