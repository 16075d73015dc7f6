package httpapi

import (
	"net/http"

	"grc-platform/internal/reporting"

	"github.com/gin-gonic/gin"
)

func timeRange(c *gin.Context) (reporting.TimeRange, bool) {
	from, ok := queryTime(c, "from")
	if !ok {
		return reporting.TimeRange{}, false
	}
	to, ok := queryTime(c, "to")
	if !ok {
		return reporting.TimeRange{}, false
	}
	return reporting.TimeRange{From: from, To: to}, true
}

func (h Handlers) RiskSummary(c *gin.Context) {
	r, ok := timeRange(c)
	if !ok {
		return
	}
	out, err := h.Reports.RiskSummary(ctxOf(c), r)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h Handlers) RiskHeatmap(c *gin.Context) {
	r, ok := timeRange(c)
	if !ok {
		return
	}
	out, err := h.Reports.RiskHeatmap(ctxOf(c), r)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h Handlers) IncidentSummary(c *gin.Context) {
	r, ok := timeRange(c)
	if !ok {
		return
	}
	out, err := h.Reports.IncidentSummary(ctxOf(c), r)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}
