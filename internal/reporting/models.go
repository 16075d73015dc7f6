package reporting

import (
	"time"

	"grc-platform/internal/records"
	"grc-platform/internal/risk"
)

// TimeRange is optional; a zero bound is open.
type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

func (r TimeRange) contains(t time.Time) bool {
	if !r.From.IsZero() && t.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && !t.Before(r.To) {
		return false
	}
	return true
}

// RiskRow is the projection of a risk the summary needs.
type RiskRow struct {
	ID             string
	Likelihood     int
	Impact         int
	RiskScore      int
	Status         risk.Status
	ApprovalStatus risk.ApprovalStatus
	Category       string
	CreatedAt      time.Time
}

// IncidentRow is the projection of an incident the summary needs.
type IncidentRow struct {
	ID         string
	Severity   records.Severity
	Status     records.IncidentStatus
	ReportedAt time.Time
	ResolvedAt *time.Time
}

type RiskSummary struct {
	Range TimeRange `json:"range"`

	TotalRisks   int     `json:"total_risks"`
	AverageScore float64 `json:"average_score"`
	MaxScore     int     `json:"max_score"`

	ByBand           map[risk.Band]int           `json:"by_band"`
	ByStatus         map[risk.Status]int         `json:"by_status"`
	ByApprovalStatus map[risk.ApprovalStatus]int `json:"by_approval_status"`
	ByCategory       map[string]int              `json:"by_category"`
}

type IncidentSummary struct {
	Range TimeRange `json:"range"`

	TotalIncidents    int `json:"total_incidents"`
	OpenIncidents     int `json:"open_incidents"`
	ResolvedIncidents int `json:"resolved_incidents"`

	BySeverity map[records.Severity]int `json:"by_severity"`

	// ResolutionRate is resolved (or closed) over total, 0 when there are none.
	ResolutionRate float64 `json:"resolution_rate"`
	// MeanHoursToResolve averages reported_at to resolved_at over resolved incidents.
	MeanHoursToResolve float64 `json:"mean_hours_to_resolve"`
}

// HeatmapCell counts risks at one likelihood x impact coordinate.
type HeatmapCell struct {
	Likelihood int       `json:"likelihood"`
	Impact     int       `json:"impact"`
	Score      int       `json:"score"`
	Band       risk.Band `json:"band"`
	Count      int       `json:"count"`
}

// RiskHeatmap is the full 5x5 grid, rows by likelihood then impact, both
// ascending. Cells with no risks are present with a zero count.
type RiskHeatmap struct {
	Range TimeRange     `json:"range"`
	Total int           `json:"total_risks"`
	Cells []HeatmapCell `json:"cells"`
	// Skipped counts rows whose coordinates fall outside the grid.
	Skipped int `json:"skipped,omitempty"`
}
