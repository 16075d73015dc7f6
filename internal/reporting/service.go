package reporting

import (
	"context"
	"errors"
	"fmt"

	"grc-platform/internal/apperr"
	"grc-platform/internal/records"
	"grc-platform/internal/risk"
)

var ErrInvalidRequest = fmt.Errorf("%w: range end must be after start", apperr.ErrValidation)

// Repository abstracts read access for reporting. Implementations apply the
// range on created_at for risks and reported_at for incidents.
type Repository interface {
	ListRisks(ctx context.Context, r TimeRange) ([]RiskRow, error)
	ListIncidents(ctx context.Context, r TimeRange) ([]IncidentRow, error)
}

// Service computes read-only summaries; it never writes.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service { return &Service{repo: repo} }

func validRange(r TimeRange) error {
	if !r.From.IsZero() && !r.To.IsZero() && !r.To.After(r.From) {
		return ErrInvalidRequest
	}
	return nil
}

func (s *Service) RiskSummary(ctx context.Context, r TimeRange) (RiskSummary, error) {
	if err := validRange(r); err != nil {
		return RiskSummary{}, err
	}
	if s.repo == nil {
		return RiskSummary{}, errors.New("reporting: repository not configured")
	}
	rows, err := s.repo.ListRisks(ctx, r)
	if err != nil {
		return RiskSummary{}, apperr.Persistence("list risks", err)
	}

	out := RiskSummary{
		Range:            r,
		ByBand:           map[risk.Band]int{},
		ByStatus:         map[risk.Status]int{},
		ByApprovalStatus: map[risk.ApprovalStatus]int{},
		ByCategory:       map[string]int{},
	}
	for _, b := range risk.Bands() {
		out.ByBand[b] = 0
	}
	total := 0
	for _, row := range rows {
		out.TotalRisks++
		total += row.RiskScore
		if row.RiskScore > out.MaxScore {
			out.MaxScore = row.RiskScore
		}
		out.ByBand[risk.ClassifyScore(row.RiskScore)]++
		out.ByStatus[row.Status]++
		out.ByApprovalStatus[row.ApprovalStatus]++
		if row.Category != "" {
			out.ByCategory[row.Category]++
		}
	}
	if out.TotalRisks > 0 {
		out.AverageScore = float64(total) / float64(out.TotalRisks)
	}
	return out, nil
}

// RiskHeatmap buckets risks by likelihood and impact over the same range
// rules as RiskSummary. Each cell carries the band of its product.
func (s *Service) RiskHeatmap(ctx context.Context, r TimeRange) (RiskHeatmap, error) {
	if err := validRange(r); err != nil {
		return RiskHeatmap{}, err
	}
	if s.repo == nil {
		return RiskHeatmap{}, errors.New("reporting: repository not configured")
	}
	rows, err := s.repo.ListRisks(ctx, r)
	if err != nil {
		return RiskHeatmap{}, apperr.Persistence("list risks", err)
	}

	const width = risk.MaxRating - risk.MinRating + 1
	out := RiskHeatmap{Range: r, Cells: make([]HeatmapCell, 0, width*width)}
	for l := risk.MinRating; l <= risk.MaxRating; l++ {
		for i := risk.MinRating; i <= risk.MaxRating; i++ {
			out.Cells = append(out.Cells, HeatmapCell{
				Likelihood: l,
				Impact:     i,
				Score:      l * i,
				Band:       risk.ClassifyScore(l * i),
			})
		}
	}
	for _, row := range rows {
		out.Total++
		if !inScale(row.Likelihood) || !inScale(row.Impact) {
			out.Skipped++
			continue
		}
		idx := (row.Likelihood-risk.MinRating)*width + (row.Impact - risk.MinRating)
		out.Cells[idx].Count++
	}
	return out, nil
}

func inScale(v int) bool { return v >= risk.MinRating && v <= risk.MaxRating }

func (s *Service) IncidentSummary(ctx context.Context, r TimeRange) (IncidentSummary, error) {
	if err := validRange(r); err != nil {
		return IncidentSummary{}, err
	}
	if s.repo == nil {
		return IncidentSummary{}, errors.New("reporting: repository not configured")
	}
	rows, err := s.repo.ListIncidents(ctx, r)
	if err != nil {
		return IncidentSummary{}, apperr.Persistence("list incidents", err)
	}

	out := IncidentSummary{Range: r, BySeverity: map[records.Severity]int{}}
	var (
		hours    float64
		timedOut int
	)
	for _, row := range rows {
		out.TotalIncidents++
		out.BySeverity[row.Severity]++
		switch row.Status {
		case records.IncidentResolved, records.IncidentClosed:
			out.ResolvedIncidents++
			if row.ResolvedAt != nil && !row.ResolvedAt.Before(row.ReportedAt) {
				hours += row.ResolvedAt.Sub(row.ReportedAt).Hours()
				timedOut++
			}
		default:
			out.OpenIncidents++
		}
	}
	if out.TotalIncidents > 0 {
		out.ResolutionRate = float64(out.ResolvedIncidents) / float64(out.TotalIncidents)
	}
	if timedOut > 0 {
		out.MeanHoursToResolve = hours / float64(timedOut)
	}
	return out, nil
}
