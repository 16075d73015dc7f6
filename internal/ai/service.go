package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"grc-platform/internal/apperr"
	"grc-platform/internal/audit"
	"grc-platform/internal/auth"
	"grc-platform/internal/records"
	"grc-platform/internal/risk"
	"grc-platform/pkg/logger"
	"grc-platform/pkg/metrics"

	"github.com/google/uuid"
)

// Generation bounds per function.
const (
	minRecommendations = 2
	maxRecommendations = 4
	minAlerts          = 3
	maxAlerts          = 5

	predictRequirements = 20
	predictRisks        = 20
	predictIncidents    = 10

	maxContextBytes = 16 << 10
)

// Repository persists AI generated records.
//
// SetRecommendationStatus and AcknowledgeAlert only move records out of their
// initial state (pending / active); anything else is ErrInvalidTransition.
type Repository interface {
	SaveRecommendations(ctx context.Context, recs []Recommendation) error
	ListRecommendations(ctx context.Context, entityType, entityID string, limit int) ([]Recommendation, error)
	SetRecommendationStatus(ctx context.Context, id string, status RecommendationStatus, by string, at time.Time) (Recommendation, error)

	SaveMappings(ctx context.Context, mappings []RegulationMapping) error
	ListMappings(ctx context.Context, policyID string) ([]RegulationMapping, error)

	SaveAlerts(ctx context.Context, alerts []Alert) error
	ListAlerts(ctx context.Context, status AlertStatus, limit int) ([]Alert, error)
	AcknowledgeAlert(ctx context.Context, id, by string, at time.Time) (Alert, error)
}

// RecordSource is the read side of records.Service used to build prompts.
type RecordSource interface {
	GetPolicy(ctx context.Context, id string) (records.Policy, error)
	ListRequirements(ctx context.Context, f records.ListFilter) ([]records.Requirement, error)
	ListIncidents(ctx context.Context, f records.ListFilter) ([]records.Incident, error)
}

type RiskSource interface {
	List(ctx context.Context, f risk.ListFilter) ([]risk.Risk, error)
}

type Auditor interface {
	Record(ctx context.Context, e audit.Entry) (audit.Entry, bool)
}

type Service struct {
	completer Completer
	repo      Repository
	records   RecordSource
	risks     RiskSource
	audit     Auditor
	limiter   Limiter
	clock     func() time.Time
}

type Option func(*Service)

func WithLimiter(l Limiter) Option { return func(s *Service) { s.limiter = l } }

func WithClock(clock func() time.Time) Option { return func(s *Service) { s.clock = clock } }

func NewService(c Completer, repo Repository, rec RecordSource, risks RiskSource, auditor Auditor, opts ...Option) *Service {
	s := &Service{completer: c, repo: repo, records: rec, risks: risks, audit: auditor, clock: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

const recommendSystemPrompt = `You advise on governance, risk and compliance for a regulated financial institution.
Give explainable recommendations: each has an actionable title, a description of what to do,
a rationale explaining why it is recommended given the context, a confidence_score between 0 and 1
and a priority (low, medium, high, critical). recommendation_type is a short snake_case label
such as risk_mitigation, compliance_gap or governance_improvement.`

// Recommend generates 2-4 recommendations for one entity and stores them as pending.
func (s *Service) Recommend(ctx context.Context, req RecommendRequest) ([]Recommendation, error) {
	req.EntityType = strings.TrimSpace(req.EntityType)
	req.EntityID = strings.TrimSpace(req.EntityID)
	if req.EntityType == "" || len(req.EntityType) > 100 {
		return nil, apperr.Validation("entity_type is required (max 100 characters)")
	}
	if req.EntityID == "" || len(req.EntityID) > 100 {
		return nil, apperr.Validation("entity_id is required (max 100 characters)")
	}
	ctxJSON, err := json.Marshal(req.Context)
	if err != nil {
		return nil, apperr.Validation("context must be a JSON object")
	}
	if len(ctxJSON) > maxContextBytes {
		return nil, apperr.Validation("context must be at most %d bytes", maxContextBytes)
	}

	user := fmt.Sprintf("Entity type: %s\nEntity id: %s\nContext: %s\n\nGenerate %d to %d recommendations.",
		req.EntityType, req.EntityID, ctxJSON, minRecommendations, maxRecommendations)
	var items []recommendationItem
	err = s.generate(ctx, "recommendations", Request{
		Name:         "recommendations",
		SystemPrompt: recommendSystemPrompt,
		UserPrompt:   user,
		Schema:       recommendationSchema,
	}, func(raw json.RawMessage) (err error) {
		items, err = parseRecommendations(raw, minRecommendations, maxRecommendations)
		return err
	})
	if err != nil {
		return nil, err
	}

	now := s.now()
	recs := make([]Recommendation, 0, len(items))
	for _, it := range items {
		recs = append(recs, Recommendation{
			ID:                 uuid.NewString(),
			EntityType:         req.EntityType,
			EntityID:           req.EntityID,
			RecommendationType: it.RecommendationType,
			Title:              it.Title,
			Description:        strings.TrimSpace(it.Description),
			Rationale:          strings.TrimSpace(it.Rationale),
			ConfidenceScore:    *it.ConfidenceScore,
			Priority:           it.Priority,
			Status:             RecommendationPending,
			CreatedAt:          now,
			UpdatedAt:          now,
		})
	}
	if err := s.repo.SaveRecommendations(ctx, recs); err != nil {
		return nil, apperr.Persistence("save recommendations", err)
	}

	ids := make([]string, len(recs))
	for i, r := range recs {
		ids[i] = r.ID
	}
	s.record(ctx, audit.ActionGenerate, req.EntityType, &req.EntityID, map[string]any{
		"kind": EntityRecommendation, "count": len(recs), "ids": ids,
	})
	return recs, nil
}

func (s *Service) ListRecommendations(ctx context.Context, entityType, entityID string, limit int) ([]Recommendation, error) {
	out, err := s.repo.ListRecommendations(ctx, entityType, entityID, clampLimit(limit))
	if err != nil {
		return nil, apperr.Persistence("list recommendations", err)
	}
	return out, nil
}

// UpdateRecommendationStatus marks a pending recommendation implemented or dismissed.
func (s *Service) UpdateRecommendationStatus(ctx context.Context, id string, status RecommendationStatus) (Recommendation, error) {
	if status != RecommendationImplemented && status != RecommendationDismissed {
		return Recommendation{}, apperr.Validation("status must be implemented or dismissed")
	}
	if _, err := uuid.Parse(id); err != nil {
		return Recommendation{}, ErrNotFound
	}
	by, err := auth.UserID(ctx)
	if err != nil {
		return Recommendation{}, apperr.Validation("caller identity is required")
	}
	rec, err := s.repo.SetRecommendationStatus(ctx, id, status, by, s.now())
	if err != nil {
		return Recommendation{}, passthrough("update recommendation", err)
	}
	s.record(ctx, audit.ActionStatus, EntityRecommendation, &rec.ID, map[string]any{
		"changes": audit.Changes{"status": {From: RecommendationPending, To: status}},
	})
	return rec, nil
}

const mappingSystemPrompt = `You are a compliance analyst mapping an internal policy to regulatory requirements.
Only use requirement ids from the list you are given. For each relevant requirement return its
requirement_id, a confidence_score between 0 and 1 and a short rationale. Return an empty list
when nothing applies.`

// MapPolicy asks the model which known requirements a policy satisfies.
// Ids the model invents are discarded.
func (s *Service) MapPolicy(ctx context.Context, policyID string) ([]RegulationMapping, error) {
	policy, err := s.records.GetPolicy(ctx, policyID)
	if err != nil {
		return nil, err
	}
	reqs, err := s.records.ListRequirements(ctx, records.ListFilter{Limit: 500})
	if err != nil {
		return nil, err
	}
	if len(reqs) == 0 {
		return []RegulationMapping{}, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Policy\nTitle: %s\nCategory: %s\nDescription: %s\n\nRequirements:\n", policy.Title, policy.Category, policy.Description)
	known := make(map[string]bool, len(reqs))
	for _, r := range reqs {
		known[r.ID] = true
		fmt.Fprintf(&b, "- id: %s | code: %s | title: %s | source: %s | category: %s\n", r.ID, r.RequirementCode, r.Title, r.Source, r.Category)
	}

	var items []mappingItem
	err = s.generate(ctx, "map_regulations", Request{
		Name:         "regulation_mappings",
		SystemPrompt: mappingSystemPrompt,
		UserPrompt:   b.String(),
		Schema:       mappingSchema,
	}, func(raw json.RawMessage) (err error) {
		items, err = parseMappings(raw, known)
		return err
	})
	if err != nil {
		return nil, err
	}

	now := s.now()
	var mappedBy *string
	if uid, err := auth.UserID(ctx); err == nil {
		mappedBy = &uid
	}
	out := make([]RegulationMapping, 0, len(items))
	for _, it := range items {
		out = append(out, RegulationMapping{
			ID:                uuid.NewString(),
			PolicyID:          policy.ID,
			RequirementID:     it.RequirementID,
			MappingConfidence: *it.ConfidenceScore,
			MappingRationale:  strings.TrimSpace(it.Rationale),
			MappedBy:          mappedBy,
			MappedAt:          now,
		})
	}
	if len(out) > 0 {
		if err := s.repo.SaveMappings(ctx, out); err != nil {
			return nil, apperr.Persistence("save mappings", err)
		}
	}

	reqIDs := make([]string, len(out))
	for i, m := range out {
		reqIDs[i] = m.RequirementID
	}
	s.record(ctx, audit.ActionGenerate, records.EntityPolicy, &policy.ID, map[string]any{
		"kind": EntityMapping, "count": len(out), "requirement_ids": reqIDs,
	})
	return out, nil
}

func (s *Service) ListMappings(ctx context.Context, policyID string) ([]RegulationMapping, error) {
	if _, err := uuid.Parse(policyID); err != nil {
		return []RegulationMapping{}, nil
	}
	out, err := s.repo.ListMappings(ctx, policyID)
	if err != nil {
		return nil, apperr.Persistence("list mappings", err)
	}
	return out, nil
}

const predictSystemPrompt = `You are a predictive compliance analyst. From the requirements, risks and incidents
given, predict compliance issues likely to surface within the next 90 days. Each alert has an
alert_type (snake_case, e.g. compliance_deadline, risk_escalation), a severity (low, medium,
high, critical), a title, a description, the entity_type and entity_id it concerns (use ids
from the data, or empty strings), a predicted_date as YYYY-MM-DD and a confidence_score
between 0 and 1.`

type requirementBrief struct {
	ID      string     `json:"id"`
	Code    string     `json:"code"`
	Title   string     `json:"title"`
	Status  string     `json:"status"`
	DueDate *time.Time `json:"due_date,omitempty"`
}

type riskBrief struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Score  int    `json:"risk_score"`
	Status string `json:"status"`
}

type incidentBrief struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Severity   string    `json:"severity"`
	Status     string    `json:"status"`
	ReportedAt time.Time `json:"reported_at"`
}

// Predict generates 3-5 predictive alerts from a bounded sample of current records.
func (s *Service) Predict(ctx context.Context) ([]Alert, error) {
	reqs, err := s.records.ListRequirements(ctx, records.ListFilter{Limit: predictRequirements})
	if err != nil {
		return nil, err
	}
	rs, err := s.risks.List(ctx, risk.ListFilter{Limit: predictRisks})
	if err != nil {
		return nil, err
	}
	incs, err := s.records.ListIncidents(ctx, records.ListFilter{Limit: predictIncidents})
	if err != nil {
		return nil, err
	}

	rb := make([]requirementBrief, 0, len(reqs))
	for _, r := range reqs {
		rb = append(rb, requirementBrief{ID: r.ID, Code: r.RequirementCode, Title: r.Title, Status: string(r.Status), DueDate: r.DueDate})
	}
	kb := make([]riskBrief, 0, len(rs))
	for _, r := range rs {
		kb = append(kb, riskBrief{ID: r.ID, Title: r.Title, Score: r.RiskScore, Status: string(r.Status)})
	}
	ib := make([]incidentBrief, 0, len(incs))
	for _, i := range incs {
		ib = append(ib, incidentBrief{ID: i.ID, Title: i.Title, Severity: string(i.Severity), Status: string(i.Status), ReportedAt: i.ReportedAt})
	}
	data, err := json.Marshal(map[string]any{"requirements": rb, "risks": kb, "recent_incidents": ib})
	if err != nil {
		return nil, fmt.Errorf("ai: marshal prompt data: %w", err)
	}

	user := fmt.Sprintf("Today is %s.\nData: %s\n\nGenerate %d to %d predictive alerts.",
		s.now().Format(time.DateOnly), data, minAlerts, maxAlerts)
	var items []alertItem
	err = s.generate(ctx, "predictions", Request{
		Name:         "predictive_alerts",
		SystemPrompt: predictSystemPrompt,
		UserPrompt:   user,
		Schema:       alertSchema,
	}, func(raw json.RawMessage) (err error) {
		items, err = parseAlerts(raw, minAlerts, maxAlerts)
		return err
	})
	if err != nil {
		return nil, err
	}

	now := s.now()
	alerts := make([]Alert, 0, len(items))
	for _, it := range items {
		entityType, entityID := optionalRef(it.EntityType, it.EntityID)
		a := Alert{
			ID:              uuid.NewString(),
			AlertType:       it.AlertType,
			Severity:        it.Severity,
			Title:           it.Title,
			Description:     strings.TrimSpace(it.Description),
			EntityType:      entityType,
			EntityID:        entityID,
			ConfidenceScore: *it.ConfidenceScore,
			Status:          AlertActive,
			CreatedAt:       now,
		}
		if it.PredictedDate != "" {
			d, _ := time.Parse(time.DateOnly, it.PredictedDate)
			a.PredictedDate = &d
		}
		alerts = append(alerts, a)
	}
	if err := s.repo.SaveAlerts(ctx, alerts); err != nil {
		return nil, apperr.Persistence("save alerts", err)
	}

	ids := make([]string, len(alerts))
	for i, a := range alerts {
		ids[i] = a.ID
	}
	s.record(ctx, audit.ActionGenerate, EntityAlert, nil, map[string]any{"count": len(alerts), "ids": ids})
	return alerts, nil
}

func (s *Service) ListAlerts(ctx context.Context, status AlertStatus, limit int) ([]Alert, error) {
	out, err := s.repo.ListAlerts(ctx, status, clampLimit(limit))
	if err != nil {
		return nil, apperr.Persistence("list alerts", err)
	}
	return out, nil
}

func (s *Service) AcknowledgeAlert(ctx context.Context, id string) (Alert, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Alert{}, ErrNotFound
	}
	by, err := auth.UserID(ctx)
	if err != nil {
		return Alert{}, apperr.Validation("caller identity is required")
	}
	a, err := s.repo.AcknowledgeAlert(ctx, id, by, s.now())
	if err != nil {
		return Alert{}, passthrough("acknowledge alert", err)
	}
	s.record(ctx, audit.ActionAcknowledge, EntityAlert, &a.ID, nil)
	return a, nil
}

// generate runs one capped, metered gateway call and hands the reply to
// parse. Each call is counted once: "ok" only when parse accepts the reply.
func (s *Service) generate(ctx context.Context, function string, req Request, parse func(json.RawMessage) error) error {
	if s.completer == nil {
		metrics.AIRequests.WithLabelValues(function, "not_configured").Inc()
		return ErrNotConfigured
	}
	if s.limiter != nil {
		uid, _ := auth.UserID(ctx)
		if uid == "" {
			uid = "anonymous"
		}
		release, err := s.limiter.Acquire(ctx, uid)
		if err != nil {
			metrics.AIRequests.WithLabelValues(function, "capped").Inc()
			return err
		}
		defer release()
	}

	start := time.Now()
	raw, err := s.completer.Complete(ctx, req)
	if err != nil {
		return s.failed(ctx, function, err)
	}
	if err := parse(raw); err != nil {
		return s.failed(ctx, function, err)
	}
	metrics.AIRequests.WithLabelValues(function, "ok").Inc()
	logger.From(ctx).Info("ai generation completed",
		slog.String("function", function),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

// failed counts and logs a generation failure and returns err unchanged.
func (s *Service) failed(ctx context.Context, function string, err error) error {
	outcome := "upstream_error"
	switch {
	case errors.Is(err, ErrUpstreamRateLimited):
		outcome = "rate_limited"
	case errors.Is(err, ErrUpstreamPaymentRequired):
		outcome = "payment_required"
	case errors.Is(err, ErrInvalidResponseFormat):
		outcome = "invalid_format"
	case errors.Is(err, ErrNotConfigured):
		outcome = "not_configured"
	}
	metrics.AIRequests.WithLabelValues(function, outcome).Inc()
	logger.From(ctx).Warn("ai generation failed",
		slog.String("function", function),
		slog.String("outcome", outcome),
		slog.Any("err", err),
	)
	return err
}

func (s *Service) record(ctx context.Context, action, entityType string, entityID *string, details map[string]any) {
	if s.audit == nil {
		return
	}
	e := audit.Entry{Action: action, EntityType: entityType, EntityID: entityID}
	if details != nil {
		e.Details = audit.MustDetails(details)
	}
	s.audit.Record(ctx, e)
}

func (s *Service) now() time.Time { return s.clock().UTC() }

func passthrough(op string, err error) error {
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidTransition) {
		return err
	}
	return apperr.Persistence(op, err)
}

func clampLimit(n int) int {
	switch {
	case n <= 0:
		return 50
	case n > 200:
		return 200
	}
	return n
}
