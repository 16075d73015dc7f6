package risk

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"grc-platform/internal/apperr"
	"grc-platform/internal/audit"
	"grc-platform/internal/auth"

	"github.com/google/uuid"
)

// EntityType is the audit entity_type for risks.
const EntityType = "risk"

var (
	ErrNotFound          = fmt.Errorf("%w: risk", apperr.ErrNotFound)
	ErrInvalidTransition = fmt.Errorf("%w: risk approval is already decided", apperr.ErrConflict)
	ErrApproverRequired  = fmt.Errorf("%w: approver identity required", apperr.ErrValidation)
	ErrUnknownObjective  = fmt.Errorf("%w: objective_id does not reference an objective", apperr.ErrValidation)
)

const (
	defaultListLimit = 100
	maxListLimit     = 500
)

// Repository persists risks. Decide must apply only to a pending risk and
// return ErrInvalidTransition otherwise, atomically.
type Repository interface {
	Create(ctx context.Context, r Risk) error
	Get(ctx context.Context, id string) (Risk, error)
	List(ctx context.Context, f ListFilter) ([]Risk, error)
	Update(ctx context.Context, r Risk) error
	Decide(ctx context.Context, id string, d Decision) (Risk, error)
}

// Auditor records one audit entry per mutation. Failures are handled by the auditor.
type Auditor interface {
	Record(ctx context.Context, e audit.Entry) (audit.Entry, bool)
}

type Service struct {
	repo  Repository
	audit Auditor
	clock func() time.Time
}

func NewService(repo Repository, auditor Auditor) *Service {
	return &Service{repo: repo, audit: auditor, clock: time.Now}
}

func (s *Service) Create(ctx context.Context, req CreateRequest) (Risk, error) {
	now := s.clock().UTC()
	r := Risk{
		ID:             uuid.NewString(),
		Title:          strings.TrimSpace(req.Title),
		Description:    strings.TrimSpace(req.Description),
		Category:       strings.TrimSpace(req.Category),
		Likelihood:     req.Likelihood,
		Impact:         req.Impact,
		Status:         StatusOpen,
		ApprovalStatus: ApprovalPending,
		MitigationPlan: strings.TrimSpace(req.MitigationPlan),
		ObjectiveID:    blankToNil(req.ObjectiveID),
		OwnerID:        blankToNil(req.OwnerID),
		RiskChampionID: blankToNil(req.RiskChampionID),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if r.OwnerID == nil {
		if uid, err := auth.UserID(ctx); err == nil {
			r.OwnerID = &uid
		}
	}
	if err := validate(r); err != nil {
		return Risk{}, err
	}
	if err := score(&r); err != nil {
		return Risk{}, err
	}

	if err := s.repo.Create(ctx, r); err != nil {
		return Risk{}, apperr.Persistence("create risk", err)
	}

	s.record(ctx, audit.ActionCreate, r.ID, map[string]any{
		"title":      r.Title,
		"category":   r.Category,
		"risk_score": r.RiskScore,
		"band":       r.Band,
	})
	return r, nil
}

func (s *Service) Get(ctx context.Context, id string) (Risk, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Risk{}, ErrNotFound
	}
	r, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Risk{}, err
		}
		return Risk{}, apperr.Persistence("get risk", err)
	}
	r.Band = ClassifyScore(r.RiskScore)
	return r, nil
}

// List returns risks ordered by score, highest first.
func (s *Service) List(ctx context.Context, f ListFilter) ([]Risk, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, apperr.Validation("unknown status %q", f.Status)
	}
	switch {
	case f.Limit <= 0:
		f.Limit = defaultListLimit
	case f.Limit > maxListLimit:
		f.Limit = maxListLimit
	}
	out, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, apperr.Persistence("list risks", err)
	}
	for i := range out {
		out[i].Band = ClassifyScore(out[i].RiskScore)
	}
	return out, nil
}

// Update applies a partial update. The score is recomputed whenever either rating changes.
func (s *Service) Update(ctx context.Context, id string, req UpdateRequest) (Risk, error) {
	cur, err := s.Get(ctx, id)
	if err != nil {
		return Risk{}, err
	}
	next := cur

	if req.Title != nil {
		next.Title = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		next.Description = strings.TrimSpace(*req.Description)
	}
	if req.Category != nil {
		next.Category = strings.TrimSpace(*req.Category)
	}
	if req.Likelihood != nil {
		next.Likelihood = *req.Likelihood
	}
	if req.Impact != nil {
		next.Impact = *req.Impact
	}
	if req.MitigationPlan != nil {
		next.MitigationPlan = strings.TrimSpace(*req.MitigationPlan)
	}
	if req.ObjectiveID != nil {
		next.ObjectiveID = blankToNil(req.ObjectiveID)
	}
	if req.OwnerID != nil {
		next.OwnerID = blankToNil(req.OwnerID)
	}
	if req.RiskChampionID != nil {
		next.RiskChampionID = blankToNil(req.RiskChampionID)
	}

	if err := validate(next); err != nil {
		return Risk{}, err
	}
	if err := score(&next); err != nil {
		return Risk{}, err
	}

	changes := audit.Changes{}
	changes.Set("title", cur.Title, next.Title)
	changes.SetText("description", cur.Description, next.Description)
	changes.Set("category", cur.Category, next.Category)
	changes.Set("likelihood", cur.Likelihood, next.Likelihood)
	changes.Set("impact", cur.Impact, next.Impact)
	changes.Set("risk_score", cur.RiskScore, next.RiskScore)
	changes.SetText("mitigation_plan", cur.MitigationPlan, next.MitigationPlan)
	changes.Set("objective_id", deref(cur.ObjectiveID), deref(next.ObjectiveID))
	changes.Set("owner_id", deref(cur.OwnerID), deref(next.OwnerID))
	changes.Set("risk_champion_id", deref(cur.RiskChampionID), deref(next.RiskChampionID))
	if changes.Empty() {
		return cur, nil
	}

	next.UpdatedAt = s.clock().UTC()
	if err := s.repo.Update(ctx, next); err != nil {
		if errors.Is(err, ErrNotFound) {
			return Risk{}, err
		}
		return Risk{}, apperr.Persistence("update risk", err)
	}

	s.recordDetails(ctx, audit.ActionUpdate, next.ID, changes.Details(map[string]any{"band": next.Band}))
	return next, nil
}

// SetStatus moves a risk through its lifecycle. Closing is the only way to retire a risk.
func (s *Service) SetStatus(ctx context.Context, id string, status Status) (Risk, error) {
	if !status.Valid() {
		return Risk{}, apperr.Validation("unknown status %q", status)
	}
	cur, err := s.Get(ctx, id)
	if err != nil {
		return Risk{}, err
	}
	if cur.Status == status {
		return cur, nil
	}

	next := cur
	next.Status = status
	next.UpdatedAt = s.clock().UTC()
	if err := s.repo.Update(ctx, next); err != nil {
		if errors.Is(err, ErrNotFound) {
			return Risk{}, err
		}
		return Risk{}, apperr.Persistence("update risk status", err)
	}

	changes := audit.Changes{}
	changes.Set("status", cur.Status, next.Status)
	s.recordDetails(ctx, audit.ActionStatus, next.ID, changes.Details(nil))
	return next, nil
}

func (s *Service) Approve(ctx context.Context, id string) (Risk, error) {
	return s.decide(ctx, id, ApprovalApproved, audit.ActionApprove)
}

func (s *Service) Reject(ctx context.Context, id string) (Risk, error) {
	return s.decide(ctx, id, ApprovalRejected, audit.ActionReject)
}

func (s *Service) decide(ctx context.Context, id string, status ApprovalStatus, action string) (Risk, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Risk{}, ErrNotFound
	}
	approver, err := auth.UserID(ctx)
	if err != nil {
		return Risk{}, ErrApproverRequired
	}

	r, err := s.repo.Decide(ctx, id, Decision{Status: status, DecidedBy: approver, DecidedAt: s.clock().UTC()})
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidTransition) {
			return Risk{}, err
		}
		return Risk{}, apperr.Persistence("decide risk approval", err)
	}
	r.Band = ClassifyScore(r.RiskScore)

	s.record(ctx, action, r.ID, map[string]any{
		"approval_status": r.ApprovalStatus,
		"risk_score":      r.RiskScore,
	})
	return r, nil
}

func (s *Service) record(ctx context.Context, action, id string, details map[string]any) {
	s.recordDetails(ctx, action, id, audit.MustDetails(details))
}

func (s *Service) recordDetails(ctx context.Context, action, id string, details []byte) {
	if s.audit == nil {
		return
	}
	s.audit.Record(ctx, audit.Entry{
		Action:     action,
		EntityType: EntityType,
		EntityID:   audit.StringPtr(id),
		Details:    details,
	})
}

func score(r *Risk) error {
	sc, band, err := Score(r.Likelihood, r.Impact)
	if err != nil {
		return err
	}
	r.RiskScore = sc
	r.Band = band
	return nil
}

func validate(r Risk) error {
	if n := utf8.RuneCountInString(r.Title); n < 3 || n > 200 {
		return apperr.Validation("title must be 3-200 characters")
	}
	if utf8.RuneCountInString(r.Description) > 1000 {
		return apperr.Validation("description must be at most 1000 characters")
	}
	if r.Category == "" || utf8.RuneCountInString(r.Category) > 100 {
		return apperr.Validation("category is required and must be at most 100 characters")
	}
	if utf8.RuneCountInString(r.MitigationPlan) > 2000 {
		return apperr.Validation("mitigation_plan must be at most 2000 characters")
	}
	if r.ObjectiveID != nil {
		if _, err := uuid.Parse(*r.ObjectiveID); err != nil {
			return apperr.Validation("objective_id must be a uuid")
		}
	}
	return nil
}

func blankToNil(p *string) *string {
	if p == nil {
		return nil
	}
	v := strings.TrimSpace(*p)
	if v == "" {
		return nil
	}
	return &v
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
