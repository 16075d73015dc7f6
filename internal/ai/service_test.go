package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"grc-platform/internal/apperr"
	"grc-platform/internal/audit"
	"grc-platform/internal/auth"
	"grc-platform/internal/records"
	"grc-platform/internal/risk"
	"grc-platform/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fakeCompleter struct {
	mu    sync.Mutex
	reply string
	err   error
	last  Request
}

func (f *fakeCompleter) Complete(_ context.Context, req Request) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	return json.RawMessage(f.reply), nil
}

type fixture struct {
	svc       *Service
	completer *fakeCompleter
	repo      *MemoryRepo
	records   *records.Service
	auditRepo *audit.MemoryRepo
}

func newFixture(t *testing.T, opts ...Option) fixture {
	t.Helper()
	auditRepo := audit.NewMemoryRepo()
	recorder := audit.NewRecorder(audit.NewService(auditRepo))
	recSvc := records.NewService(records.NewMemoryRepo(), nil)
	riskSvc := risk.NewService(risk.NewMemoryRepo(), nil)
	c := &fakeCompleter{}
	repo := NewMemoryRepo()
	opts = append([]Option{WithClock(func() time.Time { return time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC) })}, opts...)
	return fixture{
		svc:       NewService(c, repo, recSvc, riskSvc, recorder, opts...),
		completer: c,
		repo:      repo,
		records:   recSvc,
		auditRepo: auditRepo,
	}
}

func asUser(id string) context.Context {
	return auth.WithIdentity(context.Background(), auth.Identity{UserID: id, Email: id + "@example.com", Role: "compliance"})
}

func recJSON(n int) string {
	items := make([]string, n)
	for i := range items {
		items[i] = fmt.Sprintf(`{"recommendation_type":"risk_mitigation","title":"Rec %d","description":"d","rationale":"r","confidence_score":0.8,"priority":"medium"}`, i)
	}
	return "[" + strings.Join(items, ",") + "]"
}

func TestRecommend_PersistsPendingAndAudits(t *testing.T) {
	f := newFixture(t)
	f.completer.reply = recJSON(3)
	ctx := asUser("u1")

	recs, err := f.svc.Recommend(ctx, RecommendRequest{EntityType: "risk", EntityID: "r1", Context: map[string]any{"score": 20}})
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("expected 3 recommendations, got %d", len(recs))
	}
	for _, r := range recs {
		if r.Status != RecommendationPending || r.EntityID != "r1" {
			t.Fatalf("unexpected recommendation %+v", r)
		}
	}
	if !strings.Contains(f.completer.last.UserPrompt, `"score":20`) {
		t.Fatalf("context not passed to the model: %q", f.completer.last.UserPrompt)
	}

	stored, _ := f.repo.ListRecommendations(ctx, "risk", "r1", 10)
	if len(stored) != 3 {
		t.Fatalf("expected 3 stored, got %d", len(stored))
	}
	entries := f.auditRepo.Entries()
	if len(entries) != 1 || entries[0].Action != audit.ActionGenerate || *entries[0].EntityID != "r1" {
		t.Fatalf("unexpected audit %+v", entries)
	}
}

func TestRecommend_InvalidFormatStoresNothing(t *testing.T) {
	f := newFixture(t)
	f.completer.reply = recJSON(1)

	_, err := f.svc.Recommend(asUser("u1"), RecommendRequest{EntityType: "risk", EntityID: "r1"})
	if !errors.Is(err, ErrInvalidResponseFormat) {
		t.Fatalf("expected ErrInvalidResponseFormat, got %v", err)
	}
	stored, _ := f.repo.ListRecommendations(context.Background(), "", "", 10)
	if len(stored) != 0 || len(f.auditRepo.Entries()) != 0 {
		t.Fatalf("failed generation must not persist anything")
	}
}

func TestRecommend_ValidatesInput(t *testing.T) {
	f := newFixture(t)
	if _, err := f.svc.Recommend(asUser("u1"), RecommendRequest{EntityID: "r1"}); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRecommend_UpstreamErrorsPassThrough(t *testing.T) {
	f := newFixture(t)
	f.completer.err = ErrUpstreamPaymentRequired
	if _, err := f.svc.Recommend(asUser("u1"), RecommendRequest{EntityType: "risk", EntityID: "r1"}); !errors.Is(err, ErrUpstreamPaymentRequired) {
		t.Fatalf("expected payment required, got %v", err)
	}
}

func TestMapPolicy_OnlyKnownRequirements(t *testing.T) {
	f := newFixture(t)
	ctx := asUser("u7")

	pol, err := f.records.CreatePolicy(ctx, records.PolicyInput{Title: "Data retention", Category: "privacy"})
	if err != nil {
		t.Fatalf("policy: %v", err)
	}
	req, err := f.records.CreateRequirement(ctx, records.RequirementInput{RequirementCode: "NDPR-2.1", Title: "Retention limits", Source: "NDPR", Category: "privacy"})
	if err != nil {
		t.Fatalf("requirement: %v", err)
	}
	f.completer.reply = fmt.Sprintf(`[
		{"requirement_id":%q,"confidence_score":0.92,"rationale":"covers retention"},
		{"requirement_id":"11111111-1111-1111-1111-111111111111","confidence_score":0.5,"rationale":"made up"}
	]`, req.ID)

	out, err := f.svc.MapPolicy(ctx, pol.ID)
	if err != nil {
		t.Fatalf("map: %v", err)
	}
	if len(out) != 1 || out[0].RequirementID != req.ID || out[0].MappedBy == nil || *out[0].MappedBy != "u7" {
		t.Fatalf("unexpected mappings %+v", out)
	}
	if !strings.Contains(f.completer.last.UserPrompt, "NDPR-2.1") {
		t.Fatalf("requirements missing from prompt")
	}

	listed, _ := f.svc.ListMappings(ctx, pol.ID)
	if len(listed) != 1 {
		t.Fatalf("expected stored mapping, got %d", len(listed))
	}
}

func TestMapPolicy_UnknownPolicy(t *testing.T) {
	f := newFixture(t)
	if _, err := f.svc.MapPolicy(asUser("u1"), "11111111-1111-1111-1111-111111111111"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestPredict_StoresActiveAlerts(t *testing.T) {
	f := newFixture(t)
	alert := `{"alert_type":"compliance_deadline","severity":"high","title":"Filing due","description":"d","entity_type":"compliance","entity_id":"bogus","predicted_date":"2026-06-30","confidence_score":0.7}`
	f.completer.reply = "[" + alert + "," + alert + "," + alert + "]"
	ctx := asUser("u1")

	alerts, err := f.svc.Predict(ctx)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if len(alerts) != 3 {
		t.Fatalf("expected 3 alerts, got %d", len(alerts))
	}
	a := alerts[0]
	if a.Status != AlertActive || a.EntityID != nil || a.PredictedDate == nil {
		t.Fatalf("unexpected alert %+v", a)
	}

	acked, err := f.svc.AcknowledgeAlert(ctx, a.ID)
	if err != nil {
		t.Fatalf("ack: %v", err)
	}
	if acked.Status != AlertAcknowledged || *acked.AcknowledgedBy != "u1" {
		t.Fatalf("unexpected ack %+v", acked)
	}
	if _, err := f.svc.AcknowledgeAlert(ctx, a.ID); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("second ack must conflict, got %v", err)
	}
}

func TestUpdateRecommendationStatus(t *testing.T) {
	f := newFixture(t)
	f.completer.reply = recJSON(2)
	ctx := asUser("u1")
	recs, err := f.svc.Recommend(ctx, RecommendRequest{EntityType: "risk", EntityID: "r1"})
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}

	if _, err := f.svc.UpdateRecommendationStatus(ctx, recs[0].ID, RecommendationPending); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	done, err := f.svc.UpdateRecommendationStatus(ctx, recs[0].ID, RecommendationImplemented)
	if err != nil {
		t.Fatalf("implement: %v", err)
	}
	if done.ImplementedAt == nil || *done.ImplementedBy != "u1" {
		t.Fatalf("expected implementation stamp, got %+v", done)
	}
	if _, err := f.svc.UpdateRecommendationStatus(ctx, recs[0].ID, RecommendationDismissed); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
	if _, err := f.svc.UpdateRecommendationStatus(ctx, "nope", RecommendationDismissed); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

type capLimiter struct{ inflight, limit int }

func (c *capLimiter) Acquire(context.Context, string) (func(), error) {
	if c.inflight >= c.limit {
		return nil, ErrTooManyRequests
	}
	c.inflight++
	return func() { c.inflight-- }, nil
}

func TestGenerate_RespectsLimiter(t *testing.T) {
	lim := &capLimiter{limit: 1}
	f := newFixture(t, WithLimiter(lim))
	f.completer.reply = recJSON(2)

	lim.inflight = 1
	if _, err := f.svc.Recommend(asUser("u1"), RecommendRequest{EntityType: "risk", EntityID: "r1"}); !errors.Is(err, ErrTooManyRequests) {
		t.Fatalf("expected cap error, got %v", err)
	}
	lim.inflight = 0
	if _, err := f.svc.Recommend(asUser("u1"), RecommendRequest{EntityType: "risk", EntityID: "r1"}); err != nil {
		t.Fatalf("recommend: %v", err)
	}
	if lim.inflight != 0 {
		t.Fatalf("slot not released")
	}
}

func TestGenerate_NoCompleter(t *testing.T) {
	svc := NewService(nil, NewMemoryRepo(), nil, nil, nil)
	if _, err := svc.Recommend(asUser("u1"), RecommendRequest{EntityType: "risk", EntityID: "r1"}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestGenerate_CountsEachCallOnce(t *testing.T) {
	f := newFixture(t)
	ctx := asUser("u1")
	counter := func(outcome string) float64 {
		return testutil.ToFloat64(metrics.AIRequests.WithLabelValues("recommendations", outcome))
	}
	ok, invalid := counter("ok"), counter("invalid_format")

	// too few items: the gateway answered but the reply is rejected
	f.completer.reply = recJSON(1)
	if _, err := f.svc.Recommend(ctx, RecommendRequest{EntityType: "risk", EntityID: "r1"}); !errors.Is(err, ErrInvalidResponseFormat) {
		t.Fatalf("expected invalid format, got %v", err)
	}
	if got := counter("ok"); got != ok {
		t.Fatalf("rejected reply counted as ok: %v -> %v", ok, got)
	}
	if got := counter("invalid_format"); got != invalid+1 {
		t.Fatalf("expected invalid_format %v, got %v", invalid+1, got)
	}

	f.completer.reply = recJSON(3)
	if _, err := f.svc.Recommend(ctx, RecommendRequest{EntityType: "risk", EntityID: "r1"}); err != nil {
		t.Fatalf("recommend: %v", err)
	}
	if got := counter("ok"); got != ok+1 {
		t.Fatalf("expected ok %v, got %v", ok+1, got)
	}
	if got := counter("invalid_format"); got != invalid+1 {
		t.Fatalf("success counted as failure: %v", got)
	}
}
