package risk

import (
	"context"
	"errors"
	"sync"
	"testing"

	"grc-platform/internal/apperr"
	"grc-platform/internal/audit"
	"grc-platform/internal/auth"
)

func newTestService() (*Service, *audit.MemoryRepo) {
	auditRepo := audit.NewMemoryRepo()
	svc := NewService(NewMemoryRepo(), audit.NewRecorder(audit.NewService(auditRepo)))
	return svc, auditRepo
}

func asUser(id, role string) context.Context {
	return auth.WithIdentity(context.Background(), auth.Identity{UserID: id, Email: id + "@example.com", Role: role})
}

func validCreate() CreateRequest {
	return CreateRequest{Title: "Vendor outage", Category: "operational", Likelihood: 3, Impact: 4}
}

func TestService_CreateComputesScoreAndAudits(t *testing.T) {
	svc, auditRepo := newTestService()
	ctx := asUser("u1", "risk")

	r, err := svc.Create(ctx, validCreate())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if r.RiskScore != 12 || r.Band != BandHigh {
		t.Fatalf("expected 12/high, got %d/%s", r.RiskScore, r.Band)
	}
	if r.Status != StatusOpen || r.ApprovalStatus != ApprovalPending {
		t.Fatalf("unexpected initial state %s/%s", r.Status, r.ApprovalStatus)
	}
	if r.OwnerID == nil || *r.OwnerID != "u1" {
		t.Fatalf("expected submitter to own the risk")
	}

	entries := auditRepo.Entries()
	if len(entries) != 1 {
		t.Fatalf("expected one audit entry, got %d", len(entries))
	}
	e := entries[0]
	if e.Action != audit.ActionCreate || e.EntityType != EntityType || *e.EntityID != r.ID {
		t.Fatalf("unexpected audit entry %+v", e)
	}
	if e.Actor() != "u1@example.com" {
		t.Fatalf("expected attribution, got %q", e.Actor())
	}
}

func TestService_CreateValidates(t *testing.T) {
	svc, auditRepo := newTestService()
	ctx := asUser("u1", "risk")

	bad := []CreateRequest{
		{Title: "ab", Category: "c", Likelihood: 1, Impact: 1},
		{Title: "Valid title", Category: "", Likelihood: 1, Impact: 1},
		{Title: "Valid title", Category: "c", Likelihood: 0, Impact: 1},
		{Title: "Valid title", Category: "c", Likelihood: 1, Impact: 6},
	}
	for i, req := range bad {
		if _, err := svc.Create(ctx, req); !errors.Is(err, apperr.ErrValidation) {
			t.Fatalf("case %d: expected validation error, got %v", i, err)
		}
	}
	if len(auditRepo.Entries()) != 0 {
		t.Fatalf("rejected creates must not be audited")
	}
}

func TestService_UpdateRecomputesScore(t *testing.T) {
	svc, auditRepo := newTestService()
	ctx := asUser("u1", "risk")
	r, _ := svc.Create(ctx, validCreate())

	five := 5
	plan := "Dual-source the vendor."
	updated, err := svc.Update(ctx, r.ID, UpdateRequest{Impact: &five, MitigationPlan: &plan})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.RiskScore != 15 || updated.Band != BandHigh {
		t.Fatalf("expected 15/high, got %d/%s", updated.RiskScore, updated.Band)
	}

	got, _ := svc.Get(ctx, r.ID)
	if got.RiskScore != got.Likelihood*got.Impact {
		t.Fatalf("stored score must equal likelihood*impact")
	}

	entries := auditRepo.Entries()
	if len(entries) != 2 || entries[1].Action != audit.ActionUpdate {
		t.Fatalf("expected create+update entries, got %+v", entries)
	}

	// no-op update writes nothing
	if _, err := svc.Update(ctx, r.ID, UpdateRequest{Impact: &five}); err != nil {
		t.Fatalf("noop update: %v", err)
	}
	if len(auditRepo.Entries()) != 2 {
		t.Fatalf("no-op update must not be audited")
	}
}

func TestService_ApproveExactlyOnce(t *testing.T) {
	svc, auditRepo := newTestService()
	r, _ := svc.Create(asUser("u1", "risk"), validCreate())

	approved, err := svc.Approve(asUser("b1", "board"), r.ID)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approved.ApprovalStatus != ApprovalApproved || approved.ApprovedBy == nil || *approved.ApprovedBy != "b1" || approved.ApprovedAt == nil {
		t.Fatalf("unexpected approval fields %+v", approved)
	}

	if _, err := svc.Approve(asUser("b2", "board"), r.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition on second approve, got %v", err)
	}
	if _, err := svc.Reject(asUser("b2", "board"), r.ID); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected conflict on reject after approve, got %v", err)
	}

	got, err := audit.NewService(auditRepo).Query(context.Background(), audit.Filter{EntityID: r.ID})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	approvals := 0
	for _, e := range got {
		if e.Action == audit.ActionApprove {
			approvals++
		}
	}
	if approvals != 1 {
		t.Fatalf("expected exactly one approve entry, got %d", approvals)
	}
}

func TestService_ConcurrentApprovalsHaveOneWinner(t *testing.T) {
	svc, _ := newTestService()
	r, _ := svc.Create(asUser("u1", "risk"), validCreate())

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Approve(asUser("b1", "board"), r.ID); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("expected exactly one successful approval, got %d", wins)
	}
}

func TestService_ApproveRequiresIdentity(t *testing.T) {
	svc, _ := newTestService()
	r, _ := svc.Create(asUser("u1", "risk"), validCreate())
	if _, err := svc.Approve(context.Background(), r.ID); !errors.Is(err, ErrApproverRequired) {
		t.Fatalf("expected ErrApproverRequired, got %v", err)
	}
}

func TestService_SetStatusAndNotFound(t *testing.T) {
	svc, auditRepo := newTestService()
	ctx := asUser("u1", "risk")
	r, _ := svc.Create(ctx, validCreate())

	closed, err := svc.SetStatus(ctx, r.ID, StatusClosed)
	if err != nil || closed.Status != StatusClosed {
		t.Fatalf("expected closed, got %v %v", closed.Status, err)
	}
	if _, err := svc.SetStatus(ctx, r.ID, Status("archived")); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := svc.Get(ctx, "not-a-uuid"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := svc.Get(ctx, "7b0f4f6e-0000-4000-8000-000000000000"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if n := len(auditRepo.Entries()); n != 2 {
		t.Fatalf("expected create+status entries, got %d", n)
	}
}

func TestService_ListOrdersByScore(t *testing.T) {
	svc, _ := newTestService()
	ctx := asUser("u1", "risk")
	for _, in := range [][2]int{{1, 1}, {5, 5}, {2, 3}} {
		req := validCreate()
		req.Likelihood, req.Impact = in[0], in[1]
		if _, err := svc.Create(ctx, req); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	list, err := svc.List(ctx, ListFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 3 || list[0].RiskScore != 25 || list[2].RiskScore != 1 {
		t.Fatalf("unexpected order %+v", list)
	}
	if list[0].Band != BandCritical {
		t.Fatalf("expected band on listed risks")
	}
}

func TestService_AuditFailureDoesNotFailMutation(t *testing.T) {
	auditRepo := audit.NewMemoryRepo()
	auditRepo.Err = errors.New("audit store down")
	svc := NewService(NewMemoryRepo(), audit.NewRecorder(audit.NewService(auditRepo)))

	if _, err := svc.Create(asUser("u1", "risk"), validCreate()); err != nil {
		t.Fatalf("create must succeed when audit write fails: %v", err)
	}
}
