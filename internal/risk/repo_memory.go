package risk

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepo is an in-memory Repository for tests and local development.
type MemoryRepo struct {
	mu    sync.Mutex
	risks map[string]Risk
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{risks: map[string]Risk{}} }

func (m *MemoryRepo) Create(_ context.Context, r Risk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.risks[r.ID] = r
	return nil
}

func (m *MemoryRepo) Get(_ context.Context, id string) (Risk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.risks[id]
	if !ok {
		return Risk{}, ErrNotFound
	}
	return r, nil
}

func (m *MemoryRepo) List(_ context.Context, f ListFilter) ([]Risk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Risk, 0, len(m.risks))
	for _, r := range m.risks {
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		if f.ApprovalStatus != "" && r.ApprovalStatus != f.ApprovalStatus {
			continue
		}
		if f.Category != "" && r.Category != f.Category {
			continue
		}
		if f.OwnerID != "" && (r.OwnerID == nil || *r.OwnerID != f.OwnerID) {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RiskScore != out[j].RiskScore {
			return out[i].RiskScore > out[j].RiskScore
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *MemoryRepo) Update(_ context.Context, r Risk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.risks[r.ID]
	if !ok {
		return ErrNotFound
	}
	// approval fields only change through Decide
	r.ApprovalStatus = cur.ApprovalStatus
	r.ApprovedBy = cur.ApprovedBy
	r.ApprovedAt = cur.ApprovedAt
	m.risks[r.ID] = r
	return nil
}

func (m *MemoryRepo) Decide(_ context.Context, id string, d Decision) (Risk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.risks[id]
	if !ok {
		return Risk{}, ErrNotFound
	}
	if r.ApprovalStatus != ApprovalPending {
		return Risk{}, ErrInvalidTransition
	}
	by, at := d.DecidedBy, d.DecidedAt
	r.ApprovalStatus = d.Status
	r.ApprovedBy = &by
	r.ApprovedAt = &at
	r.UpdatedAt = at
	m.risks[id] = r
	return r, nil
}
