package ai

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-memory Repository for tests and local development.
type MemoryRepo struct {
	mu       sync.Mutex
	recs     map[string]Recommendation
	mappings map[string]RegulationMapping // keyed by policy_id + "/" + requirement_id
	alerts   map[string]Alert
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		recs:     map[string]Recommendation{},
		mappings: map[string]RegulationMapping{},
		alerts:   map[string]Alert{},
	}
}

func (m *MemoryRepo) SaveRecommendations(_ context.Context, recs []Recommendation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range recs {
		m.recs[r.ID] = r
	}
	return nil
}

func (m *MemoryRepo) ListRecommendations(_ context.Context, entityType, entityID string, limit int) ([]Recommendation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Recommendation, 0)
	for _, r := range m.recs {
		if entityType != "" && r.EntityType != entityType {
			continue
		}
		if entityID != "" && r.EntityID != entityID {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryRepo) SetRecommendationStatus(_ context.Context, id string, status RecommendationStatus, by string, at time.Time) (Recommendation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.recs[id]
	if !ok {
		return Recommendation{}, ErrNotFound
	}
	if r.Status != RecommendationPending {
		return Recommendation{}, ErrInvalidTransition
	}
	r.Status = status
	r.ImplementedBy = &by
	if status == RecommendationImplemented {
		r.ImplementedAt = &at
	}
	r.UpdatedAt = at
	m.recs[id] = r
	return r, nil
}

func (m *MemoryRepo) SaveMappings(_ context.Context, mappings []RegulationMapping) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, mp := range mappings {
		key := mp.PolicyID + "/" + mp.RequirementID
		if cur, ok := m.mappings[key]; ok {
			mp.ID = cur.ID
		}
		m.mappings[key] = mp
	}
	return nil
}

func (m *MemoryRepo) ListMappings(_ context.Context, policyID string) ([]RegulationMapping, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]RegulationMapping, 0)
	for _, mp := range m.mappings {
		if mp.PolicyID == policyID {
			out = append(out, mp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MappingConfidence > out[j].MappingConfidence })
	return out, nil
}

func (m *MemoryRepo) SaveAlerts(_ context.Context, alerts []Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range alerts {
		m.alerts[a.ID] = a
	}
	return nil
}

func (m *MemoryRepo) ListAlerts(_ context.Context, status AlertStatus, limit int) ([]Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Alert, 0)
	for _, a := range m.alerts {
		if status != "" && a.Status != status {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryRepo) AcknowledgeAlert(_ context.Context, id, by string, at time.Time) (Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.alerts[id]
	if !ok {
		return Alert{}, ErrNotFound
	}
	if a.Status != AlertActive {
		return Alert{}, ErrInvalidTransition
	}
	a.Status = AlertAcknowledged
	a.AcknowledgedBy = &by
	a.AcknowledgedAt = &at
	m.alerts[id] = a
	return a, nil
}
