package reporting

import (
	"context"
	"sync"
)

// MemoryRepo is a fixture-backed Repository for tests.
type MemoryRepo struct {
	mu sync.Mutex

	Risks     []RiskRow
	Incidents []IncidentRow

	Err error
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (m *MemoryRepo) ListRisks(_ context.Context, r TimeRange) ([]RiskRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	out := make([]RiskRow, 0, len(m.Risks))
	for _, row := range m.Risks {
		if r.contains(row.CreatedAt) {
			out = append(out, row)
		}
	}
	return out, nil
}

func (m *MemoryRepo) ListIncidents(_ context.Context, r TimeRange) ([]IncidentRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	out := make([]IncidentRow, 0, len(m.Incidents))
	for _, row := range m.Incidents {
		if r.contains(row.ReportedAt) {
			out = append(out, row)
		}
	}
	return out, nil
}
