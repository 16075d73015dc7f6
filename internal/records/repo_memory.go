package records

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryRepo is an in-memory Repository for tests and local development.
type MemoryRepo struct {
	mu           sync.Mutex
	policies     map[string]Policy
	requirements map[string]Requirement
	incidents    map[string]Incident
	objectives   map[string]Objective
	departments  map[string]Department
	documents    map[string]Document
	controls     map[string]Control
	mappings     []ControlMapping
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		policies:     map[string]Policy{},
		requirements: map[string]Requirement{},
		incidents:    map[string]Incident{},
		objectives:   map[string]Objective{},
		departments:  map[string]Department{},
		documents:    map[string]Document{},
		controls:     map[string]Control{},
	}
}

func get[T any](m map[string]T, id string) (T, error) {
	v, ok := m[id]
	if !ok {
		var zero T
		return zero, ErrNotFound
	}
	return v, nil
}

func put[T any](m map[string]T, id string, v T, mustExist bool) error {
	if _, ok := m[id]; mustExist && !ok {
		return ErrNotFound
	}
	m[id] = v
	return nil
}

// list filters by status, sorts newest first and truncates to the limit.
func list[T any](m map[string]T, f ListFilter, status func(T) string, created func(T) time.Time) []T {
	out := make([]T, 0, len(m))
	for _, v := range m {
		if f.Status != "" && status != nil && status(v) != f.Status {
			continue
		}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return created(out[i]).After(created(out[j])) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out
}

func (m *MemoryRepo) CreatePolicy(_ context.Context, v Policy) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return put(m.policies, v.ID, v, false)
}

func (m *MemoryRepo) GetPolicy(_ context.Context, id string) (Policy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return get(m.policies, id)
}

func (m *MemoryRepo) ListPolicies(_ context.Context, f ListFilter) ([]Policy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return list(m.policies, f,
		func(v Policy) string { return string(v.Status) },
		func(v Policy) time.Time { return v.CreatedAt }), nil
}

func (m *MemoryRepo) UpdatePolicy(_ context.Context, v Policy) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return put(m.policies, v.ID, v, true)
}

func (m *MemoryRepo) requirementCodeTaken(code, except string) bool {
	for id, r := range m.requirements {
		if id != except && strings.EqualFold(r.RequirementCode, code) {
			return true
		}
	}
	return false
}

func (m *MemoryRepo) CreateRequirement(_ context.Context, v Requirement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.requirementCodeTaken(v.RequirementCode, v.ID) {
		return ErrDuplicateCode
	}
	return put(m.requirements, v.ID, v, false)
}

func (m *MemoryRepo) GetRequirement(_ context.Context, id string) (Requirement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return get(m.requirements, id)
}

func (m *MemoryRepo) ListRequirements(_ context.Context, f ListFilter) ([]Requirement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return list(m.requirements, f,
		func(v Requirement) string { return string(v.Status) },
		func(v Requirement) time.Time { return v.CreatedAt }), nil
}

func (m *MemoryRepo) UpdateRequirement(_ context.Context, v Requirement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.requirementCodeTaken(v.RequirementCode, v.ID) {
		return ErrDuplicateCode
	}
	return put(m.requirements, v.ID, v, true)
}

func (m *MemoryRepo) CreateIncident(_ context.Context, v Incident) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return put(m.incidents, v.ID, v, false)
}

func (m *MemoryRepo) GetIncident(_ context.Context, id string) (Incident, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return get(m.incidents, id)
}

func (m *MemoryRepo) ListIncidents(_ context.Context, f ListFilter) ([]Incident, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return list(m.incidents, f,
		func(v Incident) string { return string(v.Status) },
		func(v Incident) time.Time { return v.ReportedAt }), nil
}

func (m *MemoryRepo) UpdateIncident(_ context.Context, v Incident) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return put(m.incidents, v.ID, v, true)
}

func (m *MemoryRepo) CreateObjective(_ context.Context, v Objective) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return put(m.objectives, v.ID, v, false)
}

func (m *MemoryRepo) GetObjective(_ context.Context, id string) (Objective, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return get(m.objectives, id)
}

func (m *MemoryRepo) ListObjectives(_ context.Context, f ListFilter) ([]Objective, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return list(m.objectives, f,
		func(v Objective) string { return string(v.Status) },
		func(v Objective) time.Time { return v.CreatedAt }), nil
}

func (m *MemoryRepo) UpdateObjective(_ context.Context, v Objective) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return put(m.objectives, v.ID, v, true)
}

func (m *MemoryRepo) departmentCodeTaken(code, except string) bool {
	for id, d := range m.departments {
		if id != except && d.Code == code {
			return true
		}
	}
	return false
}

func (m *MemoryRepo) CreateDepartment(_ context.Context, v Department) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.departmentCodeTaken(v.Code, v.ID) {
		return ErrDuplicateCode
	}
	return put(m.departments, v.ID, v, false)
}

func (m *MemoryRepo) GetDepartment(_ context.Context, id string) (Department, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return get(m.departments, id)
}

func (m *MemoryRepo) ListDepartments(_ context.Context, f ListFilter) ([]Department, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := list(m.departments, ListFilter{}, nil, func(v Department) time.Time { return v.CreatedAt })
	slices.SortFunc(out, func(a, b Department) int { return strings.Compare(a.Name, b.Name) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *MemoryRepo) UpdateDepartment(_ context.Context, v Department) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.departmentCodeTaken(v.Code, v.ID) {
		return ErrDuplicateCode
	}
	return put(m.departments, v.ID, v, true)
}

func (m *MemoryRepo) CreateDocument(_ context.Context, v Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return put(m.documents, v.ID, v, false)
}

func (m *MemoryRepo) GetDocument(_ context.Context, id string) (Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return get(m.documents, id)
}

func (m *MemoryRepo) ListDocuments(_ context.Context, f ListFilter) ([]Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return list(m.documents, ListFilter{Limit: f.Limit}, nil,
		func(v Document) time.Time { return v.CreatedAt }), nil
}

func (m *MemoryRepo) UpdateDocument(_ context.Context, v Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return put(m.documents, v.ID, v, true)
}

func (m *MemoryRepo) controlCodeTaken(code, except string) bool {
	for id, c := range m.controls {
		if id != except && c.ControlCode == code {
			return true
		}
	}
	return false
}

func (m *MemoryRepo) CreateControl(_ context.Context, v Control) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.controlCodeTaken(v.ControlCode, v.ID) {
		return ErrDuplicateCode
	}
	return put(m.controls, v.ID, v, false)
}

func (m *MemoryRepo) GetControl(_ context.Context, id string) (Control, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return get(m.controls, id)
}

func (m *MemoryRepo) ListControls(_ context.Context, f ListFilter) ([]Control, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := list(m.controls, ListFilter{Status: f.Status}, func(v Control) string { return string(v.Status) },
		func(v Control) time.Time { return v.CreatedAt })
	slices.SortFunc(out, func(a, b Control) int { return strings.Compare(a.ControlCode, b.ControlCode) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *MemoryRepo) UpdateControl(_ context.Context, v Control) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.controlCodeTaken(v.ControlCode, v.ID) {
		return ErrDuplicateCode
	}
	return put(m.controls, v.ID, v, true)
}

// CreateControlMapping enforces the same rules as the foreign keys and the
// (policy_id, control_id) unique index.
func (m *MemoryRepo) CreateControlMapping(_ context.Context, v ControlMapping) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.policies[v.PolicyID]; !ok {
		return ErrBadReference
	}
	if _, ok := m.controls[v.ControlID]; !ok {
		return ErrBadReference
	}
	for _, cm := range m.mappings {
		if cm.PolicyID == v.PolicyID && cm.ControlID == v.ControlID {
			return ErrAlreadyMapped
		}
	}
	m.mappings = append(m.mappings, v)
	return nil
}

func (m *MemoryRepo) ListControlMappings(_ context.Context, f MappingFilter) ([]ControlMapping, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ControlMapping, 0)
	for _, cm := range m.mappings {
		if f.PolicyID != "" && cm.PolicyID != f.PolicyID {
			continue
		}
		if f.ControlID != "" && cm.ControlID != f.ControlID {
			continue
		}
		out = append(out, cm)
	}
	return out, nil
}

func (m *MemoryRepo) DeleteControlMapping(_ context.Context, policyID, controlID string) (ControlMapping, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, cm := range m.mappings {
		if cm.PolicyID == policyID && cm.ControlID == controlID {
			m.mappings = slices.Delete(m.mappings, i, i+1)
			return cm, nil
		}
	}
	return ControlMapping{}, ErrNotFound
}
