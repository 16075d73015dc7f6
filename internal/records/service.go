package records

import (
	"context"
	"fmt"
	"time"

	"grc-platform/internal/apperr"
	"grc-platform/internal/audit"
	"grc-platform/internal/auth"

	"github.com/google/uuid"
)

var (
	ErrNotFound        = fmt.Errorf("%w: record", apperr.ErrNotFound)
	ErrDuplicateCode   = fmt.Errorf("%w: code already in use", apperr.ErrConflict)
	ErrAlreadyResolved = fmt.Errorf("%w: incident is already resolved", apperr.ErrConflict)
	ErrAlreadyMapped   = fmt.Errorf("%w: control is already mapped to this policy", apperr.ErrConflict)
	// ErrBadReference is a write naming a record that does not exist.
	ErrBadReference = fmt.Errorf("%w: referenced record does not exist", apperr.ErrValidation)
)

const (
	defaultListLimit = 100
	maxListLimit     = 500
)

// Repository persists every record kind. Create/Update return ErrDuplicateCode
// for unique code collisions and Get/Update return ErrNotFound for unknown ids.
type Repository interface {
	CreatePolicy(ctx context.Context, p Policy) error
	GetPolicy(ctx context.Context, id string) (Policy, error)
	ListPolicies(ctx context.Context, f ListFilter) ([]Policy, error)
	UpdatePolicy(ctx context.Context, p Policy) error

	CreateRequirement(ctx context.Context, r Requirement) error
	GetRequirement(ctx context.Context, id string) (Requirement, error)
	ListRequirements(ctx context.Context, f ListFilter) ([]Requirement, error)
	UpdateRequirement(ctx context.Context, r Requirement) error

	CreateIncident(ctx context.Context, i Incident) error
	GetIncident(ctx context.Context, id string) (Incident, error)
	ListIncidents(ctx context.Context, f ListFilter) ([]Incident, error)
	UpdateIncident(ctx context.Context, i Incident) error

	CreateObjective(ctx context.Context, o Objective) error
	GetObjective(ctx context.Context, id string) (Objective, error)
	ListObjectives(ctx context.Context, f ListFilter) ([]Objective, error)
	UpdateObjective(ctx context.Context, o Objective) error

	CreateDepartment(ctx context.Context, d Department) error
	GetDepartment(ctx context.Context, id string) (Department, error)
	ListDepartments(ctx context.Context, f ListFilter) ([]Department, error)
	UpdateDepartment(ctx context.Context, d Department) error

	CreateDocument(ctx context.Context, d Document) error
	GetDocument(ctx context.Context, id string) (Document, error)
	ListDocuments(ctx context.Context, f ListFilter) ([]Document, error)
	UpdateDocument(ctx context.Context, d Document) error

	CreateControl(ctx context.Context, c Control) error
	GetControl(ctx context.Context, id string) (Control, error)
	ListControls(ctx context.Context, f ListFilter) ([]Control, error)
	UpdateControl(ctx context.Context, c Control) error

	// CreateControlMapping returns ErrAlreadyMapped for a duplicate pair.
	CreateControlMapping(ctx context.Context, m ControlMapping) error
	ListControlMappings(ctx context.Context, f MappingFilter) ([]ControlMapping, error)
	// DeleteControlMapping returns ErrNotFound when the pair is not mapped.
	DeleteControlMapping(ctx context.Context, policyID, controlID string) (ControlMapping, error)
}

type Auditor interface {
	Record(ctx context.Context, e audit.Entry) (audit.Entry, bool)
}

// Service validates record mutations and writes one audit entry per mutation.
type Service struct {
	repo  Repository
	audit Auditor
	clock func() time.Time
}

func NewService(repo Repository, auditor Auditor) *Service {
	return &Service{repo: repo, audit: auditor, clock: time.Now}
}

/* ===================== POLICIES ===================== */

func (s *Service) CreatePolicy(ctx context.Context, in PolicyInput) (Policy, error) {
	if err := in.normalize(); err != nil {
		return Policy{}, err
	}
	now := s.now()
	p := Policy{ID: uuid.NewString(), CreatedAt: now, UpdatedAt: now}
	applyPolicy(&p, in, now)
	if p.OwnerID == nil {
		p.OwnerID = callerID(ctx)
	}
	if err := s.repo.CreatePolicy(ctx, p); err != nil {
		return Policy{}, storeErr("create policy", err)
	}
	s.created(ctx, EntityPolicy, p.ID, map[string]any{"title": p.Title, "status": p.Status, "version": p.Version})
	return p, nil
}

func (s *Service) GetPolicy(ctx context.Context, id string) (Policy, error) {
	if !validID(id) {
		return Policy{}, ErrNotFound
	}
	p, err := s.repo.GetPolicy(ctx, id)
	return p, storeErr("get policy", err)
}

func (s *Service) ListPolicies(ctx context.Context, f ListFilter) ([]Policy, error) {
	out, err := s.repo.ListPolicies(ctx, clampList(f))
	return out, storeErr("list policies", err)
}

// UpdatePolicy applies a partial update; fields absent from patch keep their value.
func (s *Service) UpdatePolicy(ctx context.Context, id string, patch PolicyPatch) (Policy, error) {
	cur, err := s.GetPolicy(ctx, id)
	if err != nil {
		return Policy{}, err
	}
	in := patch.onto(cur)
	if err := in.normalize(); err != nil {
		return Policy{}, err
	}
	next := cur
	now := s.now()
	applyPolicy(&next, in, now)
	if next.OwnerID == nil {
		next.OwnerID = cur.OwnerID
	}

	c := audit.Changes{}
	c.Set("title", cur.Title, next.Title)
	c.SetText("description", cur.Description, next.Description)
	c.Set("category", cur.Category, next.Category)
	c.Set("version", cur.Version, next.Version)
	c.Set("status", cur.Status, next.Status)
	c.Set("document_url", deref(cur.DocumentURL), deref(next.DocumentURL))
	c.Set("review_date", dateString(cur.ReviewDate), dateString(next.ReviewDate))
	c.Set("owner_id", deref(cur.OwnerID), deref(next.OwnerID))
	if c.Empty() {
		return cur, nil
	}
	next.UpdatedAt = now
	if err := s.repo.UpdatePolicy(ctx, next); err != nil {
		return Policy{}, storeErr("update policy", err)
	}
	s.updated(ctx, EntityPolicy, next.ID, c)
	return next, nil
}

func applyPolicy(p *Policy, in PolicyInput, now time.Time) {
	wasApproved := p.Status == PolicyApproved
	p.Title = in.Title
	p.Description = in.Description
	p.Category = in.Category
	p.Version = in.Version
	p.Status = in.Status
	p.DocumentURL = in.DocumentURL
	p.ReviewDate = in.ReviewDate
	if in.OwnerID != nil {
		p.OwnerID = in.OwnerID
	}
	if in.Status == PolicyApproved && !wasApproved {
		t := now
		p.ApprovalDate = &t
	}
}

/* ===================== COMPLIANCE REQUIREMENTS ===================== */

func (s *Service) CreateRequirement(ctx context.Context, in RequirementInput) (Requirement, error) {
	if err := in.normalize(); err != nil {
		return Requirement{}, err
	}
	now := s.now()
	r := Requirement{ID: uuid.NewString(), CreatedAt: now, UpdatedAt: now}
	applyRequirement(&r, in)
	if r.OwnerID == nil {
		r.OwnerID = callerID(ctx)
	}
	if err := s.repo.CreateRequirement(ctx, r); err != nil {
		return Requirement{}, storeErr("create requirement", err)
	}
	s.created(ctx, EntityRequirement, r.ID, map[string]any{"requirement_code": r.RequirementCode, "title": r.Title, "status": r.Status})
	return r, nil
}

func (s *Service) GetRequirement(ctx context.Context, id string) (Requirement, error) {
	if !validID(id) {
		return Requirement{}, ErrNotFound
	}
	r, err := s.repo.GetRequirement(ctx, id)
	return r, storeErr("get requirement", err)
}

func (s *Service) ListRequirements(ctx context.Context, f ListFilter) ([]Requirement, error) {
	out, err := s.repo.ListRequirements(ctx, clampList(f))
	return out, storeErr("list requirements", err)
}

func (s *Service) UpdateRequirement(ctx context.Context, id string, patch RequirementPatch) (Requirement, error) {
	cur, err := s.GetRequirement(ctx, id)
	if err != nil {
		return Requirement{}, err
	}
	in := patch.onto(cur)
	if err := in.normalize(); err != nil {
		return Requirement{}, err
	}
	next := cur
	applyRequirement(&next, in)
	if next.OwnerID == nil {
		next.OwnerID = cur.OwnerID
	}

	c := audit.Changes{}
	c.Set("requirement_code", cur.RequirementCode, next.RequirementCode)
	c.Set("title", cur.Title, next.Title)
	c.SetText("description", cur.Description, next.Description)
	c.Set("source", cur.Source, next.Source)
	c.Set("category", cur.Category, next.Category)
	c.Set("status", cur.Status, next.Status)
	c.Set("due_date", dateString(cur.DueDate), dateString(next.DueDate))
	c.Set("evidence_url", deref(cur.EvidenceURL), deref(next.EvidenceURL))
	c.Set("owner_id", deref(cur.OwnerID), deref(next.OwnerID))
	if c.Empty() {
		return cur, nil
	}
	next.UpdatedAt = s.now()
	if err := s.repo.UpdateRequirement(ctx, next); err != nil {
		return Requirement{}, storeErr("update requirement", err)
	}
	s.updated(ctx, EntityRequirement, next.ID, c)
	return next, nil
}

func applyRequirement(r *Requirement, in RequirementInput) {
	r.RequirementCode = in.RequirementCode
	r.Title = in.Title
	r.Description = in.Description
	r.Source = in.Source
	r.Category = in.Category
	r.Status = in.Status
	r.DueDate = in.DueDate
	r.EvidenceURL = in.EvidenceURL
	if in.OwnerID != nil {
		r.OwnerID = in.OwnerID
	}
}

/* ===================== INCIDENTS ===================== */

func (s *Service) CreateIncident(ctx context.Context, in IncidentInput) (Incident, error) {
	if err := in.normalize(); err != nil {
		return Incident{}, err
	}
	now := s.now()
	i := Incident{
		ID:         uuid.NewString(),
		ReportedBy: callerID(ctx),
		ReportedAt: now,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	applyIncident(&i, in, now)
	if err := s.repo.CreateIncident(ctx, i); err != nil {
		return Incident{}, storeErr("create incident", err)
	}
	s.created(ctx, EntityIncident, i.ID, map[string]any{"title": i.Title, "severity": i.Severity, "status": i.Status})
	return i, nil
}

func (s *Service) GetIncident(ctx context.Context, id string) (Incident, error) {
	if !validID(id) {
		return Incident{}, ErrNotFound
	}
	i, err := s.repo.GetIncident(ctx, id)
	return i, storeErr("get incident", err)
}

func (s *Service) ListIncidents(ctx context.Context, f ListFilter) ([]Incident, error) {
	out, err := s.repo.ListIncidents(ctx, clampList(f))
	return out, storeErr("list incidents", err)
}

func (s *Service) UpdateIncident(ctx context.Context, id string, patch IncidentPatch) (Incident, error) {
	cur, err := s.GetIncident(ctx, id)
	if err != nil {
		return Incident{}, err
	}
	in := patch.onto(cur)
	if err := in.normalize(); err != nil {
		return Incident{}, err
	}
	now := s.now()
	next := cur
	applyIncident(&next, in, now)

	c := incidentChanges(cur, next)
	if c.Empty() {
		return cur, nil
	}
	next.UpdatedAt = now
	if err := s.repo.UpdateIncident(ctx, next); err != nil {
		return Incident{}, storeErr("update incident", err)
	}
	s.updated(ctx, EntityIncident, next.ID, c)
	return next, nil
}

// ResolveIncident records the root cause and corrective action and stamps resolved_at.
func (s *Service) ResolveIncident(ctx context.Context, id string, in ResolveInput) (Incident, error) {
	cur, err := s.GetIncident(ctx, id)
	if err != nil {
		return Incident{}, err
	}
	if cur.Status == IncidentResolved || cur.Status == IncidentClosed {
		return Incident{}, ErrAlreadyResolved
	}

	now := s.now()
	next := cur
	next.Status = IncidentResolved
	next.ResolvedAt = &now
	if in.RootCause != "" {
		next.RootCause = in.RootCause
	}
	if in.CorrectiveAction != "" {
		next.CorrectiveAction = in.CorrectiveAction
	}
	if err := firstErr(
		atMost("root_cause", next.RootCause, 1000),
		atMost("corrective_action", next.CorrectiveAction, 1000),
	); err != nil {
		return Incident{}, err
	}
	next.UpdatedAt = now
	if err := s.repo.UpdateIncident(ctx, next); err != nil {
		return Incident{}, storeErr("resolve incident", err)
	}

	s.record(ctx, audit.ActionResolve, EntityIncident, next.ID, incidentChanges(cur, next).Details(nil))
	return next, nil
}

func applyIncident(i *Incident, in IncidentInput, now time.Time) {
	i.Title = in.Title
	i.Description = in.Description
	i.Severity = in.Severity
	i.Status = in.Status
	i.AssignedTo = in.AssignedTo
	i.RootCause = in.RootCause
	i.CorrectiveAction = in.CorrectiveAction
	switch in.Status {
	case IncidentResolved, IncidentClosed:
		if i.ResolvedAt == nil {
			t := now
			i.ResolvedAt = &t
		}
	default:
		i.ResolvedAt = nil
	}
}

func incidentChanges(cur, next Incident) audit.Changes {
	c := audit.Changes{}
	c.Set("title", cur.Title, next.Title)
	c.SetText("description", cur.Description, next.Description)
	c.Set("severity", cur.Severity, next.Severity)
	c.Set("status", cur.Status, next.Status)
	c.Set("assigned_to", deref(cur.AssignedTo), deref(next.AssignedTo))
	c.SetText("root_cause", cur.RootCause, next.RootCause)
	c.SetText("corrective_action", cur.CorrectiveAction, next.CorrectiveAction)
	return c
}

/* ===================== OBJECTIVES ===================== */

func (s *Service) CreateObjective(ctx context.Context, in ObjectiveInput) (Objective, error) {
	if err := in.normalize(); err != nil {
		return Objective{}, err
	}
	now := s.now()
	o := Objective{ID: uuid.NewString(), CreatedAt: now, UpdatedAt: now}
	applyObjective(&o, in)
	if err := s.repo.CreateObjective(ctx, o); err != nil {
		return Objective{}, storeErr("create objective", err)
	}
	s.created(ctx, EntityObjective, o.ID, map[string]any{"title": o.Title, "fiscal_year": o.FiscalYear})
	return o, nil
}

func (s *Service) GetObjective(ctx context.Context, id string) (Objective, error) {
	if !validID(id) {
		return Objective{}, ErrNotFound
	}
	o, err := s.repo.GetObjective(ctx, id)
	return o, storeErr("get objective", err)
}

func (s *Service) ListObjectives(ctx context.Context, f ListFilter) ([]Objective, error) {
	out, err := s.repo.ListObjectives(ctx, clampList(f))
	return out, storeErr("list objectives", err)
}

func (s *Service) UpdateObjective(ctx context.Context, id string, patch ObjectivePatch) (Objective, error) {
	cur, err := s.GetObjective(ctx, id)
	if err != nil {
		return Objective{}, err
	}
	in := patch.onto(cur)
	if err := in.normalize(); err != nil {
		return Objective{}, err
	}
	next := cur
	applyObjective(&next, in)

	c := audit.Changes{}
	c.Set("title", cur.Title, next.Title)
	c.SetText("description", cur.Description, next.Description)
	c.Set("department", cur.Department, next.Department)
	c.Set("fiscal_year", cur.FiscalYear, next.FiscalYear)
	c.Set("owner_id", cur.OwnerID, next.OwnerID)
	c.Set("status", cur.Status, next.Status)
	if c.Empty() {
		return cur, nil
	}
	next.UpdatedAt = s.now()
	if err := s.repo.UpdateObjective(ctx, next); err != nil {
		return Objective{}, storeErr("update objective", err)
	}
	s.updated(ctx, EntityObjective, next.ID, c)
	return next, nil
}

func applyObjective(o *Objective, in ObjectiveInput) {
	o.Title = in.Title
	o.Description = in.Description
	o.Department = in.Department
	o.FiscalYear = in.FiscalYear
	o.OwnerID = in.OwnerID
	o.Status = in.Status
}

/* ===================== DEPARTMENTS ===================== */

func (s *Service) CreateDepartment(ctx context.Context, in DepartmentInput) (Department, error) {
	if err := in.normalize(); err != nil {
		return Department{}, err
	}
	now := s.now()
	d := Department{
		ID:                 uuid.NewString(),
		Name:               in.Name,
		Code:               in.Code,
		Description:        in.Description,
		HeadOfDepartmentID: in.HeadOfDepartmentID,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.repo.CreateDepartment(ctx, d); err != nil {
		return Department{}, storeErr("create department", err)
	}
	s.created(ctx, EntityDepartment, d.ID, map[string]any{"name": d.Name, "code": d.Code})
	return d, nil
}

func (s *Service) GetDepartment(ctx context.Context, id string) (Department, error) {
	if !validID(id) {
		return Department{}, ErrNotFound
	}
	d, err := s.repo.GetDepartment(ctx, id)
	return d, storeErr("get department", err)
}

func (s *Service) ListDepartments(ctx context.Context, f ListFilter) ([]Department, error) {
	out, err := s.repo.ListDepartments(ctx, clampList(f))
	return out, storeErr("list departments", err)
}

func (s *Service) UpdateDepartment(ctx context.Context, id string, patch DepartmentPatch) (Department, error) {
	cur, err := s.GetDepartment(ctx, id)
	if err != nil {
		return Department{}, err
	}
	in := patch.onto(cur)
	if err := in.normalize(); err != nil {
		return Department{}, err
	}
	next := cur
	next.Name = in.Name
	next.Code = in.Code
	next.Description = in.Description
	next.HeadOfDepartmentID = in.HeadOfDepartmentID

	c := audit.Changes{}
	c.Set("name", cur.Name, next.Name)
	c.Set("code", cur.Code, next.Code)
	c.Set("description", cur.Description, next.Description)
	c.Set("head_of_department_id", deref(cur.HeadOfDepartmentID), deref(next.HeadOfDepartmentID))
	if c.Empty() {
		return cur, nil
	}
	next.UpdatedAt = s.now()
	if err := s.repo.UpdateDepartment(ctx, next); err != nil {
		return Department{}, storeErr("update department", err)
	}
	s.updated(ctx, EntityDepartment, next.ID, c)
	return next, nil
}

/* ===================== DOCUMENTS ===================== */

func (s *Service) CreateDocument(ctx context.Context, in DocumentInput) (Document, error) {
	if err := in.normalize(); err != nil {
		return Document{}, err
	}
	now := s.now()
	d := Document{
		ID:          uuid.NewString(),
		FileName:    in.FileName,
		FilePath:    in.FilePath,
		FileSize:    in.FileSize,
		FileType:    in.FileType,
		Category:    in.Category,
		Description: in.Description,
		Tags:        in.Tags,
		UploadedBy:  callerID(ctx),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.CreateDocument(ctx, d); err != nil {
		return Document{}, storeErr("create document", err)
	}
	s.created(ctx, EntityDocument, d.ID, map[string]any{"file_name": d.FileName, "category": d.Category, "file_size": d.FileSize})
	return d, nil
}

func (s *Service) GetDocument(ctx context.Context, id string) (Document, error) {
	if !validID(id) {
		return Document{}, ErrNotFound
	}
	d, err := s.repo.GetDocument(ctx, id)
	return d, storeErr("get document", err)
}

func (s *Service) ListDocuments(ctx context.Context, f ListFilter) ([]Document, error) {
	out, err := s.repo.ListDocuments(ctx, clampList(f))
	return out, storeErr("list documents", err)
}

func (s *Service) UpdateDocument(ctx context.Context, id string, patch DocumentPatch) (Document, error) {
	cur, err := s.GetDocument(ctx, id)
	if err != nil {
		return Document{}, err
	}
	in := patch.onto(cur)
	if err := in.normalize(); err != nil {
		return Document{}, err
	}
	next := cur
	next.FileName = in.FileName
	next.FilePath = in.FilePath
	next.FileSize = in.FileSize
	next.FileType = in.FileType
	next.Category = in.Category
	next.Description = in.Description
	next.Tags = in.Tags

	c := audit.Changes{}
	c.Set("file_name", cur.FileName, next.FileName)
	c.Set("file_path", cur.FilePath, next.FilePath)
	c.Set("file_size", cur.FileSize, next.FileSize)
	c.Set("file_type", cur.FileType, next.FileType)
	c.Set("category", cur.Category, next.Category)
	c.Set("description", cur.Description, next.Description)
	c.Set("tags", cur.Tags, next.Tags)
	if c.Empty() {
		return cur, nil
	}
	next.UpdatedAt = s.now()
	if err := s.repo.UpdateDocument(ctx, next); err != nil {
		return Document{}, storeErr("update document", err)
	}
	s.updated(ctx, EntityDocument, next.ID, c)
	return next, nil
}

/* ===================== CONTROLS ===================== */

func (s *Service) CreateControl(ctx context.Context, in ControlInput) (Control, error) {
	if err := in.normalize(); err != nil {
		return Control{}, err
	}
	now := s.now()
	c := Control{ID: uuid.NewString(), CreatedAt: now, UpdatedAt: now}
	applyControl(&c, in)
	if c.OwnerID == nil {
		c.OwnerID = callerID(ctx)
	}
	if err := s.repo.CreateControl(ctx, c); err != nil {
		return Control{}, storeErr("create control", err)
	}
	s.created(ctx, EntityControl, c.ID, map[string]any{"control_code": c.ControlCode, "title": c.Title, "control_type": c.ControlType})
	return c, nil
}

func (s *Service) GetControl(ctx context.Context, id string) (Control, error) {
	if !validID(id) {
		return Control{}, ErrNotFound
	}
	c, err := s.repo.GetControl(ctx, id)
	return c, storeErr("get control", err)
}

// ListControls is ordered by control code.
func (s *Service) ListControls(ctx context.Context, f ListFilter) ([]Control, error) {
	out, err := s.repo.ListControls(ctx, clampList(f))
	return out, storeErr("list controls", err)
}

func (s *Service) UpdateControl(ctx context.Context, id string, patch ControlPatch) (Control, error) {
	cur, err := s.GetControl(ctx, id)
	if err != nil {
		return Control{}, err
	}
	in := patch.onto(cur)
	if err := in.normalize(); err != nil {
		return Control{}, err
	}
	next := cur
	applyControl(&next, in)
	if next.OwnerID == nil {
		next.OwnerID = cur.OwnerID
	}

	c := audit.Changes{}
	c.Set("control_code", cur.ControlCode, next.ControlCode)
	c.Set("title", cur.Title, next.Title)
	c.SetText("description", cur.Description, next.Description)
	c.Set("category", cur.Category, next.Category)
	c.Set("control_type", cur.ControlType, next.ControlType)
	c.Set("status", cur.Status, next.Status)
	c.Set("owner_id", deref(cur.OwnerID), deref(next.OwnerID))
	if c.Empty() {
		return cur, nil
	}
	next.UpdatedAt = s.now()
	if err := s.repo.UpdateControl(ctx, next); err != nil {
		return Control{}, storeErr("update control", err)
	}
	s.updated(ctx, EntityControl, next.ID, c)
	return next, nil
}

func applyControl(c *Control, in ControlInput) {
	c.ControlCode = in.ControlCode
	c.Title = in.Title
	c.Description = in.Description
	c.Category = in.Category
	c.ControlType = in.ControlType
	c.Status = in.Status
	if in.OwnerID != nil {
		c.OwnerID = in.OwnerID
	}
}

// MapControl links a control to a policy. Both must exist; mapping the same
// pair twice is ErrAlreadyMapped. The entry is audited against the policy.
func (s *Service) MapControl(ctx context.Context, policyID, controlID string) (ControlMapping, error) {
	if _, err := s.GetPolicy(ctx, policyID); err != nil {
		return ControlMapping{}, err
	}
	ctl, err := s.GetControl(ctx, controlID)
	if err != nil {
		return ControlMapping{}, err
	}
	m := ControlMapping{
		ID:        uuid.NewString(),
		PolicyID:  policyID,
		ControlID: ctl.ID,
		MappedBy:  callerID(ctx),
		CreatedAt: s.now(),
	}
	if err := s.repo.CreateControlMapping(ctx, m); err != nil {
		return ControlMapping{}, storeErr("map control", err)
	}
	s.record(ctx, audit.ActionMap, EntityPolicy, policyID, audit.MustDetails(map[string]any{
		"control_id": ctl.ID, "control_code": ctl.ControlCode, "mapping_id": m.ID,
	}))
	return m, nil
}

func (s *Service) UnmapControl(ctx context.Context, policyID, controlID string) error {
	if !validID(policyID) || !validID(controlID) {
		return ErrNotFound
	}
	m, err := s.repo.DeleteControlMapping(ctx, policyID, controlID)
	if err != nil {
		return storeErr("unmap control", err)
	}
	s.record(ctx, audit.ActionUnmap, EntityPolicy, policyID, audit.MustDetails(map[string]any{
		"control_id": controlID, "mapping_id": m.ID,
	}))
	return nil
}

// ListControlMappings returns mappings oldest first. At least one of the
// filter ids is required.
func (s *Service) ListControlMappings(ctx context.Context, f MappingFilter) ([]ControlMapping, error) {
	if f.PolicyID == "" && f.ControlID == "" {
		return nil, apperr.Validation("policy_id or control_id is required")
	}
	for _, id := range []string{f.PolicyID, f.ControlID} {
		if id != "" && !validID(id) {
			return nil, ErrNotFound
		}
	}
	out, err := s.repo.ListControlMappings(ctx, f)
	return out, storeErr("list control mappings", err)
}

/* ===================== HELPERS ===================== */

func (s *Service) now() time.Time { return s.clock().UTC() }

func (s *Service) created(ctx context.Context, entityType, id string, details map[string]any) {
	s.record(ctx, audit.ActionCreate, entityType, id, audit.MustDetails(details))
}

func (s *Service) updated(ctx context.Context, entityType, id string, c audit.Changes) {
	s.record(ctx, audit.ActionUpdate, entityType, id, c.Details(nil))
}

func (s *Service) record(ctx context.Context, action, entityType, id string, details []byte) {
	if s.audit == nil {
		return
	}
	s.audit.Record(ctx, audit.Entry{
		Action:     action,
		EntityType: entityType,
		EntityID:   audit.StringPtr(id),
		Details:    details,
	})
}

// storeErr passes domain errors (not found, duplicate code, bad reference)
// through and marks everything else as a store failure.
func storeErr(op string, err error) error {
	return apperr.Persistence(op, err)
}

func clampList(f ListFilter) ListFilter {
	switch {
	case f.Limit <= 0:
		f.Limit = defaultListLimit
	case f.Limit > maxListLimit:
		f.Limit = maxListLimit
	}
	return f
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func callerID(ctx context.Context) *string {
	if id, ok := auth.IdentityFrom(ctx); ok && id.UserID != "" {
		uid := id.UserID
		return &uid
	}
	return nil
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func dateString(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format("2006-01-02")
}
