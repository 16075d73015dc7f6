package records

import "time"

// Audit entity types for each record kind.
const (
	EntityPolicy      = "policy"
	EntityRequirement = "compliance_requirement"
	EntityIncident    = "incident"
	EntityObjective   = "objective"
	EntityDepartment  = "department"
	EntityDocument    = "document"
	EntityControl     = "control"
)

type ListFilter struct {
	// Status filters on the kind's status column; ignored for kinds without one.
	Status string
	Limit  int
}

/* ===================== POLICIES ===================== */

type PolicyStatus string

const (
	PolicyDraft    PolicyStatus = "draft"
	PolicyReview   PolicyStatus = "review"
	PolicyApproved PolicyStatus = "approved"
	PolicyArchived PolicyStatus = "archived"
)

type Policy struct {
	ID           string       `json:"id"`
	Title        string       `json:"title"`
	Description  string       `json:"description"`
	Category     string       `json:"category"`
	Version      string       `json:"version"`
	Status       PolicyStatus `json:"status"`
	DocumentURL  *string      `json:"document_url"`
	ReviewDate   *time.Time   `json:"review_date"`
	ApprovalDate *time.Time   `json:"approval_date"`
	OwnerID      *string      `json:"owner_id"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

type PolicyInput struct {
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Category    string       `json:"category"`
	Version     string       `json:"version"`
	Status      PolicyStatus `json:"status"`
	DocumentURL *string      `json:"document_url"`
	ReviewDate  *time.Time   `json:"review_date"`
	OwnerID     *string      `json:"owner_id"`
}

/* ===================== COMPLIANCE REQUIREMENTS ===================== */

type RequirementStatus string

const (
	RequirementPending    RequirementStatus = "pending"
	RequirementInProgress RequirementStatus = "in-progress"
	RequirementCompleted  RequirementStatus = "completed"
	RequirementOverdue    RequirementStatus = "overdue"
)

type Requirement struct {
	ID              string            `json:"id"`
	RequirementCode string            `json:"requirement_code"`
	Title           string            `json:"title"`
	Description     string            `json:"description"`
	Source          string            `json:"source"`
	Category        string            `json:"category"`
	Status          RequirementStatus `json:"status"`
	DueDate         *time.Time        `json:"due_date"`
	EvidenceURL     *string           `json:"evidence_url"`
	OwnerID         *string           `json:"owner_id"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

type RequirementInput struct {
	RequirementCode string            `json:"requirement_code"`
	Title           string            `json:"title"`
	Description     string            `json:"description"`
	Source          string            `json:"source"`
	Category        string            `json:"category"`
	Status          RequirementStatus `json:"status"`
	DueDate         *time.Time        `json:"due_date"`
	EvidenceURL     *string           `json:"evidence_url"`
	OwnerID         *string           `json:"owner_id"`
}

/* ===================== INCIDENTS ===================== */

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

type IncidentStatus string

const (
	IncidentReported      IncidentStatus = "reported"
	IncidentInvestigating IncidentStatus = "investigating"
	IncidentResolved      IncidentStatus = "resolved"
	IncidentClosed        IncidentStatus = "closed"
)

type Incident struct {
	ID               string         `json:"id"`
	Title            string         `json:"title"`
	Description      string         `json:"description"`
	Severity         Severity       `json:"severity"`
	Status           IncidentStatus `json:"status"`
	AssignedTo       *string        `json:"assigned_to"`
	ReportedBy       *string        `json:"reported_by"`
	ReportedAt       time.Time      `json:"reported_at"`
	ResolvedAt       *time.Time     `json:"resolved_at"`
	RootCause        string         `json:"root_cause"`
	CorrectiveAction string         `json:"corrective_action"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

type IncidentInput struct {
	Title            string         `json:"title"`
	Description      string         `json:"description"`
	Severity         Severity       `json:"severity"`
	Status           IncidentStatus `json:"status"`
	AssignedTo       *string        `json:"assigned_to"`
	RootCause        string         `json:"root_cause"`
	CorrectiveAction string         `json:"corrective_action"`
}

type ResolveInput struct {
	RootCause        string `json:"root_cause"`
	CorrectiveAction string `json:"corrective_action"`
}

/* ===================== OBJECTIVES ===================== */

type ObjectiveStatus string

const (
	ObjectiveActive    ObjectiveStatus = "active"
	ObjectiveCompleted ObjectiveStatus = "completed"
	ObjectiveOnHold    ObjectiveStatus = "on_hold"
	ObjectiveCancelled ObjectiveStatus = "cancelled"
)

type Objective struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Department  string          `json:"department"`
	FiscalYear  string          `json:"fiscal_year"`
	OwnerID     string          `json:"owner_id"`
	Status      ObjectiveStatus `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type ObjectiveInput struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Department  string          `json:"department"`
	FiscalYear  string          `json:"fiscal_year"`
	OwnerID     string          `json:"owner_id"`
	Status      ObjectiveStatus `json:"status"`
}

/* ===================== DEPARTMENTS ===================== */

type Department struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	Code               string    `json:"code"`
	Description        string    `json:"description"`
	HeadOfDepartmentID *string   `json:"head_of_department_id"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

type DepartmentInput struct {
	Name               string  `json:"name"`
	Code               string  `json:"code"`
	Description        string  `json:"description"`
	HeadOfDepartmentID *string `json:"head_of_department_id"`
}

/* ===================== DOCUMENTS ===================== */

// Document is metadata only; file bytes live in object storage outside this service.
type Document struct {
	ID          string    `json:"id"`
	FileName    string    `json:"file_name"`
	FilePath    string    `json:"file_path"`
	FileSize    int64     `json:"file_size"`
	FileType    string    `json:"file_type"`
	Category    string    `json:"category"`
	Description string    `json:"description"`
	Tags        []string  `json:"tags"`
	UploadedBy  *string   `json:"uploaded_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type DocumentInput struct {
	FileName    string   `json:"file_name"`
	FilePath    string   `json:"file_path"`
	FileSize    int64    `json:"file_size"`
	FileType    string   `json:"file_type"`
	Category    string   `json:"category"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

/* ===================== CONTROLS ===================== */

type ControlType string

const (
	ControlPreventive ControlType = "preventive"
	ControlDetective  ControlType = "detective"
	ControlCorrective ControlType = "corrective"
)

type ControlStatus string

const (
	ControlActive   ControlStatus = "active"
	ControlInactive ControlStatus = "inactive"
)

// Control is an entry in the control library. Controls are linked to the
// policies they implement through ControlMapping.
type Control struct {
	ID          string        `json:"id"`
	ControlCode string        `json:"control_code"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Category    string        `json:"category"`
	ControlType ControlType   `json:"control_type"`
	Status      ControlStatus `json:"status"`
	OwnerID     *string       `json:"owner_id"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

type ControlInput struct {
	ControlCode string        `json:"control_code"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Category    string        `json:"category"`
	ControlType ControlType   `json:"control_type"`
	Status      ControlStatus `json:"status"`
	OwnerID     *string       `json:"owner_id"`
}

// ControlMapping links a policy to a control; a pair is mapped at most once.
type ControlMapping struct {
	ID        string    `json:"id"`
	PolicyID  string    `json:"policy_id"`
	ControlID string    `json:"control_id"`
	MappedBy  *string   `json:"mapped_by"`
	CreatedAt time.Time `json:"created_at"`
}

// MappingFilter selects mappings by policy, control, or both.
type MappingFilter struct {
	PolicyID  string
	ControlID string
}
