package records

import "time"

// Patch types back the PATCH endpoints. A nil field keeps the stored value;
// for optional text fields an empty string clears it. Each patch is merged
// onto the stored record and the result goes through the same normalization
// as a create.

type PolicyPatch struct {
	Title       *string       `json:"title"`
	Description *string       `json:"description"`
	Category    *string       `json:"category"`
	Version     *string       `json:"version"`
	Status      *PolicyStatus `json:"status"`
	DocumentURL *string       `json:"document_url"`
	ReviewDate  *time.Time    `json:"review_date"`
	OwnerID     *string       `json:"owner_id"`
}

type RequirementPatch struct {
	RequirementCode *string            `json:"requirement_code"`
	Title           *string            `json:"title"`
	Description     *string            `json:"description"`
	Source          *string            `json:"source"`
	Category        *string            `json:"category"`
	Status          *RequirementStatus `json:"status"`
	DueDate         *time.Time         `json:"due_date"`
	EvidenceURL     *string            `json:"evidence_url"`
	OwnerID         *string            `json:"owner_id"`
}

type IncidentPatch struct {
	Title            *string         `json:"title"`
	Description      *string         `json:"description"`
	Severity         *Severity       `json:"severity"`
	Status           *IncidentStatus `json:"status"`
	AssignedTo       *string         `json:"assigned_to"`
	RootCause        *string         `json:"root_cause"`
	CorrectiveAction *string         `json:"corrective_action"`
}

type ObjectivePatch struct {
	Title       *string          `json:"title"`
	Description *string          `json:"description"`
	Department  *string          `json:"department"`
	FiscalYear  *string          `json:"fiscal_year"`
	OwnerID     *string          `json:"owner_id"`
	Status      *ObjectiveStatus `json:"status"`
}

type DepartmentPatch struct {
	Name               *string `json:"name"`
	Code               *string `json:"code"`
	Description        *string `json:"description"`
	HeadOfDepartmentID *string `json:"head_of_department_id"`
}

type DocumentPatch struct {
	FileName    *string   `json:"file_name"`
	FilePath    *string   `json:"file_path"`
	FileSize    *int64    `json:"file_size"`
	FileType    *string   `json:"file_type"`
	Category    *string   `json:"category"`
	Description *string   `json:"description"`
	Tags        *[]string `json:"tags"`
}

type ControlPatch struct {
	ControlCode *string        `json:"control_code"`
	Title       *string        `json:"title"`
	Description *string        `json:"description"`
	Category    *string        `json:"category"`
	ControlType *ControlType   `json:"control_type"`
	Status      *ControlStatus `json:"status"`
	OwnerID     *string        `json:"owner_id"`
}

func keep[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

// keepRef replaces an optional field; normalize turns "" into nil.
func keepRef[T any](dst **T, v *T) {
	if v != nil {
		*dst = v
	}
}

func (p PolicyPatch) onto(cur Policy) PolicyInput {
	in := PolicyInput{
		Title:       cur.Title,
		Description: cur.Description,
		Category:    cur.Category,
		Version:     cur.Version,
		Status:      cur.Status,
		DocumentURL: cur.DocumentURL,
		ReviewDate:  cur.ReviewDate,
		OwnerID:     cur.OwnerID,
	}
	keep(&in.Title, p.Title)
	keep(&in.Description, p.Description)
	keep(&in.Category, p.Category)
	keep(&in.Version, p.Version)
	keep(&in.Status, p.Status)
	keepRef(&in.DocumentURL, p.DocumentURL)
	keepRef(&in.ReviewDate, p.ReviewDate)
	keepRef(&in.OwnerID, p.OwnerID)
	return in
}

func (p RequirementPatch) onto(cur Requirement) RequirementInput {
	in := RequirementInput{
		RequirementCode: cur.RequirementCode,
		Title:           cur.Title,
		Description:     cur.Description,
		Source:          cur.Source,
		Category:        cur.Category,
		Status:          cur.Status,
		DueDate:         cur.DueDate,
		EvidenceURL:     cur.EvidenceURL,
		OwnerID:         cur.OwnerID,
	}
	keep(&in.RequirementCode, p.RequirementCode)
	keep(&in.Title, p.Title)
	keep(&in.Description, p.Description)
	keep(&in.Source, p.Source)
	keep(&in.Category, p.Category)
	keep(&in.Status, p.Status)
	keepRef(&in.DueDate, p.DueDate)
	keepRef(&in.EvidenceURL, p.EvidenceURL)
	keepRef(&in.OwnerID, p.OwnerID)
	return in
}

func (p IncidentPatch) onto(cur Incident) IncidentInput {
	in := IncidentInput{
		Title:            cur.Title,
		Description:      cur.Description,
		Severity:         cur.Severity,
		Status:           cur.Status,
		AssignedTo:       cur.AssignedTo,
		RootCause:        cur.RootCause,
		CorrectiveAction: cur.CorrectiveAction,
	}
	keep(&in.Title, p.Title)
	keep(&in.Description, p.Description)
	keep(&in.Severity, p.Severity)
	keep(&in.Status, p.Status)
	keepRef(&in.AssignedTo, p.AssignedTo)
	keep(&in.RootCause, p.RootCause)
	keep(&in.CorrectiveAction, p.CorrectiveAction)
	return in
}

func (p ObjectivePatch) onto(cur Objective) ObjectiveInput {
	in := ObjectiveInput{
		Title:       cur.Title,
		Description: cur.Description,
		Department:  cur.Department,
		FiscalYear:  cur.FiscalYear,
		OwnerID:     cur.OwnerID,
		Status:      cur.Status,
	}
	keep(&in.Title, p.Title)
	keep(&in.Description, p.Description)
	keep(&in.Department, p.Department)
	keep(&in.FiscalYear, p.FiscalYear)
	keep(&in.OwnerID, p.OwnerID)
	keep(&in.Status, p.Status)
	return in
}

func (p DepartmentPatch) onto(cur Department) DepartmentInput {
	in := DepartmentInput{
		Name:               cur.Name,
		Code:               cur.Code,
		Description:        cur.Description,
		HeadOfDepartmentID: cur.HeadOfDepartmentID,
	}
	keep(&in.Name, p.Name)
	keep(&in.Code, p.Code)
	keep(&in.Description, p.Description)
	keepRef(&in.HeadOfDepartmentID, p.HeadOfDepartmentID)
	return in
}

func (p DocumentPatch) onto(cur Document) DocumentInput {
	in := DocumentInput{
		FileName:    cur.FileName,
		FilePath:    cur.FilePath,
		FileSize:    cur.FileSize,
		FileType:    cur.FileType,
		Category:    cur.Category,
		Description: cur.Description,
		Tags:        append([]string(nil), cur.Tags...),
	}
	keep(&in.FileName, p.FileName)
	keep(&in.FilePath, p.FilePath)
	keep(&in.FileSize, p.FileSize)
	keep(&in.FileType, p.FileType)
	keep(&in.Category, p.Category)
	keep(&in.Description, p.Description)
	keep(&in.Tags, p.Tags)
	return in
}

func (p ControlPatch) onto(cur Control) ControlInput {
	in := ControlInput{
		ControlCode: cur.ControlCode,
		Title:       cur.Title,
		Description: cur.Description,
		Category:    cur.Category,
		ControlType: cur.ControlType,
		Status:      cur.Status,
		OwnerID:     cur.OwnerID,
	}
	keep(&in.ControlCode, p.ControlCode)
	keep(&in.Title, p.Title)
	keep(&in.Description, p.Description)
	keep(&in.Category, p.Category)
	keep(&in.ControlType, p.ControlType)
	keep(&in.Status, p.Status)
	keepRef(&in.OwnerID, p.OwnerID)
	return in
}
