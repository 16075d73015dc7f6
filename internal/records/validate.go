package records

import (
	"net/url"
	"strings"
	"unicode/utf8"

	"grc-platform/internal/apperr"
)

func between(field, v string, lo, hi int) error {
	if n := utf8.RuneCountInString(v); n < lo || n > hi {
		return apperr.Validation("%s must be %d-%d characters", field, lo, hi)
	}
	return nil
}

func atMost(field, v string, hi int) error {
	if utf8.RuneCountInString(v) > hi {
		return apperr.Validation("%s must be at most %d characters", field, hi)
	}
	return nil
}

func required(field, v string) error {
	if v == "" {
		return apperr.Validation("%s is required", field)
	}
	return nil
}

func optionalURL(field string, v *string) error {
	if v == nil {
		return nil
	}
	if len(*v) > 500 {
		return apperr.Validation("%s must be at most 500 characters", field)
	}
	u, err := url.ParseRequestURI(*v)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return apperr.Validation("%s must be a valid http(s) URL", field)
	}
	return nil
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func trimPtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := strings.TrimSpace(*p)
	if v == "" {
		return nil
	}
	return &v
}

func (in *PolicyInput) normalize() error {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Category = strings.TrimSpace(in.Category)
	in.Version = strings.TrimSpace(in.Version)
	in.DocumentURL = trimPtr(in.DocumentURL)
	in.OwnerID = trimPtr(in.OwnerID)
	if in.Status == "" {
		in.Status = PolicyDraft
	}
	if in.Version == "" {
		in.Version = "1.0"
	}
	switch in.Status {
	case PolicyDraft, PolicyReview, PolicyApproved, PolicyArchived:
	default:
		return apperr.Validation("unknown policy status %q", in.Status)
	}
	return firstErr(
		between("title", in.Title, 3, 200),
		atMost("description", in.Description, 1000),
		required("category", in.Category),
		between("version", in.Version, 1, 20),
		optionalURL("document_url", in.DocumentURL),
	)
}

func (in *RequirementInput) normalize() error {
	in.RequirementCode = strings.TrimSpace(in.RequirementCode)
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Source = strings.TrimSpace(in.Source)
	in.Category = strings.TrimSpace(in.Category)
	in.EvidenceURL = trimPtr(in.EvidenceURL)
	in.OwnerID = trimPtr(in.OwnerID)
	if in.Status == "" {
		in.Status = RequirementPending
	}
	switch in.Status {
	case RequirementPending, RequirementInProgress, RequirementCompleted, RequirementOverdue:
	default:
		return apperr.Validation("unknown requirement status %q", in.Status)
	}
	return firstErr(
		between("requirement_code", in.RequirementCode, 2, 50),
		between("title", in.Title, 3, 200),
		atMost("description", in.Description, 1000),
		required("source", in.Source),
		required("category", in.Category),
		optionalURL("evidence_url", in.EvidenceURL),
	)
}

func validSeverity(s Severity) bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

func (in *IncidentInput) normalize() error {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.RootCause = strings.TrimSpace(in.RootCause)
	in.CorrectiveAction = strings.TrimSpace(in.CorrectiveAction)
	in.AssignedTo = trimPtr(in.AssignedTo)
	if in.Severity == "" {
		in.Severity = SeverityMedium
	}
	if in.Status == "" {
		in.Status = IncidentReported
	}
	if !validSeverity(in.Severity) {
		return apperr.Validation("unknown severity %q", in.Severity)
	}
	switch in.Status {
	case IncidentReported, IncidentInvestigating, IncidentResolved, IncidentClosed:
	default:
		return apperr.Validation("unknown incident status %q", in.Status)
	}
	return firstErr(
		between("title", in.Title, 3, 200),
		atMost("description", in.Description, 1000),
		atMost("root_cause", in.RootCause, 1000),
		atMost("corrective_action", in.CorrectiveAction, 1000),
	)
}

func (in *ObjectiveInput) normalize() error {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Department = strings.TrimSpace(in.Department)
	in.FiscalYear = strings.TrimSpace(in.FiscalYear)
	in.OwnerID = strings.TrimSpace(in.OwnerID)
	if in.Status == "" {
		in.Status = ObjectiveActive
	}
	switch in.Status {
	case ObjectiveActive, ObjectiveCompleted, ObjectiveOnHold, ObjectiveCancelled:
	default:
		return apperr.Validation("unknown objective status %q", in.Status)
	}
	return firstErr(
		between("title", in.Title, 3, 200),
		atMost("description", in.Description, 1000),
		required("department", in.Department),
		required("fiscal_year", in.FiscalYear),
		required("owner_id", in.OwnerID),
	)
}

func (in *DepartmentInput) normalize() error {
	in.Name = strings.TrimSpace(in.Name)
	in.Code = strings.ToUpper(strings.TrimSpace(in.Code))
	in.Description = strings.TrimSpace(in.Description)
	in.HeadOfDepartmentID = trimPtr(in.HeadOfDepartmentID)
	return firstErr(
		between("name", in.Name, 2, 100),
		between("code", in.Code, 2, 20),
		atMost("description", in.Description, 500),
	)
}

func (in *DocumentInput) normalize() error {
	in.FileName = strings.TrimSpace(in.FileName)
	in.FilePath = strings.TrimSpace(in.FilePath)
	in.FileType = strings.TrimSpace(in.FileType)
	in.Category = strings.TrimSpace(in.Category)
	in.Description = strings.TrimSpace(in.Description)

	tags := make([]string, 0, len(in.Tags))
	seen := map[string]struct{}{}
	for _, t := range in.Tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		tags = append(tags, t)
	}
	in.Tags = tags

	if in.FileSize <= 0 {
		return apperr.Validation("file_size must be positive")
	}
	return firstErr(
		between("file_name", in.FileName, 1, 255),
		between("file_path", in.FilePath, 1, 1024),
		required("file_type", in.FileType),
		required("category", in.Category),
		atMost("description", in.Description, 500),
	)
}

func (in *ControlInput) normalize() error {
	in.ControlCode = strings.ToUpper(strings.TrimSpace(in.ControlCode))
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Category = strings.TrimSpace(in.Category)
	in.OwnerID = trimPtr(in.OwnerID)
	if in.Status == "" {
		in.Status = ControlActive
	}
	switch in.ControlType {
	case ControlPreventive, ControlDetective, ControlCorrective:
	default:
		return apperr.Validation("control_type must be preventive, detective or corrective")
	}
	switch in.Status {
	case ControlActive, ControlInactive:
	default:
		return apperr.Validation("unknown control status %q", in.Status)
	}
	return firstErr(
		between("control_code", in.ControlCode, 2, 50),
		between("title", in.Title, 3, 200),
		atMost("description", in.Description, 1000),
		required("category", in.Category),
	)
}
