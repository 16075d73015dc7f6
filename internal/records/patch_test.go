package records

import (
	"encoding/json"
	"testing"
	"time"

	"grc-platform/internal/apperr"
	"grc-platform/internal/audit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdatePolicy_TitleOnlyKeepsOtherFields(t *testing.T) {
	svc, _ := newTestService()
	ctx := asUser("u1")
	review := time.Date(2027, 1, 15, 0, 0, 0, 0, time.UTC)

	p, err := svc.CreatePolicy(ctx, PolicyInput{
		Title: "Backup policy", Description: "nightly", Category: "ops", Version: "2.3",
		Status: PolicyApproved, DocumentURL: ptr("https://docs.example.com/backup.pdf"), ReviewDate: &review,
	})
	require.NoError(t, err)
	require.NotNil(t, p.ApprovalDate)

	out, err := svc.UpdatePolicy(ctx, p.ID, PolicyPatch{Title: ptr("Backup and restore policy")})
	require.NoError(t, err)
	assert.Equal(t, "Backup and restore policy", out.Title)
	assert.Equal(t, PolicyApproved, out.Status)
	assert.Equal(t, "2.3", out.Version)
	assert.Equal(t, "nightly", out.Description)
	require.NotNil(t, out.DocumentURL)
	assert.Equal(t, "https://docs.example.com/backup.pdf", *out.DocumentURL)
	require.NotNil(t, out.ReviewDate)
	assert.True(t, review.Equal(*out.ReviewDate))
	assert.Equal(t, *p.ApprovalDate, *out.ApprovalDate)
}

func TestUpdatePolicy_EmptyStringClearsDocumentURL(t *testing.T) {
	svc, auditRepo := newTestService()
	ctx := asUser("u1")

	p, err := svc.CreatePolicy(ctx, PolicyInput{Title: "Backup policy", Category: "ops", DocumentURL: ptr("https://docs.example.com/b.pdf")})
	require.NoError(t, err)

	out, err := svc.UpdatePolicy(ctx, p.ID, PolicyPatch{DocumentURL: ptr("")})
	require.NoError(t, err)
	assert.Nil(t, out.DocumentURL)
	assert.Equal(t, "Backup policy", out.Title)

	var details struct {
		Changes map[string]audit.Change `json:"changes"`
	}
	entries := auditRepo.Entries()
	require.Len(t, entries, 2)
	require.NoError(t, json.Unmarshal(entries[1].Details, &details))
	require.Len(t, details.Changes, 1)
	assert.Contains(t, details.Changes, "document_url")
}

func TestUpdatePolicy_EmptyPatchIsNoop(t *testing.T) {
	svc, auditRepo := newTestService()
	ctx := asUser("u1")

	p, err := svc.CreatePolicy(ctx, PolicyInput{Title: "Backup policy", Category: "ops"})
	require.NoError(t, err)

	out, err := svc.UpdatePolicy(ctx, p.ID, PolicyPatch{})
	require.NoError(t, err)
	assert.Equal(t, p, out)
	assert.Len(t, auditRepo.Entries(), 1)
}

func TestUpdateRequirement_StatusOnlyKeepsOtherFields(t *testing.T) {
	svc, _ := newTestService()
	ctx := asUser("u1")
	due := time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC)

	r, err := svc.CreateRequirement(ctx, RequirementInput{
		RequirementCode: "CBN-07", Title: "Board charter", Source: "CBN", Category: "governance",
		DueDate: &due, EvidenceURL: ptr("https://evidence.example.com/7"),
	})
	require.NoError(t, err)

	out, err := svc.UpdateRequirement(ctx, r.ID, RequirementPatch{Status: ptr(RequirementInProgress)})
	require.NoError(t, err)
	assert.Equal(t, RequirementInProgress, out.Status)
	assert.Equal(t, "CBN-07", out.RequirementCode)
	assert.Equal(t, "CBN", out.Source)
	require.NotNil(t, out.DueDate)
	require.NotNil(t, out.EvidenceURL)
	assert.Equal(t, r.OwnerID, out.OwnerID)
}

func TestUpdateIncident_SeverityOnlyKeepsOtherFields(t *testing.T) {
	svc, _ := newTestService()
	ctx := asUser("u2")

	inc, err := svc.CreateIncident(ctx, IncidentInput{
		Title: "Phishing wave", Description: "mass mail", Status: IncidentInvestigating,
		AssignedTo: ptr("u9"), RootCause: "weak filter",
	})
	require.NoError(t, err)

	out, err := svc.UpdateIncident(ctx, inc.ID, IncidentPatch{Severity: ptr(SeverityCritical)})
	require.NoError(t, err)
	assert.Equal(t, SeverityCritical, out.Severity)
	assert.Equal(t, IncidentInvestigating, out.Status)
	assert.Equal(t, "mass mail", out.Description)
	assert.Equal(t, "weak filter", out.RootCause)
	require.NotNil(t, out.AssignedTo)
	assert.Equal(t, "u9", *out.AssignedTo)
}

func TestUpdateObjective_StatusOnlyKeepsOwner(t *testing.T) {
	svc, _ := newTestService()
	ctx := asUser("u1")

	o, err := svc.CreateObjective(ctx, ObjectiveInput{Title: "Grow deposits", Department: "Retail", FiscalYear: "2026", OwnerID: "u4"})
	require.NoError(t, err)

	out, err := svc.UpdateObjective(ctx, o.ID, ObjectivePatch{Status: ptr(ObjectiveOnHold)})
	require.NoError(t, err)
	assert.Equal(t, ObjectiveOnHold, out.Status)
	assert.Equal(t, "u4", out.OwnerID)
	assert.Equal(t, "Retail", out.Department)
	assert.Equal(t, "2026", out.FiscalYear)

	_, err = svc.UpdateObjective(ctx, o.ID, ObjectivePatch{OwnerID: ptr(" ")})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestUpdateDepartment_DescriptionOnlyKeepsCodeAndHead(t *testing.T) {
	svc, _ := newTestService()
	ctx := asUser("u1")

	d, err := svc.CreateDepartment(ctx, DepartmentInput{Name: "Finance", Code: "fin", HeadOfDepartmentID: ptr("u5")})
	require.NoError(t, err)

	out, err := svc.UpdateDepartment(ctx, d.ID, DepartmentPatch{Description: ptr("money")})
	require.NoError(t, err)
	assert.Equal(t, "money", out.Description)
	assert.Equal(t, "FIN", out.Code)
	assert.Equal(t, "Finance", out.Name)
	require.NotNil(t, out.HeadOfDepartmentID)
	assert.Equal(t, "u5", *out.HeadOfDepartmentID)

	cleared, err := svc.UpdateDepartment(ctx, d.ID, DepartmentPatch{HeadOfDepartmentID: ptr("")})
	require.NoError(t, err)
	assert.Nil(t, cleared.HeadOfDepartmentID)
}

func TestUpdateDocument_CategoryOnlyKeepsFileFields(t *testing.T) {
	svc, _ := newTestService()
	ctx := asUser("u3")

	doc, err := svc.CreateDocument(ctx, DocumentInput{FileName: "policy.pdf", FilePath: "docs/policy.pdf", FileSize: 2048,
		FileType: "application/pdf", Category: "policy", Tags: []string{"iso"}})
	require.NoError(t, err)

	out, err := svc.UpdateDocument(ctx, doc.ID, DocumentPatch{Category: ptr("evidence")})
	require.NoError(t, err)
	assert.Equal(t, "evidence", out.Category)
	assert.Equal(t, int64(2048), out.FileSize)
	assert.Equal(t, "docs/policy.pdf", out.FilePath)
	assert.Equal(t, []string{"iso"}, out.Tags)
}

func TestUpdateControl_TitleOnlyKeepsTypeAndCode(t *testing.T) {
	svc, _ := newTestService()
	ctx := asUser("u1")

	c, err := svc.CreateControl(ctx, ControlInput{ControlCode: "ac-01", Title: "Access review", Category: "access", ControlType: ControlDetective})
	require.NoError(t, err)
	assert.Equal(t, "AC-01", c.ControlCode)
	assert.Equal(t, ControlActive, c.Status)

	out, err := svc.UpdateControl(ctx, c.ID, ControlPatch{Title: ptr("Quarterly access review")})
	require.NoError(t, err)
	assert.Equal(t, "Quarterly access review", out.Title)
	assert.Equal(t, ControlDetective, out.ControlType)
	assert.Equal(t, "AC-01", out.ControlCode)
	assert.Equal(t, "access", out.Category)
}
