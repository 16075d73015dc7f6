package records

import (
	"testing"

	"grc-platform/internal/apperr"
	"grc-platform/internal/audit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestControl_Validation(t *testing.T) {
	svc, _ := newTestService()
	ctx := asUser("u1")

	cases := []ControlInput{
		{ControlCode: "A", Title: "Access review", Category: "access", ControlType: ControlDetective},
		{ControlCode: "AC-02", Title: "Access review", Category: "access", ControlType: "manual"},
		{ControlCode: "AC-02", Title: "Access review", Category: "", ControlType: ControlDetective},
		{ControlCode: "AC-02", Title: "Access review", Category: "access", ControlType: ControlDetective, Status: "retired"},
	}
	for i, in := range cases {
		_, err := svc.CreateControl(ctx, in)
		assert.ErrorIs(t, err, apperr.ErrValidation, "case %d", i)
	}
}

func TestControl_DuplicateCodeConflicts(t *testing.T) {
	svc, _ := newTestService()
	ctx := asUser("u1")

	_, err := svc.CreateControl(ctx, ControlInput{ControlCode: "AC-01", Title: "Access review", Category: "access", ControlType: ControlDetective})
	require.NoError(t, err)
	_, err = svc.CreateControl(ctx, ControlInput{ControlCode: "ac-01", Title: "Other", Category: "access", ControlType: ControlPreventive})
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestControls_ListedByCode(t *testing.T) {
	svc, _ := newTestService()
	ctx := asUser("u1")

	for _, code := range []string{"OP-02", "AC-01", "BC-09"} {
		_, err := svc.CreateControl(ctx, ControlInput{ControlCode: code, Title: "Control " + code, Category: "c", ControlType: ControlPreventive})
		require.NoError(t, err)
	}
	out, err := svc.ListControls(ctx, ListFilter{})
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, []string{"AC-01", "BC-09", "OP-02"}, []string{out[0].ControlCode, out[1].ControlCode, out[2].ControlCode})
}

func TestControlMapping_Lifecycle(t *testing.T) {
	svc, auditRepo := newTestService()
	ctx := asUser("u1")

	p, err := svc.CreatePolicy(ctx, PolicyInput{Title: "Access control", Category: "security"})
	require.NoError(t, err)
	c, err := svc.CreateControl(ctx, ControlInput{ControlCode: "AC-01", Title: "Access review", Category: "access", ControlType: ControlDetective})
	require.NoError(t, err)

	m, err := svc.MapControl(ctx, p.ID, c.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, m.PolicyID)
	require.NotNil(t, m.MappedBy)
	assert.Equal(t, "u1", *m.MappedBy)

	_, err = svc.MapControl(ctx, p.ID, c.ID)
	assert.ErrorIs(t, err, ErrAlreadyMapped)
	assert.ErrorIs(t, err, apperr.ErrConflict)

	byPolicy, err := svc.ListControlMappings(ctx, MappingFilter{PolicyID: p.ID})
	require.NoError(t, err)
	require.Len(t, byPolicy, 1)
	byControl, err := svc.ListControlMappings(ctx, MappingFilter{ControlID: c.ID})
	require.NoError(t, err)
	assert.Equal(t, byPolicy, byControl)

	require.NoError(t, svc.UnmapControl(ctx, p.ID, c.ID))
	assert.ErrorIs(t, svc.UnmapControl(ctx, p.ID, c.ID), apperr.ErrNotFound)

	left, err := svc.ListControlMappings(ctx, MappingFilter{PolicyID: p.ID})
	require.NoError(t, err)
	assert.Empty(t, left)

	var actions []string
	for _, e := range auditRepo.Entries() {
		if e.EntityType == EntityPolicy && *e.EntityID == p.ID {
			actions = append(actions, e.Action)
		}
	}
	assert.Equal(t, []string{audit.ActionCreate, audit.ActionMap, audit.ActionUnmap}, actions)
}

func TestControlMapping_UnknownRecordsAreNotFound(t *testing.T) {
	svc, _ := newTestService()
	ctx := asUser("u1")
	missing := "7d7f3c4e-5b0e-4a53-9d3c-3e8e1c1f3b2a"

	p, err := svc.CreatePolicy(ctx, PolicyInput{Title: "Access control", Category: "security"})
	require.NoError(t, err)

	_, err = svc.MapControl(ctx, p.ID, missing)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = svc.MapControl(ctx, "nope", missing)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = svc.ListControlMappings(ctx, MappingFilter{})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = svc.ListControlMappings(ctx, MappingFilter{ControlID: "nope"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestMemoryRepo_MappingRequiresExistingRecords(t *testing.T) {
	repo := NewMemoryRepo()
	err := repo.CreateControlMapping(asUser("u1"), ControlMapping{ID: "m1", PolicyID: "p1", ControlID: "c1"})
	assert.ErrorIs(t, err, ErrBadReference)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}
