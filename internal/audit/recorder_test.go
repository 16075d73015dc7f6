package audit

import (
	"context"
	"errors"
	"testing"

	"grc-platform/internal/auth"
	"grc-platform/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_AttributesFromIdentity(t *testing.T) {
	repo := NewMemoryRepo()
	rec := NewRecorder(NewService(repo))

	ctx := auth.WithIdentity(context.Background(), auth.Identity{UserID: "u1", Email: "u1@example.com", IP: "10.0.0.1"})
	saved, ok := rec.Record(ctx, Entry{Action: ActionCreate, EntityType: "policy", EntityID: StringPtr("p1")})
	require.True(t, ok)
	assert.Equal(t, "u1@example.com", saved.Actor())
	require.NotNil(t, saved.IPAddress)
	assert.Equal(t, "10.0.0.1", *saved.IPAddress)
	assert.Len(t, repo.Entries(), 1)
}

func TestRecorder_FailureIsCountedNotReturned(t *testing.T) {
	repo := NewMemoryRepo()
	repo.Err = errors.New("db down")
	rec := NewRecorder(NewService(repo))

	before := testutil.ToFloat64(metrics.AuditWriteFailures.WithLabelValues("incident"))
	_, ok := rec.Record(context.Background(), Entry{Action: ActionResolve, EntityType: "incident"})
	assert.False(t, ok)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.AuditWriteFailures.WithLabelValues("incident")))
}

func TestRecorder_NilIsSafe(t *testing.T) {
	var rec *Recorder
	_, ok := rec.Record(context.Background(), Entry{Action: ActionCreate, EntityType: "risk"})
	assert.False(t, ok)
}
