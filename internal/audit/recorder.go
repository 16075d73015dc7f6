package audit

import (
	"context"
	"log/slog"

	"grc-platform/internal/auth"
	"grc-platform/pkg/logger"
	"grc-platform/pkg/metrics"
)

// Appender is the write side of Service.
type Appender interface {
	Append(ctx context.Context, e Entry) (Entry, error)
}

// Recorder is what mutation sites call after a successful change.
//
// It attributes the entry from the request identity and never fails the caller:
// a lost audit write is logged at WARN and counted in
// grc_audit_write_failures_total so it can be alerted on.
type Recorder struct {
	svc Appender
}

func NewRecorder(svc Appender) *Recorder { return &Recorder{svc: svc} }

// Record appends e, filling attribution from ctx when the caller left it empty.
// It returns the stored entry and whether the write succeeded.
func (r *Recorder) Record(ctx context.Context, e Entry) (Entry, bool) {
	if id, ok := auth.IdentityFrom(ctx); ok {
		if e.UserID == nil {
			e.UserID = StringPtr(id.UserID)
		}
		if e.UserEmail == nil {
			e.UserEmail = StringPtr(id.Email)
		}
		if e.IPAddress == nil {
			e.IPAddress = StringPtr(id.IP)
		}
	}

	if r == nil || r.svc == nil {
		return Entry{}, false
	}
	saved, err := r.svc.Append(ctx, e)
	if err != nil {
		metrics.AuditWriteFailures.WithLabelValues(e.EntityType).Inc()
		attrs := []any{
			slog.String("action", e.Action),
			slog.String("entity_type", e.EntityType),
			slog.Any("err", err),
		}
		if e.EntityID != nil {
			attrs = append(attrs, slog.String("entity_id", *e.EntityID))
		}
		logger.From(ctx).Warn("audit write failed", attrs...)
		return Entry{}, false
	}
	return saved, true
}
