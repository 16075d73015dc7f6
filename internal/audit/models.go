package audit

import (
	"encoding/json"
	"time"
)

// Entry is an immutable, append-only audit log record.
//
// Invariants:
// - Entries are never updated or deleted (audit_logs rejects UPDATE/DELETE with a trigger).
// - Action and EntityType are always set.
// - Seq is assigned by the store and breaks Timestamp ties; (Timestamp, Seq) is a total order.
type Entry struct {
	ID         string  `json:"id" db:"id"`
	Seq        int64   `json:"seq" db:"seq"`
	Action     string  `json:"action" db:"action"`
	EntityType string  `json:"entity_type" db:"entity_type"`
	EntityID   *string `json:"entity_id" db:"entity_id"`

	// Attribution is best-effort; nil means the change was made by the system.
	UserID    *string `json:"user_id" db:"user_id"`
	UserEmail *string `json:"user_email" db:"user_email"`
	IPAddress *string `json:"ip_address" db:"ip_address"`

	Timestamp time.Time       `json:"timestamp" db:"timestamp"`
	Details   json.RawMessage `json:"details,omitempty" db:"details"`
}

// SystemActor is the display name for entries without a user.
const SystemActor = "System"

// Actor returns the display attribution for the entry.
func (e Entry) Actor() string {
	if e.UserEmail != nil && *e.UserEmail != "" {
		return *e.UserEmail
	}
	if e.UserID != nil && *e.UserID != "" {
		return *e.UserID
	}
	return SystemActor
}

// Common actions. Action is free-form; these are the ones the service writes.
const (
	ActionCreate      = "create"
	ActionUpdate      = "update"
	ActionDelete      = "delete"
	ActionApprove     = "approve"
	ActionReject      = "reject"
	ActionStatus      = "status_change"
	ActionResolve     = "resolve"
	ActionGenerate    = "generate"
	ActionAcknowledge = "acknowledge"
	ActionMap         = "map"
	ActionUnmap       = "unmap"
)

// Filter narrows Query. Zero values mean "no constraint"; Limit is clamped by the service.
type Filter struct {
	EntityType string
	EntityID   string
	Limit      int
	// Before returns only entries ordered after (Before, BeforeSeq) in the
	// newest-first listing. BeforeSeq 0 compares on the timestamp alone.
	Before    *time.Time
	BeforeSeq int64
}

// StringPtr returns nil for "" so optional columns stay NULL.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
