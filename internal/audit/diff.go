package audit

import (
	"encoding/json"
	"reflect"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Change is one field transition in an update entry's details. Text fields
// carry only Patch; From and To are left out of their JSON.
type Change struct {
	From any `json:"from,omitempty"`
	To   any `json:"to,omitempty"`
	// Patch is a unified text patch for long free-text fields.
	Patch string `json:"patch,omitempty"`
}

// Changes collects field transitions for an update entry.
type Changes map[string]Change

// Set records a change when from and to differ.
func (c Changes) Set(field string, from, to any) {
	if reflect.DeepEqual(from, to) {
		return
	}
	c[field] = Change{From: from, To: to}
}

// SetText is Set for long text; it stores a patch instead of both full values.
func (c Changes) SetText(field, from, to string) {
	if from == to {
		return
	}
	dmp := diffmatchpatch.New()
	patches := dmp.PatchMake(from, dmp.DiffMain(from, to, false))
	c[field] = Change{Patch: dmp.PatchToText(patches)}
}

func (c Changes) Empty() bool { return len(c) == 0 }

// Details marshals the changes under "changes" plus any extra context keys.
func (c Changes) Details(extra map[string]any) json.RawMessage {
	payload := map[string]any{"changes": c}
	for k, v := range extra {
		payload[k] = v
	}
	return MustDetails(payload)
}

// MustDetails marshals v for Entry.Details. An unserializable value still
// yields a valid JSON object so the entry itself is not lost.
func MustDetails(v any) json.RawMessage {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		b, _ = json.Marshal(map[string]string{"details_error": err.Error()})
	}
	return b
}

// ApplyTextPatch rebuilds the new value of a text field from its previous value.
// It reports false when any hunk fails to apply.
func ApplyTextPatch(from, patch string) (string, bool) {
	dmp := diffmatchpatch.New()
	patches, err := dmp.PatchFromText(patch)
	if err != nil {
		return "", false
	}
	out, applied := dmp.PatchApply(patches, from)
	for _, ok := range applied {
		if !ok {
			return "", false
		}
	}
	return out, true
}
