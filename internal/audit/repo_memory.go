package audit

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepo is an in-memory append-only repository useful for tests.
// It is not intended for production use.
type MemoryRepo struct {
	mu      sync.Mutex
	entries []Entry
	seq     int64

	// Err, when set, is returned by Append. Tests use it to simulate an unavailable store.
	Err error
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) Append(_ context.Context, e Entry) (Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return Entry{}, r.Err
	}
	r.seq++
	e.Seq = r.seq
	r.entries = append(r.entries, e)
	return e, nil
}

func (r *MemoryRepo) Query(_ context.Context, f Filter) ([]Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Entry, 0)
	for _, e := range r.entries {
		if f.EntityType != "" && e.EntityType != f.EntityType {
			continue
		}
		if f.EntityID != "" && (e.EntityID == nil || *e.EntityID != f.EntityID) {
			continue
		}
		if f.Before != nil && !olderThanCursor(e, f) {
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool { return newerFirst(out[i], out[j]) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *MemoryRepo) Since(_ context.Context, afterSeq int64, limit int) ([]Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Entry, 0)
	for _, e := range r.entries {
		if e.Seq > afterSeq {
			out = append(out, e)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// Entries returns a copy of everything appended, in insertion order.
func (r *MemoryRepo) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

func newerFirst(a, b Entry) bool {
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.After(b.Timestamp)
	}
	return a.Seq > b.Seq
}

func olderThanCursor(e Entry, f Filter) bool {
	if e.Timestamp.Before(*f.Before) {
		return true
	}
	return f.BeforeSeq > 0 && e.Timestamp.Equal(*f.Before) && e.Seq < f.BeforeSeq
}
