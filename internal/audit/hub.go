package audit

import (
	"context"
	"sync"

	"grc-platform/pkg/metrics"
)

const (
	defaultSubscriberBuffer = 256
	recentIDsTracked        = 1024
)

// Hub fans appended entries out to in-process subscribers.
//
// Each subscription owns a bounded queue drained by its own goroutine, so a slow
// subscriber never blocks Publish or other subscribers. A full queue drops the
// entry for that subscriber only. Entries already seen (by ID) are ignored,
// which makes replays after a pub/sub reconnect harmless.
type Hub struct {
	mu     sync.Mutex
	subs   map[uint64]*Subscription
	nextID uint64
	closed bool
	buffer int
	recent *idRing
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = defaultSubscriberBuffer
	}
	return &Hub{
		subs:   make(map[uint64]*Subscription),
		buffer: buffer,
		recent: newIDRing(recentIDsTracked),
	}
}

// Subscription is a handle to a live registration on a Hub.
type Subscription struct {
	hub   *Hub
	id    uint64
	queue chan Entry
	done  chan struct{}
	once  sync.Once
}

// Subscribe starts delivering entries to fn until the subscription is cancelled
// or the hub is closed. fn is never called concurrently with itself.
func (h *Hub) Subscribe(fn func(Entry)) *Subscription {
	sub := &Subscription{
		hub:   h,
		queue: make(chan Entry, h.buffer),
		done:  make(chan struct{}),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		sub.once.Do(func() { close(sub.done) })
		return sub
	}
	h.nextID++
	sub.id = h.nextID
	h.subs[sub.id] = sub
	h.mu.Unlock()
	metrics.AuditSubscribers.Inc()

	go sub.run(fn)
	return sub
}

func (s *Subscription) run(fn func(Entry)) {
	for {
		select {
		case <-s.done:
			return
		case e := <-s.queue:
			// cancellation wins over anything still queued
			select {
			case <-s.done:
				return
			default:
			}
			fn(e)
		}
	}
}

// Cancel stops delivery. It is idempotent and safe from any goroutine,
// including from inside the subscriber callback.
func (s *Subscription) Cancel() {
	s.once.Do(func() {
		s.hub.remove(s.id)
		close(s.done)
	})
}

// Done is closed once the subscription has been cancelled.
func (s *Subscription) Done() <-chan struct{} { return s.done }

func (h *Hub) remove(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[id]; ok {
		delete(h.subs, id)
		metrics.AuditSubscribers.Dec()
	}
}

// Publish implements Publisher. It never blocks on subscribers.
func (h *Hub) Publish(_ context.Context, e Entry) error {
	h.mu.Lock()
	if h.closed || !h.recent.add(e.ID) {
		h.mu.Unlock()
		return nil
	}
	targets := make([]*Subscription, 0, len(h.subs))
	for _, s := range h.subs {
		targets = append(targets, s)
	}
	h.mu.Unlock()

	for _, s := range targets {
		select {
		case <-s.done:
		case s.queue <- e:
		default:
			metrics.AuditSubscriberDrops.Inc()
		}
	}
	return nil
}

// Len reports live subscriptions.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close cancels every subscription; later Subscribe calls get an already-cancelled handle.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	subs := make([]*Subscription, 0, len(h.subs))
	for _, s := range h.subs {
		subs = append(subs, s)
	}
	h.mu.Unlock()

	for _, s := range subs {
		s.Cancel()
	}
}

// idRing remembers the last n IDs. Not safe for concurrent use; Hub guards it.
type idRing struct {
	ids  []string
	set  map[string]struct{}
	next int
}

func newIDRing(n int) *idRing {
	return &idRing{ids: make([]string, n), set: make(map[string]struct{}, n)}
}

// add records id and reports whether it was new. Empty IDs are always new.
func (r *idRing) add(id string) bool {
	if id == "" {
		return true
	}
	if _, ok := r.set[id]; ok {
		return false
	}
	if old := r.ids[r.next]; old != "" {
		delete(r.set, old)
	}
	r.ids[r.next] = id
	r.set[id] = struct{}{}
	r.next = (r.next + 1) % len(r.ids)
	return true
}
