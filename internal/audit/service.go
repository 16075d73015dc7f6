package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"grc-platform/internal/apperr"
	"grc-platform/pkg/logger"
	"grc-platform/pkg/metrics"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit entries.
//
// It MUST be append-only: there are no Update/Delete methods.
// Append returns the entry with its store-assigned Seq.
type Repository interface {
	Append(ctx context.Context, e Entry) (Entry, error)
	// Query returns entries newest first by (Timestamp, Seq).
	Query(ctx context.Context, f Filter) ([]Entry, error)
	// Since returns entries with Seq > afterSeq in ascending Seq order.
	Since(ctx context.Context, afterSeq int64, limit int) ([]Entry, error)
}

// Publisher receives every entry after it has been persisted.
// The local Hub, the Redis broadcaster and the Kafka exporter implement it.
type Publisher interface {
	Publish(ctx context.Context, e Entry) error
}

var (
	ErrInvalidEntry = fmt.Errorf("%w: audit entry requires action and entity_type", apperr.ErrValidation)
	ErrInvalidLimit = fmt.Errorf("%w: limit must be positive", apperr.ErrValidation)
)

const (
	DefaultLimit = 50
	MaxLimit     = 100
)

// Service appends to and reads the audit trail and fans inserts out to subscribers.
type Service struct {
	repo       Repository
	hub        *Hub
	publishers []namedPublisher
	clock      func() time.Time

	defaultLimit int
	maxLimit     int
}

type namedPublisher struct {
	name string
	p    Publisher
}

type Option func(*Service)

// WithPublisher adds a sink notified after each successful append.
// When no publisher is configured the service publishes straight to its hub.
func WithPublisher(name string, p Publisher) Option {
	return func(s *Service) { s.publishers = append(s.publishers, namedPublisher{name: name, p: p}) }
}

func WithHub(h *Hub) Option { return func(s *Service) { s.hub = h } }

func WithClock(clock func() time.Time) Option { return func(s *Service) { s.clock = clock } }

func WithLimits(defaultLimit, maxLimit int) Option {
	return func(s *Service) {
		if defaultLimit > 0 {
			s.defaultLimit = defaultLimit
		}
		if maxLimit > 0 {
			s.maxLimit = maxLimit
		}
	}
}

func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{
		repo:         repo,
		clock:        time.Now,
		defaultLimit: DefaultLimit,
		maxLimit:     MaxLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.hub == nil {
		s.hub = NewHub(0)
	}
	if len(s.publishers) == 0 {
		s.publishers = []namedPublisher{{name: "hub", p: s.hub}}
	}
	return s
}

// Hub exposes the local fan-out so transports can subscribe directly.
func (s *Service) Hub() *Hub { return s.hub }

// Append validates and persists one entry, then notifies publishers.
// Publisher failures are logged and counted; the entry is already durable.
func (s *Service) Append(ctx context.Context, e Entry) (Entry, error) {
	if s.repo == nil {
		return Entry{}, errors.New("audit: repository not configured")
	}
	e.Action = strings.TrimSpace(e.Action)
	e.EntityType = strings.TrimSpace(e.EntityType)
	if e.Action == "" || e.EntityType == "" {
		return Entry{}, ErrInvalidEntry
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = s.clock().UTC()
	}

	saved, err := s.repo.Append(ctx, e)
	if err != nil {
		return Entry{}, apperr.Persistence("append audit entry", err)
	}

	for _, np := range s.publishers {
		if err := np.p.Publish(ctx, saved); err != nil {
			metrics.AuditPublishFailures.WithLabelValues(np.name).Inc()
			logger.From(ctx).Warn("audit publish failed",
				slog.String("sink", np.name),
				slog.String("audit_id", saved.ID),
				slog.Any("err", err),
			)
		}
	}
	return saved, nil
}

// Query returns a read-only snapshot, newest first, never more than the max limit.
// A zero limit means the default limit.
func (s *Service) Query(ctx context.Context, f Filter) ([]Entry, error) {
	if s.repo == nil {
		return nil, errors.New("audit: repository not configured")
	}
	switch {
	case f.Limit < 0:
		return nil, ErrInvalidLimit
	case f.Limit == 0:
		f.Limit = s.defaultLimit
	case f.Limit > s.maxLimit:
		f.Limit = s.maxLimit
	}
	f.EntityType = strings.TrimSpace(f.EntityType)
	f.EntityID = strings.TrimSpace(f.EntityID)

	out, err := s.repo.Query(ctx, f)
	if err != nil {
		return nil, apperr.Persistence("query audit entries", err)
	}
	if out == nil {
		out = []Entry{}
	}
	return out, nil
}

// Subscribe registers fn for every entry appended after this call, across the whole log.
// Delivery is at-least-once and serialized per subscription. Call Cancel on the
// returned subscription to release it; Cancel is safe to call more than once.
func (s *Service) Subscribe(fn func(Entry)) *Subscription {
	return s.hub.Subscribe(fn)
}
