package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"grc-platform/pkg/logger"
	"grc-platform/pkg/metrics"

	"github.com/redis/go-redis/v9"
)

// RedisBroadcaster publishes persisted entries on a Redis channel so every API
// instance can feed its local Hub through a Relay.
type RedisBroadcaster struct {
	rdb     *redis.Client
	channel string
}

func NewRedisBroadcaster(rdb *redis.Client, channel string) *RedisBroadcaster {
	return &RedisBroadcaster{rdb: rdb, channel: channel}
}

func (b *RedisBroadcaster) Publish(ctx context.Context, e Entry) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, payload).Err()
}

// pubsub is the part of *redis.PubSub the relay reads from.
type pubsub interface {
	Receive(ctx context.Context) (interface{}, error)
	Close() error
}

// Relay forwards the Redis channel into a Hub.
//
// Every (re)subscription is followed by a resync: entries with a Seq above the
// last one seen are read back from the store and published before live traffic
// resumes. The Hub drops duplicates by ID, so overlap is harmless.
type Relay struct {
	subscribe func(ctx context.Context, channel string) pubsub
	channel   string
	hub       Publisher
	source    Repository

	batch      int
	maxBatches int
	minBackoff time.Duration
	maxBackoff time.Duration
}

func NewRelay(rdb *redis.Client, channel string, hub Publisher, source Repository) *Relay {
	return &Relay{
		subscribe: func(ctx context.Context, channel string) pubsub {
			return rdb.Subscribe(ctx, channel)
		},
		channel:    channel,
		hub:        hub,
		source:     source,
		batch:      200,
		maxBatches: 25,
		minBackoff: 100 * time.Millisecond,
		maxBackoff: 5 * time.Second,
	}
}

// Run blocks until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	log := logger.From(ctx).With(slog.String("component", "audit_relay"))

	watermark, known := r.latestSeq(ctx, log)

	ps := r.subscribe(ctx, r.channel)
	defer ps.Close()

	backoff := r.minBackoff
	for {
		msg, err := ps.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Warn("audit relay receive failed", slog.Any("err", err), slog.Duration("retry_in", backoff))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, r.maxBackoff)
			continue
		}
		backoff = r.minBackoff

		switch m := msg.(type) {
		case *redis.Subscription:
			if m.Kind != "subscribe" {
				continue
			}
			if !known {
				watermark, known = r.latestSeq(ctx, log)
				continue
			}
			watermark = r.resync(ctx, log, watermark)
		case *redis.Message:
			var e Entry
			if err := json.Unmarshal([]byte(m.Payload), &e); err != nil {
				log.Warn("audit relay dropped malformed payload", slog.Any("err", err))
				continue
			}
			_ = r.hub.Publish(ctx, e)
			if e.Seq > watermark {
				watermark = e.Seq
			}
		}
	}
}

func (r *Relay) latestSeq(ctx context.Context, log *slog.Logger) (int64, bool) {
	latest, err := r.source.Query(ctx, Filter{Limit: 1})
	if err != nil {
		log.Warn("audit relay could not read watermark", slog.Any("err", err))
		return 0, false
	}
	if len(latest) == 0 {
		return 0, true
	}
	return latest[0].Seq, true
}

func (r *Relay) resync(ctx context.Context, log *slog.Logger, watermark int64) int64 {
	replayed := 0
	for i := 0; i < r.maxBatches; i++ {
		entries, err := r.source.Since(ctx, watermark, r.batch)
		if err != nil {
			log.Warn("audit relay resync failed", slog.Int64("after_seq", watermark), slog.Any("err", err))
			break
		}
		for _, e := range entries {
			_ = r.hub.Publish(ctx, e)
			if e.Seq > watermark {
				watermark = e.Seq
			}
		}
		replayed += len(entries)
		if len(entries) < r.batch {
			break
		}
	}
	metrics.AuditResyncs.Inc()
	if replayed > 0 {
		log.Info("audit relay resynced", slog.Int("replayed", replayed), slog.Int64("watermark", watermark))
	}
	return watermark
}
