package ai

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"grc-platform/pkg/logger"
	"grc-platform/pkg/utils"

	"github.com/redis/go-redis/v9"
)

var ErrTooManyRequests = errors.New("ai: too many concurrent generations")

// Limiter caps in-flight generations per user. release must be called once
// the generation finishes.
type Limiter interface {
	Acquire(ctx context.Context, userID string) (release func(), err error)
}

// RedisLimiter shares the cap across API instances. The TTL bounds how long a
// slot can leak if a process dies mid-generation.
type RedisLimiter struct {
	rdb   *redis.Client
	limit int
	ttl   time.Duration
}

func NewRedisLimiter(rdb *redis.Client, limit int, ttl time.Duration) *RedisLimiter {
	if limit <= 0 {
		limit = 2
	}
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &RedisLimiter{rdb: rdb, limit: limit, ttl: ttl}
}

func capKey(userID string) string { return "grc:ai:inflight:" + userID }

func (l *RedisLimiter) Acquire(ctx context.Context, userID string) (func(), error) {
	key := capKey(userID)
	ok, err := utils.AcquireConcurrencyCap(ctx, l.rdb, key, l.limit, l.ttl)
	if err != nil {
		// Redis down should not take AI generation with it.
		logger.From(ctx).Warn("ai concurrency cap unavailable", slog.Any("err", err))
		return func() {}, nil
	}
	if !ok {
		return nil, ErrTooManyRequests
	}
	return func() {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		if err := utils.ReleaseConcurrencyCap(rctx, l.rdb, key); err != nil {
			logger.From(ctx).Warn("ai concurrency release failed", slog.Any("err", err))
		}
	}, nil
}
