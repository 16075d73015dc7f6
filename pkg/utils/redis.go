package utils

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrRedisAddrRequired = errors.New("redis addr is required")
	errNilScripter       = errors.New("redis client is nil")
)

// RedisConfig controls the go-redis client. Zero values take the defaults below.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// ClientName shows up in CLIENT LIST, which helps when several services share an instance.
	ClientName string

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	PoolSize        int
	MinIdleConns    int
	PoolTimeout     time.Duration
	ConnMaxIdleTime time.Duration

	PingTimeout time.Duration
}

func (c RedisConfig) withDefaults() RedisConfig {
	out := c
	if out.ClientName == "" {
		out.ClientName = "grc-api"
	}
	if out.DialTimeout <= 0 {
		out.DialTimeout = 3 * time.Second
	}
	if out.ReadTimeout <= 0 {
		out.ReadTimeout = 2 * time.Second
	}
	if out.WriteTimeout <= 0 {
		out.WriteTimeout = 2 * time.Second
	}
	if out.PoolSize <= 0 {
		out.PoolSize = 10
	}
	if out.MinIdleConns < 0 {
		out.MinIdleConns = 0
	}
	if out.PoolTimeout <= 0 {
		out.PoolTimeout = 4 * time.Second
	}
	if out.ConnMaxIdleTime <= 0 {
		out.ConnMaxIdleTime = 5 * time.Minute
	}
	if out.PingTimeout <= 0 {
		out.PingTimeout = 2 * time.Second
	}
	return out
}

// OpenRedis builds a client and checks it with PING. The client serves both
// the audit pub/sub relay and the AI concurrency cap.
func OpenRedis(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	cfg = cfg.withDefaults()
	if cfg.Addr == "" {
		return nil, ErrRedisAddrRequired
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:            cfg.Addr,
		Password:        cfg.Password,
		DB:              cfg.DB,
		ClientName:      cfg.ClientName,
		DialTimeout:     cfg.DialTimeout,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		PoolSize:        cfg.PoolSize,
		MinIdleConns:    cfg.MinIdleConns,
		PoolTimeout:     cfg.PoolTimeout,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	})

	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return rdb, nil
}

// acquireSlot increments the in-flight counter and refuses past the limit.
// The TTL is refreshed on every acquire so a crashed holder only blocks the
// key until it expires.
var acquireSlot = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
redis.call('PEXPIRE', KEYS[1], ARGV[2])
if n > tonumber(ARGV[1]) then
  redis.call('DECR', KEYS[1])
  return 0
end
return 1
`)

// releaseSlot never drives the counter below zero; an expired key is a no-op.
var releaseSlot = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return 0
end
if redis.call('DECR', KEYS[1]) <= 0 then
  redis.call('DEL', KEYS[1])
end
return 1
`)

// AcquireConcurrencyCap takes one of limit slots under key. It reports false
// when every slot is held.
func AcquireConcurrencyCap(ctx context.Context, rdb redis.Scripter, key string, limit int, ttl time.Duration) (bool, error) {
	switch {
	case rdb == nil:
		return false, errNilScripter
	case key == "":
		return false, errors.New("concurrency cap: key is required")
	case limit <= 0:
		return false, fmt.Errorf("concurrency cap: limit must be positive, got %d", limit)
	case ttl <= 0:
		return false, fmt.Errorf("concurrency cap: ttl must be positive, got %s", ttl)
	}

	res, err := acquireSlot.Run(ctx, rdb, []string{key}, limit, ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("concurrency cap acquire: %w", err)
	}
	return res == 1, nil
}

// ReleaseConcurrencyCap gives back a slot taken by AcquireConcurrencyCap.
func ReleaseConcurrencyCap(ctx context.Context, rdb redis.Scripter, key string) error {
	if rdb == nil {
		return errNilScripter
	}
	if key == "" {
		return errors.New("concurrency cap: key is required")
	}
	if err := releaseSlot.Run(ctx, rdb, []string{key}).Err(); err != nil {
		return fmt.Errorf("concurrency cap release: %w", err)
	}
	return nil
}
