package utils

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestAcquireConcurrencyCap_ValidatesArguments(t *testing.T) {
	ctx := context.Background()
	if _, err := AcquireConcurrencyCap(ctx, nil, "k", 1, time.Second); err == nil {
		t.Fatalf("expected error for nil client")
	}
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer rdb.Close()

	cases := []struct {
		name  string
		key   string
		limit int
		ttl   time.Duration
	}{
		{"empty key", "", 1, time.Second},
		{"zero limit", "k", 0, time.Second},
		{"zero ttl", "k", 1, 0},
	}
	for _, tc := range cases {
		if _, err := AcquireConcurrencyCap(ctx, rdb, tc.key, tc.limit, tc.ttl); err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
	}
}

func TestReleaseConcurrencyCap_ValidatesArguments(t *testing.T) {
	if err := ReleaseConcurrencyCap(context.Background(), nil, "k"); err == nil {
		t.Fatalf("expected error for nil client")
	}
}

func TestOpenRedis_RequiresAddr(t *testing.T) {
	if _, err := OpenRedis(context.Background(), RedisConfig{}); !errors.Is(err, ErrRedisAddrRequired) {
		t.Fatalf("expected ErrRedisAddrRequired, got %v", err)
	}
}

func TestRedisConfig_Defaults(t *testing.T) {
	got := RedisConfig{Addr: "x:6379"}.withDefaults()
	if got.ClientName != "grc-api" || got.PoolSize != 10 || got.PingTimeout != 2*time.Second {
		t.Fatalf("unexpected defaults: %+v", got)
	}
}
