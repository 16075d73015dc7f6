package utils

import (
	"context"
	"testing"
	"time"
)

func TestPostgresPoolConfig_Defaults(t *testing.T) {
	got := PostgresPoolConfig{}.withDefaults()
	if got.MaxOpenConns != 20 || got.MaxIdleConns != 20 {
		t.Fatalf("unexpected pool sizes: %+v", got)
	}
	if got.PingTimeout != 5*time.Second || got.ConnectAttempts != 5 {
		t.Fatalf("unexpected probe defaults: %+v", got)
	}

	custom := PostgresPoolConfig{MaxOpenConns: 5, PingTimeout: time.Second}.withDefaults()
	if custom.MaxOpenConns != 5 || custom.MaxIdleConns != 5 || custom.PingTimeout != time.Second {
		t.Fatalf("explicit values must be kept: %+v", custom)
	}
}

func TestOpenPostgres_UnknownDriver(t *testing.T) {
	if _, err := OpenPostgres(context.Background(), "no-such-driver", "postgres://x", PostgresPoolConfig{}); err == nil {
		t.Fatalf("expected error for unregistered driver")
	}
}
