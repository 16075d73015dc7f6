package utils

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"grc-platform/pkg/logger"
)

// PostgresPoolConfig controls database/sql pool behavior and startup probing.
type PostgresPoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration

	// ConnectAttempts bounds the startup ping loop; Postgres often comes up
	// after the API in compose and k8s.
	ConnectAttempts int
	ConnectBackoff  time.Duration
}

func (c PostgresPoolConfig) withDefaults() PostgresPoolConfig {
	out := c
	if out.MaxOpenConns <= 0 {
		out.MaxOpenConns = 20
	}
	if out.MaxIdleConns <= 0 {
		out.MaxIdleConns = out.MaxOpenConns
	}
	if out.ConnMaxLifetime <= 0 {
		out.ConnMaxLifetime = 30 * time.Minute
	}
	if out.ConnMaxIdleTime <= 0 {
		out.ConnMaxIdleTime = 5 * time.Minute
	}
	if out.PingTimeout <= 0 {
		out.PingTimeout = 5 * time.Second
	}
	if out.ConnectAttempts <= 0 {
		out.ConnectAttempts = 5
	}
	if out.ConnectBackoff <= 0 {
		out.ConnectBackoff = 500 * time.Millisecond
	}
	return out
}

// OpenPostgres opens a pool and waits until the server answers a ping.
// driverName is "pgx" (pgx stdlib). The dsn carries secrets and is never logged.
func OpenPostgres(ctx context.Context, driverName, dsn string, pool PostgresPoolConfig) (*sql.DB, error) {
	pool = pool.withDefaults()

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(pool.MaxOpenConns)
	db.SetMaxIdleConns(pool.MaxIdleConns)
	db.SetConnMaxLifetime(pool.ConnMaxLifetime)
	db.SetConnMaxIdleTime(pool.ConnMaxIdleTime)

	log := logger.From(ctx)
	backoff := pool.ConnectBackoff
	for attempt := 1; ; attempt++ {
		err = HealthCheck(ctx, db, pool.PingTimeout)
		if err == nil {
			return db, nil
		}
		if attempt >= pool.ConnectAttempts {
			break
		}
		log.Warn("postgres not ready, retrying",
			slog.Int("attempt", attempt), slog.Duration("backoff", backoff), slog.Any("err", err))
		select {
		case <-ctx.Done():
			_ = db.Close()
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	_ = db.Close()
	return nil, fmt.Errorf("postgres unreachable after %d attempts: %w", pool.ConnectAttempts, err)
}

// HealthCheck pings the DB with a timeout.
func HealthCheck(ctx context.Context, db *sql.DB, timeout time.Duration) error {
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		return fmt.Errorf("db ping failed: %w", err)
	}
	return nil
}

// TxFunc is the unit of work executed inside a transaction. It may run more
// than once, so it must not have side effects outside tx.
type TxFunc func(ctx context.Context, tx *sql.Tx) error

const maxTxAttempts = 3

// WithTx runs fn inside a transaction, committing when fn returns nil.
// Serialization failures and deadlocks are retried up to maxTxAttempts times.
// A panic in fn rolls back and is re-raised.
func WithTx(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn TxFunc) error {
	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err = runTx(ctx, db, opts, fn)
		if err == nil || !IsRetryable(err) || ctx.Err() != nil {
			return err
		}
		logger.From(ctx).Debug("retrying transaction", slog.Int("attempt", attempt), slog.Any("err", err))
	}
	return err
}

func runTx(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn TxFunc) (err error) {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	return fn(ctx, tx)
}
