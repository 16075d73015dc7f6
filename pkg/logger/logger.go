package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

const serviceName = "grc-api"

// New returns the process logger writing to stdout.
func New(appEnv, level string) *slog.Logger {
	return NewWithWriter(appEnv, level, os.Stdout)
}

// NewWithWriter builds the logger on w. Local runs get text output, every
// other environment JSON. An empty level means debug in local/dev, info elsewhere.
func NewWithWriter(appEnv, level string, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level, appEnv)}

	var h slog.Handler
	if appEnv == "local" {
		h = slog.NewTextHandler(w, opts)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}
	return slog.New(h).With("service", serviceName, "env", appEnv)
}

func ParseLevel(level, appEnv string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	if appEnv == "local" || appEnv == "dev" {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

type ctxKey struct{}

// With stores l in ctx for From.
func With(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// From returns the logger stored by With, or slog.Default.
func From(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok && l != nil {
		return l
	}
	return slog.Default()
}
