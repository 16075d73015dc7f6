package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		var rec map[string]any
		if err := json.Unmarshal(line, &rec); err != nil {
			t.Fatalf("bad json log %q: %v", line, err)
		}
		out = append(out, rec)
	}
	return out
}

func TestMiddleware_PropagatesRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	l := NewWithWriter("production", "", &buf)

	r := gin.New()
	r.Use(Middleware(l))
	r.GET("/x/:id", func(c *gin.Context) {
		c.Set("user_id", "u1")
		c.Set("role", "audit")
		From(c.Request.Context()).Info("inside")
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x/42", nil)
	req.Header.Set("X-Request-Id", "rid-1")
	r.ServeHTTP(w, req)

	if w.Header().Get("X-Request-Id") != "rid-1" {
		t.Fatalf("expected request id echoed")
	}

	lines := decodeLines(t, &buf)
	if len(lines) != 2 {
		t.Fatalf("expected 2 log lines, got %d: %s", len(lines), buf.String())
	}
	for _, rec := range lines {
		if rec["request_id"] != "rid-1" || rec["service"] != "grc-api" {
			t.Fatalf("missing request_id/service in %v", rec)
		}
	}
	summary := lines[1]
	if summary["user_id"] != "u1" || summary["role"] != "audit" || summary["path"] != "/x/:id" {
		t.Fatalf("unexpected summary %v", summary)
	}
	if summary["level"] != "INFO" {
		t.Fatalf("expected INFO summary, got %v", summary["level"])
	}
}

func TestMiddleware_ReplacesOversizedRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware(NewWithWriter("production", "", &bytes.Buffer{})))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Request-Id", strings.Repeat("a", 500))
	r.ServeHTTP(w, req)

	if got := w.Header().Get("X-Request-Id"); got == "" || len(got) > maxRequestIDLen {
		t.Fatalf("expected a generated request id, got %q", got)
	}
}

func TestMiddleware_SummaryLevels(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	r := gin.New()
	r.Use(Middleware(NewWithWriter("production", "", &buf)))
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/missing", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	r.GET("/broken", func(c *gin.Context) { c.Status(http.StatusServiceUnavailable) })

	for _, p := range []string{"/healthz", "/missing", "/broken"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, p, nil))
	}

	lines := decodeLines(t, &buf)
	if len(lines) != 2 {
		t.Fatalf("probe summary must be debug-only, got %d lines: %s", len(lines), buf.String())
	}
	if lines[0]["level"] != "WARN" || lines[1]["level"] != "ERROR" {
		t.Fatalf("unexpected levels %v / %v", lines[0]["level"], lines[1]["level"])
	}
}

func TestParseLevel(t *testing.T) {
	cases := []struct {
		level, env string
		want       slog.Level
	}{
		{"", "dev", slog.LevelDebug},
		{"", "local", slog.LevelDebug},
		{"", "production", slog.LevelInfo},
		{"warn", "dev", slog.LevelWarn},
		{"ERROR", "production", slog.LevelError},
		{"debug", "production", slog.LevelDebug},
	}
	for _, tc := range cases {
		if got := ParseLevel(tc.level, tc.env); got != tc.want {
			t.Fatalf("ParseLevel(%q, %q) = %v, want %v", tc.level, tc.env, got, tc.want)
		}
	}
}

func TestNew_DebugOnlyInDev(t *testing.T) {
	var buf bytes.Buffer
	NewWithWriter("production", "", &buf).Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("debug must be suppressed in production")
	}
	NewWithWriter("dev", "", &buf).Debug("shown")
	if buf.Len() == 0 {
		t.Fatalf("debug must be emitted in dev")
	}
}
