package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestAuditWriteFailuresCounter(t *testing.T) {
	before := testutil.ToFloat64(AuditWriteFailures.WithLabelValues("risk"))
	AuditWriteFailures.WithLabelValues("risk").Inc()
	if got := testutil.ToFloat64(AuditWriteFailures.WithLabelValues("risk")); got != before+1 {
		t.Fatalf("expected %v, got %v", before+1, got)
	}
}

func TestHandlerExposesCollectors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware())
	r.GET("/metrics", gin.WrapH(Handler()))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ping", nil))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `grc_http_request_duration_seconds_count{method="GET",route="/ping",status="200"}`) {
		t.Fatalf("expected ping latency sample in output")
	}
}
