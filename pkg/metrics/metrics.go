package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collectors are registered on the default registry and served by Handler.
var (
	AuditWriteFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "grc_audit_write_failures_total",
		Help: "Audit entries that could not be persisted after the primary mutation succeeded.",
	}, []string{"entity_type"})

	AuditPublishFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "grc_audit_publish_failures_total",
		Help: "Persisted audit entries that a notification sink failed to accept.",
	}, []string{"sink"})

	AuditSubscriberDrops = promauto.NewCounter(prometheus.CounterOpts{
		Name: "grc_audit_subscriber_drops_total",
		Help: "Audit notifications dropped because a subscriber queue was full.",
	})

	AuditSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "grc_audit_subscribers",
		Help: "Live audit trail subscriptions on this instance.",
	})

	AuditResyncs = promauto.NewCounter(prometheus.CounterOpts{
		Name: "grc_audit_resyncs_total",
		Help: "Times the pub/sub relay re-subscribed and replayed missed entries.",
	})

	AIRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "grc_ai_requests_total",
		Help: "AI gateway generations by function and outcome.",
	}, []string{"function", "outcome"})

	AccessDenied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "grc_access_denied_total",
		Help: "Requests rejected by role checks, by reason.",
	}, []string{"reason"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "grc_http_request_duration_seconds",
		Help:    "HTTP request latency by route and status.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request latency keyed by the matched route, not the raw path.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		HTTPRequestDuration.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
