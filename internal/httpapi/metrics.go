package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"localchat/internal/session"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "localchat",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"path", "method", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "localchat",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"path", "method", "status"},
	)

	httpInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "localchat",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "In-flight HTTP requests",
		},
	)

	sessionsConnected = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "localchat",
			Subsystem: "session",
			Name:      "connected",
			Help:      "Consumer sessions currently connected",
		},
	)

	streamsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "localchat",
			Subsystem: "stream",
			Name:      "active",
			Help:      "Streams currently running",
		},
	)

	streamsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "localchat",
			Subsystem: "stream",
			Name:      "finished_total",
			Help:      "Finished streams by outcome (done, error, cancelled, eof)",
		},
		[]string{"outcome"},
	)

	streamDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "localchat",
			Subsystem: "stream",
			Name:      "duration_seconds",
			Help:      "Wall time of streams",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
	)

	rejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "localchat",
			Subsystem: "stream",
			Name:      "rejected_total",
			Help:      "Stream starts rejected by reason",
		},
		[]string{"reason"},
	)

	catalogLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "localchat",
			Subsystem: "catalog",
			Name:      "lookups_total",
			Help:      "Model catalog lookups by result (cached, fetched, forbidden, error)",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal, httpRequestDuration, httpInflight,
		sessionsConnected, streamsActive, streamsTotal, streamDuration,
		rejectedTotal, catalogLookups,
	)
}

// MetricsMiddleware instruments requests for Prometheus. The wrapped
// writer keeps Flush and Hijack available to NDJSON and WebSocket handlers.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpInflight.Inc()
		defer httpInflight.Dec()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		path := routePatternOrPath(r)
		statusLabel := strconv.Itoa(status)
		httpRequestsTotal.WithLabelValues(path, r.Method, statusLabel).Inc()
		httpRequestDuration.WithLabelValues(path, r.Method, statusLabel).Observe(time.Since(start).Seconds())
	})
}

// routePatternOrPath returns the chi route pattern if available, otherwise
// falls back to URL path. This avoids high-cardinality label values.
func routePatternOrPath(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}

// IncrementRejected counts a refused stream start.
func IncrementRejected(reason string) {
	if reason == "" {
		reason = "unspecified"
	}
	rejectedTotal.WithLabelValues(reason).Inc()
}

// MetricsPublisher turns session lifecycle events into Prometheus series.
type MetricsPublisher struct{}

func (MetricsPublisher) Publish(e session.Event) {
	switch e.Name {
	case session.EventConnect:
		sessionsConnected.Inc()
	case session.EventReplace, session.EventDisconnect:
		sessionsConnected.Dec()
	case session.EventStart:
		streamsActive.Inc()
	case session.EventReject:
		IncrementRejected("stream_active")
	case session.EventEnd:
		streamsActive.Dec()
		outcome, _ := e.Fields["outcome"].(string)
		if outcome == "" {
			outcome = "unknown"
		}
		streamsTotal.WithLabelValues(outcome).Inc()
		if d, ok := e.Fields["duration"].(time.Duration); ok {
			streamDuration.Observe(d.Seconds())
		}
	}
}
