// Package metrics exposes Prometheus collectors for the request handler.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "request_handler",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "request_handler",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "request_handler",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	decisionsSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "request_handler",
			Subsystem: "workflow",
			Name:      "decisions_submitted_total",
			Help:      "Total number of decisions recorded by the workflow engine.",
		},
		[]string{"vote", "override"},
	)

	statusTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "request_handler",
			Subsystem: "workflow",
			Name:      "status_transitions_total",
			Help:      "Total number of request status transitions.",
		},
		[]string{"status"},
	)

	notificationsDispatched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "request_handler",
			Subsystem: "notifications",
			Name:      "dispatched_total",
			Help:      "Total number of live notification deliveries attempted.",
		},
		[]string{"delivered"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		decisionsSubmitted,
		statusTransitions,
		notificationsDispatched,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler with HTTP metrics collection.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		path := canonicalPath(r.URL.Path)
		method := strings.ToUpper(r.Method)

		httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	})
}

// DecisionSubmitted records a decision accepted by the workflow engine.
func DecisionSubmitted(vote string, override bool) {
	decisionsSubmitted.WithLabelValues(vote, strconv.FormatBool(override)).Inc()
}

// StatusTransition records a committed request status change.
func StatusTransition(status string) {
	statusTransitions.WithLabelValues(status).Inc()
}

// NotificationDispatched records a live delivery attempt.
func NotificationDispatched(delivered bool) {
	notificationsDispatched.WithLabelValues(strconv.FormatBool(delivered)).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// canonicalPath collapses resource ids so label cardinality stays bounded.
func canonicalPath(raw string) string {
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.Split(trimmed, "/")
	switch parts[0] {
	case "requests":
		if len(parts) == 1 {
			return "/requests"
		}
		if len(parts) == 2 {
			if parts[1] == "mine" {
				return "/requests/mine"
			}
			return "/requests/:id"
		}
		return "/requests/:id/" + parts[2]
	case "notifications":
		if len(parts) == 1 {
			return "/notifications"
		}
		return "/notifications/:id/" + parts[len(parts)-1]
	case "users":
		if len(parts) == 1 {
			return "/users"
		}
		return "/users/:id"
	default:
		return "/" + parts[0]
	}
}
