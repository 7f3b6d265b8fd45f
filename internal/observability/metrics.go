package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rilctl",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total admin HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "rilctl",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Admin HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
	rilRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rilctl",
			Subsystem: "ril",
			Name:      "requests_total",
			Help:      "Completed radio requests by type and outcome.",
		},
		[]string{"request", "outcome"},
	)
	rilRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "rilctl",
			Subsystem: "ril",
			Name:      "request_duration_seconds",
			Help:      "Time from submit to completion for radio requests.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"request"},
	)
	rilFrames = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rilctl",
			Subsystem: "ril",
			Name:      "frames_total",
			Help:      "Inbound frames by kind (solicited, unsolicited, stale, violation).",
		},
		[]string{"kind"},
	)
	rilInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "rilctl",
			Subsystem: "ril",
			Name:      "inflight_requests",
			Help:      "Requests queued or sent but not yet answered.",
		},
	)
	rilPending = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "rilctl",
			Subsystem: "ril",
			Name:      "pending_requests",
			Help:      "Requests written to the daemon and awaiting a response.",
		},
	)
	rilConnects = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rilctl",
			Subsystem: "ril",
			Name:      "connection_events_total",
			Help:      "Connection lifecycle events (connected, disconnected, connect_failed).",
		},
		[]string{"event"},
	)
	rilKeepAlive = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rilctl",
			Subsystem: "ril",
			Name:      "keepalive_total",
			Help:      "Keep-alive token transitions (acquire, release, forced_release).",
		},
		[]string{"event"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests, httpDuration,
			rilRequests, rilRequestDuration, rilFrames,
			rilInflight, rilPending, rilConnects, rilKeepAlive,
		)
	})
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}

func RecordRequest(request, outcome string, duration time.Duration) {
	RegisterMetrics()
	rilRequests.WithLabelValues(request, outcome).Inc()
	rilRequestDuration.WithLabelValues(request).Observe(duration.Seconds())
}

func RecordFrame(kind string) {
	RegisterMetrics()
	rilFrames.WithLabelValues(kind).Inc()
}

func SetInflight(n int) {
	RegisterMetrics()
	rilInflight.Set(float64(n))
}

func SetPending(n int) {
	RegisterMetrics()
	rilPending.Set(float64(n))
}

func RecordConnection(event string) {
	RegisterMetrics()
	rilConnects.WithLabelValues(event).Inc()
}

func RecordKeepAlive(event string) {
	RegisterMetrics()
	rilKeepAlive.WithLabelValues(event).Inc()
}
