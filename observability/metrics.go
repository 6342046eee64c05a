package observability

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type moduleMetrics struct {
	requests *prometheus.CounterVec
	errors   *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

// BridgeMetrics tracks cross-chain notice delivery health.
type BridgeMetrics struct {
	publishes     *prometheus.CounterVec
	failures      *prometheus.CounterVec
	latency       prometheus.Histogram
	outboxPending prometheus.Gauge
}

var (
	moduleMetricsOnce sync.Once
	moduleRegistry    *moduleMetrics

	bridgeMetricsOnce sync.Once
	bridgeRegistry    *BridgeMetrics
)

// ModuleMetrics returns the lazily-initialised registry used to record
// JSON-RPC module activity.
func ModuleMetrics() *moduleMetrics {
	moduleMetricsOnce.Do(func() {
		moduleRegistry = &moduleMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "soliver",
				Subsystem: "module",
				Name:      "requests_total",
				Help:      "Total JSON-RPC module requests segmented by module and method.",
			}, []string{"module", "method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "soliver",
				Subsystem: "module",
				Name:      "errors_total",
				Help:      "Total JSON-RPC module errors segmented by module, method, and status code.",
			}, []string{"module", "method", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "soliver",
				Subsystem: "module",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for JSON-RPC module handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"module", "method"}),
		}
		prometheus.MustRegister(
			moduleRegistry.requests,
			moduleRegistry.errors,
			moduleRegistry.latency,
		)
	})
	return moduleRegistry
}

// Observe records the outcome of a module request. The status code should be
// the HTTP status that was ultimately written to the response writer.
func (m *moduleMetrics) Observe(module, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	outcome := "success"
	if status >= 400 {
		outcome = "error"
	}
	m.requests.WithLabelValues(module, method, outcome).Inc()
	if status >= 400 {
		m.errors.WithLabelValues(module, method, fmt.Sprintf("%d", status)).Inc()
	}
	m.latency.WithLabelValues(module, method).Observe(duration.Seconds())
}

// Bridge returns the singleton registry tracking notice publication.
func Bridge() *BridgeMetrics {
	bridgeMetricsOnce.Do(func() {
		bridgeRegistry = &BridgeMetrics{
			publishes: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "soliver",
				Subsystem: "bridge",
				Name:      "publishes_total",
				Help:      "Count of cross-chain notice publish attempts segmented by outcome.",
			}, []string{"outcome"}),
			failures: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "soliver",
				Subsystem: "bridge",
				Name:      "publish_failures_total",
				Help:      "Count of failed notice publish attempts segmented by failure reason.",
			}, []string{"reason"}),
			latency: prometheus.NewHistogram(prometheus.HistogramOpts{
				Namespace: "soliver",
				Subsystem: "bridge",
				Name:      "publish_duration_seconds",
				Help:      "Latency distribution for notice publish round-trips.",
				Buckets:   prometheus.DefBuckets,
			}),
			outboxPending: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "soliver",
				Subsystem: "bridge",
				Name:      "outbox_pending",
				Help:      "Number of notices queued in the outbox awaiting dispatch.",
			}),
		}
		prometheus.MustRegister(
			bridgeRegistry.publishes,
			bridgeRegistry.failures,
			bridgeRegistry.latency,
			bridgeRegistry.outboxPending,
		)
	})
	return bridgeRegistry
}

// ObservePublish records a publish attempt and its latency.
func (m *BridgeMetrics) ObservePublish(duration time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
		m.failures.WithLabelValues(NormalizeReason(err.Error())).Inc()
	}
	m.publishes.WithLabelValues(outcome).Inc()
	m.latency.Observe(duration.Seconds())
}

// SetOutboxPending updates the pending-notice gauge.
func (m *BridgeMetrics) SetOutboxPending(count int) {
	if m == nil {
		return
	}
	if count < 0 {
		count = 0
	}
	m.outboxPending.Set(float64(count))
}

// NormalizeReason trims an error reason so metric label cardinality stays
// bounded when callers record failure causes.
func NormalizeReason(reason string) string {
	trimmed := strings.TrimSpace(reason)
	if trimmed == "" {
		return "unspecified"
	}
	if len(trimmed) > 64 {
		trimmed = trimmed[:64]
	}
	return trimmed
}
