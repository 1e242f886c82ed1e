package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Event outcome labels used by the consumer loop.
const (
	OutcomeStored       = "stored"
	OutcomeParseError   = "parse_error"
	OutcomeInvalid      = "invalid"
	OutcomeStorageRetry = "storage_retry"
)

// Metrics stores Prometheus collectors used by the API and worker flows.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal        *prometheus.CounterVec
	httpRequestDuration      *prometheus.HistogramVec
	eventsConsumedTotal      *prometheus.CounterVec
	notificationsStoredTotal *prometheus.CounterVec
	fanoutPublishFailures    prometheus.Counter
	fanoutPublishDuration    prometheus.Histogram
	relayForwardsTotal       *prometheus.CounterVec
	consumerInflight         prometheus.Gauge
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "notify_hub",
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "notify_hub",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds by method and path.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		eventsConsumedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "notify_hub",
				Name:      "events_consumed_total",
				Help:      "Total number of queue events handled, grouped by outcome.",
			},
			[]string{"outcome"},
		),
		notificationsStoredTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "notify_hub",
				Name:      "notifications_stored_total",
				Help:      "Total number of notification records persisted, grouped by dispatch status.",
			},
			[]string{"dispatch_status"},
		),
		fanoutPublishFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "notify_hub",
				Name:      "fanout_publish_failures_total",
				Help:      "Total number of best-effort fanout publishes that failed.",
			},
		),
		fanoutPublishDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "notify_hub",
				Name:      "fanout_publish_duration_seconds",
				Help:      "Fanout publish duration in seconds.",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
			},
		),
		relayForwardsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "notify_hub",
				Name:      "relay_forwards_total",
				Help:      "Total number of relay webhook forwards, grouped by outcome.",
			},
			[]string{"outcome"},
		),
		consumerInflight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "notify_hub",
				Name:      "consumer_inflight",
				Help:      "Current number of in-flight consumer deliveries.",
			},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.eventsConsumedTotal,
		m.notificationsStoredTotal,
		m.fanoutPublishFailures,
		m.fanoutPublishDuration,
		m.relayForwardsTotal,
		m.consumerInflight,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) HTTPMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		path := routePath(c)
		// Avoid self-scrape noise for request counters.
		if path == "/metrics" {
			return err
		}

		m.recordHTTPRequest(c.Method(), path, statusFromResult(c, err), time.Since(start))
		return err
	}
}

func (m *Metrics) IncEventConsumed(outcome string) {
	if m == nil {
		return
	}
	label := strings.TrimSpace(strings.ToLower(outcome))
	if label == "" {
		label = "unknown"
	}
	m.eventsConsumedTotal.WithLabelValues(label).Inc()
}

func (m *Metrics) IncNotificationStored(dispatchStatus string) {
	if m == nil {
		return
	}
	label := strings.TrimSpace(strings.ToLower(dispatchStatus))
	if label == "" {
		label = "unknown"
	}
	m.notificationsStoredTotal.WithLabelValues(label).Inc()
}

func (m *Metrics) IncFanoutPublishFailure() {
	if m == nil {
		return
	}
	m.fanoutPublishFailures.Inc()
}

func (m *Metrics) ObserveFanoutPublishDuration(duration time.Duration) {
	if m == nil {
		return
	}
	seconds := duration.Seconds()
	if seconds < 0 {
		seconds = 0
	}
	m.fanoutPublishDuration.Observe(seconds)
}

func (m *Metrics) IncRelayForward(outcome string) {
	if m == nil {
		return
	}
	label := strings.TrimSpace(strings.ToLower(outcome))
	if label == "" {
		label = "unknown"
	}
	m.relayForwardsTotal.WithLabelValues(label).Inc()
}

func (m *Metrics) IncConsumerInFlight() {
	if m == nil {
		return
	}
	m.consumerInflight.Inc()
}

func (m *Metrics) DecConsumerInFlight() {
	if m == nil {
		return
	}
	m.consumerInflight.Dec()
}

func (m *Metrics) recordHTTPRequest(method string, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}

	methodLabel := strings.ToUpper(strings.TrimSpace(method))
	if methodLabel == "" {
		methodLabel = "UNKNOWN"
	}
	pathLabel := strings.TrimSpace(path)
	if pathLabel == "" {
		pathLabel = "unmatched"
	}

	m.httpRequestsTotal.WithLabelValues(methodLabel, pathLabel, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(methodLabel, pathLabel).Observe(duration.Seconds())
}

func routePath(c *fiber.Ctx) string {
	if c == nil {
		return "unmatched"
	}

	if route := c.Route(); route != nil {
		if path := strings.TrimSpace(route.Path); path != "" {
			return path
		}
	}
	return "unmatched"
}

func statusFromResult(c *fiber.Ctx, err error) int {
	if err != nil {
		if fiberErr, ok := err.(*fiber.Error); ok {
			return fiberErr.Code
		}
		return fiber.StatusInternalServerError
	}

	if c == nil {
		return fiber.StatusOK
	}

	status := c.Response().StatusCode()
	if status == 0 {
		return fiber.StatusOK
	}
	return status
}
