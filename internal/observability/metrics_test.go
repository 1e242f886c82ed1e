package observability

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsPipelineCollectors(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics()

	metrics.IncEventConsumed(OutcomeStored)
	metrics.IncEventConsumed("PARSE_ERROR")
	metrics.IncNotificationStored("SENT")
	metrics.IncNotificationStored("failed")
	metrics.IncFanoutPublishFailure()
	metrics.ObserveFanoutPublishDuration(20 * time.Millisecond)
	metrics.IncRelayForward("delivered")
	metrics.IncConsumerInFlight()
	metrics.DecConsumerInFlight()

	if got := testutil.ToFloat64(metrics.eventsConsumedTotal.WithLabelValues("stored")); got != 1 {
		t.Fatalf("events_consumed_total{stored} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.eventsConsumedTotal.WithLabelValues("parse_error")); got != 1 {
		t.Fatalf("events_consumed_total{parse_error} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.notificationsStoredTotal.WithLabelValues("sent")); got != 1 {
		t.Fatalf("notifications_stored_total{sent} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.notificationsStoredTotal.WithLabelValues("failed")); got != 1 {
		t.Fatalf("notifications_stored_total{failed} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.fanoutPublishFailures); got != 1 {
		t.Fatalf("fanout_publish_failures_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.relayForwardsTotal.WithLabelValues("delivered")); got != 1 {
		t.Fatalf("relay_forwards_total{delivered} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.consumerInflight); got != 0 {
		t.Fatalf("consumer_inflight = %v, want 0", got)
	}
}

func TestMetricsHTTPMiddlewareRecordsRequest(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics()
	app := fiber.New()
	app.Use(metrics.HTTPMiddleware())
	app.Get("/livez", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	req := httptest.NewRequest("GET", "/livez", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	if got := testutil.ToFloat64(metrics.httpRequestsTotal.WithLabelValues("GET", "/livez", "200")); got != 1 {
		t.Fatalf("http_requests_total = %v, want 1", got)
	}
}

func TestMetricsHTTPMiddlewareRecordsErrorStatus(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics()
	app := fiber.New()
	app.Use(metrics.HTTPMiddleware())
	app.Get("/boom", func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusServiceUnavailable, "down")
	})

	req := httptest.NewRequest("GET", "/boom", nil)
	if _, err := app.Test(req); err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}

	if got := testutil.ToFloat64(metrics.httpRequestsTotal.WithLabelValues("GET", "/boom", "503")); got != 1 {
		t.Fatalf("http_requests_total = %v, want 1", got)
	}
}

func TestMetricsNilReceiverSafe(t *testing.T) {
	t.Parallel()

	var metrics *Metrics
	metrics.IncEventConsumed("stored")
	metrics.IncNotificationStored("sent")
	metrics.IncFanoutPublishFailure()
	metrics.ObserveFanoutPublishDuration(time.Millisecond)
	metrics.IncRelayForward("delivered")
	metrics.IncConsumerInFlight()
	metrics.DecConsumerInFlight()

	if handler := metrics.Handler(); handler == nil {
		t.Fatal("Handler() should fall back to default promhttp handler")
	}
}
