// Package fanout broadcasts stored notifications to interested subscribers
// on a best-effort basis. A failed broadcast never fails the caller; the
// notification record is the source of truth and the broadcast is advisory.
package fanout

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pgrabow/notify-hub/internal/observability"
	"github.com/pgrabow/notify-hub/internal/queue"
)

// Broadcaster is the slice of the queue publisher the dispatcher needs.
type Broadcaster interface {
	Broadcast(ctx context.Context, messageID string, body []byte) error
}

// Dispatcher publishes subject/message envelopes to the broadcast exchange.
type Dispatcher struct {
	publisher Broadcaster
	timeout   time.Duration
	logger    *zap.Logger
	metrics   *observability.Metrics
}

func NewDispatcher(publisher Broadcaster, timeout time.Duration, logger *zap.Logger, metrics *observability.Metrics) *Dispatcher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Dispatcher{
		publisher: publisher,
		timeout:   timeout,
		logger:    logger,
		metrics:   metrics,
	}
}

// Publish broadcasts one envelope and returns the broker message id, or the
// empty string when the broadcast failed. It never returns an error: callers
// treat the broadcast as fire-and-forget and only log the outcome.
func (d *Dispatcher) Publish(ctx context.Context, subject string, message string) string {
	if d == nil || d.publisher == nil {
		return ""
	}

	log := observability.WithContextLogger(d.logger, ctx)

	body, err := json.Marshal(queue.Envelope{Subject: subject, Message: message})
	if err != nil {
		log.Error("failed to encode broadcast envelope", zap.Error(err))
		d.metrics.IncFanoutPublishFailure()
		return ""
	}

	messageID := uuid.NewString()

	publishCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	start := time.Now()
	err = d.publisher.Broadcast(publishCtx, messageID, body)
	d.metrics.ObserveFanoutPublishDuration(time.Since(start))

	if err != nil {
		log.Error("broadcast publish failed",
			zap.Error(err),
			zap.String("subject", subject),
		)
		d.metrics.IncFanoutPublishFailure()
		return ""
	}

	log.Debug("broadcast published",
		zap.String("messageId", messageID),
		zap.String("subject", subject),
	)

	return messageID
}
