package service

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/pgrabow/notify-hub/internal/observability"
	"github.com/pgrabow/notify-hub/internal/provider"
	"github.com/pgrabow/notify-hub/internal/queue"
	"github.com/pgrabow/notify-hub/internal/ratelimit"
)

// relayRateScope is the rate-limit bucket shared by all relay workers.
const relayRateScope = "relay-webhook"

// RelayService drains the relay queue and forwards broadcast envelopes to
// the configured webhook. Transient forward failures requeue the delivery;
// permanent ones dead-letter it.
type RelayService struct {
	consumer    queue.Consumer
	forwarder   provider.Forwarder
	rateLimiter ratelimit.RateLimiter
	logger      *zap.Logger
	metrics     *observability.Metrics
}

func NewRelayService(
	consumer queue.Consumer,
	forwarder provider.Forwarder,
	rateLimiter ratelimit.RateLimiter,
	logger *zap.Logger,
	metrics *observability.Metrics,
) (*RelayService, error) {
	if consumer == nil {
		return nil, fmt.Errorf("queue consumer is required")
	}
	if forwarder == nil {
		return nil, fmt.Errorf("forwarder is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RelayService{
		consumer:    consumer,
		forwarder:   forwarder,
		rateLimiter: rateLimiter,
		logger:      logger,
		metrics:     metrics,
	}, nil
}

// Start consumes the relay queue until context cancellation.
func (s *RelayService) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	s.logger.Info("relay started", zap.String("queue", queue.RelayQueue))
	return s.consumer.Consume(ctx, queue.RelayQueue, s.HandleEnvelope)
}

func (s *RelayService) HandleEnvelope(ctx context.Context, body []byte) error {
	log := observability.WithContextLogger(s.logger, ctx)

	var envelope queue.Envelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		s.metrics.IncRelayForward("parse_error")
		log.Warn("dropping malformed envelope", zap.Error(err))
		return fmt.Errorf("unmarshal envelope: %v: %w", err, queue.ErrDrop)
	}
	if err := envelope.Validate(); err != nil {
		s.metrics.IncRelayForward("invalid")
		log.Warn("dropping invalid envelope", zap.Error(err))
		return fmt.Errorf("validate envelope: %v: %w", err, queue.ErrDrop)
	}

	if s.rateLimiter != nil {
		if err := s.rateLimiter.Wait(ctx, relayRateScope); err != nil {
			return fmt.Errorf("rate limiter wait failed: %w", err)
		}
	}

	receipt, err := s.forwarder.Forward(ctx, envelope)
	if err != nil {
		if provider.IsTransient(err) {
			s.metrics.IncRelayForward("transient_error")
			log.Warn("transient forward failure, requeueing", zap.Error(err))
			return err
		}

		s.metrics.IncRelayForward("permanent_error")
		log.Error("permanent forward failure, dead-lettering", zap.Error(err))
		return fmt.Errorf("forward envelope: %v: %w", err, queue.ErrDrop)
	}

	s.metrics.IncRelayForward("delivered")
	log.Debug("envelope forwarded",
		zap.Int("statusCode", receipt.StatusCode),
		zap.String("requestId", receipt.RequestID),
	)

	return nil
}
