package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pgrabow/notify-hub/internal/domain"
	"github.com/pgrabow/notify-hub/internal/observability"
	"github.com/pgrabow/notify-hub/internal/queue"
)

const minWorkerConcurrency = 1

// Sender is the slice of the orchestrator the consumer needs.
type Sender interface {
	Send(ctx context.Context, cmd SendCommand) (*domain.Notification, error)
}

// ConsumerService turns message-creation events from the work queue into
// stored notifications. Redeliveries are tolerated: each accepted event
// produces a record, and only storage unavailability leaves the event on
// the queue.
type ConsumerService struct {
	sender      Sender
	consumer    queue.Consumer
	logger      *zap.Logger
	metrics     *observability.Metrics
	concurrency int
}

func NewConsumerService(
	sender Sender,
	consumer queue.Consumer,
	concurrency int,
	logger *zap.Logger,
	metrics *observability.Metrics,
) (*ConsumerService, error) {
	if sender == nil {
		return nil, fmt.Errorf("sender is required")
	}
	if consumer == nil {
		return nil, fmt.Errorf("queue consumer is required")
	}
	if concurrency < minWorkerConcurrency {
		concurrency = minWorkerConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ConsumerService{
		sender:      sender,
		consumer:    consumer,
		logger:      logger,
		metrics:     metrics,
		concurrency: concurrency,
	}, nil
}

// Start runs independent worker loops on the shared work queue until context
// cancellation.
func (s *ConsumerService) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	g, groupCtx := errgroup.WithContext(ctx)
	for i := 0; i < s.concurrency; i++ {
		workerID := i + 1

		g.Go(func() error {
			s.logger.Info("consumer worker started",
				zap.Int("workerId", workerID),
				zap.String("queue", queue.WorkQueue),
			)

			err := s.consumer.Consume(groupCtx, queue.WorkQueue, s.HandleEvent)
			if err != nil {
				s.logger.Error("consumer worker stopped with error",
					zap.Int("workerId", workerID),
					zap.Error(err),
				)
				return err
			}

			s.logger.Info("consumer worker stopped", zap.Int("workerId", workerID))
			return nil
		})
	}

	return g.Wait()
}

// HandleEvent processes one raw work-queue delivery. Parse and validation
// failures are dropped since redelivery cannot fix them; storage
// unavailability is surfaced as a plain error so the delivery is requeued.
func (s *ConsumerService) HandleEvent(ctx context.Context, body []byte) error {
	s.metrics.IncConsumerInFlight()
	defer s.metrics.DecConsumerInFlight()

	log := observability.WithContextLogger(s.logger, ctx)

	var event queue.Event
	if err := json.Unmarshal(body, &event); err != nil {
		s.metrics.IncEventConsumed(observability.OutcomeParseError)
		log.Warn("dropping malformed event", zap.Error(err))
		return fmt.Errorf("unmarshal event: %v: %w", err, queue.ErrDrop)
	}

	if err := event.Validate(); err != nil {
		s.metrics.IncEventConsumed(observability.OutcomeInvalid)
		log.Warn("dropping invalid event",
			zap.Error(err),
			zap.String("targetUserId", event.TargetUserID),
		)
		return fmt.Errorf("validate event: %v: %w", err, queue.ErrDrop)
	}

	cmd := SendCommand{
		Recipient:       event.TargetUserID,
		Kind:            event.Kind(),
		Subject:         event.Subject,
		Body:            event.Message,
		RelatedEntityID: event.RelatedEntityID,
		Sender:          event.SenderUsername,
	}

	notification, err := s.sender.Send(ctx, cmd)
	if err != nil {
		if errors.Is(err, domain.ErrStorageUnavailable) {
			s.metrics.IncEventConsumed(observability.OutcomeStorageRetry)
			log.Warn("storage unavailable, leaving event for redelivery", zap.Error(err))
			return err
		}
		if errors.Is(err, domain.ErrValidation) {
			s.metrics.IncEventConsumed(observability.OutcomeInvalid)
			log.Warn("dropping event rejected by orchestrator", zap.Error(err))
			return fmt.Errorf("send: %v: %w", err, queue.ErrDrop)
		}

		s.metrics.IncEventConsumed(observability.OutcomeStorageRetry)
		log.Error("unexpected send failure, leaving event for redelivery", zap.Error(err))
		return err
	}

	s.metrics.IncEventConsumed(observability.OutcomeStored)
	log.Info("event processed",
		zap.String("notificationId", notification.ID),
		zap.String("recipient", notification.Recipient),
	)

	return nil
}
