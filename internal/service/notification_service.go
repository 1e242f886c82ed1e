package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pgrabow/notify-hub/internal/domain"
	"github.com/pgrabow/notify-hub/internal/observability"
	"github.com/pgrabow/notify-hub/internal/repository"
)

const defaultStorageTimeout = 5 * time.Second

// Dispatcher is the best-effort broadcast port. It returns the broker
// message id, or the empty string when the broadcast failed.
type Dispatcher interface {
	Publish(ctx context.Context, subject string, message string) string
}

// SendCommand carries everything needed to record one notification.
type SendCommand struct {
	Recipient       string
	Kind            string
	Subject         string
	Body            string
	RelatedEntityID *string
	Sender          string
}

// NotificationService orchestrates the send-and-store flow: broadcast first,
// then persist the record with the broadcast outcome baked in.
type NotificationService struct {
	notifications  repository.NotificationRepository
	dispatcher     Dispatcher
	logger         *zap.Logger
	metrics        *observability.Metrics
	storageTimeout time.Duration
	now            func() time.Time
}

func NewNotificationService(
	notifications repository.NotificationRepository,
	dispatcher Dispatcher,
	storageTimeout time.Duration,
	logger *zap.Logger,
	metrics *observability.Metrics,
) (*NotificationService, error) {
	if notifications == nil {
		return nil, fmt.Errorf("notification repository is required")
	}
	if storageTimeout <= 0 {
		storageTimeout = defaultStorageTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &NotificationService{
		notifications:  notifications,
		dispatcher:     dispatcher,
		logger:         logger,
		metrics:        metrics,
		storageTimeout: storageTimeout,
		now:            time.Now,
	}, nil
}

// Send broadcasts the notification best-effort and stores the record. The
// stored record is the source of truth: a failed broadcast downgrades the
// dispatch status but never fails the operation.
func (s *NotificationService) Send(ctx context.Context, cmd SendCommand) (*domain.Notification, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	notification, err := s.buildNotification(cmd)
	if err != nil {
		return nil, err
	}

	log := observability.WithContextLogger(s.logger, ctx)

	dispatchStatus := domain.DispatchFailed
	if s.dispatcher != nil {
		if messageID := s.dispatcher.Publish(ctx, notification.Subject, notification.Body); messageID != "" {
			dispatchStatus = domain.DispatchSent
		} else {
			log.Warn("broadcast failed, storing record as FAILED",
				zap.String("notificationId", notification.ID),
				zap.String("recipient", notification.Recipient),
			)
		}
	}
	notification.DispatchStatus = dispatchStatus

	storeCtx, cancel := context.WithTimeout(ctx, s.storageTimeout)
	defer cancel()

	if err := s.notifications.Save(storeCtx, notification); err != nil {
		log.Error("failed to store notification",
			zap.String("notificationId", notification.ID),
			zap.Error(err),
		)
		return nil, err
	}

	s.metrics.IncNotificationStored(notification.DispatchStatus.String())
	log.Info("notification stored",
		zap.String("notificationId", notification.ID),
		zap.String("recipient", notification.Recipient),
		zap.String("kind", notification.Kind),
		zap.String("sender", strings.TrimSpace(cmd.Sender)),
		zap.String("dispatchStatus", notification.DispatchStatus.String()),
	)

	return notification, nil
}

// GetHistory returns the recipient's notifications newest first. A limit
// below 1 returns everything.
func (s *NotificationService) GetHistory(ctx context.Context, recipient string, limit int) ([]domain.Notification, error) {
	recipient = strings.TrimSpace(recipient)
	if recipient == "" {
		return nil, fmt.Errorf("%w: recipient is required", domain.ErrValidation)
	}

	readCtx, cancel := context.WithTimeout(ctx, s.storageTimeout)
	defer cancel()

	return s.notifications.ListByRecipient(readCtx, recipient, limit)
}

func (s *NotificationService) GetByID(ctx context.Context, id string) (*domain.Notification, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: notification id is required", domain.ErrValidation)
	}

	readCtx, cancel := context.WithTimeout(ctx, s.storageTimeout)
	defer cancel()

	return s.notifications.GetByID(readCtx, id)
}

// MarkAsRead flips the read flag on the caller's own notification. A miss is
// disambiguated by refetching: no record means ErrNotFound, a record owned
// by someone else means ErrForbidden.
func (s *NotificationService) MarkAsRead(ctx context.Context, id string, identity string) (*domain.Notification, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: notification id is required", domain.ErrValidation)
	}
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return nil, fmt.Errorf("%w: identity is required", domain.ErrValidation)
	}

	writeCtx, cancel := context.WithTimeout(ctx, s.storageTimeout)
	defer cancel()

	changed, err := s.notifications.MarkRead(writeCtx, id, identity)
	if err != nil {
		return nil, err
	}

	notification, err := s.GetByID(ctx, id)
	if err != nil {
		if !changed && errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	if !changed && !notification.IsOwnedBy(identity) {
		observability.WithContextLogger(s.logger, ctx).Warn("mark-as-read denied",
			zap.String("notificationId", id),
			zap.String("identity", identity),
		)
		return nil, domain.ErrForbidden
	}

	return notification, nil
}

func (s *NotificationService) buildNotification(cmd SendCommand) (*domain.Notification, error) {
	recipient := strings.TrimSpace(cmd.Recipient)
	if recipient == "" {
		return nil, fmt.Errorf("%w: recipient is required", domain.ErrValidation)
	}

	body := strings.TrimSpace(cmd.Body)
	if body == "" {
		return nil, fmt.Errorf("%w: body is required", domain.ErrValidation)
	}

	kind := strings.TrimSpace(cmd.Kind)
	if kind == "" {
		kind = domain.KindUndefined
	}

	now := s.now().UTC()
	notification := &domain.Notification{
		ID:              uuid.NewString(),
		Recipient:       recipient,
		Kind:            kind,
		Subject:         strings.TrimSpace(cmd.Subject),
		Body:            body,
		RelatedEntityID: normalizeOptionalString(cmd.RelatedEntityID),
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	return notification, nil
}

func normalizeOptionalString(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
