package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/pgrabow/notify-hub/internal/auth"
	"github.com/pgrabow/notify-hub/internal/domain"
	"github.com/pgrabow/notify-hub/internal/service"
)

const maxHistoryLimit = 1000

type NotificationService interface {
	Send(ctx context.Context, cmd service.SendCommand) (*domain.Notification, error)
	GetHistory(ctx context.Context, recipient string, limit int) ([]domain.Notification, error)
	MarkAsRead(ctx context.Context, id string, identity string) (*domain.Notification, error)
}

type NotificationHandler struct {
	service NotificationService
}

func NewNotificationHandler(service NotificationService) (*NotificationHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("notification service is required")
	}
	return &NotificationHandler{service: service}, nil
}

// RegisterNotificationRoutes mounts the authenticated notification surface.
func RegisterNotificationRoutes(router fiber.Router, service NotificationService, jwtSecret string) error {
	h, err := NewNotificationHandler(service)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1", auth.Middleware(jwtSecret))
	v1.Get("/notifications/history", h.GetHistory)
	v1.Post("/notifications/send", h.SendNotification)
	v1.Post("/notifications/:id/mark-as-read", h.MarkAsRead)

	return nil
}

// sendNotificationRequest mirrors the queue event body so internal callers
// can use either entry point with the same payload shape.
type sendNotificationRequest struct {
	TargetUserID    string  `json:"targetUserId"`
	Type            string  `json:"type"`
	Subject         string  `json:"subject"`
	Message         string  `json:"message"`
	RelatedEntityID *string `json:"relatedEntityId"`
}

type notificationResponse struct {
	ID              string    `json:"id"`
	Recipient       string    `json:"recipient"`
	Type            string    `json:"type"`
	Subject         string    `json:"subject,omitempty"`
	Message         string    `json:"message"`
	DispatchStatus  string    `json:"dispatchStatus"`
	Read            bool      `json:"read"`
	RelatedEntityID *string   `json:"relatedEntityId,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// GetHistory returns the caller's notifications, newest first. The caller is
// always the token identity; there is no way to read someone else's history.
func (h *NotificationHandler) GetHistory(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 0)
	if limit < 0 || limit > maxHistoryLimit {
		return toHTTPError(fmt.Errorf("%w: limit must be between 0 and %d", domain.ErrValidation, maxHistoryLimit))
	}

	notifications, err := h.service.GetHistory(c.Context(), auth.IdentityFromContext(c), limit)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toNotificationResponses(notifications))
}

func (h *NotificationHandler) SendNotification(c *fiber.Ctx) error {
	var req sendNotificationRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	cmd := service.SendCommand{
		Recipient:       strings.TrimSpace(req.TargetUserID),
		Kind:            strings.TrimSpace(req.Type),
		Subject:         req.Subject,
		Body:            req.Message,
		RelatedEntityID: req.RelatedEntityID,
		Sender:          auth.IdentityFromContext(c),
	}

	notification, err := h.service.Send(c.Context(), cmd)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusCreated).JSON(toNotificationResponse(notification))
}

func (h *NotificationHandler) MarkAsRead(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))

	notification, err := h.service.MarkAsRead(c.Context(), id, auth.IdentityFromContext(c))
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toNotificationResponse(notification))
}

func toNotificationResponses(notifications []domain.Notification) []notificationResponse {
	responses := make([]notificationResponse, 0, len(notifications))
	for i := range notifications {
		responses = append(responses, toNotificationResponse(&notifications[i]))
	}
	return responses
}

func toNotificationResponse(n *domain.Notification) notificationResponse {
	if n == nil {
		return notificationResponse{}
	}

	return notificationResponse{
		ID:              n.ID,
		Recipient:       n.Recipient,
		Type:            n.Kind,
		Subject:         n.Subject,
		Message:         n.Body,
		DispatchStatus:  n.DispatchStatus.String(),
		Read:            n.Read,
		RelatedEntityID: n.RelatedEntityID,
		CreatedAt:       n.CreatedAt,
		UpdatedAt:       n.UpdatedAt,
	}
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrForbidden):
		return fiber.NewError(fiber.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrStorageUnavailable):
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	default:
		return err
	}
}
