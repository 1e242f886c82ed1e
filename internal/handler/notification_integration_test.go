package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/pgrabow/notify-hub/internal/domain"
	"github.com/pgrabow/notify-hub/internal/service"
	"github.com/pgrabow/notify-hub/internal/transport"
)

const testJWTSecret = "integration-secret"

type fakeNotificationService struct {
	sendFn       func(ctx context.Context, cmd service.SendCommand) (*domain.Notification, error)
	getHistoryFn func(ctx context.Context, recipient string, limit int) ([]domain.Notification, error)
	markAsReadFn func(ctx context.Context, id string, identity string) (*domain.Notification, error)
}

func (f *fakeNotificationService) Send(ctx context.Context, cmd service.SendCommand) (*domain.Notification, error) {
	return f.sendFn(ctx, cmd)
}

func (f *fakeNotificationService) GetHistory(ctx context.Context, recipient string, limit int) ([]domain.Notification, error) {
	return f.getHistoryFn(ctx, recipient, limit)
}

func (f *fakeNotificationService) MarkAsRead(ctx context.Context, id string, identity string) (*domain.Notification, error) {
	return f.markAsReadFn(ctx, id, identity)
}

func newTestApp(t *testing.T, svc NotificationService) *fiber.App {
	t.Helper()

	app := fiber.New(fiber.Config{
		ErrorHandler: transport.ErrorHandler(zap.NewNop()),
	})
	if err := RegisterNotificationRoutes(app, svc, testJWTSecret); err != nil {
		t.Fatalf("RegisterNotificationRoutes() error = %v", err)
	}
	return app
}

func bearerFor(t *testing.T, username string) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"username": username,
		"exp":      time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return "Bearer " + signed
}

func TestRoutesRequireAuth(t *testing.T) {
	t.Parallel()

	app := newTestApp(t, &fakeNotificationService{})

	paths := []struct {
		method string
		path   string
	}{
		{method: "GET", path: "/v1/notifications/history"},
		{method: "POST", path: "/v1/notifications/send"},
		{method: "POST", path: "/v1/notifications/n1/mark-as-read"},
	}

	for _, p := range paths {
		req := httptest.NewRequest(p.method, p.path, nil)
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("app.Test() error = %v", err)
		}
		if resp.StatusCode != fiber.StatusUnauthorized {
			t.Fatalf("%s %s status = %d, want 401", p.method, p.path, resp.StatusCode)
		}
	}
}

func TestGetHistoryReturnsCallersRecords(t *testing.T) {
	t.Parallel()

	svc := &fakeNotificationService{
		getHistoryFn: func(ctx context.Context, recipient string, limit int) ([]domain.Notification, error) {
			if recipient != "alice" {
				t.Errorf("recipient = %q, want %q (token identity)", recipient, "alice")
			}
			if limit != 10 {
				t.Errorf("limit = %d, want 10", limit)
			}
			return []domain.Notification{
				{ID: "n2", Recipient: "alice", Kind: "NEW_MESSAGE", Body: "newest", DispatchStatus: domain.DispatchSent},
				{ID: "n1", Recipient: "alice", Kind: "NEW_MESSAGE", Body: "older", DispatchStatus: domain.DispatchFailed, Read: true},
			}, nil
		},
	}

	app := newTestApp(t, svc)

	req := httptest.NewRequest("GET", "/v1/notifications/history?limit=10", nil)
	req.Header.Set("Authorization", bearerFor(t, "alice"))

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body []notificationResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(body) != 2 {
		t.Fatalf("len(body) = %d, want 2", len(body))
	}
	if body[0].ID != "n2" || body[1].ID != "n1" {
		t.Fatalf("order = [%s %s], want newest first", body[0].ID, body[1].ID)
	}
	if body[0].DispatchStatus != "SENT" {
		t.Fatalf("dispatchStatus = %q, want SENT", body[0].DispatchStatus)
	}
	if !body[1].Read {
		t.Fatal("expected second record to be read")
	}
}

func TestGetHistoryRejectsBadLimit(t *testing.T) {
	t.Parallel()

	app := newTestApp(t, &fakeNotificationService{})

	req := httptest.NewRequest("GET", "/v1/notifications/history?limit=-1", nil)
	req.Header.Set("Authorization", bearerFor(t, "alice"))

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestSendNotification(t *testing.T) {
	t.Parallel()

	svc := &fakeNotificationService{
		sendFn: func(ctx context.Context, cmd service.SendCommand) (*domain.Notification, error) {
			if cmd.Sender != "alice" {
				t.Errorf("Sender = %q, want token identity %q", cmd.Sender, "alice")
			}
			if cmd.Recipient != "bob" {
				t.Errorf("Recipient = %q, want %q", cmd.Recipient, "bob")
			}
			return &domain.Notification{
				ID:             "n1",
				Recipient:      cmd.Recipient,
				Kind:           cmd.Kind,
				Subject:        cmd.Subject,
				Body:           cmd.Body,
				DispatchStatus: domain.DispatchSent,
			}, nil
		},
	}

	app := newTestApp(t, svc)

	payload, _ := json.Marshal(sendNotificationRequest{
		TargetUserID: "bob",
		Type:         "NEW_MESSAGE",
		Subject:      "New message",
		Message:      "you have mail",
	})
	req := httptest.NewRequest("POST", "/v1/notifications/send", bytes.NewReader(payload))
	req.Header.Set("Authorization", bearerFor(t, "alice"))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}

	var body notificationResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.ID != "n1" {
		t.Fatalf("id = %q, want n1", body.ID)
	}
	if body.DispatchStatus != "SENT" {
		t.Fatalf("dispatchStatus = %q, want SENT", body.DispatchStatus)
	}
}

func TestSendNotificationErrorMapping(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "validation", err: fmt.Errorf("%w: recipient is required", domain.ErrValidation), wantStatus: 400},
		{name: "storage unavailable", err: fmt.Errorf("%w: connection refused", domain.ErrStorageUnavailable), wantStatus: 503},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			svc := &fakeNotificationService{
				sendFn: func(ctx context.Context, cmd service.SendCommand) (*domain.Notification, error) {
					return nil, tc.err
				},
			}

			app := newTestApp(t, svc)

			req := httptest.NewRequest("POST", "/v1/notifications/send", bytes.NewReader([]byte(`{"targetUserId":"bob","message":"hi"}`)))
			req.Header.Set("Authorization", bearerFor(t, "alice"))
			req.Header.Set("Content-Type", "application/json")

			resp, err := app.Test(req)
			if err != nil {
				t.Fatalf("app.Test() error = %v", err)
			}
			if resp.StatusCode != tc.wantStatus {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tc.wantStatus)
			}
		})
	}
}

func TestMarkAsRead(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "success", err: nil, wantStatus: 200},
		{name: "not found", err: domain.ErrNotFound, wantStatus: 404},
		{name: "foreign record", err: domain.ErrForbidden, wantStatus: 403},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			svc := &fakeNotificationService{
				markAsReadFn: func(ctx context.Context, id string, identity string) (*domain.Notification, error) {
					if id != "n1" {
						t.Errorf("id = %q, want n1", id)
					}
					if identity != "alice" {
						t.Errorf("identity = %q, want alice", identity)
					}
					if tc.err != nil {
						return nil, tc.err
					}
					return &domain.Notification{ID: id, Recipient: identity, Read: true, DispatchStatus: domain.DispatchSent}, nil
				},
			}

			app := newTestApp(t, svc)

			req := httptest.NewRequest("POST", "/v1/notifications/n1/mark-as-read", nil)
			req.Header.Set("Authorization", bearerFor(t, "alice"))

			resp, err := app.Test(req)
			if err != nil {
				t.Fatalf("app.Test() error = %v", err)
			}
			if resp.StatusCode != tc.wantStatus {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tc.wantStatus)
			}

			if tc.wantStatus == 200 {
				var body notificationResponse
				if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
					t.Fatalf("failed to decode response: %v", err)
				}
				if !body.Read {
					t.Fatal("expected record to be read")
				}
			}
		})
	}
}
