package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/pgrabow/notify-hub/internal/queue"
)

const defaultWebhookTimeout = 10 * time.Second

type webhookRequest struct {
	Subject string `json:"subject"`
	Message string `json:"message"`
}

// WebhookForwarder delivers broadcast envelopes to an HTTP endpoint.
type WebhookForwarder struct {
	client   *resty.Client
	endpoint string
}

func NewWebhookForwarder(endpoint string) (*WebhookForwarder, error) {
	client := resty.New()
	client.SetTimeout(defaultWebhookTimeout)
	client.SetRetryCount(0)

	return NewWebhookForwarderWithClient(endpoint, client)
}

func NewWebhookForwarderWithClient(endpoint string, client *resty.Client) (*WebhookForwarder, error) {
	trimmedEndpoint := strings.TrimSpace(endpoint)
	if trimmedEndpoint == "" {
		return nil, fmt.Errorf("webhook endpoint is required")
	}
	if _, err := url.ParseRequestURI(trimmedEndpoint); err != nil {
		return nil, fmt.Errorf("invalid webhook endpoint: %w", err)
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}

	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultWebhookTimeout)
	}
	client.SetRetryCount(0)

	return &WebhookForwarder{
		client:   client,
		endpoint: trimmedEndpoint,
	}, nil
}

func (f *WebhookForwarder) Forward(ctx context.Context, envelope queue.Envelope) (*Receipt, error) {
	if f == nil || f.client == nil {
		return nil, fmt.Errorf("forwarder is not initialized")
	}
	if err := envelope.Validate(); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	reqBody := webhookRequest{
		Subject: envelope.Subject,
		Message: envelope.Message,
	}

	response, err := f.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(reqBody).
		Post(f.endpoint)
	if err != nil {
		return nil, &ForwardError{
			Message:   "webhook request failed",
			Transient: !errors.Is(err, context.Canceled),
			Cause:     err,
		}
	}
	if response == nil {
		return nil, &ForwardError{
			Message:   "webhook returned empty response",
			Transient: true,
		}
	}

	statusCode := response.StatusCode()
	responseBody := strings.TrimSpace(response.String())

	if statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices {
		return &Receipt{
			StatusCode: statusCode,
			Body:       responseBody,
			RequestID:  forwardRequestID(response),
		}, nil
	}

	return nil, &ForwardError{
		StatusCode: statusCode,
		Message:    forwardErrorMessage(statusCode, responseBody),
		Transient:  isTransientHTTPStatus(statusCode),
	}
}

func isTransientHTTPStatus(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests || (statusCode >= http.StatusInternalServerError && statusCode <= 599)
}

func forwardErrorMessage(statusCode int, body string) string {
	base := fmt.Sprintf("webhook returned status %d", statusCode)
	if body == "" {
		return base
	}
	return fmt.Sprintf("%s: %s", base, body)
}

func forwardRequestID(response *resty.Response) string {
	if response == nil {
		return ""
	}

	for _, key := range []string{"X-Request-ID", "X-Request-Id", "X-Correlation-ID", "X-Correlation-Id"} {
		if value := strings.TrimSpace(response.Header().Get(key)); value != "" {
			return value
		}
	}

	return ""
}
