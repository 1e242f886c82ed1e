package provider

import (
	"context"

	"github.com/pgrabow/notify-hub/internal/queue"
)

// Forwarder is the outbound delivery port for broadcast envelopes.
type Forwarder interface {
	Forward(ctx context.Context, envelope queue.Envelope) (*Receipt, error)
}

// Receipt stores forward call metadata for audit logging.
type Receipt struct {
	StatusCode int
	Body       string
	RequestID  string
}
