package queue

import (
	"context"
	"errors"
)

// Broker topology names. The work queue dead-letters into the DLQ via the
// DLX; the broadcast exchange fans out stored notifications to any bound
// queue, of which the relay queue is the only one declared here.
const (
	WorkQueue         = "notifications"
	DLQ               = "dlq.notifications"
	RelayQueue        = "notify.relay"
	dlxExchange       = "notify.dlx"
	BroadcastExchange = "notify.broadcast"
)

// ErrDrop tells the consumer to reject a delivery without requeueing, which
// routes it to the dead-letter queue. Handlers wrap it around errors that
// redelivery cannot fix (malformed payloads, validation failures).
var ErrDrop = errors.New("drop delivery")

// DeliveryHandler processes one raw delivery body. Returning nil acks the
// delivery, an error wrapping ErrDrop dead-letters it, and any other error
// requeues it for redelivery.
type DeliveryHandler func(ctx context.Context, body []byte) error

// Publisher publishes raw payloads to the broker.
type Publisher interface {
	Publish(ctx context.Context, queue string, messageID string, body []byte) error
	Broadcast(ctx context.Context, messageID string, body []byte) error
	Close() error
}

// Consumer consumes deliveries from a queue until the context is canceled.
type Consumer interface {
	Consume(ctx context.Context, queue string, handler DeliveryHandler) error
	Close() error
}
