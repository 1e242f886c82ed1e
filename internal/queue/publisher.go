package queue

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

type RabbitMQPublisher struct {
	client *RabbitMQ
}

func NewRabbitMQPublisher(client *RabbitMQ) *RabbitMQPublisher {
	return &RabbitMQPublisher{client: client}
}

func (p *RabbitMQPublisher) Publish(ctx context.Context, queue string, messageID string, body []byte) error {
	if p == nil || p.client == nil {
		return fmt.Errorf("publisher is not initialized")
	}
	if queue == "" {
		return fmt.Errorf("queue name is required")
	}
	if len(body) == 0 {
		return fmt.Errorf("message body is required")
	}

	return p.publish(ctx, "", queue, messageID, body)
}

// Broadcast publishes to the fanout exchange; every bound queue gets a copy.
func (p *RabbitMQPublisher) Broadcast(ctx context.Context, messageID string, body []byte) error {
	if p == nil || p.client == nil {
		return fmt.Errorf("publisher is not initialized")
	}
	if len(body) == 0 {
		return fmt.Errorf("message body is required")
	}

	return p.publish(ctx, BroadcastExchange, "", messageID, body)
}

func (p *RabbitMQPublisher) publish(ctx context.Context, exchange string, routingKey string, messageID string, body []byte) error {
	ch, err := p.client.channel(ctx)
	if err != nil {
		return err
	}
	defer ch.Close()

	publishing := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		MessageId:    messageID,
		Body:         body,
	}

	if err := ch.PublishWithContext(ctx, exchange, routingKey, false, false, publishing); err != nil {
		destination := routingKey
		if exchange != "" {
			destination = exchange
		}
		return fmt.Errorf("failed to publish message to %q: %w", destination, err)
	}

	return nil
}

func (p *RabbitMQPublisher) Close() error {
	if p == nil || p.client == nil {
		return nil
	}
	return p.client.Close()
}
