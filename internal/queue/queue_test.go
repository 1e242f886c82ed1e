package queue

import (
	"context"
	"fmt"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

func TestEventValidate(t *testing.T) {
	event := Event{
		TargetUserID: "alice",
		Message:      "your order shipped",
	}
	if err := event.Validate(); err != nil {
		t.Fatalf("Validate() unexpected error: %v", err)
	}

	event.TargetUserID = "  "
	if err := event.Validate(); err == nil {
		t.Fatal("expected error for blank targetUserId")
	}

	event.TargetUserID = "alice"
	event.Message = ""
	if err := event.Validate(); err == nil {
		t.Fatal("expected error for empty message")
	}
}

func TestEventKindDefault(t *testing.T) {
	tests := []struct {
		name string
		typ  string
		want string
	}{
		{name: "explicit type", typ: "ORDER_SHIPPED", want: "ORDER_SHIPPED"},
		{name: "missing type", typ: "", want: "UNDEFINED"},
		{name: "blank type", typ: "   ", want: "UNDEFINED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := Event{TargetUserID: "alice", Message: "m", Type: tt.typ}
			if got := event.Kind(); got != tt.want {
				t.Fatalf("Kind() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEnvelopeValidate(t *testing.T) {
	env := Envelope{Subject: "Order update", Message: "your order shipped"}
	if err := env.Validate(); err != nil {
		t.Fatalf("Validate() unexpected error: %v", err)
	}

	env.Message = " "
	if err := env.Validate(); err == nil {
		t.Fatal("expected error for blank message")
	}
}

type fakeAcknowledger struct {
	acked    bool
	nacked   bool
	requeued bool
	rejected bool
}

func (f *fakeAcknowledger) Ack(tag uint64, multiple bool) error {
	f.acked = true
	return nil
}

func (f *fakeAcknowledger) Nack(tag uint64, multiple bool, requeue bool) error {
	f.nacked = true
	f.requeued = requeue
	return nil
}

func (f *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	f.rejected = true
	f.requeued = requeue
	return nil
}

func TestHandleDeliveryAcksOnSuccess(t *testing.T) {
	consumer := NewRabbitMQConsumer(nil, 1, zap.NewNop())
	ack := &fakeAcknowledger{}
	delivery := amqp.Delivery{Acknowledger: ack, DeliveryTag: 1, Body: []byte(`{}`)}

	handler := func(ctx context.Context, body []byte) error { return nil }
	if err := consumer.handleDelivery(context.Background(), delivery, handler); err != nil {
		t.Fatalf("handleDelivery() error = %v", err)
	}
	if !ack.acked {
		t.Fatal("expected delivery to be acked")
	}
}

func TestHandleDeliveryDeadLettersOnDrop(t *testing.T) {
	consumer := NewRabbitMQConsumer(nil, 1, zap.NewNop())
	ack := &fakeAcknowledger{}
	delivery := amqp.Delivery{Acknowledger: ack, DeliveryTag: 1, Body: []byte(`not json`)}

	handler := func(ctx context.Context, body []byte) error {
		return fmt.Errorf("bad payload: %w", ErrDrop)
	}
	if err := consumer.handleDelivery(context.Background(), delivery, handler); err != nil {
		t.Fatalf("handleDelivery() error = %v", err)
	}
	if !ack.rejected {
		t.Fatal("expected delivery to be rejected")
	}
	if ack.requeued {
		t.Fatal("rejected delivery must not be requeued")
	}
}

func TestHandleDeliveryRequeuesOnTransientError(t *testing.T) {
	consumer := NewRabbitMQConsumer(nil, 1, zap.NewNop())
	ack := &fakeAcknowledger{}
	delivery := amqp.Delivery{Acknowledger: ack, DeliveryTag: 1, Body: []byte(`{}`)}

	handler := func(ctx context.Context, body []byte) error {
		return fmt.Errorf("storage unavailable")
	}
	if err := consumer.handleDelivery(context.Background(), delivery, handler); err != nil {
		t.Fatalf("handleDelivery() error = %v", err)
	}
	if !ack.nacked {
		t.Fatal("expected delivery to be nacked")
	}
	if !ack.requeued {
		t.Fatal("expected transient failure to requeue")
	}
}
