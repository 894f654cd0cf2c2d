package test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/joao-fontenele/storefront/internal/messaging"
)

// DeliveredEvent describes a message read back from a topic.
type DeliveredEvent struct {
	Key string
	// Trace is the span context carried in the message headers; it is
	// invalid when the producer propagated none.
	Trace oteltrace.SpanContext
}

// ReadEvent reads the first message of the topic's only partition and
// decodes its JSON payload into out.
func ReadEvent(ctx context.Context, t *testing.T, brokers []string, topic string, out any) DeliveredEvent {
	t.Helper()

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:   brokers,
		Topic:     topic,
		Partition: 0,
		MaxBytes:  1 << 20,
	})
	defer func() { _ = reader.Close() }()

	msg, err := reader.ReadMessage(ctx)
	if err != nil {
		t.Fatalf("failed to read from %s: %v", topic, err)
	}

	if err := json.Unmarshal(msg.Value, out); err != nil {
		t.Fatalf("failed to decode %s payload: %v", topic, err)
	}

	parent := otel.GetTextMapPropagator().Extract(ctx, messaging.NewMessageCarrier(&msg))
	return DeliveredEvent{
		Key:   string(msg.Key),
		Trace: oteltrace.SpanContextFromContext(parent),
	}
}
