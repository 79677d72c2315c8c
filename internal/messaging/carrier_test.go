package messaging

import (
	"context"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/streadway/amqp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func spanContext(t *testing.T) context.Context {
	t.Helper()
	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	if err != nil {
		t.Fatal(err)
	}
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	if err != nil {
		t.Fatal(err)
	}
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled})
	return trace.ContextWithSpanContext(context.Background(), sc)
}

func TestMessageCarrier_RoundTrip(t *testing.T) {
	prop := propagation.TraceContext{}
	msg := kafka.Message{Headers: []kafka.Header{{Key: "event-type", Value: []byte("order.placed")}}}

	prop.Inject(spanContext(t), NewMessageCarrier(&msg))
	if len(msg.Headers) != 2 {
		t.Fatalf("expected 2 headers, got %d", len(msg.Headers))
	}

	// Set overwrites rather than duplicating.
	prop.Inject(spanContext(t), NewMessageCarrier(&msg))
	if len(msg.Headers) != 2 {
		t.Fatalf("expected headers to be replaced, got %d", len(msg.Headers))
	}

	got := trace.SpanContextFromContext(prop.Extract(context.Background(), NewMessageCarrier(&msg)))
	if got.TraceID().String() != "4bf92f3577b34da6a3ce929d0e0e4736" {
		t.Errorf("unexpected trace id %s", got.TraceID())
	}
	if !got.IsRemote() {
		t.Error("expected extracted span context to be remote")
	}
}

func TestTableCarrier_RoundTrip(t *testing.T) {
	prop := propagation.TraceContext{}
	headers := amqp.Table{"x-retry": int32(1)}

	prop.Inject(spanContext(t), TableCarrier(headers))
	if _, ok := headers["traceparent"].(string); !ok {
		t.Fatalf("expected traceparent header, got %v", headers)
	}

	got := trace.SpanContextFromContext(prop.Extract(context.Background(), TableCarrier(headers)))
	if got.SpanID().String() != "00f067aa0ba902b7" {
		t.Errorf("unexpected span id %s", got.SpanID())
	}
	if TableCarrier(headers).Get("x-retry") != "" {
		t.Error("non-string headers must read as empty")
	}
}
