// Package messaging moves order events between the API and the worker over
// Kafka or AMQP, propagating trace context in message headers.
package messaging

import (
	"context"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Publisher sends one event. key identifies the entity the event is about.
type Publisher interface {
	Publish(ctx context.Context, key string, event any) error
}

// Handler processes one message payload. A returned error stops consumption.
type Handler func(ctx context.Context, payload []byte) error

// Source delivers messages to a Handler until ctx is done or the handler fails.
type Source interface {
	Consume(ctx context.Context, handler Handler) error
	Close() error
}

type routable interface {
	RoutingKey() string
}

// endSpan marks span as failed when err is set and returns err unchanged.
func endSpan(span trace.Span, err error) error {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
