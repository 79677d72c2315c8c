package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/streadway/amqp"
	"go.opentelemetry.io/otel"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

var amqpTracer = otel.Tracer("artisanat/messaging/amqp")

const exchangeKind = "topic"

// AMQPPublisher publishes JSON events to a durable topic exchange. The
// routing key is the event's RoutingKey when it has one, else key.
type AMQPPublisher struct {
	conn     *amqp.Connection
	mu       sync.Mutex
	channel  *amqp.Channel
	exchange string
}

func dialExchange(url, exchange string) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to amqp: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("open amqp channel: %w", err)
	}

	if err := channel.ExchangeDeclare(exchange, exchangeKind, true, false, false, false, nil); err != nil {
		_ = channel.Close()
		_ = conn.Close()
		return nil, nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return conn, channel, nil
}

func NewAMQPPublisher(url, exchange string) (*AMQPPublisher, error) {
	conn, channel, err := dialExchange(url, exchange)
	if err != nil {
		return nil, err
	}
	return &AMQPPublisher{conn: conn, channel: channel, exchange: exchange}, nil
}

func (p *AMQPPublisher) Publish(ctx context.Context, key string, event any) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	routingKey := key
	if r, ok := event.(routable); ok {
		routingKey = r.RoutingKey()
	}

	ctx, span := amqpTracer.Start(ctx, "publish "+p.exchange,
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			semconv.MessagingSystemRabbitmq,
			semconv.MessagingOperationName("publish"),
			semconv.MessagingOperationTypePublish,
			semconv.MessagingDestinationName(p.exchange),
			semconv.MessagingRabbitmqDestinationRoutingKey(routingKey),
			semconv.MessagingMessageID(key),
			semconv.MessagingMessageBodySize(len(body)),
		),
	)
	defer span.End()

	headers := amqp.Table{}
	otel.GetTextMapPropagator().Inject(ctx, TableCarrier(headers))

	// Channels are not safe for concurrent publishing.
	p.mu.Lock()
	err = p.channel.Publish(p.exchange, routingKey, false, false, amqp.Publishing{
		Headers:      headers,
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    key,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	p.mu.Unlock()
	if err := endSpan(span, err); err != nil {
		return fmt.Errorf("publish to %s: %w", p.exchange, err)
	}
	return nil
}

func (p *AMQPPublisher) Close() error {
	return errors.Join(p.channel.Close(), p.conn.Close())
}

// AMQPConsumer reads from a durable queue bound to the exchange for the
// given routing patterns, acking each delivery after its handler succeeds.
type AMQPConsumer struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	queue    string
}

func NewAMQPConsumer(url, exchange, queue string, patterns ...string) (*AMQPConsumer, error) {
	conn, channel, err := dialExchange(url, exchange)
	if err != nil {
		return nil, err
	}

	c := &AMQPConsumer{conn: conn, channel: channel, exchange: exchange, queue: queue}
	if _, err := channel.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("declare queue %s: %w", queue, err)
	}
	if len(patterns) == 0 {
		patterns = []string{"#"}
	}
	for _, pattern := range patterns {
		if err := channel.QueueBind(queue, pattern, exchange, false, nil); err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("bind queue %s to %s: %w", queue, pattern, err)
		}
	}
	if err := channel.Qos(1, 0, false); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("set qos: %w", err)
	}
	return c, nil
}

func (c *AMQPConsumer) Consume(ctx context.Context, handler Handler) error {
	deliveries, err := c.channel.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", c.queue, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("amqp delivery channel closed")
			}
			if err := c.process(ctx, d, handler); err != nil {
				_ = d.Nack(false, true)
				return err
			}
			if err := d.Ack(false); err != nil {
				return err
			}
		}
	}
}

func (c *AMQPConsumer) process(ctx context.Context, d amqp.Delivery, handler Handler) error {
	if d.Headers == nil {
		d.Headers = amqp.Table{}
	}
	parentCtx := otel.GetTextMapPropagator().Extract(ctx, TableCarrier(d.Headers))

	spanCtx, span := amqpTracer.Start(parentCtx, "process "+c.queue,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			semconv.MessagingSystemRabbitmq,
			semconv.MessagingOperationName("process"),
			semconv.MessagingOperationTypeDeliver,
			semconv.MessagingDestinationName(c.exchange),
			semconv.MessagingRabbitmqDestinationRoutingKey(d.RoutingKey),
			semconv.MessagingMessageID(d.MessageId),
		),
	)
	defer span.End()

	return endSpan(span, handler(spanCtx, d.Body))
}

func (c *AMQPConsumer) Close() error {
	return errors.Join(c.channel.Close(), c.conn.Close())
}
