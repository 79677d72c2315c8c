package telemetry

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/sdk/metric"
)

// InitMeterProvider registers a Prometheus-backed MeterProvider globally and
// starts Go runtime metrics. It returns the /metrics handler and a shutdown func.
func InitMeterProvider(serviceName, serviceVersion string) (http.Handler, func(context.Context) error, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, nil, err
	}

	mp := metric.NewMeterProvider(
		metric.WithReader(exporter),
		metric.WithResource(newResource(serviceName, serviceVersion)),
	)
	otel.SetMeterProvider(mp)

	if err := runtime.Start(); err != nil {
		return nil, nil, err
	}

	return promhttp.Handler(), mp.Shutdown, nil
}

// Metrics holds the business counters exported by the API.
type Metrics struct {
	ordersCreated    otelmetric.Int64Counter
	webhookEvents    otelmetric.Int64Counter
	checkoutSessions otelmetric.Int64Counter
}

func NewMetrics(meter otelmetric.Meter) (*Metrics, error) {
	ordersCreated, err := meter.Int64Counter("orders_created_total",
		otelmetric.WithDescription("Orders committed, by source and currency"))
	if err != nil {
		return nil, err
	}

	webhookEvents, err := meter.Int64Counter("webhook_events_total",
		otelmetric.WithDescription("Payment webhook events, by type and outcome"))
	if err != nil {
		return nil, err
	}

	checkoutSessions, err := meter.Int64Counter("checkout_sessions_total",
		otelmetric.WithDescription("Hosted checkout session attempts, by outcome"))
	if err != nil {
		return nil, err
	}

	return &Metrics{
		ordersCreated:    ordersCreated,
		webhookEvents:    webhookEvents,
		checkoutSessions: checkoutSessions,
	}, nil
}

// NopMetrics returns counters that record nothing. Used in tests.
func NopMetrics() *Metrics {
	m, _ := NewMetrics(noop.NewMeterProvider().Meter("noop"))
	return m
}

func (m *Metrics) OrderCreated(ctx context.Context, source, currency string) {
	m.ordersCreated.Add(ctx, 1, otelmetric.WithAttributes(
		attribute.String("source", source),
		attribute.String("currency", currency),
	))
}

func (m *Metrics) WebhookEvent(ctx context.Context, eventType, outcome string) {
	m.webhookEvents.Add(ctx, 1, otelmetric.WithAttributes(
		attribute.String("type", eventType),
		attribute.String("outcome", outcome),
	))
}

func (m *Metrics) CheckoutSession(ctx context.Context, outcome string) {
	m.checkoutSessions.Add(ctx, 1, otelmetric.WithAttributes(
		attribute.String("outcome", outcome),
	))
}
