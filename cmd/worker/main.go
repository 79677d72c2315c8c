package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/kadriissam365-ops/artisanat-marocain/internal/email"
	"github.com/kadriissam365-ops/artisanat-marocain/internal/messaging"
	"github.com/kadriissam365-ops/artisanat-marocain/internal/telemetry"
	"github.com/kadriissam365-ops/artisanat-marocain/internal/worker"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	_ = godotenv.Load()

	emailServiceURL := os.Getenv("EMAIL_SERVICE_URL")
	if emailServiceURL == "" {
		logger.Error("EMAIL_SERVICE_URL environment variable is required")
		os.Exit(1)
	}

	adminEmail := os.Getenv("ADMIN_EMAIL")
	if adminEmail == "" {
		logger.Warn("ADMIN_EMAIL not set, low-stock alerts are disabled")
	}

	topic := os.Getenv("EVENT_TOPIC")
	if topic == "" {
		topic = "order.events"
	}

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, "artisanat-worker", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(context.Background()) }()

	var source messaging.Source
	if amqpURL := os.Getenv("AMQP_URL"); amqpURL != "" {
		source, err = messaging.NewAMQPConsumer(amqpURL, topic, "notification-worker", "order.*")
		if err != nil {
			logger.Error("failed to connect to amqp", "error", err)
			os.Exit(1)
		}
		logger.Info("consuming order events from amqp", "exchange", topic)
	} else {
		kafkaBrokers := os.Getenv("KAFKA_BROKERS")
		if kafkaBrokers == "" {
			logger.Error("KAFKA_BROKERS or AMQP_URL environment variable is required")
			os.Exit(1)
		}
		brokers := strings.Split(kafkaBrokers, ",")
		source = messaging.NewConsumer(brokers, topic, "notification-worker", messaging.WithLogger(logger))
		logger.Info("consuming order events from kafka", "brokers", brokers, "topic", topic)
	}
	defer func() { _ = source.Close() }()

	httpClient := &http.Client{
		Timeout:   10 * time.Second,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
	handler := worker.NewNotificationHandler(email.NewClient(emailServiceURL, httpClient), adminEmail, logger)

	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
		<-stop
		logger.Info("shutting down")
		cancel()
	}()

	if err := source.Consume(ctx, handler.Handle); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("consumer stopped")
			return
		}
		logger.Error("consumer error", "error", err)
		os.Exit(1)
	}
}
