package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	Port           string
	PostgresURL    string
	RedisURL       string
	KafkaBrokers   []string
	AMQPURL        string
	EventTopic     string
	JWTSecret      string
	StripeKey      string
	StripeWebhook  string
	AppURL         string
	ShippingMAD    decimal.Decimal
	ShippingEUR    decimal.Decimal
	MigrationsPath string
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; real environment variables win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:           getenv("PORT", "8080"),
		PostgresURL:    os.Getenv("POSTGRES_URL"),
		RedisURL:       os.Getenv("REDIS_URL"),
		AMQPURL:        os.Getenv("AMQP_URL"),
		EventTopic:     getenv("EVENT_TOPIC", "order.events"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		StripeKey:      os.Getenv("STRIPE_SECRET_KEY"),
		StripeWebhook:  os.Getenv("STRIPE_WEBHOOK_SECRET"),
		AppURL:         strings.TrimRight(getenv("APP_URL", "http://localhost:3000"), "/"),
		MigrationsPath: getenv("MIGRATIONS_PATH", "file://migrations"),
	}

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}

	var err error
	if cfg.ShippingMAD, err = getDecimal("SHIPPING_COST_MAD"); err != nil {
		return nil, err
	}
	if cfg.ShippingEUR, err = getDecimal("SHIPPING_COST_EUR"); err != nil {
		return nil, err
	}

	if cfg.PostgresURL == "" {
		return nil, errors.New("POSTGRES_URL environment variable is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET environment variable is required")
	}

	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDecimal(key string) (decimal.Decimal, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", key, err)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("%s must not be negative", key)
	}
	return d, nil
}
