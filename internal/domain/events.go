package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderEventType string

const (
	OrderEventPlaced   OrderEventType = "order.placed"
	OrderEventRefunded OrderEventType = "order.refunded"
)

type OrderEventItem struct {
	ProductID      string `json:"product_id"`
	ProductName    string `json:"product_name"`
	Quantity       int    `json:"quantity"`
	RemainingStock int    `json:"remaining_stock"`
	LowStockAt     int    `json:"low_stock_threshold"`
}

type OrderEvent struct {
	Type          OrderEventType   `json:"type"`
	OrderID       string           `json:"order_id"`
	OrderNumber   string           `json:"order_number"`
	UserID        string           `json:"user_id"`
	CustomerEmail string           `json:"customer_email"`
	Currency      Currency         `json:"currency"`
	Total         decimal.Decimal  `json:"total"`
	PaymentStatus PaymentStatus    `json:"payment_status"`
	Items         []OrderEventItem `json:"items"`
	Timestamp     time.Time        `json:"timestamp"`
}

// RoutingKey is the event type, used as the topic routing key on brokers
// that route by name.
func (e OrderEvent) RoutingKey() string {
	return string(e.Type)
}
