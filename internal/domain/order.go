package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "PENDING"
	OrderStatusConfirmed  OrderStatus = "CONFIRMED"
	OrderStatusProcessing OrderStatus = "PROCESSING"
	OrderStatusShipped    OrderStatus = "SHIPPED"
	OrderStatusDelivered  OrderStatus = "DELIVERED"
	OrderStatusCancelled  OrderStatus = "CANCELLED"
	OrderStatusRefunded   OrderStatus = "REFUNDED"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusProcessing, OrderStatusShipped,
		OrderStatusDelivered, OrderStatusCancelled, OrderStatusRefunded:
		return true
	}
	return false
}

// Terminal reports whether an order in this status is closed for good.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusCancelled || s == OrderStatusRefunded
}

// CanBecome reports whether an order may move from s to next. Terminal
// orders keep their status; re-applying it still lets notes change.
func (s OrderStatus) CanBecome(next OrderStatus) bool {
	return !s.Terminal() || s == next
}

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "PENDING"
	PaymentStatusPaid     PaymentStatus = "PAID"
	PaymentStatusFailed   PaymentStatus = "FAILED"
	PaymentStatusRefunded PaymentStatus = "REFUNDED"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusPaid, PaymentStatusFailed, PaymentStatusRefunded:
		return true
	}
	return false
}

type OrderItem struct {
	ID          string          `json:"id"`
	ProductID   string          `json:"productId"`
	ProductName string          `json:"productName"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Currency    Currency        `json:"currency"`
}

// ShippingSnapshot is a copy of the address taken when the order is placed,
// so later edits or deletion of the address do not alter the order.
type ShippingSnapshot struct {
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	Company    string `json:"company,omitempty"`
	Street     string `json:"street"`
	Street2    string `json:"street2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
	Phone      string `json:"phone"`
}

type Order struct {
	ID                    string           `json:"id"`
	OrderNumber           string           `json:"orderNumber"`
	UserID                string           `json:"userId"`
	Status                OrderStatus      `json:"status"`
	PaymentStatus         PaymentStatus    `json:"paymentStatus"`
	Currency              Currency         `json:"currency"`
	Subtotal              decimal.Decimal  `json:"subtotal"`
	ShippingCost          decimal.Decimal  `json:"shippingCost"`
	TotalAmount           decimal.Decimal  `json:"totalAmount"`
	ShippingAddressID     *string          `json:"shippingAddressId,omitempty"`
	ShippingAddress       ShippingSnapshot `json:"shippingAddress"`
	ShippingMethod        string           `json:"shippingMethod,omitempty"`
	Notes                 string           `json:"notes,omitempty"`
	StripeSessionID       string           `json:"-"`
	StripePaymentIntentID string           `json:"-"`
	PaidAt                *time.Time       `json:"paidAt,omitempty"`
	TrackingNumber        string           `json:"trackingNumber,omitempty"`
	AdminNotes            string           `json:"adminNotes,omitempty"`
	Items                 []OrderItem      `json:"items"`
	CreatedAt             time.Time        `json:"createdAt"`
	UpdatedAt             time.Time        `json:"updatedAt"`
}

// OrderItemsFromCart snapshots each cart line at its current price.
func OrderItemsFromCart(items []CartItem, currency Currency) []OrderItem {
	out := make([]OrderItem, 0, len(items))
	for _, item := range items {
		out = append(out, OrderItem{
			ProductID:   item.ProductID,
			ProductName: item.Product.Name,
			Quantity:    item.Quantity,
			UnitPrice:   item.Product.PriceIn(currency),
			Currency:    currency,
		})
	}
	return out
}

const orderNumberWidth = 6

// NewOrderNumber renders ART-<year>-<seq in base36>, zero padded to six characters.
func NewOrderNumber(year int, seq int64) string {
	suffix := strings.ToUpper(strconv.FormatInt(seq, 36))
	if len(suffix) < orderNumberWidth {
		suffix = strings.Repeat("0", orderNumberWidth-len(suffix)) + suffix
	}
	return fmt.Sprintf("ART-%d-%s", year, suffix)
}
