package payment

import (
	"context"
	"errors"

	"github.com/kadriissam365-ops/artisanat-marocain/internal/domain"
)

// Metadata keys attached to every checkout session.
const (
	MetaUserID            = "userId"
	MetaShippingAddressID = "shippingAddressId"
	MetaCurrency          = "currency"
)

var ErrInvalidSignature = errors.New("invalid webhook signature")

type Customer struct {
	UserID string
	Email  string
	Name   string
	// ExistingID is the processor customer id already stored on the user, if any.
	ExistingID string
}

type LineItem struct {
	Name       string
	ImageURL   string
	UnitAmount int64
	Quantity   int64
}

type SessionRequest struct {
	CustomerID        string
	Currency          domain.Currency
	Items             []LineItem
	UserID            string
	ShippingAddressID string
	SuccessURL        string
	CancelURL         string
}

type Session struct {
	ID  string
	URL string
}

type EventType string

const (
	EventCheckoutCompleted EventType = "checkout.session.completed"
	EventChargeRefunded    EventType = "charge.refunded"
)

// Event is a verified webhook notification reduced to what reconciliation needs.
type Event struct {
	ID   string
	Type EventType

	// Set for checkout.session.completed.
	SessionID     string
	Paid          bool
	Metadata      map[string]string
	PaymentIntent string
}

// Gateway is the external payment processor.
type Gateway interface {
	EnsureCustomer(ctx context.Context, c Customer) (string, error)
	CreateCheckoutSession(ctx context.Context, req SessionRequest) (*Session, error)
	ParseWebhook(payload []byte, signature string) (*Event, error)
}
