package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/kadriissam365-ops/artisanat-marocain/internal/domain"
	"github.com/kadriissam365-ops/artisanat-marocain/internal/orders"
	"github.com/kadriissam365-ops/artisanat-marocain/internal/payment"
	"github.com/kadriissam365-ops/artisanat-marocain/internal/telemetry"
)

type Users interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	SetStripeCustomerID(ctx context.Context, userID, customerID string) error
}

type Addresses interface {
	Get(ctx context.Context, userID, id string) (*domain.Address, error)
}

type Carts interface {
	Get(ctx context.Context, userID string) (*domain.Cart, error)
}

type Orders interface {
	ConfirmPaidCheckout(ctx context.Context, pc orders.PaidCheckout) (*domain.Order, error)
	MarkRefunded(ctx context.Context, paymentIntentID string) ([]domain.Order, error)
}

type Config struct {
	AppURL      string
	ShippingMAD decimal.Decimal
	ShippingEUR decimal.Decimal
}

type Service struct {
	users     Users
	addresses Addresses
	carts     Carts
	orders    Orders
	gateway   payment.Gateway
	cfg       Config
	metrics   *telemetry.Metrics
	logger    *slog.Logger
}

func NewService(users Users, addresses Addresses, carts Carts, orders Orders, gateway payment.Gateway, cfg Config, metrics *telemetry.Metrics, logger *slog.Logger) *Service {
	if metrics == nil {
		metrics = telemetry.NopMetrics()
	}
	return &Service{
		users:     users,
		addresses: addresses,
		carts:     carts,
		orders:    orders,
		gateway:   gateway,
		cfg:       cfg,
		metrics:   metrics,
		logger:    logger,
	}
}

type SessionRequest struct {
	ShippingAddressID string `json:"shippingAddressId"`
	Currency          string `json:"currency"`
}

func (s *Service) shippingCost(c domain.Currency) decimal.Decimal {
	if c == domain.CurrencyEUR {
		return s.cfg.ShippingEUR
	}
	return s.cfg.ShippingMAD
}

// CreateSession opens a hosted checkout for the user's cart and returns the
// redirect URL. Nothing local changes; the order is created by the webhook.
func (s *Service) CreateSession(ctx context.Context, userID string, req SessionRequest) (string, error) {
	if strings.TrimSpace(req.ShippingAddressID) == "" {
		return "", domain.Invalid("shippingAddressId", "shippingAddressId is required")
	}
	currency, err := domain.ParseCurrency(req.Currency)
	if err != nil {
		return "", err
	}

	if _, err := s.addresses.Get(ctx, userID, req.ShippingAddressID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", orders.ErrAddressNotFound
		}
		return "", err
	}

	cart, err := s.carts.Get(ctx, userID)
	if err != nil {
		return "", err
	}
	if cart.IsEmpty() {
		return "", domain.ErrCartEmpty
	}
	if err := domain.ValidateLines(cart.Items); err != nil {
		return "", err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return "", fmt.Errorf("user %s: %w", userID, domain.ErrNotFound)
	}

	customerID, err := s.gateway.EnsureCustomer(ctx, payment.Customer{
		UserID:     user.ID,
		Email:      user.Email,
		Name:       strings.TrimSpace(user.FirstName + " " + user.LastName),
		ExistingID: user.StripeCustomerID,
	})
	if err != nil {
		s.metrics.CheckoutSession(ctx, "error")
		return "", err
	}
	if customerID != user.StripeCustomerID {
		if err := s.users.SetStripeCustomerID(ctx, user.ID, customerID); err != nil {
			return "", fmt.Errorf("store customer id: %w", err)
		}
	}

	items := make([]payment.LineItem, 0, len(cart.Items)+1)
	for _, item := range cart.Items {
		items = append(items, payment.LineItem{
			Name:       item.Product.Name,
			ImageURL:   item.Product.ImageURL,
			UnitAmount: domain.ToMinorUnits(item.Product.PriceIn(currency)),
			Quantity:   int64(item.Quantity),
		})
	}
	if shipping := s.shippingCost(currency); shipping.IsPositive() {
		items = append(items, payment.LineItem{
			Name:       "Livraison",
			UnitAmount: domain.ToMinorUnits(shipping),
			Quantity:   1,
		})
	}

	sess, err := s.gateway.CreateCheckoutSession(ctx, payment.SessionRequest{
		CustomerID:        customerID,
		Currency:          currency,
		Items:             items,
		UserID:            userID,
		ShippingAddressID: req.ShippingAddressID,
		SuccessURL:        s.cfg.AppURL + "/checkout/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:         s.cfg.AppURL + "/cart",
	})
	if err != nil {
		s.metrics.CheckoutSession(ctx, "error")
		return "", err
	}

	s.metrics.CheckoutSession(ctx, "created")
	s.logger.Info("checkout session created", "user_id", userID, "session_id", sess.ID, "currency", currency)
	return sess.URL, nil
}

// Outcome tells the webhook handler how an event was settled.
type Outcome string

const (
	OutcomeOrderCreated  Outcome = "order_created"
	OutcomeDuplicate     Outcome = "duplicate"
	OutcomeRefunded      Outcome = "refunded"
	OutcomeIgnored       Outcome = "ignored"
	OutcomeUnrecoverable Outcome = "unrecoverable"
)

// HandleEvent applies a verified webhook event. A returned error means the
// processor should retry delivery. Only events whose metadata cannot name an
// order are acknowledged with OutcomeUnrecoverable.
func (s *Service) HandleEvent(ctx context.Context, event *payment.Event) (Outcome, error) {
	switch event.Type {
	case payment.EventCheckoutCompleted:
		return s.completeCheckout(ctx, event)
	case payment.EventChargeRefunded:
		if event.PaymentIntent == "" {
			s.logger.Warn("refund without payment intent", "event_id", event.ID)
			return OutcomeIgnored, nil
		}
		refunded, err := s.orders.MarkRefunded(ctx, event.PaymentIntent)
		if err != nil {
			return "", err
		}
		s.logger.Info("refund applied", "event_id", event.ID, "payment_intent", event.PaymentIntent, "orders", len(refunded))
		return OutcomeRefunded, nil
	default:
		return OutcomeIgnored, nil
	}
}

func (s *Service) completeCheckout(ctx context.Context, event *payment.Event) (Outcome, error) {
	if !event.Paid {
		s.logger.Info("checkout completed without payment", "event_id", event.ID, "session_id", event.SessionID)
		return OutcomeIgnored, nil
	}

	userID := event.Metadata[payment.MetaUserID]
	addressID := event.Metadata[payment.MetaShippingAddressID]
	currency, err := domain.ParseCurrency(event.Metadata[payment.MetaCurrency])
	if userID == "" || addressID == "" || err != nil {
		s.logger.Error("checkout session metadata incomplete", "event_id", event.ID, "session_id", event.SessionID)
		return OutcomeUnrecoverable, nil
	}

	order, err := s.orders.ConfirmPaidCheckout(ctx, orders.PaidCheckout{
		EventID:         event.ID,
		EventType:       string(event.Type),
		SessionID:       event.SessionID,
		PaymentIntentID: event.PaymentIntent,
		UserID:          userID,
		AddressID:       addressID,
		Currency:        currency,
	})
	switch {
	case err == nil && order == nil:
		return OutcomeDuplicate, nil
	case err == nil:
		return OutcomeOrderCreated, nil
	case errors.Is(err, domain.ErrInsufficientStock), errors.Is(err, domain.ErrProductUnavailable), errors.Is(err, orders.ErrAddressNotFound):
		// Left unrecorded so a redelivery after a restock can still place it.
		s.logger.Error("paid checkout could not be converted to an order",
			"error", err, "event_id", event.ID, "session_id", event.SessionID, "user_id", userID)
		return "", fmt.Errorf("confirm paid checkout %s: %w", event.SessionID, err)
	default:
		return "", err
	}
}
