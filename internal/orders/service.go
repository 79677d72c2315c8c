package orders

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kadriissam365-ops/artisanat-marocain/internal/domain"
	"github.com/kadriissam365-ops/artisanat-marocain/internal/httpx"
	"github.com/kadriissam365-ops/artisanat-marocain/internal/telemetry"
)

type Store interface {
	Place(ctx context.Context, p Placement) (*Placed, error)
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	List(ctx context.Context, f Filter, page httpx.Page) ([]domain.Order, int, error)
	UpdateStatus(ctx context.Context, id string, u StatusUpdate) (*domain.Order, error)
	MarkRefunded(ctx context.Context, paymentIntentID string) ([]domain.Order, error)
	UserEmail(ctx context.Context, userID string) (string, error)
}

// Publisher delivers order events keyed by order id.
type Publisher interface {
	Publish(ctx context.Context, key string, event any) error
}

type Service struct {
	store     Store
	publisher Publisher
	metrics   *telemetry.Metrics
	logger    *slog.Logger
	shipping  map[domain.Currency]decimal.Decimal
	now       func() time.Time
}

type Option func(*Service)

// WithPublisher enables order events. Without it nothing is published.
func WithPublisher(p Publisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithShipping sets the flat shipping cost charged per currency.
func WithShipping(mad, eur decimal.Decimal) Option {
	return func(s *Service) {
		s.shipping[domain.CurrencyMAD] = mad
		s.shipping[domain.CurrencyEUR] = eur
	}
}

func NewService(store Store, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		store:    store,
		metrics:  telemetry.NopMetrics(),
		logger:   logger,
		shipping: map[domain.Currency]decimal.Decimal{},
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) shippingCost(c domain.Currency) decimal.Decimal {
	if cost, ok := s.shipping[c]; ok {
		return cost
	}
	return decimal.Zero
}

type PlaceOrderRequest struct {
	ShippingAddressID string `json:"shippingAddressId"`
	Currency          string `json:"currency"`
	ShippingMethod    string `json:"shippingMethod"`
	Notes             string `json:"notes"`
}

// PlaceOrder turns the user's cart into a PENDING order.
func (s *Service) PlaceOrder(ctx context.Context, userID string, req PlaceOrderRequest) (*domain.Order, error) {
	if strings.TrimSpace(req.ShippingAddressID) == "" {
		return nil, domain.Invalid("shippingAddressId", "shippingAddressId is required")
	}
	currency, err := domain.ParseCurrency(req.Currency)
	if err != nil {
		return nil, err
	}

	placed, err := s.store.Place(ctx, Placement{
		UserID:         userID,
		AddressID:      req.ShippingAddressID,
		Currency:       currency,
		ShippingCost:   s.shippingCost(currency),
		ShippingMethod: strings.TrimSpace(req.ShippingMethod),
		Notes:          strings.TrimSpace(req.Notes),
		Now:            s.now(),
	})
	if err != nil {
		return nil, err
	}

	s.metrics.OrderCreated(ctx, "api", string(currency))
	s.publishPlaced(ctx, placed)
	return placed.Order, nil
}

// PaidCheckout is a completed checkout session as reported by the payment
// processor. User, address and currency come from the session metadata.
type PaidCheckout struct {
	EventID         string
	EventType       string
	SessionID       string
	PaymentIntentID string
	UserID          string
	AddressID       string
	Currency        domain.Currency
}

// ConfirmPaidCheckout creates a CONFIRMED, PAID order from the user's cart.
// It returns a nil order when the event was already handled or the cart is
// empty, so replayed deliveries create nothing.
func (s *Service) ConfirmPaidCheckout(ctx context.Context, pc PaidCheckout) (*domain.Order, error) {
	placed, err := s.store.Place(ctx, Placement{
		UserID:       pc.UserID,
		AddressID:    pc.AddressID,
		Currency:     pc.Currency,
		ShippingCost: s.shippingCost(pc.Currency),
		Payment: &Payment{
			EventID:         pc.EventID,
			EventType:       pc.EventType,
			SessionID:       pc.SessionID,
			PaymentIntentID: pc.PaymentIntentID,
		},
		Now: s.now(),
	})
	if err != nil {
		return nil, err
	}
	if placed == nil {
		s.logger.Info("checkout already processed or cart empty", "session_id", pc.SessionID, "user_id", pc.UserID)
		return nil, nil
	}

	s.metrics.OrderCreated(ctx, "webhook", string(pc.Currency))
	s.publishPlaced(ctx, placed)
	return placed.Order, nil
}

// MarkRefunded flags the orders paid through paymentIntentID as refunded.
// Stock is not restored.
func (s *Service) MarkRefunded(ctx context.Context, paymentIntentID string) ([]domain.Order, error) {
	if paymentIntentID == "" {
		return nil, domain.Invalid("paymentIntent", "payment intent is required")
	}
	refunded, err := s.store.MarkRefunded(ctx, paymentIntentID)
	if err != nil {
		return nil, fmt.Errorf("mark refunded: %w", err)
	}

	for i := range refunded {
		order := &refunded[i]
		s.logger.Info("order refunded", "order_id", order.ID, "order_number", order.OrderNumber)
		s.publish(ctx, s.event(ctx, domain.OrderEventRefunded, order, nil))
	}
	return refunded, nil
}

// Get returns the order only when it belongs to userID.
func (s *Service) Get(ctx context.Context, userID, id string) (*domain.Order, error) {
	order, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order == nil || order.UserID != userID {
		return nil, fmt.Errorf("order %s: %w", id, domain.ErrNotFound)
	}
	return order, nil
}

func (s *Service) List(ctx context.Context, userID string, page httpx.Page) ([]domain.Order, int, error) {
	orders, total, err := s.store.List(ctx, Filter{UserID: userID}, page)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	return orders, total, nil
}

func (s *Service) AdminList(ctx context.Context, f Filter, page httpx.Page) ([]domain.Order, int, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, 0, domain.Invalid("status", "invalid order status")
	}
	if f.PaymentStatus != "" && !f.PaymentStatus.Valid() {
		return nil, 0, domain.Invalid("paymentStatus", "invalid payment status")
	}
	orders, total, err := s.store.List(ctx, f, page)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	return orders, total, nil
}

// UpdateStatus applies an admin status change. Cancelled and refunded
// orders cannot be moved to another status.
func (s *Service) UpdateStatus(ctx context.Context, id string, u StatusUpdate) (*domain.Order, error) {
	if !u.Status.Valid() {
		return nil, domain.Invalid("status", "invalid order status")
	}
	current, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if current == nil {
		return nil, fmt.Errorf("order %s: %w", id, domain.ErrNotFound)
	}
	if !current.Status.CanBecome(u.Status) {
		return nil, fmt.Errorf("order %s %s -> %s: %w", id, current.Status, u.Status, domain.ErrStatusTransition)
	}

	order, err := s.store.UpdateStatus(ctx, id, u)
	if err != nil {
		return nil, fmt.Errorf("update order status: %w", err)
	}
	if order == nil {
		return nil, fmt.Errorf("order %s: %w", id, domain.ErrNotFound)
	}
	s.logger.Info("order status updated", "order_id", order.ID, "status", order.Status)
	return order, nil
}

func (s *Service) publishPlaced(ctx context.Context, placed *Placed) {
	s.logger.Info("order created",
		"order_id", placed.Order.ID,
		"order_number", placed.Order.OrderNumber,
		"user_id", placed.Order.UserID,
		"payment_status", placed.Order.PaymentStatus,
	)
	s.publish(ctx, s.event(ctx, domain.OrderEventPlaced, placed.Order, placed.Stock))
}

func (s *Service) event(ctx context.Context, typ domain.OrderEventType, order *domain.Order, stock []domain.StockLevel) domain.OrderEvent {
	email, err := s.store.UserEmail(ctx, order.UserID)
	if err != nil {
		s.logger.Warn("failed to look up customer email", "error", err, "user_id", order.UserID)
	}

	levels := make(map[string]domain.StockLevel, len(stock))
	for _, l := range stock {
		levels[l.ProductID] = l
	}

	items := make([]domain.OrderEventItem, 0, len(order.Items))
	for _, item := range order.Items {
		ev := domain.OrderEventItem{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
		}
		if l, ok := levels[item.ProductID]; ok {
			ev.RemainingStock = l.Stock
			ev.LowStockAt = l.LowStockThreshold
		}
		items = append(items, ev)
	}

	return domain.OrderEvent{
		Type:          typ,
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		UserID:        order.UserID,
		CustomerEmail: email,
		Currency:      order.Currency,
		Total:         order.TotalAmount,
		PaymentStatus: order.PaymentStatus,
		Items:         items,
		Timestamp:     s.now(),
	}
}

// publish is best effort: the order is already committed.
func (s *Service) publish(ctx context.Context, event domain.OrderEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event.OrderID, event); err != nil {
		s.logger.Error("failed to publish order event", "error", err, "order_id", event.OrderID, "type", event.Type)
	}
}
