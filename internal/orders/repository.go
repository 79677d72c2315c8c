package orders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/kadriissam365-ops/artisanat-marocain/internal/addresses"
	"github.com/kadriissam365-ops/artisanat-marocain/internal/cart"
	"github.com/kadriissam365-ops/artisanat-marocain/internal/domain"
	"github.com/kadriissam365-ops/artisanat-marocain/internal/httpx"
	"github.com/kadriissam365-ops/artisanat-marocain/internal/inventory"
	"github.com/kadriissam365-ops/artisanat-marocain/internal/postgres"
)

const orderColumns = `id, order_number, user_id, status, payment_status, currency,
	subtotal, shipping_cost, total_amount, shipping_address_id,
	ship_first_name, ship_last_name, ship_company, ship_street, ship_street2, ship_city,
	ship_state, ship_postal_code, ship_country, ship_phone, shipping_method, notes,
	COALESCE(stripe_session_id, ''), COALESCE(stripe_payment_intent_id, ''), paid_at,
	tracking_number, admin_notes, created_at, updated_at`

func scanOrder(row interface{ Scan(...any) error }) (*domain.Order, error) {
	var o domain.Order
	s := &o.ShippingAddress
	err := row.Scan(&o.ID, &o.OrderNumber, &o.UserID, &o.Status, &o.PaymentStatus, &o.Currency,
		&o.Subtotal, &o.ShippingCost, &o.TotalAmount, &o.ShippingAddressID,
		&s.FirstName, &s.LastName, &s.Company, &s.Street, &s.Street2, &s.City,
		&s.State, &s.PostalCode, &s.Country, &s.Phone, &o.ShippingMethod, &o.Notes,
		&o.StripeSessionID, &o.StripePaymentIntentID, &o.PaidAt,
		&o.TrackingNumber, &o.AdminNotes, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	o.Items = []domain.OrderItem{}
	return &o, nil
}

// Placement describes one order to build from a user's server cart.
// Payment is set when the order comes from a completed, paid checkout.
type Placement struct {
	UserID         string
	AddressID      string
	Currency       domain.Currency
	ShippingCost   decimal.Decimal
	ShippingMethod string
	Notes          string
	Payment        *Payment
	Now            time.Time
}

type Payment struct {
	EventID         string
	EventType       string
	SessionID       string
	PaymentIntentID string
}

// Placed is a committed order along with the stock left on each line.
type Placed struct {
	Order *domain.Order
	Stock []domain.StockLevel
}

var (
	ErrAddressNotFound  = fmt.Errorf("shipping address: %w", domain.ErrNotFound)
	errAlreadyProcessed = errors.New("checkout already processed")
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Place creates the order, its items, the stock decrements and the cart
// clearing in one transaction. For a paid checkout it returns (nil, nil)
// when the event or session was already handled or the cart is empty.
func (r *Repository) Place(ctx context.Context, p Placement) (*Placed, error) {
	var placed *Placed

	err := postgres.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		if p.Payment != nil && p.Payment.EventID != "" {
			res, err := tx.ExecContext(ctx, `
				INSERT INTO processed_webhook_events (event_id, event_type)
				VALUES ($1, $2)
				ON CONFLICT (event_id) DO NOTHING
			`, p.Payment.EventID, p.Payment.EventType)
			if err != nil {
				return fmt.Errorf("record webhook event: %w", err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			if n == 0 {
				return errAlreadyProcessed
			}
		}

		cartID, err := cart.LockCart(ctx, tx, p.UserID)
		if err != nil {
			return fmt.Errorf("lock cart: %w", err)
		}

		var items []domain.CartItem
		if cartID != "" {
			if items, err = cart.LoadItems(ctx, tx, p.UserID); err != nil {
				return fmt.Errorf("load cart: %w", err)
			}
		}
		if len(items) == 0 && p.Payment != nil {
			// Commit so the event id stays recorded.
			return nil
		}

		addr, err := addresses.Get(ctx, tx, p.UserID, p.AddressID)
		if err != nil {
			return fmt.Errorf("get address: %w", err)
		}
		if addr == nil {
			return ErrAddressNotFound
		}
		if len(items) == 0 {
			return domain.ErrCartEmpty
		}

		if err := domain.ValidateLines(items); err != nil {
			return err
		}

		order, err := insertOrder(ctx, tx, p, addr, items)
		if err != nil {
			return err
		}

		stock := make([]domain.StockLevel, 0, len(items))
		for _, item := range items {
			level, err := inventory.Decrement(ctx, tx, item.ProductID, item.Quantity)
			if errors.Is(err, domain.ErrInsufficientStock) {
				return &domain.StockError{ProductID: item.ProductID, ProductName: item.Product.Name, Err: err}
			}
			if err != nil {
				return fmt.Errorf("decrement stock: %w", err)
			}
			stock = append(stock, *level)
		}

		if err := cart.Clear(ctx, tx, p.UserID); err != nil {
			return fmt.Errorf("clear cart: %w", err)
		}

		placed = &Placed{Order: order, Stock: stock}
		return nil
	})
	if errors.Is(err, errAlreadyProcessed) {
		return nil, nil
	}
	if p.Payment != nil && postgres.IsUniqueViolation(err) && postgres.ConstraintName(err) == "orders_stripe_session_id_key" {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return placed, nil
}

func insertOrder(ctx context.Context, tx *sql.Tx, p Placement, addr *domain.Address, items []domain.CartItem) (*domain.Order, error) {
	var seq int64
	if err := tx.QueryRowContext(ctx, `SELECT nextval('order_number_seq')`).Scan(&seq); err != nil {
		return nil, fmt.Errorf("next order number: %w", err)
	}

	subtotal, total := domain.PriceLines(items, p.Currency, p.ShippingCost)
	order := &domain.Order{
		ID:                uuid.New().String(),
		OrderNumber:       domain.NewOrderNumber(p.Now.Year(), seq),
		UserID:            p.UserID,
		Status:            domain.OrderStatusPending,
		PaymentStatus:     domain.PaymentStatusPending,
		Currency:          p.Currency,
		Subtotal:          subtotal,
		ShippingCost:      p.ShippingCost,
		TotalAmount:       total,
		ShippingAddressID: &addr.ID,
		ShippingAddress:   addr.Snapshot(),
		ShippingMethod:    p.ShippingMethod,
		Notes:             p.Notes,
		Items:             domain.OrderItemsFromCart(items, p.Currency),
		CreatedAt:         p.Now,
		UpdatedAt:         p.Now,
	}

	var sessionID, intentID sql.NullString
	if p.Payment != nil {
		now := p.Now
		order.Status = domain.OrderStatusConfirmed
		order.PaymentStatus = domain.PaymentStatusPaid
		order.PaidAt = &now
		order.StripeSessionID = p.Payment.SessionID
		order.StripePaymentIntentID = p.Payment.PaymentIntentID
		sessionID = sql.NullString{String: p.Payment.SessionID, Valid: p.Payment.SessionID != ""}
		intentID = sql.NullString{String: p.Payment.PaymentIntentID, Valid: p.Payment.PaymentIntentID != ""}
	}

	s := order.ShippingAddress
	_, err := tx.ExecContext(ctx, `
		INSERT INTO orders (id, order_number, user_id, status, payment_status, currency,
			subtotal, shipping_cost, total_amount, shipping_address_id,
			ship_first_name, ship_last_name, ship_company, ship_street, ship_street2, ship_city,
			ship_state, ship_postal_code, ship_country, ship_phone, shipping_method, notes,
			stripe_session_id, stripe_payment_intent_id, paid_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
			$17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $26)
	`, order.ID, order.OrderNumber, order.UserID, order.Status, order.PaymentStatus, order.Currency,
		order.Subtotal, order.ShippingCost, order.TotalAmount, addr.ID,
		s.FirstName, s.LastName, s.Company, s.Street, s.Street2, s.City,
		s.State, s.PostalCode, s.Country, s.Phone, order.ShippingMethod, order.Notes,
		sessionID, intentID, order.PaidAt, order.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert order: %w", err)
	}

	for i := range order.Items {
		item := &order.Items[i]
		item.ID = uuid.New().String()
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (id, order_id, product_id, product_name, quantity, unit_price, currency)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, item.ID, order.ID, item.ProductID, item.ProductName, item.Quantity, item.UnitPrice, item.Currency)
		if err != nil {
			return nil, fmt.Errorf("insert order item: %w", err)
		}
	}

	return order, nil
}

func (r *Repository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	order, err := scanOrder(r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id::text = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	if err := r.attachItems(ctx, map[string]*domain.Order{order.ID: order}, []string{order.ID}); err != nil {
		return nil, err
	}
	return order, nil
}

// Filter narrows an order listing. Empty fields match everything.
type Filter struct {
	UserID        string
	Status        domain.OrderStatus
	PaymentStatus domain.PaymentStatus
}

func (f Filter) where() (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.UserID != "" {
		add("user_id = $%d", f.UserID)
	}
	if f.Status != "" {
		add("status = $%d", f.Status)
	}
	if f.PaymentStatus != "" {
		add("payment_status = $%d", f.PaymentStatus)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// List returns a page of orders, newest first, with their items.
func (r *Repository) List(ctx context.Context, f Filter, page httpx.Page) ([]domain.Order, int, error) {
	where, args := f.where()

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, page.Limit, page.Offset())
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`SELECT `+orderColumns+` FROM orders%s
		ORDER BY created_at DESC, id
		LIMIT $%d OFFSET $%d`, where, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = rows.Close() }()

	orderMap := make(map[string]*domain.Order)
	var orderIDs []string

	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		orderMap[order.ID] = order
		orderIDs = append(orderIDs, order.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	if err := r.attachItems(ctx, orderMap, orderIDs); err != nil {
		return nil, 0, err
	}

	orders := make([]domain.Order, 0, len(orderIDs))
	for _, id := range orderIDs {
		orders = append(orders, *orderMap[id])
	}
	return orders, total, nil
}

func (r *Repository) attachItems(ctx context.Context, orderMap map[string]*domain.Order, orderIDs []string) error {
	if len(orderIDs) == 0 {
		return nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT order_id, id, product_id, product_name, quantity, unit_price, currency
		FROM order_items
		WHERE order_id::text = ANY($1)
		ORDER BY product_name, id
	`, pq.Array(orderIDs))
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var orderID string
		var item domain.OrderItem
		if err := rows.Scan(&orderID, &item.ID, &item.ProductID, &item.ProductName, &item.Quantity, &item.UnitPrice, &item.Currency); err != nil {
			return err
		}
		order := orderMap[orderID]
		order.Items = append(order.Items, item)
	}
	return rows.Err()
}

// StatusUpdate is an admin change to an order. Nil fields are left unchanged.
type StatusUpdate struct {
	Status         domain.OrderStatus
	TrackingNumber *string
	AdminNotes     *string
}

// UpdateStatus leaves cancelled and refunded orders on their status and
// reports domain.ErrStatusTransition when asked to move one.
func (r *Repository) UpdateStatus(ctx context.Context, id string, u StatusUpdate) (*domain.Order, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE orders SET status = $2,
			tracking_number = COALESCE($3, tracking_number),
			admin_notes = COALESCE($4, admin_notes),
			updated_at = NOW()
		WHERE id::text = $1 AND (status = $2 OR status NOT IN ($5, $6))
	`, id, u.Status, u.TrackingNumber, u.AdminNotes, domain.OrderStatusCancelled, domain.OrderStatusRefunded)
	if err != nil {
		return nil, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}

	order, err := r.GetByID(ctx, id)
	if err != nil || order == nil {
		return nil, err
	}
	if rowsAffected == 0 {
		return nil, domain.ErrStatusTransition
	}
	return order, nil
}

// MarkRefunded flips every order paid through the payment intent to
// REFUNDED and returns the orders it changed.
func (r *Repository) MarkRefunded(ctx context.Context, paymentIntentID string) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, `
		UPDATE orders SET status = $2, payment_status = $3, updated_at = NOW()
		WHERE stripe_payment_intent_id = $1 AND payment_status <> $3
		RETURNING `+orderColumns, paymentIntentID, domain.OrderStatusRefunded, domain.PaymentStatusRefunded)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	orders := []domain.Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *order)
	}
	return orders, rows.Err()
}

func (r *Repository) UserEmail(ctx context.Context, userID string) (string, error) {
	var email string
	err := r.db.QueryRowContext(ctx, `SELECT email FROM users WHERE id = $1`, userID).Scan(&email)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return email, err
}
