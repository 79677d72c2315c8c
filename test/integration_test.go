//go:build integration

package test

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadriissam365-ops/artisanat-marocain/internal/addresses"
	"github.com/kadriissam365-ops/artisanat-marocain/internal/auth"
	"github.com/kadriissam365-ops/artisanat-marocain/internal/cart"
	"github.com/kadriissam365-ops/artisanat-marocain/internal/checkout"
	"github.com/kadriissam365-ops/artisanat-marocain/internal/domain"
	"github.com/kadriissam365-ops/artisanat-marocain/internal/email"
	"github.com/kadriissam365-ops/artisanat-marocain/internal/httpx"
	"github.com/kadriissam365-ops/artisanat-marocain/internal/inventory"
	"github.com/kadriissam365-ops/artisanat-marocain/internal/messaging"
	"github.com/kadriissam365-ops/artisanat-marocain/internal/orders"
	"github.com/kadriissam365-ops/artisanat-marocain/internal/payment"
	"github.com/kadriissam365-ops/artisanat-marocain/internal/worker"
)

const potteryCategory = "0b8f2a52-55a4-4c1e-9d51-0a3c7c1f0002"

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func createUser(t *testing.T, db *sql.DB) string {
	t.Helper()
	id := uuid.New().String()
	_, err := db.Exec(`INSERT INTO users (id, email, password_hash, first_name, last_name)
		VALUES ($1, $2, 'x', 'Yasmine', 'Alaoui')`, id, id+"@example.ma")
	require.NoError(t, err)
	return id
}

func createProduct(t *testing.T, db *sql.DB, name string, stock int, mad, eur string) string {
	t.Helper()
	id := uuid.New().String()
	_, err := db.Exec(`INSERT INTO products (id, name, slug, price_mad, price_eur, stock, low_stock_threshold, category_id)
		VALUES ($1, $2, $3, $4, $5, $6, 2, $7)`, id, name, "p-"+id, mad, eur, stock, potteryCategory)
	require.NoError(t, err)
	return id
}

// putInCart writes a cart line directly, bypassing the stock check done on add.
func putInCart(t *testing.T, db *sql.DB, userID, productID string, qty int) {
	t.Helper()
	_, err := db.Exec(`INSERT INTO carts (id, user_id) VALUES ($1, $2) ON CONFLICT (user_id) DO NOTHING`,
		uuid.New().String(), userID)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO cart_items (id, cart_id, product_id, quantity)
		SELECT $1, id, $3, $4 FROM carts WHERE user_id = $2`, uuid.New().String(), userID, productID, qty)
	require.NoError(t, err)
}

func createAddress(t *testing.T, svc *addresses.Service, userID string, isDefault bool) *domain.Address {
	t.Helper()
	str := func(s string) *string { return &s }
	a, err := svc.Create(context.Background(), userID, addresses.Input{
		FirstName:  str("Yasmine"),
		LastName:   str("Alaoui"),
		Street:     str("12 Derb Sidi Bouloukat"),
		City:       str("Marrakech"),
		PostalCode: str("40000"),
		Phone:      str("+212600000000"),
		IsDefault:  &isDefault,
	})
	require.NoError(t, err)
	return a
}

func stockOf(t *testing.T, db *sql.DB, productID string) int {
	t.Helper()
	var stock int
	require.NoError(t, db.QueryRow(`SELECT stock FROM products WHERE id = $1`, productID).Scan(&stock))
	return stock
}

func countRows(t *testing.T, db *sql.DB, query string, args ...any) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(query, args...).Scan(&n))
	return n
}

func TestPlaceOrder_InsufficientStockIsAllOrNothing(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	db := SetupPostgres(ctx, t)

	userID := createUser(t, db)
	address := createAddress(t, addresses.NewService(addresses.NewRepository(db)), userID, true)
	productA := createProduct(t, db, "Plat de Fes", 5, "100", "9.50")
	productB := createProduct(t, db, "Tajine", 1, "50", "4.75")
	putInCart(t, db, userID, productA, 1)
	putInCart(t, db, userID, productB, 2)

	svc := orders.NewService(orders.NewRepository(db), discard)
	_, err := svc.PlaceOrder(ctx, userID, orders.PlaceOrderRequest{ShippingAddressID: address.ID})

	var stockErr *domain.StockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, productB, stockErr.ProductID)
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)

	assert.Equal(t, 0, countRows(t, db, `SELECT count(*) FROM orders WHERE user_id = $1`, userID))
	assert.Equal(t, 5, stockOf(t, db, productA))
	assert.Equal(t, 1, stockOf(t, db, productB))
}

func TestPlaceOrder_DecrementsStockAndClearsCart(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	db := SetupPostgres(ctx, t)

	userID := createUser(t, db)
	address := createAddress(t, addresses.NewService(addresses.NewRepository(db)), userID, true)
	productA := createProduct(t, db, "Plat de Fes", 5, "100", "9.50")
	putInCart(t, db, userID, productA, 2)

	svc := orders.NewService(orders.NewRepository(db), discard)
	order, err := svc.PlaceOrder(ctx, userID, orders.PlaceOrderRequest{ShippingAddressID: address.ID, Currency: "MAD"})
	require.NoError(t, err)

	assert.True(t, order.Subtotal.Equal(decimal.NewFromInt(200)), "subtotal %s", order.Subtotal)
	assert.True(t, order.TotalAmount.Equal(decimal.NewFromInt(200)), "total %s", order.TotalAmount)
	assert.Equal(t, domain.OrderStatusPending, order.Status)
	assert.Equal(t, "Marrakech", order.ShippingAddress.City)
	assert.Equal(t, 3, stockOf(t, db, productA))

	c, err := cart.NewService(cart.NewRepository(db)).Get(ctx, userID)
	require.NoError(t, err)
	assert.True(t, c.IsEmpty())

	stored, err := svc.Get(ctx, userID, order.ID)
	require.NoError(t, err)
	require.Len(t, stored.Items, 1)
	assert.Equal(t, 2, stored.Items[0].Quantity)
}

func TestWebhook_PaidCheckoutCreatesOneOrder(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	db := SetupPostgres(ctx, t)

	userID := createUser(t, db)
	addressSvc := addresses.NewService(addresses.NewRepository(db))
	address := createAddress(t, addressSvc, userID, true)
	productA := createProduct(t, db, "Plat de Fes", 5, "100", "9.50")
	putInCart(t, db, userID, productA, 2)

	cartSvc := cart.NewService(cart.NewRepository(db))
	orderSvc := orders.NewService(orders.NewRepository(db), discard)
	svc := checkout.NewService(auth.NewUserRepository(db), addressSvc, cartSvc, orderSvc, nil, checkout.Config{}, nil, discard)

	event := &payment.Event{
		ID:            "evt_1",
		Type:          payment.EventCheckoutCompleted,
		SessionID:     "cs_test_1",
		Paid:          true,
		PaymentIntent: "pi_1",
		Metadata: map[string]string{
			payment.MetaUserID:            userID,
			payment.MetaShippingAddressID: address.ID,
			payment.MetaCurrency:          "EUR",
		},
	}

	outcome, err := svc.HandleEvent(ctx, event)
	require.NoError(t, err)
	assert.Equal(t, checkout.OutcomeOrderCreated, outcome)

	list, total, err := orderSvc.List(ctx, userID, httpx.Page{Page: 1, Limit: 10})
	require.NoError(t, err)
	require.Equal(t, 1, total)

	order := list[0]
	assert.Equal(t, domain.OrderStatusConfirmed, order.Status)
	assert.Equal(t, domain.PaymentStatusPaid, order.PaymentStatus)
	assert.Equal(t, domain.CurrencyEUR, order.Currency)
	assert.True(t, order.Subtotal.Equal(decimal.RequireFromString("19")), "subtotal %s", order.Subtotal)
	require.Len(t, order.Items, 1)
	assert.Equal(t, domain.CurrencyEUR, order.Items[0].Currency)
	assert.Equal(t, 3, stockOf(t, db, productA))

	t.Run("replayed event creates nothing", func(t *testing.T) {
		outcome, err := svc.HandleEvent(ctx, event)
		require.NoError(t, err)
		assert.Equal(t, checkout.OutcomeDuplicate, outcome)
	})

	t.Run("same session under a new event id creates nothing", func(t *testing.T) {
		putInCart(t, db, userID, productA, 1)
		again := *event
		again.ID = "evt_2"

		outcome, err := svc.HandleEvent(ctx, &again)
		require.NoError(t, err)
		assert.Equal(t, checkout.OutcomeDuplicate, outcome)
		assert.Equal(t, 3, stockOf(t, db, productA))
	})

	t.Run("refund marks the order", func(t *testing.T) {
		outcome, err := svc.HandleEvent(ctx, &payment.Event{ID: "evt_3", Type: payment.EventChargeRefunded, PaymentIntent: "pi_1"})
		require.NoError(t, err)
		assert.Equal(t, checkout.OutcomeRefunded, outcome)

		refunded, err := orderSvc.Get(ctx, userID, order.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.PaymentStatusRefunded, refunded.PaymentStatus)
	})

	assert.Equal(t, 1, countRows(t, db, `SELECT count(*) FROM orders WHERE user_id = $1`, userID))
}

func TestWebhook_StockConflictIsRetriedAfterRestock(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	db := SetupPostgres(ctx, t)

	userID := createUser(t, db)
	addressSvc := addresses.NewService(addresses.NewRepository(db))
	address := createAddress(t, addressSvc, userID, true)
	productID := createProduct(t, db, "Lanterne en cuivre", 1, "600", "55")
	putInCart(t, db, userID, productID, 2)

	orderSvc := orders.NewService(orders.NewRepository(db), discard)
	svc := checkout.NewService(auth.NewUserRepository(db), addressSvc, cart.NewService(cart.NewRepository(db)), orderSvc, nil, checkout.Config{}, nil, discard)

	event := &payment.Event{
		ID:            "evt_conflict",
		Type:          payment.EventCheckoutCompleted,
		SessionID:     "cs_conflict",
		Paid:          true,
		PaymentIntent: "pi_conflict",
		Metadata: map[string]string{
			payment.MetaUserID:            userID,
			payment.MetaShippingAddressID: address.ID,
			payment.MetaCurrency:          "MAD",
		},
	}

	_, err := svc.HandleEvent(ctx, event)
	require.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.Equal(t, 0, countRows(t, db, `SELECT count(*) FROM processed_webhook_events WHERE event_id = $1`, event.ID))
	assert.Equal(t, 0, countRows(t, db, `SELECT count(*) FROM orders WHERE user_id = $1`, userID))

	_, err = inventory.NewRepository(db).Adjust(ctx, productID, 1)
	require.NoError(t, err)

	outcome, err := svc.HandleEvent(ctx, event)
	require.NoError(t, err)
	assert.Equal(t, checkout.OutcomeOrderCreated, outcome)
	assert.Equal(t, 0, stockOf(t, db, productID))
}

func TestCart_RepeatedAddStaysWithinStock(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	db := SetupPostgres(ctx, t)

	userID := createUser(t, db)
	productID := createProduct(t, db, "Babouches", 2, "250", "23")
	svc := cart.NewService(cart.NewRepository(db))

	_, err := svc.AddItem(ctx, userID, productID, 1)
	require.NoError(t, err)
	item, err := svc.AddItem(ctx, userID, productID, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, item.Quantity)

	_, err = svc.AddItem(ctx, userID, productID, 1)
	var stockErr *domain.StockError
	require.ErrorAs(t, err, &stockErr)
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)

	got, err := svc.Get(ctx, userID)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, 2, got.Items[0].Quantity)
}

func TestConcurrentCheckout_NeverOversells(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	db := SetupPostgres(ctx, t)

	const (
		stock   = 3
		buyers  = 8
		product = "Tapis Azilal"
	)
	productID := createProduct(t, db, product, stock, "2500", "230")
	addressSvc := addresses.NewService(addresses.NewRepository(db))
	svc := orders.NewService(orders.NewRepository(db), discard)

	type buyer struct{ userID, addressID string }
	all := make([]buyer, buyers)
	for i := range all {
		userID := createUser(t, db)
		all[i] = buyer{userID: userID, addressID: createAddress(t, addressSvc, userID, true).ID}
		putInCart(t, db, userID, productID, 1)
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		rejected  int
	)
	for _, b := range all {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.PlaceOrder(ctx, b.userID, orders.PlaceOrderRequest{ShippingAddressID: b.addressID})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, domain.ErrInsufficientStock):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, stock, succeeded)
	assert.Equal(t, buyers-stock, rejected)
	assert.Equal(t, 0, stockOf(t, db, productID))
	assert.Equal(t, stock, countRows(t, db, `SELECT count(*) FROM order_items WHERE product_id = $1`, productID))
}

func TestAddresses_SingleDefault(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	db := SetupPostgres(ctx, t)

	userID := createUser(t, db)
	svc := addresses.NewService(addresses.NewRepository(db))

	first := createAddress(t, svc, userID, true)
	createAddress(t, svc, userID, true)
	createAddress(t, svc, userID, false)
	last := createAddress(t, svc, userID, true)

	defaults := `SELECT count(*) FROM addresses WHERE user_id = $1 AND is_default`
	assert.Equal(t, 1, countRows(t, db, defaults, userID))

	list, err := svc.List(ctx, userID)
	require.NoError(t, err)
	require.Len(t, list, 4)
	assert.Equal(t, last.ID, list[0].ID)

	yes := true
	_, err = svc.Update(ctx, userID, first.ID, addresses.Input{IsDefault: &yes})
	require.NoError(t, err)
	assert.Equal(t, 1, countRows(t, db, defaults, userID))

	list, err = svc.List(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, list[0].ID)
}

func TestAddresses_ConcurrentDefaults(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	db := SetupPostgres(ctx, t)

	userID := createUser(t, db)
	svc := addresses.NewService(addresses.NewRepository(db))
	str := func(s string) *string { return &s }
	yes := true

	const writers = 6
	var wg sync.WaitGroup
	for range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Create(ctx, userID, addresses.Input{
				FirstName:  str("Yasmine"),
				LastName:   str("Alaoui"),
				Street:     str("3 Rue Talaa Kebira"),
				City:       str("Fes"),
				PostalCode: str("30000"),
				Phone:      str("+212600000001"),
				IsDefault:  &yes,
			})
			if err != nil && !errors.Is(err, domain.ErrDuplicate) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, countRows(t, db, `SELECT count(*) FROM addresses WHERE user_id = $1 AND is_default`, userID))
}

type emailCapture struct {
	mu     sync.Mutex
	emails []email.Message
}

func (e *emailCapture) handler(w http.ResponseWriter, r *http.Request) {
	var msg email.Message
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	e.mu.Lock()
	e.emails = append(e.emails, msg)
	e.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, `{"status":"sent"}`)
}

func (e *emailCapture) get() []email.Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]email.Message(nil), e.emails...)
}

func TestOrderEvents_ReachWorkerOverKafka(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()
	db := SetupPostgres(ctx, t)
	brokers := SetupKafka(ctx, t)

	topic := "order.events." + uuid.NewString()[:8]
	producer := messaging.NewProducer(brokers, topic)
	defer func() { _ = producer.Close() }()

	capture := &emailCapture{}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /send", capture.handler)
	emailServer := httptest.NewServer(mux)
	defer emailServer.Close()

	userID := createUser(t, db)
	address := createAddress(t, addresses.NewService(addresses.NewRepository(db)), userID, true)
	productID := createProduct(t, db, "Lanterne en cuivre", 3, "600", "55")
	putInCart(t, db, userID, productID, 2)

	svc := orders.NewService(orders.NewRepository(db), discard, orders.WithPublisher(producer))
	order, err := svc.PlaceOrder(ctx, userID, orders.PlaceOrderRequest{ShippingAddressID: address.ID})
	require.NoError(t, err)

	consumer := messaging.NewConsumer(brokers, topic, "notification-worker-test",
		messaging.WithStartOffset(kafka.FirstOffset),
		messaging.WithMaxWait(500*time.Millisecond),
	)
	defer func() { _ = consumer.Close() }()

	client := email.NewClient(emailServer.URL, &http.Client{Timeout: 5 * time.Second})
	handler := worker.NewNotificationHandler(client, "admin@artisanat.ma", discard)

	consumeCtx, stop := context.WithCancel(ctx)
	defer stop()
	go func() { _ = consumer.Consume(consumeCtx, handler.Handle) }()

	require.Eventually(t, func() bool { return len(capture.get()) >= 2 }, time.Minute, 200*time.Millisecond)

	emails := capture.get()
	assert.Equal(t, userID+"@example.ma", emails[0].To)
	assert.Contains(t, emails[0].Subject, order.OrderNumber)
	assert.Equal(t, "admin@artisanat.ma", emails[1].To)
	assert.Contains(t, emails[1].Body, "Lanterne en cuivre")
}
