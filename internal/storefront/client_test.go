package storefront

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadriissam365-ops/artisanat-marocain/internal/domain"
	"github.com/kadriissam365-ops/artisanat-marocain/internal/localstore"
)

type fakeAPI struct {
	mu          sync.Mutex
	synced      []domain.CartLine
	checkoutErr int
	calls       []string
	auth        []string
}

func (f *fakeAPI) handler() http.Handler {
	mux := http.NewServeMux()
	record := func(r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.calls = append(f.calls, r.Method+" "+r.URL.Path)
		f.auth = append(f.auth, r.Header.Get("Authorization"))
	}
	mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		_ = json.NewEncoder(w).Encode(map[string]any{"token": "tok", "user": domain.User{ID: "u1"}})
	})
	mux.HandleFunc("GET /api/addresses", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		_ = json.NewEncoder(w).Encode(map[string]any{"addresses": []domain.Address{{ID: "addr-1"}}})
	})
	mux.HandleFunc("POST /api/cart", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		var req struct {
			Items []domain.CartLine `json:"items"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.mu.Lock()
		f.synced = req.Items
		f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]any{"cart": domain.Cart{}})
	})
	mux.HandleFunc("POST /api/checkout", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		if f.checkoutErr != 0 {
			w.WriteHeader(f.checkoutErr)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": `Insufficient stock for "Tajine"`})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"sessionUrl": "https://checkout.stripe.com/c/cs_1"})
	})
	mux.HandleFunc("POST /api/orders", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{"order": domain.Order{ID: "o1", OrderNumber: "ART-2026-000001"}})
	})
	return mux
}

func newCart(t *testing.T) *localstore.Cart {
	t.Helper()
	c, err := localstore.NewCart(context.Background(), localstore.NewMemoryStorage(), "cart")
	require.NoError(t, err)
	return c
}

func addTajine(t *testing.T, c *localstore.Cart, qty int) {
	t.Helper()
	require.NoError(t, c.AddItem(context.Background(), localstore.Item{
		ProductID: "p1",
		Name:      "Tajine",
		PriceMAD:  decimal.NewFromInt(350),
		PriceEUR:  decimal.RequireFromString("32.5"),
		Stock:     10,
		Quantity:  qty,
	}))
}

func TestClient_Checkout(t *testing.T) {
	ctx := context.Background()

	t.Run("syncs the cart and clears it once the session exists", func(t *testing.T) {
		api := &fakeAPI{}
		srv := httptest.NewServer(api.handler())
		defer srv.Close()

		cart := newCart(t)
		addTajine(t, cart, 2)
		client := NewClient(srv.URL, srv.Client(), cart)

		_, err := client.Login(ctx, "a@b.ma", "secret")
		require.NoError(t, err)

		url, err := client.Checkout(ctx, "addr-1", domain.CurrencyEUR)
		require.NoError(t, err)
		assert.Equal(t, "https://checkout.stripe.com/c/cs_1", url)
		assert.Equal(t, []domain.CartLine{{ProductID: "p1", Quantity: 2}}, api.synced)
		assert.Zero(t, cart.TotalItems())
		assert.Equal(t, "Bearer tok", api.auth[len(api.auth)-1])
	})

	t.Run("unknown address stops before any cart sync", func(t *testing.T) {
		api := &fakeAPI{}
		srv := httptest.NewServer(api.handler())
		defer srv.Close()

		cart := newCart(t)
		addTajine(t, cart, 1)
		client := NewClient(srv.URL, srv.Client(), cart).WithToken("tok")

		_, err := client.Checkout(ctx, "addr-2", domain.CurrencyMAD)
		assert.ErrorIs(t, err, ErrAddressNotFound)
		assert.Equal(t, []string{"GET /api/addresses"}, api.calls)
		assert.Equal(t, 1, cart.TotalItems())
	})

	t.Run("empty cart", func(t *testing.T) {
		api := &fakeAPI{}
		srv := httptest.NewServer(api.handler())
		defer srv.Close()

		client := NewClient(srv.URL, srv.Client(), newCart(t)).WithToken("tok")

		_, err := client.Checkout(ctx, "addr-1", domain.CurrencyMAD)
		assert.ErrorIs(t, err, domain.ErrCartEmpty)
	})

	t.Run("server rejection keeps the local cart", func(t *testing.T) {
		api := &fakeAPI{checkoutErr: http.StatusConflict}
		srv := httptest.NewServer(api.handler())
		defer srv.Close()

		cart := newCart(t)
		addTajine(t, cart, 2)
		client := NewClient(srv.URL, srv.Client(), cart).WithToken("tok")

		_, err := client.Checkout(ctx, "addr-1", domain.CurrencyMAD)
		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusConflict, apiErr.Status)
		assert.Equal(t, `Insufficient stock for "Tajine"`, apiErr.Message)
		assert.Equal(t, 2, cart.TotalItems())
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(2 * time.Second)
		}))
		defer slow.Close()

		cart := newCart(t)
		addTajine(t, cart, 1)
		client := NewClient(slow.URL, slow.Client(), cart)

		cctx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
		defer cancel()

		_, err := client.Checkout(cctx, "addr-1", domain.CurrencyMAD)
		assert.True(t, errors.Is(err, context.DeadlineExceeded))
	})
}

func TestClient_PlaceOrder(t *testing.T) {
	api := &fakeAPI{}
	srv := httptest.NewServer(api.handler())
	defer srv.Close()

	cart := newCart(t)
	addTajine(t, cart, 1)
	client := NewClient(srv.URL, srv.Client(), cart).WithToken("tok")

	order, err := client.PlaceOrder(context.Background(), "addr-1", domain.CurrencyMAD)
	require.NoError(t, err)
	assert.Equal(t, "ART-2026-000001", order.OrderNumber)
	assert.Zero(t, cart.TotalItems())
	assert.Equal(t, []string{"GET /api/addresses", "POST /api/cart", "POST /api/orders"}, api.calls)
}
