package localstore

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadriissam365-ops/artisanat-marocain/internal/domain"
)

// flakyStorage fails every save while failing is set.
type flakyStorage struct {
	*MemoryStorage
	failing bool
}

func (s *flakyStorage) Save(ctx context.Context, key string, data []byte) error {
	if s.failing {
		return errors.New("quota exceeded")
	}
	return s.MemoryStorage.Save(ctx, key, data)
}

func product(id string, stock int) Item {
	return Item{
		ProductID: id,
		Name:      "Produit " + id,
		PriceMAD:  decimal.NewFromInt(100),
		PriceEUR:  decimal.RequireFromString("9.5"),
		Stock:     stock,
	}
}

func TestCart_AddItem(t *testing.T) {
	ctx := context.Background()

	t.Run("out of stock never mutates", func(t *testing.T) {
		c, err := NewCart(ctx, NewMemoryStorage(), "cart")
		require.NoError(t, err)

		assert.ErrorIs(t, c.AddItem(ctx, product("A", 0)), ErrUnavailable)
		assert.Empty(t, c.Items())
	})

	t.Run("increments until stock", func(t *testing.T) {
		c, err := NewCart(ctx, NewMemoryStorage(), "cart")
		require.NoError(t, err)

		require.NoError(t, c.AddItem(ctx, product("A", 2)))
		require.NoError(t, c.AddItem(ctx, product("A", 2)))
		assert.ErrorIs(t, c.AddItem(ctx, product("A", 2)), ErrInsufficientStock)
		assert.Equal(t, 2, c.TotalItems())
	})

	t.Run("persists and reloads", func(t *testing.T) {
		storage := NewMemoryStorage()
		c, err := NewCart(ctx, storage, "cart")
		require.NoError(t, err)
		require.NoError(t, c.AddItem(ctx, product("A", 5)))
		require.NoError(t, c.AddItem(ctx, product("B", 5)))

		reloaded, err := NewCart(ctx, storage, "cart")
		require.NoError(t, err)
		assert.Equal(t, c.Items(), reloaded.Items())
	})

	t.Run("failed save leaves state unchanged", func(t *testing.T) {
		storage := &flakyStorage{MemoryStorage: NewMemoryStorage()}
		c, err := NewCart(ctx, storage, "cart")
		require.NoError(t, err)
		require.NoError(t, c.AddItem(ctx, product("A", 5)))

		storage.failing = true
		assert.Error(t, c.AddItem(ctx, product("A", 5)))
		assert.Error(t, c.Clear(ctx))
		assert.Equal(t, 1, c.TotalItems())
	})
}

func TestCart_UpdateQuantity(t *testing.T) {
	ctx := context.Background()
	c, err := NewCart(ctx, NewMemoryStorage(), "cart")
	require.NoError(t, err)
	require.NoError(t, c.AddItem(ctx, product("A", 3)))

	assert.ErrorIs(t, c.UpdateQuantity(ctx, "A", 4), ErrInsufficientStock)
	require.NoError(t, c.UpdateQuantity(ctx, "A", 3))
	assert.Equal(t, 3, c.TotalItems())

	assert.ErrorIs(t, c.UpdateQuantity(ctx, "Z", 1), ErrItemNotFound)

	require.NoError(t, c.UpdateQuantity(ctx, "A", 0))
	assert.Empty(t, c.Items())
	assert.ErrorIs(t, c.RemoveItem(ctx, "A"), ErrItemNotFound)
}

func TestCart_Subtotal(t *testing.T) {
	ctx := context.Background()
	c, err := NewCart(ctx, NewMemoryStorage(), "cart")
	require.NoError(t, err)
	require.NoError(t, c.AddItem(ctx, product("A", 5)))
	require.NoError(t, c.AddItem(ctx, product("A", 5)))
	require.NoError(t, c.AddItem(ctx, product("B", 5)))

	assert.True(t, c.Subtotal(domain.CurrencyMAD).Equal(decimal.NewFromInt(300)))
	assert.True(t, c.Subtotal(domain.CurrencyEUR).Equal(decimal.RequireFromString("28.5")))
	assert.Equal(t, []domain.CartLine{{ProductID: "A", Quantity: 2}, {ProductID: "B", Quantity: 1}}, c.Lines())
}

func TestCart_ConcurrentAdds(t *testing.T) {
	ctx := context.Background()
	c, err := NewCart(ctx, NewMemoryStorage(), "cart")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = c.AddItem(ctx, product("A", 20))
		}()
	}
	wg.Wait()

	assert.Equal(t, 20, c.TotalItems())
}

func TestWishlist(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage()
	w, err := NewWishlist(ctx, storage, "wishlist")
	require.NoError(t, err)

	item := WishlistItem{ProductID: "A", Name: "Tapis"}
	require.NoError(t, w.Add(ctx, item))
	require.NoError(t, w.Add(ctx, item))
	assert.Len(t, w.Items(), 1)
	assert.True(t, w.Contains("A"))

	listed, err := w.Toggle(ctx, item)
	require.NoError(t, err)
	assert.False(t, listed)
	assert.False(t, w.Contains("A"))

	listed, err = w.Toggle(ctx, item)
	require.NoError(t, err)
	assert.True(t, listed)

	reloaded, err := NewWishlist(ctx, storage, "wishlist")
	require.NoError(t, err)
	assert.True(t, reloaded.Contains("A"))

	require.NoError(t, w.Remove(ctx, "A"))
	require.NoError(t, w.Clear(ctx))
	assert.Empty(t, w.Items())
}

func TestCurrencyPreference(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage()
	p, err := NewCurrencyPreference(ctx, storage, "currency")
	require.NoError(t, err)
	assert.Equal(t, domain.CurrencyMAD, p.Get())

	mad, eur := decimal.NewFromInt(100), decimal.RequireFromString("9.5")
	assert.True(t, p.Price(mad, eur).Equal(mad))

	next, err := p.Toggle(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.CurrencyEUR, next)
	assert.True(t, p.Price(mad, eur).Equal(eur))

	reloaded, err := NewCurrencyPreference(ctx, storage, "currency")
	require.NoError(t, err)
	assert.Equal(t, domain.CurrencyEUR, reloaded.Get())

	assert.ErrorIs(t, p.Set(ctx, "USD"), domain.ErrInvalidInput)
	assert.Equal(t, domain.CurrencyEUR, p.Get())
}

type fakeCatalog map[string]*domain.CartProduct

func (f fakeCatalog) Products(_ context.Context, ids []string) (map[string]*domain.CartProduct, error) {
	out := map[string]*domain.CartProduct{}
	for _, id := range ids {
		if p, ok := f[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func TestGuestCartHandler(t *testing.T) {
	catalog := fakeCatalog{
		"A": {ID: "A", Name: "Tapis", Slug: "tapis", PriceMAD: decimal.NewFromInt(100), PriceEUR: decimal.RequireFromString("9.5"), Stock: 3, IsActive: true},
		"B": {ID: "B", Name: "Pouf", Slug: "pouf", PriceMAD: decimal.NewFromInt(80), PriceEUR: decimal.NewFromInt(8), Stock: 4, IsActive: false},
	}
	storage := NewMemoryStorage()
	handler := NewGuestCartHandler(storage, catalog, slog.New(slog.NewTextHandler(io.Discard, nil)))
	const guestID = "5b2c8a8e-9a77-4c1e-9d8c-2f8e2b2a6f10"

	do := func(method, guest, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, "/api/guest-cart", strings.NewReader(body))
		if guest != "" {
			req.Header.Set(GuestIDHeader, guest)
		}
		rec := httptest.NewRecorder()
		if method == http.MethodGet {
			handler.HandleGet(rec, req)
		} else {
			handler.HandlePut(rec, req)
		}
		return rec
	}

	if rec := do(http.MethodGet, "", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 without guest id, got %d", rec.Code)
	}

	rec := do(http.MethodPut, guestID, `{"items":[{"productId":"A","quantity":2}]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = do(http.MethodGet, guestID, "")
	if !strings.Contains(rec.Body.String(), `"totalItems":2`) || !strings.Contains(rec.Body.String(), `"MAD":"200.00"`) {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}

	t.Run("client prices and stock are ignored", func(t *testing.T) {
		rec := do(http.MethodPut, guestID, `{"items":[{"productId":"A","name":"x","priceMad":0.01,"priceEur":0.01,"stock":9999,"quantity":1}]}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		body := rec.Body.String()
		assert.Contains(t, body, `"MAD":"100.00"`)
		assert.Contains(t, body, `"EUR":"9.50"`)
		assert.Contains(t, body, `"stock":3`)
		assert.Contains(t, body, `"name":"Tapis"`)

		saved, err := storage.Load(context.Background(), guestID)
		require.NoError(t, err)
		assert.JSONEq(t, `[{"productId":"A","quantity":1}]`, string(saved))
	})

	t.Run("client stock cannot lift the limit", func(t *testing.T) {
		rec := do(http.MethodPut, guestID, `{"items":[{"productId":"A","stock":9999,"quantity":50}]}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown product", func(t *testing.T) {
		rec := do(http.MethodPut, guestID, `{"items":[{"productId":"p1","priceMad":0.01,"stock":9999,"quantity":1}]}`)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("inactive product", func(t *testing.T) {
		rec := do(http.MethodPut, guestID, `{"items":[{"productId":"B","quantity":1}]}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("duplicate lines", func(t *testing.T) {
		rec := do(http.MethodPut, guestID, `{"items":[{"productId":"A","quantity":1},{"productId":"A","quantity":1}]}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejected replace keeps the previous cart", func(t *testing.T) {
		rec := do(http.MethodGet, guestID, "")
		assert.Contains(t, rec.Body.String(), `"totalItems":1`)
	})

	t.Run("view follows catalog changes", func(t *testing.T) {
		catalog["A"].PriceMAD = decimal.NewFromInt(120)
		rec := do(http.MethodGet, guestID, "")
		assert.Contains(t, rec.Body.String(), `"MAD":"120.00"`)

		catalog["A"].IsActive = false
		rec = do(http.MethodGet, guestID, "")
		assert.Contains(t, rec.Body.String(), `"totalItems":0`)
	})
}
