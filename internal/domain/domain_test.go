package domain

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func line(name string, stock, qty int, mad, eur string, active bool) CartItem {
	return CartItem{
		ProductID: name,
		Quantity:  qty,
		Product: CartProduct{
			ID:       name,
			Name:     name,
			PriceMAD: decimal.RequireFromString(mad),
			PriceEUR: decimal.RequireFromString(eur),
			Stock:    stock,
			IsActive: active,
		},
	}
}

func TestPriceLines(t *testing.T) {
	items := []CartItem{
		line("A", 5, 2, "100", "9.50", true),
		line("B", 3, 1, "50", "4.75", true),
	}

	t.Run("MAD", func(t *testing.T) {
		subtotal, total := PriceLines(items, CurrencyMAD, decimal.Zero)
		assert.True(t, subtotal.Equal(decimal.NewFromInt(250)), "subtotal %s", subtotal)
		assert.True(t, total.Equal(subtotal))
	})

	t.Run("EUR with shipping", func(t *testing.T) {
		subtotal, total := PriceLines(items, CurrencyEUR, decimal.RequireFromString("5"))
		assert.True(t, subtotal.Equal(decimal.RequireFromString("23.75")), "subtotal %s", subtotal)
		assert.True(t, total.Equal(decimal.RequireFromString("28.75")), "total %s", total)
	})
}

func TestValidateLines(t *testing.T) {
	t.Run("all valid", func(t *testing.T) {
		require.NoError(t, ValidateLines([]CartItem{line("A", 5, 5, "1", "1", true)}))
	})

	t.Run("first violation wins", func(t *testing.T) {
		err := ValidateLines([]CartItem{
			line("A", 5, 1, "100", "10", true),
			line("B", 1, 2, "50", "5", true),
			line("C", 0, 1, "50", "5", false),
		})
		var stockErr *StockError
		require.ErrorAs(t, err, &stockErr)
		assert.Equal(t, "B", stockErr.ProductID)
		assert.True(t, errors.Is(err, ErrInsufficientStock))
		assert.Equal(t, `Insufficient stock for "B"`, err.Error())
	})

	t.Run("inactive product", func(t *testing.T) {
		err := ValidateLines([]CartItem{line("C", 10, 1, "50", "5", false)})
		assert.True(t, errors.Is(err, ErrProductUnavailable))
		assert.Equal(t, `Product "C" is no longer available`, err.Error())
	})
}

func TestToMinorUnits(t *testing.T) {
	tests := map[string]int64{
		"100":    10000,
		"19.99":  1999,
		"0.005":  1,
		"12.344": 1234,
	}
	for in, want := range tests {
		assert.Equal(t, want, ToMinorUnits(decimal.RequireFromString(in)), in)
	}
}

func TestNewOrderNumber(t *testing.T) {
	assert.Equal(t, "ART-2026-000001", NewOrderNumber(2026, 1))
	assert.Equal(t, "ART-2026-00000Z", NewOrderNumber(2026, 35))
	assert.Equal(t, "ART-2025-000010", NewOrderNumber(2025, 36))
	assert.Equal(t, "ART-2026-1000000", NewOrderNumber(2026, 2176782336))
}

func TestParseCurrency(t *testing.T) {
	c, err := ParseCurrency("")
	require.NoError(t, err)
	assert.Equal(t, CurrencyMAD, c)

	c, err = ParseCurrency("eur")
	require.NoError(t, err)
	assert.Equal(t, CurrencyEUR, c)

	_, err = ParseCurrency("USD")
	assert.True(t, errors.Is(err, ErrInvalidInput))
}

func TestOrderStatusValid(t *testing.T) {
	assert.True(t, OrderStatusRefunded.Valid())
	assert.False(t, OrderStatus("LOST").Valid())
	assert.True(t, PaymentStatusPaid.Valid())
}

func TestOrderStatusCanBecome(t *testing.T) {
	assert.True(t, OrderStatusPending.CanBecome(OrderStatusConfirmed))
	assert.True(t, OrderStatusDelivered.CanBecome(OrderStatusRefunded))
	assert.True(t, OrderStatusCancelled.CanBecome(OrderStatusCancelled))
	assert.False(t, OrderStatusCancelled.CanBecome(OrderStatusProcessing))
	assert.False(t, OrderStatusRefunded.CanBecome(OrderStatusShipped))
}
