package localstore

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/kadriissam365-ops/artisanat-marocain/internal/domain"
)

var (
	ErrUnavailable       = errors.New("product unavailable")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrItemNotFound      = errors.New("item not in cart")
)

// Item is a cart line with the product details shown before checkout.
// Stock is the availability known when the product was added.
type Item struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Slug      string          `json:"slug"`
	ImageURL  string          `json:"imageUrl,omitempty"`
	PriceMAD  decimal.Decimal `json:"priceMad"`
	PriceEUR  decimal.Decimal `json:"priceEur"`
	Stock     int             `json:"stock"`
	Quantity  int             `json:"quantity"`
}

func (i Item) PriceIn(c domain.Currency) decimal.Decimal {
	if c == domain.CurrencyEUR {
		return i.PriceEUR
	}
	return i.PriceMAD
}

// Cart is the pre-checkout cart. Every successful mutation is persisted
// before it becomes visible; a failed one leaves the cart as it was.
type Cart struct {
	mu      sync.Mutex
	storage Storage
	key     string
	items   []Item
}

// NewCart loads the cart saved under key, if any.
func NewCart(ctx context.Context, storage Storage, key string) (*Cart, error) {
	c := &Cart{storage: storage, key: key, items: []Item{}}
	if err := load(ctx, storage, key, &c.items); err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	if c.items == nil {
		c.items = []Item{}
	}
	return c, nil
}

func (c *Cart) index(productID string) int {
	return slices.IndexFunc(c.items, func(i Item) bool { return i.ProductID == productID })
}

// commit persists next and makes it current. Callers hold c.mu.
func (c *Cart) commit(ctx context.Context, next []Item) error {
	if err := save(ctx, c.storage, c.key, next); err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	c.items = next
	return nil
}

// AddItem adds one unit of item, inserting it at quantity 1 when absent.
func (c *Cart) AddItem(ctx context.Context, item Item) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if item.Stock <= 0 {
		return ErrUnavailable
	}

	next := slices.Clone(c.items)
	if i := c.index(item.ProductID); i >= 0 {
		if next[i].Quantity >= item.Stock {
			return ErrInsufficientStock
		}
		next[i].Quantity++
		next[i].Stock = item.Stock
	} else {
		item.Quantity = 1
		next = append(next, item)
	}
	return c.commit(ctx, next)
}

// UpdateQuantity sets a line's quantity. Zero or less removes the line.
func (c *Cart) UpdateQuantity(ctx context.Context, productID string, qty int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.index(productID)
	if i < 0 {
		return ErrItemNotFound
	}
	if qty <= 0 {
		return c.commit(ctx, slices.Delete(slices.Clone(c.items), i, i+1))
	}
	if qty > c.items[i].Stock {
		return ErrInsufficientStock
	}

	next := slices.Clone(c.items)
	next[i].Quantity = qty
	return c.commit(ctx, next)
}

func (c *Cart) RemoveItem(ctx context.Context, productID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.index(productID)
	if i < 0 {
		return ErrItemNotFound
	}
	return c.commit(ctx, slices.Delete(slices.Clone(c.items), i, i+1))
}

func (c *Cart) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.commit(ctx, []Item{})
}

// Items returns a copy of the cart lines.
func (c *Cart) Items() []Item {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.items)
}

// Lines returns the cart as (productID, quantity) pairs for a server sync.
func (c *Cart) Lines() []domain.CartLine {
	c.mu.Lock()
	defer c.mu.Unlock()
	lines := make([]domain.CartLine, 0, len(c.items))
	for _, item := range c.items {
		lines = append(lines, domain.CartLine{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return lines
}

func (c *Cart) TotalItems() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := 0
	for _, item := range c.items {
		total += item.Quantity
	}
	return total
}

func (c *Cart) Subtotal(currency domain.Currency) decimal.Decimal {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := decimal.Zero
	for _, item := range c.items {
		total = total.Add(item.PriceIn(currency).Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total
}
