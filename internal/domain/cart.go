package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CartProduct is the slice of product state a cart line needs for checkout.
type CartProduct struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Slug     string          `json:"slug"`
	PriceMAD decimal.Decimal `json:"priceMad"`
	PriceEUR decimal.Decimal `json:"priceEur"`
	Stock    int             `json:"stock"`
	IsActive bool            `json:"isActive"`
	ImageURL string          `json:"imageUrl,omitempty"`
}

func (p CartProduct) PriceIn(c Currency) decimal.Decimal {
	if c == CurrencyEUR {
		return p.PriceEUR
	}
	return p.PriceMAD
}

type CartItem struct {
	ID        string      `json:"id"`
	CartID    string      `json:"cartId"`
	ProductID string      `json:"productId"`
	Quantity  int         `json:"quantity"`
	Product   CartProduct `json:"product"`
	CreatedAt time.Time   `json:"createdAt"`
}

type Cart struct {
	ID     string     `json:"id,omitempty"`
	UserID string     `json:"userId,omitempty"`
	Items  []CartItem `json:"items"`
}

func (c *Cart) IsEmpty() bool {
	return c == nil || len(c.Items) == 0
}

// CartLine is a requested (productID, quantity) pair, as sent by a client cart.
type CartLine struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

const MaxLineQuantity = 99

// ValidateLines returns a *StockError for the first line whose product is
// inactive or lacks stock for the requested quantity.
func ValidateLines(items []CartItem) error {
	for _, item := range items {
		if !item.Product.IsActive {
			return &StockError{ProductID: item.ProductID, ProductName: item.Product.Name, Err: ErrProductUnavailable}
		}
		if item.Product.Stock < item.Quantity {
			return &StockError{ProductID: item.ProductID, ProductName: item.Product.Name, Err: ErrInsufficientStock}
		}
	}
	return nil
}

// PriceLines computes subtotal = Σ(unit price × quantity) and total = subtotal + shipping.
func PriceLines(items []CartItem, currency Currency, shipping decimal.Decimal) (subtotal, total decimal.Decimal) {
	subtotal = decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.Product.PriceIn(currency).Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return subtotal, subtotal.Add(shipping)
}
