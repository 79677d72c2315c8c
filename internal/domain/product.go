package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type ProductImage struct {
	ID        string `json:"id"`
	URL       string `json:"url"`
	Alt       string `json:"alt,omitempty"`
	Position  int    `json:"position"`
	IsPrimary bool   `json:"isPrimary"`
}

type Product struct {
	ID                string           `json:"id"`
	Name              string           `json:"name"`
	Slug              string           `json:"slug"`
	Description       string           `json:"description"`
	ShortDescription  string           `json:"shortDescription,omitempty"`
	PriceMAD          decimal.Decimal  `json:"priceMad"`
	PriceEUR          decimal.Decimal  `json:"priceEur"`
	CompareAtPriceMAD *decimal.Decimal `json:"compareAtPriceMad,omitempty"`
	CompareAtPriceEUR *decimal.Decimal `json:"compareAtPriceEur,omitempty"`
	SKU               string           `json:"sku,omitempty"`
	Stock             int              `json:"stock"`
	LowStockThreshold int              `json:"lowStockThreshold"`
	IsActive          bool             `json:"isActive"`
	IsFeatured        bool             `json:"isFeatured"`
	Artisan           string           `json:"artisan"`
	Origin            string           `json:"origin"`
	CategoryID        string           `json:"categoryId"`
	Category          *CategorySummary `json:"category,omitempty"`
	Images            []ProductImage   `json:"images"`
	CreatedAt         time.Time        `json:"createdAt"`
	UpdatedAt         time.Time        `json:"updatedAt"`
}

// PriceIn returns the list price for the given currency.
func (p *Product) PriceIn(c Currency) decimal.Decimal {
	if c == CurrencyEUR {
		return p.PriceEUR
	}
	return p.PriceMAD
}

type CategorySummary struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type Category struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Slug         string     `json:"slug"`
	Description  string     `json:"description,omitempty"`
	Image        string     `json:"image,omitempty"`
	ParentID     *string    `json:"parentId,omitempty"`
	Position     int        `json:"position"`
	IsActive     bool       `json:"isActive"`
	ProductCount int        `json:"productCount"`
	Children     []Category `json:"children,omitempty"`
}

type Review struct {
	ID         string    `json:"id"`
	UserID     string    `json:"-"`
	ProductID  string    `json:"productId"`
	Rating     int       `json:"rating"`
	Title      string    `json:"title,omitempty"`
	Comment    string    `json:"comment,omitempty"`
	IsApproved bool      `json:"isApproved"`
	IsVerified bool      `json:"isVerified"`
	AuthorName string    `json:"authorName,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

type RatingSummary struct {
	Average float64 `json:"average"`
	Count   int     `json:"count"`
}
