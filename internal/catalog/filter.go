package catalog

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/kadriissam365-ops/artisanat-marocain/internal/domain"
)

type ProductFilter struct {
	CategorySlug    string
	CategoryID      string // matches the category and its direct children
	Query           string
	Artisan         string
	Origin          string
	MinPrice        *decimal.Decimal
	MaxPrice        *decimal.Decimal
	Currency        domain.Currency
	Sort            string
	Order           string
	IncludeInactive bool
}

var sortColumns = map[string]string{
	"createdAt": "p.created_at",
	"name":      "p.name",
	"stock":     "p.stock",
}

// ParseFilter reads product list filters from a query string.
func ParseFilter(q url.Values) (ProductFilter, error) {
	currency, err := domain.ParseCurrency(q.Get("currency"))
	if err != nil {
		return ProductFilter{}, err
	}

	f := ProductFilter{
		CategorySlug: q.Get("category"),
		Query:        strings.TrimSpace(q.Get("q")),
		Artisan:      strings.TrimSpace(q.Get("artisan")),
		Origin:       strings.TrimSpace(q.Get("origin")),
		Currency:     currency,
		Sort:         q.Get("sort"),
		Order:        q.Get("order"),
	}

	for key, dst := range map[string]**decimal.Decimal{"minPrice": &f.MinPrice, "maxPrice": &f.MaxPrice} {
		raw := q.Get(key)
		if raw == "" {
			continue
		}
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return ProductFilter{}, domain.Invalid(key, fmt.Sprintf("invalid %s", key))
		}
		*dst = &d
	}

	return f, nil
}

func (f ProductFilter) priceColumn() string {
	if f.Currency == domain.CurrencyEUR {
		return "p.price_eur"
	}
	return "p.price_mad"
}

// where renders the WHERE clause and its positional arguments.
func (f ProductFilter) where() (string, []any) {
	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if !f.IncludeInactive {
		conds = append(conds, "p.is_active")
	}
	if f.CategorySlug != "" {
		conds = append(conds, "c.slug = "+arg(f.CategorySlug))
	}
	if f.CategoryID != "" {
		n := arg(f.CategoryID)
		conds = append(conds, fmt.Sprintf("(p.category_id = %s OR c.parent_id = %s)", n, n))
	}
	if f.Query != "" {
		n := arg("%" + f.Query + "%")
		conds = append(conds, fmt.Sprintf("(p.name ILIKE %s OR p.description ILIKE %s OR p.artisan ILIKE %s)", n, n, n))
	}
	if f.Artisan != "" {
		conds = append(conds, "p.artisan ILIKE "+arg("%"+f.Artisan+"%"))
	}
	if f.Origin != "" {
		conds = append(conds, "p.origin ILIKE "+arg("%"+f.Origin+"%"))
	}
	if f.MinPrice != nil {
		conds = append(conds, f.priceColumn()+" >= "+arg(*f.MinPrice))
	}
	if f.MaxPrice != nil {
		conds = append(conds, f.priceColumn()+" <= "+arg(*f.MaxPrice))
	}

	if len(conds) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}

func (f ProductFilter) orderBy() string {
	col, ok := sortColumns[f.Sort]
	if f.Sort == "price" {
		col, ok = f.priceColumn(), true
	}
	if !ok {
		col = "p.created_at"
	}

	dir := "DESC"
	if strings.EqualFold(f.Order, "asc") {
		dir = "ASC"
	}
	return fmt.Sprintf("ORDER BY %s %s, p.id", col, dir)
}
