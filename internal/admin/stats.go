// Package admin serves the back-office API: dashboard figures, order
// management, product maintenance and the catalog export.
package admin

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/kadriissam365-ops/artisanat-marocain/internal/domain"
	"github.com/kadriissam365-ops/artisanat-marocain/internal/httpx"
	"github.com/kadriissam365-ops/artisanat-marocain/internal/orders"
)

const recentOrders = 5

type ProductCounts struct {
	Total    int `json:"total"`
	Active   int `json:"active"`
	LowStock int `json:"lowStock"`
}

type OrderCounts struct {
	Total   int `json:"total"`
	Pending int `json:"pending"`
}

type Stats struct {
	Products     ProductCounts                       `json:"products"`
	Orders       OrderCounts                         `json:"orders"`
	Clients      int                                 `json:"clients"`
	Revenue      map[domain.Currency]decimal.Decimal `json:"revenue"`
	RecentOrders []domain.Order                      `json:"recentOrders"`
}

type StatsRepository struct {
	db *sql.DB
}

func NewStatsRepository(db *sql.DB) *StatsRepository {
	return &StatsRepository{db: db}
}

func (r *StatsRepository) ProductCounts(ctx context.Context) (ProductCounts, error) {
	var c ProductCounts
	err := r.db.QueryRowContext(ctx, `
		SELECT count(*),
		       count(*) FILTER (WHERE is_active),
		       count(*) FILTER (WHERE is_active AND stock <= low_stock_threshold)
		FROM products`).Scan(&c.Total, &c.Active, &c.LowStock)
	return c, err
}

func (r *StatsRepository) OrderCounts(ctx context.Context) (OrderCounts, error) {
	var c OrderCounts
	err := r.db.QueryRowContext(ctx, `
		SELECT count(*), count(*) FILTER (WHERE status = $1)
		FROM orders`, domain.OrderStatusPending).Scan(&c.Total, &c.Pending)
	return c, err
}

func (r *StatsRepository) ClientCount(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM users WHERE role = $1`, domain.RoleClient).Scan(&n)
	return n, err
}

// Revenue sums paid order totals per currency. Both currencies are always present.
func (r *StatsRepository) Revenue(ctx context.Context) (map[domain.Currency]decimal.Decimal, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT currency, COALESCE(SUM(total_amount), 0)
		FROM orders
		WHERE payment_status = $1
		GROUP BY currency`, domain.PaymentStatusPaid)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	revenue := map[domain.Currency]decimal.Decimal{
		domain.CurrencyMAD: decimal.Zero,
		domain.CurrencyEUR: decimal.Zero,
	}
	for rows.Next() {
		var (
			currency domain.Currency
			sum      decimal.Decimal
		)
		if err := rows.Scan(&currency, &sum); err != nil {
			return nil, err
		}
		revenue[currency] = sum
	}
	return revenue, rows.Err()
}

type Counter interface {
	ProductCounts(ctx context.Context) (ProductCounts, error)
	OrderCounts(ctx context.Context) (OrderCounts, error)
	ClientCount(ctx context.Context) (int, error)
	Revenue(ctx context.Context) (map[domain.Currency]decimal.Decimal, error)
}

type OrderLister interface {
	AdminList(ctx context.Context, f orders.Filter, page httpx.Page) ([]domain.Order, int, error)
}

// CollectStats runs the independent dashboard queries concurrently. The
// first failure cancels the rest.
func CollectStats(ctx context.Context, counter Counter, lister OrderLister) (*Stats, error) {
	var s Stats
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		s.Products, err = counter.ProductCounts(ctx)
		return wrap("product counts", err)
	})
	g.Go(func() (err error) {
		s.Orders, err = counter.OrderCounts(ctx)
		return wrap("order counts", err)
	})
	g.Go(func() (err error) {
		s.Clients, err = counter.ClientCount(ctx)
		return wrap("client count", err)
	})
	g.Go(func() (err error) {
		s.Revenue, err = counter.Revenue(ctx)
		return wrap("revenue", err)
	})
	g.Go(func() (err error) {
		s.RecentOrders, _, err = lister.AdminList(ctx, orders.Filter{}, httpx.Page{Page: 1, Limit: recentOrders})
		return wrap("recent orders", err)
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &s, nil
}

func wrap(what string, err error) error {
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	return nil
}
