package inventory

import (
	"context"
	"database/sql"
	"errors"

	"github.com/kadriissam365-ops/artisanat-marocain/internal/domain"
	"github.com/kadriissam365-ops/artisanat-marocain/internal/postgres"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) GetStock(ctx context.Context, productID string) (*domain.StockLevel, error) {
	stock := &domain.StockLevel{}

	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, slug, stock, low_stock_threshold
		FROM products
		WHERE id = $1
	`, productID).Scan(&stock.ProductID, &stock.Name, &stock.Slug, &stock.Stock, &stock.LowStockThreshold)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return stock, nil
}

// Decrement takes qty units of a product within q, which is normally the
// order transaction. The update only applies while enough stock remains, so
// concurrent orders cannot drive stock negative; a miss returns
// domain.ErrInsufficientStock and the caller rolls back.
func Decrement(ctx context.Context, q postgres.Querier, productID string, qty int) (*domain.StockLevel, error) {
	stock := &domain.StockLevel{}

	err := q.QueryRowContext(ctx, `
		UPDATE products
		SET stock = stock - $2, updated_at = NOW()
		WHERE id = $1 AND stock >= $2
		RETURNING id, name, slug, stock, low_stock_threshold
	`, productID, qty).Scan(&stock.ProductID, &stock.Name, &stock.Slug, &stock.Stock, &stock.LowStockThreshold)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrInsufficientStock
		}
		return nil, err
	}

	return stock, nil
}

// Adjust adds delta (which may be negative) to a product's stock. It returns
// nil when the product does not exist and domain.ErrInsufficientStock when
// the result would be negative.
func (r *Repository) Adjust(ctx context.Context, productID string, delta int) (*domain.StockLevel, error) {
	stock := &domain.StockLevel{}

	err := r.db.QueryRowContext(ctx, `
		UPDATE products
		SET stock = stock + $2, updated_at = NOW()
		WHERE id = $1 AND stock + $2 >= 0
		RETURNING id, name, slug, stock, low_stock_threshold
	`, productID, delta).Scan(&stock.ProductID, &stock.Name, &stock.Slug, &stock.Stock, &stock.LowStockThreshold)
	if err == nil {
		return stock, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	existing, err := r.GetStock(ctx, productID)
	if err != nil || existing == nil {
		return nil, err
	}
	return nil, domain.ErrInsufficientStock
}

// ListLowStock returns active products at or below their alert threshold.
func (r *Repository) ListLowStock(ctx context.Context) ([]domain.StockLevel, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, slug, stock, low_stock_threshold
		FROM products
		WHERE is_active AND stock <= low_stock_threshold
		ORDER BY stock, name
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	items := []domain.StockLevel{}
	for rows.Next() {
		var stock domain.StockLevel
		if err := rows.Scan(&stock.ProductID, &stock.Name, &stock.Slug, &stock.Stock, &stock.LowStockThreshold); err != nil {
			return nil, err
		}
		items = append(items, stock)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return items, nil
}
