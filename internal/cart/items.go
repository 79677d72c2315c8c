package cart

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/kadriissam365-ops/artisanat-marocain/internal/domain"
	"github.com/kadriissam365-ops/artisanat-marocain/internal/postgres"
)

const itemColumns = `
	ci.id, ci.cart_id, ci.product_id, ci.quantity, ci.created_at,
	p.id, p.name, p.slug, p.price_mad, p.price_eur, p.stock, p.is_active,
	COALESCE((SELECT url FROM product_images pi
		WHERE pi.product_id = p.id AND pi.is_primary
		ORDER BY pi.position LIMIT 1), '')`

const itemFrom = `
	FROM cart_items ci
	JOIN carts c ON c.id = ci.cart_id
	JOIN products p ON p.id = ci.product_id`

func scanItem(row interface{ Scan(...any) error }) (*domain.CartItem, error) {
	var item domain.CartItem
	err := row.Scan(&item.ID, &item.CartID, &item.ProductID, &item.Quantity, &item.CreatedAt,
		&item.Product.ID, &item.Product.Name, &item.Product.Slug, &item.Product.PriceMAD, &item.Product.PriceEUR,
		&item.Product.Stock, &item.Product.IsActive, &item.Product.ImageURL)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// LoadItems returns the user's cart lines with a current product view,
// newest first. It runs on q so order placement can read the cart inside
// its own transaction.
func LoadItems(ctx context.Context, q postgres.Querier, userID string) ([]domain.CartItem, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+itemColumns+itemFrom+`
		WHERE c.user_id = $1
		ORDER BY ci.created_at DESC, ci.id`, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	items := []domain.CartItem{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// LockCart takes a row lock on the user's cart for the rest of the
// transaction and returns its id, or "" when the user has no cart.
func LockCart(ctx context.Context, q postgres.Querier, userID string) (string, error) {
	var id string
	err := q.QueryRowContext(ctx, `SELECT id FROM carts WHERE user_id = $1 FOR UPDATE`, userID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return id, err
}

// Clear deletes every line of the user's cart.
func Clear(ctx context.Context, q postgres.Querier, userID string) error {
	_, err := q.ExecContext(ctx, `
		DELETE FROM cart_items
		WHERE cart_id = (SELECT id FROM carts WHERE user_id = $1)
	`, userID)
	return err
}

func ensureCart(ctx context.Context, q postgres.Querier, userID string) (string, error) {
	var id string
	err := q.QueryRowContext(ctx, `
		INSERT INTO carts (id, user_id) VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
		RETURNING id
	`, uuid.New().String(), userID).Scan(&id)
	return id, err
}
