package cart

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/kadriissam365-ops/artisanat-marocain/internal/domain"
	"github.com/kadriissam365-ops/artisanat-marocain/internal/postgres"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// GetCart returns nil when the user has never had a cart.
func (r *Repository) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	cart := &domain.Cart{UserID: userID}
	err := r.db.QueryRowContext(ctx, `SELECT id FROM carts WHERE user_id = $1`, userID).Scan(&cart.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	cart.Items, err = LoadItems(ctx, r.db, userID)
	if err != nil {
		return nil, err
	}
	return cart, nil
}

func (r *Repository) GetProduct(ctx context.Context, productID string) (*domain.CartProduct, error) {
	products, err := r.products(ctx, r.db, []string{productID})
	if err != nil {
		return nil, err
	}
	return products[productID], nil
}

// Products returns the current view of each known product id.
func (r *Repository) Products(ctx context.Context, ids []string) (map[string]*domain.CartProduct, error) {
	return r.products(ctx, r.db, ids)
}

func (r *Repository) products(ctx context.Context, q postgres.Querier, ids []string) (map[string]*domain.CartProduct, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, name, slug, price_mad, price_eur, stock, is_active
		FROM products
		WHERE id::text = ANY($1)
	`, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string]*domain.CartProduct, len(ids))
	for rows.Next() {
		var p domain.CartProduct
		if err := rows.Scan(&p.ID, &p.Name, &p.Slug, &p.PriceMAD, &p.PriceEUR, &p.Stock, &p.IsActive); err != nil {
			return nil, err
		}
		out[p.ID] = &p
	}
	return out, rows.Err()
}

// AddItem creates the user's cart if needed and adds qty of the product,
// incrementing an existing line. The product row is share-locked for the
// transaction and the resulting quantity must fit its stock, otherwise
// nothing is written.
func (r *Repository) AddItem(ctx context.Context, userID, productID string, qty int) (*domain.CartItem, error) {
	item := &domain.CartItem{ProductID: productID}

	err := postgres.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		var p domain.CartProduct
		err := tx.QueryRowContext(ctx, `
			SELECT id, name, slug, price_mad, price_eur, stock, is_active
			FROM products
			WHERE id::text = $1
			FOR SHARE
		`, productID).Scan(&p.ID, &p.Name, &p.Slug, &p.PriceMAD, &p.PriceEUR, &p.Stock, &p.IsActive)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("product %s: %w", productID, domain.ErrNotFound)
		}
		if err != nil {
			return err
		}

		cartID, err := ensureCart(ctx, tx, userID)
		if err != nil {
			return err
		}
		item.CartID = cartID

		err = tx.QueryRowContext(ctx, `
			INSERT INTO cart_items (id, cart_id, product_id, quantity)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (cart_id, product_id) DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity
			RETURNING id, quantity, created_at
		`, uuid.New().String(), cartID, p.ID, qty).Scan(&item.ID, &item.Quantity, &item.CreatedAt)
		if err != nil {
			return err
		}
		item.Product = p
		return checkLine(&p, item.Quantity)
	})
	if err != nil {
		return nil, fmt.Errorf("add cart item: %w", err)
	}
	return item, nil
}

// GetItem returns the line only if it belongs to the user's cart.
func (r *Repository) GetItem(ctx context.Context, userID, itemID string) (*domain.CartItem, error) {
	item, err := scanItem(r.db.QueryRowContext(ctx, `SELECT `+itemColumns+itemFrom+`
		WHERE ci.id::text = $1 AND c.user_id = $2`, itemID, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return item, nil
}

func (r *Repository) SetQuantity(ctx context.Context, itemID string, qty int) error {
	_, err := r.db.ExecContext(ctx, `UPDATE cart_items SET quantity = $2 WHERE id = $1`, itemID, qty)
	return err
}

func (r *Repository) DeleteItem(ctx context.Context, itemID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM cart_items WHERE id = $1`, itemID)
	return err
}

// Sync makes the server cart equal to lines in one transaction: lines absent
// from the request are deleted, present ones are set to the requested
// quantity. Any invalid line aborts the whole sync with no change.
func (r *Repository) Sync(ctx context.Context, userID string, lines []domain.CartLine) error {
	return postgres.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		cartID, err := ensureCart(ctx, tx, userID)
		if err != nil {
			return err
		}

		ids := make([]string, len(lines))
		for i, l := range lines {
			ids[i] = l.ProductID
		}

		products, err := r.products(ctx, tx, ids)
		if err != nil {
			return err
		}
		if err := validateSync(lines, products); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
			DELETE FROM cart_items
			WHERE cart_id = $1 AND NOT (product_id::text = ANY($2))
		`, cartID, pq.Array(ids)); err != nil {
			return err
		}

		for _, l := range lines {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO cart_items (id, cart_id, product_id, quantity)
				VALUES ($1, $2, $3, $4)
				ON CONFLICT (cart_id, product_id) DO UPDATE SET quantity = EXCLUDED.quantity
			`, uuid.New().String(), cartID, l.ProductID, l.Quantity); err != nil {
				return err
			}
		}
		return nil
	})
}

func validateSync(lines []domain.CartLine, products map[string]*domain.CartProduct) error {
	for _, l := range lines {
		p, ok := products[l.ProductID]
		if !ok {
			return fmt.Errorf("product %s: %w", l.ProductID, domain.ErrNotFound)
		}
		if !p.IsActive {
			return &domain.StockError{ProductID: p.ID, ProductName: p.Name, Err: domain.ErrProductUnavailable}
		}
		if p.Stock < l.Quantity {
			return &domain.StockError{ProductID: p.ID, ProductName: p.Name, Err: domain.ErrInsufficientStock}
		}
	}
	return nil
}
