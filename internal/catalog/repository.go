package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/kadriissam365-ops/artisanat-marocain/internal/domain"
	"github.com/kadriissam365-ops/artisanat-marocain/internal/httpx"
	"github.com/kadriissam365-ops/artisanat-marocain/internal/postgres"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const productColumns = `
	p.id, p.name, p.slug, p.description, p.short_description, p.price_mad, p.price_eur,
	p.compare_at_price_mad, p.compare_at_price_eur, COALESCE(p.sku, ''), p.stock,
	p.low_stock_threshold, p.is_active, p.is_featured, p.artisan, p.origin, p.category_id,
	c.name, c.slug, p.created_at, p.updated_at`

const productFrom = `FROM products p JOIN categories c ON c.id = p.category_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*domain.Product, error) {
	var p domain.Product
	var cat domain.CategorySummary
	var compareMAD, compareEUR decimal.NullDecimal
	err := row.Scan(&p.ID, &p.Name, &p.Slug, &p.Description, &p.ShortDescription, &p.PriceMAD, &p.PriceEUR,
		&compareMAD, &compareEUR, &p.SKU, &p.Stock,
		&p.LowStockThreshold, &p.IsActive, &p.IsFeatured, &p.Artisan, &p.Origin, &p.CategoryID,
		&cat.Name, &cat.Slug, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if compareMAD.Valid {
		p.CompareAtPriceMAD = &compareMAD.Decimal
	}
	if compareEUR.Valid {
		p.CompareAtPriceEUR = &compareEUR.Decimal
	}
	p.Category = &cat
	p.Images = []domain.ProductImage{}
	return &p, nil
}

func (r *Repository) queryProducts(ctx context.Context, query string, args ...any) ([]domain.Product, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	products := []domain.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

func (r *Repository) ListProducts(ctx context.Context, f ProductFilter, page httpx.Page) ([]domain.Product, int, error) {
	where, args := f.where()

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) `+productFrom+` `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}

	args = append(args, page.Limit, page.Offset())
	query := fmt.Sprintf(`SELECT %s %s %s %s LIMIT $%d OFFSET $%d`,
		productColumns, productFrom, where, f.orderBy(), len(args)-1, len(args))

	products, err := r.queryProducts(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	if err := r.attachImages(ctx, products, true); err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

func (r *Repository) FeaturedProducts(ctx context.Context, limit int) ([]domain.Product, error) {
	products, err := r.queryProducts(ctx, `SELECT `+productColumns+` `+productFrom+`
		WHERE p.is_active AND p.is_featured
		ORDER BY p.created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("featured products: %w", err)
	}
	if err := r.attachImages(ctx, products, true); err != nil {
		return nil, err
	}
	return products, nil
}

func (r *Repository) RelatedProducts(ctx context.Context, p *domain.Product, limit int) ([]domain.Product, error) {
	products, err := r.queryProducts(ctx, `SELECT `+productColumns+` `+productFrom+`
		WHERE p.is_active AND p.category_id = $1 AND p.id <> $2
		ORDER BY p.created_at DESC
		LIMIT $3`, p.CategoryID, p.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("related products: %w", err)
	}
	if err := r.attachImages(ctx, products, true); err != nil {
		return nil, err
	}
	return products, nil
}

// ProductBySlug returns nil when no product matches. Inactive products are
// returned only when includeInactive is set.
func (r *Repository) ProductBySlug(ctx context.Context, slug string, includeInactive bool) (*domain.Product, error) {
	return r.productWhere(ctx, `p.slug = $1 AND ($2 OR p.is_active)`, slug, includeInactive)
}

func (r *Repository) ProductByID(ctx context.Context, id string) (*domain.Product, error) {
	return r.productWhere(ctx, `p.id = $1`, id)
}

func (r *Repository) productWhere(ctx context.Context, cond string, args ...any) (*domain.Product, error) {
	p, err := scanProduct(r.db.QueryRowContext(ctx, `SELECT `+productColumns+` `+productFrom+` WHERE `+cond, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	products := []domain.Product{*p}
	if err := r.attachImages(ctx, products, false); err != nil {
		return nil, err
	}
	return &products[0], nil
}

func (r *Repository) attachImages(ctx context.Context, products []domain.Product, primaryOnly bool) error {
	if len(products) == 0 {
		return nil
	}

	index := make(map[string]int, len(products))
	ids := make([]string, len(products))
	for i, p := range products {
		index[p.ID] = i
		ids[i] = p.ID
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, product_id, url, alt, position, is_primary
		FROM product_images
		WHERE product_id = ANY($1) AND (NOT $2 OR is_primary)
		ORDER BY position
	`, pq.Array(ids), primaryOnly)
	if err != nil {
		return fmt.Errorf("load images: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			img       domain.ProductImage
			productID string
		)
		if err := rows.Scan(&img.ID, &productID, &img.URL, &img.Alt, &img.Position, &img.IsPrimary); err != nil {
			return err
		}
		p := &products[index[productID]]
		p.Images = append(p.Images, img)
	}
	return rows.Err()
}

type ProductInput struct {
	Name              string           `json:"name"`
	Slug              string           `json:"slug"`
	Description       string           `json:"description"`
	ShortDescription  string           `json:"shortDescription"`
	PriceMAD          decimal.Decimal  `json:"priceMad"`
	PriceEUR          decimal.Decimal  `json:"priceEur"`
	CompareAtPriceMAD *decimal.Decimal `json:"compareAtPriceMad"`
	CompareAtPriceEUR *decimal.Decimal `json:"compareAtPriceEur"`
	SKU               *string          `json:"sku"`
	Stock             int              `json:"stock"`
	LowStockThreshold int              `json:"lowStockThreshold"`
	IsActive          bool             `json:"isActive"`
	IsFeatured        bool             `json:"isFeatured"`
	Artisan           string           `json:"artisan"`
	Origin            string           `json:"origin"`
	CategoryID        string           `json:"categoryId"`
	Images            []ImageInput     `json:"images"`
}

type ImageInput struct {
	URL       string `json:"url"`
	Alt       string `json:"alt"`
	IsPrimary bool   `json:"isPrimary"`
}

func (in *ProductInput) Validate() error {
	switch {
	case in.Name == "":
		return domain.Invalid("name", "Name is required")
	case in.Slug == "":
		return domain.Invalid("slug", "Slug is required")
	case !in.PriceMAD.IsPositive() || !in.PriceEUR.IsPositive():
		return domain.Invalid("price", "Prices must be positive")
	case in.Stock < 0:
		return domain.Invalid("stock", "Stock cannot be negative")
	case in.CategoryID == "":
		return domain.Invalid("categoryId", "Category is required")
	}
	return nil
}

// CreateProduct inserts the product and its images. A taken slug or SKU
// yields domain.ErrDuplicate.
func (r *Repository) CreateProduct(ctx context.Context, in ProductInput) (string, error) {
	id := uuid.New().String()

	err := postgres.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO products (id, name, slug, description, short_description, price_mad, price_eur,
				compare_at_price_mad, compare_at_price_eur, sku, stock, low_stock_threshold,
				is_active, is_featured, artisan, origin, category_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		`, id, in.Name, in.Slug, in.Description, in.ShortDescription, in.PriceMAD, in.PriceEUR,
			nullDecimal(in.CompareAtPriceMAD), nullDecimal(in.CompareAtPriceEUR), in.SKU, in.Stock, in.LowStockThreshold,
			in.IsActive, in.IsFeatured, in.Artisan, in.Origin, in.CategoryID)
		if err != nil {
			return err
		}
		return insertImages(ctx, tx, id, in.Images)
	})
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return "", fmt.Errorf("product %s: %w", in.Slug, domain.ErrDuplicate)
		}
		return "", fmt.Errorf("create product: %w", err)
	}
	return id, nil
}

// UpdateProduct replaces the product's attributes. Images are replaced only
// when in.Images is non-nil. Returns false when the product does not exist.
func (r *Repository) UpdateProduct(ctx context.Context, id string, in ProductInput) (bool, error) {
	var found bool
	err := postgres.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE products SET name = $2, slug = $3, description = $4, short_description = $5,
				price_mad = $6, price_eur = $7, compare_at_price_mad = $8, compare_at_price_eur = $9,
				sku = $10, stock = $11, low_stock_threshold = $12, is_active = $13, is_featured = $14,
				artisan = $15, origin = $16, category_id = $17, updated_at = NOW()
			WHERE id = $1
		`, id, in.Name, in.Slug, in.Description, in.ShortDescription, in.PriceMAD, in.PriceEUR,
			nullDecimal(in.CompareAtPriceMAD), nullDecimal(in.CompareAtPriceEUR), in.SKU, in.Stock, in.LowStockThreshold,
			in.IsActive, in.IsFeatured, in.Artisan, in.Origin, in.CategoryID)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if found = n > 0; !found || in.Images == nil {
			return nil
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM product_images WHERE product_id = $1`, id); err != nil {
			return err
		}
		return insertImages(ctx, tx, id, in.Images)
	})
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return false, fmt.Errorf("product %s: %w", in.Slug, domain.ErrDuplicate)
		}
		return false, fmt.Errorf("update product: %w", err)
	}
	return found, nil
}

func insertImages(ctx context.Context, tx *sql.Tx, productID string, images []ImageInput) error {
	for i, img := range images {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO product_images (id, product_id, url, alt, position, is_primary)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, uuid.New().String(), productID, img.URL, img.Alt, i, img.IsPrimary || (i == 0 && !hasPrimary(images)))
		if err != nil {
			return err
		}
	}
	return nil
}

func hasPrimary(images []ImageInput) bool {
	for _, img := range images {
		if img.IsPrimary {
			return true
		}
	}
	return false
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(*d)
}
