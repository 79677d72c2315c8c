package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kadriissam365-ops/artisanat-marocain/internal/domain"
)

const categoryColumns = `
	c.id, c.name, c.slug, c.description, c.image, c.parent_id, c.position, c.is_active,
	(SELECT COUNT(*) FROM products p WHERE p.category_id = c.id AND p.is_active)`

func scanCategory(row rowScanner) (*domain.Category, error) {
	var c domain.Category
	var parentID sql.NullString
	if err := row.Scan(&c.ID, &c.Name, &c.Slug, &c.Description, &c.Image, &parentID, &c.Position, &c.IsActive, &c.ProductCount); err != nil {
		return nil, err
	}
	if parentID.Valid {
		c.ParentID = &parentID.String
	}
	return &c, nil
}

// CategoryTree returns active top-level categories with their active
// children, both ordered by position.
func (r *Repository) CategoryTree(ctx context.Context) ([]domain.Category, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+categoryColumns+`
		FROM categories c
		WHERE c.is_active
		ORDER BY c.position, c.name`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var all []domain.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		all = append(all, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return buildTree(all), nil
}

func buildTree(all []domain.Category) []domain.Category {
	children := make(map[string][]domain.Category)
	for _, c := range all {
		if c.ParentID != nil {
			children[*c.ParentID] = append(children[*c.ParentID], c)
		}
	}

	roots := []domain.Category{}
	for _, c := range all {
		if c.ParentID == nil {
			c.Children = children[c.ID]
			roots = append(roots, c)
		}
	}
	return roots
}

func (r *Repository) CategoryBySlug(ctx context.Context, slug string) (*domain.Category, error) {
	c, err := scanCategory(r.db.QueryRowContext(ctx, `SELECT `+categoryColumns+`
		FROM categories c
		WHERE c.slug = $1 AND c.is_active`, slug))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `SELECT `+categoryColumns+`
		FROM categories c
		WHERE c.parent_id = $1 AND c.is_active
		ORDER BY c.position, c.name`, c.ID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		child, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		c.Children = append(c.Children, *child)
	}
	return c, rows.Err()
}
