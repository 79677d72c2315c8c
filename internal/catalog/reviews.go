package catalog

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/kadriissam365-ops/artisanat-marocain/internal/domain"
	"github.com/kadriissam365-ops/artisanat-marocain/internal/httpx"
	"github.com/kadriissam365-ops/artisanat-marocain/internal/postgres"
)

func (r *Repository) ListReviews(ctx context.Context, productID string, page httpx.Page) ([]domain.Review, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM reviews WHERE product_id = $1 AND is_approved
	`, productID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count reviews: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT rv.id, rv.user_id, rv.product_id, rv.rating, rv.title, rv.comment,
			rv.is_approved, rv.is_verified, u.first_name || ' ' || LEFT(u.last_name, 1) || '.', rv.created_at
		FROM reviews rv
		JOIN users u ON u.id = rv.user_id
		WHERE rv.product_id = $1 AND rv.is_approved
		ORDER BY rv.created_at DESC
		LIMIT $2 OFFSET $3
	`, productID, page.Limit, page.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("list reviews: %w", err)
	}
	defer func() { _ = rows.Close() }()

	reviews := []domain.Review{}
	for rows.Next() {
		var rv domain.Review
		if err := rows.Scan(&rv.ID, &rv.UserID, &rv.ProductID, &rv.Rating, &rv.Title, &rv.Comment,
			&rv.IsApproved, &rv.IsVerified, &rv.AuthorName, &rv.CreatedAt); err != nil {
			return nil, 0, err
		}
		reviews = append(reviews, rv)
	}
	return reviews, total, rows.Err()
}

// RatingSummary averages approved ratings, rounded to one decimal.
func (r *Repository) RatingSummary(ctx context.Context, productID string) (domain.RatingSummary, error) {
	var (
		avg   float64
		count int
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(AVG(rating), 0)::float8, COUNT(*)
		FROM reviews
		WHERE product_id = $1 AND is_approved
	`, productID).Scan(&avg, &count)
	if err != nil {
		return domain.RatingSummary{}, fmt.Errorf("rating summary: %w", err)
	}
	return domain.RatingSummary{Average: roundRating(avg), Count: count}, nil
}

func roundRating(avg float64) float64 {
	return math.Round(avg*10) / 10
}

// HasDeliveredPurchase reports whether the user has a delivered order
// containing the product.
func (r *Repository) HasDeliveredPurchase(ctx context.Context, userID, productID string) (bool, error) {
	var ok bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM order_items oi
			JOIN orders o ON o.id = oi.order_id
			WHERE o.user_id = $1 AND oi.product_id = $2 AND o.status = $3
		)
	`, userID, productID, domain.OrderStatusDelivered).Scan(&ok)
	return ok, err
}

func (r *Repository) CreateReview(ctx context.Context, rv *domain.Review) error {
	rv.ID = uuid.New().String()
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO reviews (id, user_id, product_id, rating, title, comment, is_approved, is_verified)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`, rv.ID, rv.UserID, rv.ProductID, rv.Rating, rv.Title, rv.Comment, rv.IsApproved, rv.IsVerified).Scan(&rv.CreatedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return fmt.Errorf("review: %w", domain.ErrDuplicate)
		}
		return fmt.Errorf("create review: %w", err)
	}
	return nil
}
