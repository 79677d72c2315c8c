package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kadriissam365-ops/artisanat-marocain/internal/domain"
	"github.com/kadriissam365-ops/artisanat-marocain/internal/httpx"
)

const (
	featuredLimit = 8
	relatedLimit  = 4
)

type Store interface {
	ListProducts(ctx context.Context, f ProductFilter, page httpx.Page) ([]domain.Product, int, error)
	FeaturedProducts(ctx context.Context, limit int) ([]domain.Product, error)
	RelatedProducts(ctx context.Context, p *domain.Product, limit int) ([]domain.Product, error)
	ProductBySlug(ctx context.Context, slug string, includeInactive bool) (*domain.Product, error)
	ProductByID(ctx context.Context, id string) (*domain.Product, error)
	CreateProduct(ctx context.Context, in ProductInput) (string, error)
	UpdateProduct(ctx context.Context, id string, in ProductInput) (bool, error)

	CategoryTree(ctx context.Context) ([]domain.Category, error)
	CategoryBySlug(ctx context.Context, slug string) (*domain.Category, error)

	ListReviews(ctx context.Context, productID string, page httpx.Page) ([]domain.Review, int, error)
	RatingSummary(ctx context.Context, productID string) (domain.RatingSummary, error)
	HasDeliveredPurchase(ctx context.Context, userID, productID string) (bool, error)
	CreateReview(ctx context.Context, rv *domain.Review) error
}

// Service fronts the catalog store with an optional read-through cache.
// Cache failures are logged and fall through to the store.
type Service struct {
	store  Store
	cache  Cache
	logger *slog.Logger
}

func NewService(store Store, cache Cache, logger *slog.Logger) *Service {
	return &Service{store: store, cache: cache, logger: logger}
}

func (s *Service) ListProducts(ctx context.Context, f ProductFilter, page httpx.Page) ([]domain.Product, int, error) {
	return s.store.ListProducts(ctx, f, page)
}

func (s *Service) FeaturedProducts(ctx context.Context) ([]domain.Product, error) {
	return s.store.FeaturedProducts(ctx, featuredLimit)
}

type ProductDetail struct {
	*domain.Product
	Rating  domain.RatingSummary `json:"aggregateRating"`
	Related []domain.Product     `json:"relatedProducts"`
}

func (s *Service) ProductDetail(ctx context.Context, slug string) (*ProductDetail, error) {
	p, err := s.activeProduct(ctx, slug)
	if err != nil {
		return nil, err
	}

	related, err := s.store.RelatedProducts(ctx, p, relatedLimit)
	if err != nil {
		return nil, err
	}
	rating, err := s.store.RatingSummary(ctx, p.ID)
	if err != nil {
		return nil, err
	}

	return &ProductDetail{Product: p, Rating: rating, Related: related}, nil
}

func (s *Service) activeProduct(ctx context.Context, slug string) (*domain.Product, error) {
	var p domain.Product
	if s.cacheGet(ctx, productKey(slug), &p) {
		return &p, nil
	}

	found, err := s.store.ProductBySlug(ctx, slug, false)
	if err != nil {
		return nil, fmt.Errorf("product %s: %w", slug, err)
	}
	if found == nil {
		return nil, fmt.Errorf("product %s: %w", slug, domain.ErrNotFound)
	}

	s.cacheSet(ctx, productKey(slug), found, productTTL)
	return found, nil
}

func (s *Service) CategoryTree(ctx context.Context) ([]domain.Category, error) {
	var tree []domain.Category
	if s.cacheGet(ctx, categoryTreeKey, &tree) {
		return tree, nil
	}

	tree, err := s.store.CategoryTree(ctx)
	if err != nil {
		return nil, err
	}

	s.cacheSet(ctx, categoryTreeKey, tree, categoryTTL)
	return tree, nil
}

type CategoryPage struct {
	Category   *domain.Category `json:"category"`
	Products   []domain.Product `json:"products"`
	Pagination httpx.Pagination `json:"pagination"`
}

// CategoryProducts lists active products of the category and its children.
func (s *Service) CategoryProducts(ctx context.Context, slug string, f ProductFilter, page httpx.Page) (*CategoryPage, error) {
	c, err := s.store.CategoryBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("category %s: %w", slug, domain.ErrNotFound)
	}

	f.CategorySlug = ""
	f.CategoryID = c.ID
	products, total, err := s.store.ListProducts(ctx, f, page)
	if err != nil {
		return nil, err
	}

	return &CategoryPage{Category: c, Products: products, Pagination: page.Result(total)}, nil
}

type ReviewPage struct {
	Reviews    []domain.Review      `json:"reviews"`
	Rating     domain.RatingSummary `json:"aggregateRating"`
	Pagination httpx.Pagination     `json:"pagination"`
}

func (s *Service) Reviews(ctx context.Context, slug string, page httpx.Page) (*ReviewPage, error) {
	p, err := s.store.ProductBySlug(ctx, slug, true)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("product %s: %w", slug, domain.ErrNotFound)
	}

	reviews, total, err := s.store.ListReviews(ctx, p.ID, page)
	if err != nil {
		return nil, err
	}
	rating, err := s.store.RatingSummary(ctx, p.ID)
	if err != nil {
		return nil, err
	}

	return &ReviewPage{Reviews: reviews, Rating: rating, Pagination: page.Result(total)}, nil
}

type ReviewInput struct {
	Rating  int    `json:"rating"`
	Title   string `json:"title"`
	Comment string `json:"comment"`
}

func (in ReviewInput) Validate() error {
	switch {
	case in.Rating < 1 || in.Rating > 5:
		return domain.Invalid("rating", "Rating must be between 1 and 5")
	case len([]rune(in.Title)) > 200:
		return domain.Invalid("title", "Title must be at most 200 characters")
	case len([]rune(in.Comment)) > 2000:
		return domain.Invalid("comment", "Comment must be at most 2000 characters")
	}
	return nil
}

// CreateReview records a review of an active product. It is marked verified
// when the user has a delivered order containing the product.
func (s *Service) CreateReview(ctx context.Context, userID, slug string, in ReviewInput) (*domain.Review, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	p, err := s.store.ProductBySlug(ctx, slug, false)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("product %s: %w", slug, domain.ErrNotFound)
	}

	verified, err := s.store.HasDeliveredPurchase(ctx, userID, p.ID)
	if err != nil {
		return nil, fmt.Errorf("check purchase: %w", err)
	}

	rv := &domain.Review{
		UserID:     userID,
		ProductID:  p.ID,
		Rating:     in.Rating,
		Title:      in.Title,
		Comment:    in.Comment,
		IsApproved: true,
		IsVerified: verified,
	}
	if err := s.store.CreateReview(ctx, rv); err != nil {
		return nil, err
	}
	return rv, nil
}

func (s *Service) AdminListProducts(ctx context.Context, f ProductFilter, page httpx.Page) ([]domain.Product, int, error) {
	f.IncludeInactive = true
	return s.store.ListProducts(ctx, f, page)
}

func (s *Service) CreateProduct(ctx context.Context, in ProductInput) (*domain.Product, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	id, err := s.store.CreateProduct(ctx, in)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, categoryTreeKey)
	return s.store.ProductByID(ctx, id)
}

// UpdateProduct overwrites a product. Setting IsActive to false is the
// soft delete: the product disappears from the storefront but keeps its
// order history.
func (s *Service) UpdateProduct(ctx context.Context, id string, in ProductInput) (*domain.Product, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	before, err := s.store.ProductByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if before == nil {
		return nil, fmt.Errorf("product %s: %w", id, domain.ErrNotFound)
	}

	found, err := s.store.UpdateProduct(ctx, id, in)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("product %s: %w", id, domain.ErrNotFound)
	}

	s.invalidate(ctx, productKey(before.Slug), productKey(in.Slug), categoryTreeKey)
	return s.store.ProductByID(ctx, id)
}

// InvalidateProduct drops cached state for a product whose stock or
// visibility changed outside this service.
func (s *Service) InvalidateProduct(ctx context.Context, slug string) {
	s.invalidate(ctx, productKey(slug))
}

func (s *Service) cacheGet(ctx context.Context, key string, dst any) bool {
	if s.cache == nil {
		return false
	}
	ok, err := s.cache.Get(ctx, key, dst)
	if err != nil {
		s.logger.Warn("cache read failed", "key", key, "error", err)
		return false
	}
	return ok
}

func (s *Service) cacheSet(ctx context.Context, key string, v any, ttl time.Duration) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, v, ttl); err != nil {
		s.logger.Warn("cache write failed", "key", key, "error", err)
	}
}

func (s *Service) invalidate(ctx context.Context, keys ...string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, keys...); err != nil {
		s.logger.Warn("cache invalidation failed", "keys", keys, "error", err)
	}
}
