package cart

import (
	"context"
	"fmt"

	"github.com/kadriissam365-ops/artisanat-marocain/internal/domain"
)

type Store interface {
	GetCart(ctx context.Context, userID string) (*domain.Cart, error)
	GetProduct(ctx context.Context, productID string) (*domain.CartProduct, error)
	AddItem(ctx context.Context, userID, productID string, qty int) (*domain.CartItem, error)
	GetItem(ctx context.Context, userID, itemID string) (*domain.CartItem, error)
	SetQuantity(ctx context.Context, itemID string, qty int) error
	DeleteItem(ctx context.Context, itemID string) error
	Sync(ctx context.Context, userID string, lines []domain.CartLine) error
}

type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

func (s *Service) Get(ctx context.Context, userID string) (*domain.Cart, error) {
	cart, err := s.store.GetCart(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}
	if cart == nil {
		return &domain.Cart{Items: []domain.CartItem{}}, nil
	}
	return cart, nil
}

func validQuantity(qty int) error {
	if qty < 1 || qty > domain.MaxLineQuantity {
		return domain.Invalid("quantity", fmt.Sprintf("Quantity must be between 1 and %d", domain.MaxLineQuantity))
	}
	return nil
}

// checkLine reports whether a line holding qty units of p may exist.
func checkLine(p *domain.CartProduct, qty int) error {
	if !p.IsActive {
		return fmt.Errorf("product %s: %w", p.ID, domain.ErrNotFound)
	}
	if qty > domain.MaxLineQuantity {
		return domain.Invalid("quantity", fmt.Sprintf("Quantity must be between 1 and %d", domain.MaxLineQuantity))
	}
	if p.Stock < qty {
		return &domain.StockError{ProductID: p.ID, ProductName: p.Name, Err: domain.ErrInsufficientStock}
	}
	return nil
}

// AddItem requires an active product with at least qty units in stock. The
// store rechecks the line's total after incrementing it.
func (s *Service) AddItem(ctx context.Context, userID, productID string, qty int) (*domain.CartItem, error) {
	if productID == "" {
		return nil, domain.Invalid("productId", "productId is required")
	}
	if err := validQuantity(qty); err != nil {
		return nil, err
	}

	p, err := s.store.GetProduct(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	if p == nil || !p.IsActive {
		return nil, fmt.Errorf("product %s: %w", productID, domain.ErrNotFound)
	}
	if p.Stock < qty {
		return nil, &domain.StockError{ProductID: p.ID, ProductName: p.Name, Err: domain.ErrInsufficientStock}
	}

	return s.store.AddItem(ctx, userID, productID, qty)
}

func (s *Service) UpdateQuantity(ctx context.Context, userID, itemID string, qty int) (*domain.CartItem, error) {
	if err := validQuantity(qty); err != nil {
		return nil, err
	}

	item, err := s.ownedItem(ctx, userID, itemID)
	if err != nil {
		return nil, err
	}
	if item.Product.Stock < qty {
		return nil, &domain.StockError{ProductID: item.ProductID, ProductName: item.Product.Name, Err: domain.ErrInsufficientStock}
	}

	if err := s.store.SetQuantity(ctx, itemID, qty); err != nil {
		return nil, fmt.Errorf("update cart item: %w", err)
	}
	item.Quantity = qty
	return item, nil
}

func (s *Service) RemoveItem(ctx context.Context, userID, itemID string) error {
	if _, err := s.ownedItem(ctx, userID, itemID); err != nil {
		return err
	}
	if err := s.store.DeleteItem(ctx, itemID); err != nil {
		return fmt.Errorf("delete cart item: %w", err)
	}
	return nil
}

// ownedItem treats another user's item as missing.
func (s *Service) ownedItem(ctx context.Context, userID, itemID string) (*domain.CartItem, error) {
	item, err := s.store.GetItem(ctx, userID, itemID)
	if err != nil {
		return nil, fmt.Errorf("get cart item: %w", err)
	}
	if item == nil {
		return nil, fmt.Errorf("cart item %s: %w", itemID, domain.ErrNotFound)
	}
	return item, nil
}

// Sync replaces the server cart with lines. Repeated product ids are merged.
func (s *Service) Sync(ctx context.Context, userID string, lines []domain.CartLine) (*domain.Cart, error) {
	merged, err := MergeLines(lines)
	if err != nil {
		return nil, err
	}
	if err := s.store.Sync(ctx, userID, merged); err != nil {
		return nil, err
	}
	return s.Get(ctx, userID)
}

// MergeLines folds duplicate product ids together, preserving first-seen
// order, and validates the resulting quantities.
func MergeLines(lines []domain.CartLine) ([]domain.CartLine, error) {
	index := make(map[string]int, len(lines))
	merged := make([]domain.CartLine, 0, len(lines))

	for _, l := range lines {
		if l.ProductID == "" {
			return nil, domain.Invalid("productId", "productId is required")
		}
		if i, ok := index[l.ProductID]; ok {
			merged[i].Quantity += l.Quantity
			continue
		}
		index[l.ProductID] = len(merged)
		merged = append(merged, l)
	}

	for _, l := range merged {
		if err := validQuantity(l.Quantity); err != nil {
			return nil, err
		}
	}
	return merged, nil
}
