package localstore

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

type WishlistItem struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	Slug      string `json:"slug"`
	ImageURL  string `json:"imageUrl,omitempty"`
}

type Wishlist struct {
	mu      sync.Mutex
	storage Storage
	key     string
	items   []WishlistItem
}

func NewWishlist(ctx context.Context, storage Storage, key string) (*Wishlist, error) {
	w := &Wishlist{storage: storage, key: key, items: []WishlistItem{}}
	if err := load(ctx, storage, key, &w.items); err != nil {
		return nil, fmt.Errorf("load wishlist: %w", err)
	}
	if w.items == nil {
		w.items = []WishlistItem{}
	}
	return w, nil
}

func (w *Wishlist) index(productID string) int {
	return slices.IndexFunc(w.items, func(i WishlistItem) bool { return i.ProductID == productID })
}

func (w *Wishlist) commit(ctx context.Context, next []WishlistItem) error {
	if err := save(ctx, w.storage, w.key, next); err != nil {
		return fmt.Errorf("save wishlist: %w", err)
	}
	w.items = next
	return nil
}

// Add is a no-op when the product is already listed.
func (w *Wishlist) Add(ctx context.Context, item WishlistItem) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.index(item.ProductID) >= 0 {
		return nil
	}
	return w.commit(ctx, append(slices.Clone(w.items), item))
}

func (w *Wishlist) Remove(ctx context.Context, productID string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	i := w.index(productID)
	if i < 0 {
		return nil
	}
	return w.commit(ctx, slices.Delete(slices.Clone(w.items), i, i+1))
}

// Toggle adds or removes item and reports whether it is now listed.
func (w *Wishlist) Toggle(ctx context.Context, item WishlistItem) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if i := w.index(item.ProductID); i >= 0 {
		return false, w.commit(ctx, slices.Delete(slices.Clone(w.items), i, i+1))
	}
	if err := w.commit(ctx, append(slices.Clone(w.items), item)); err != nil {
		return false, err
	}
	return true, nil
}

func (w *Wishlist) Contains(productID string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.index(productID) >= 0
}

func (w *Wishlist) Clear(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.commit(ctx, []WishlistItem{})
}

func (w *Wishlist) Items() []WishlistItem {
	w.mu.Lock()
	defer w.mu.Unlock()
	return slices.Clone(w.items)
}
