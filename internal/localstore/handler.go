package localstore

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kadriissam365-ops/artisanat-marocain/internal/domain"
	"github.com/kadriissam365-ops/artisanat-marocain/internal/httpx"
)

const (
	GuestIDHeader = "X-Guest-Id"
	GuestCartTTL  = 30 * 24 * time.Hour
)

// Catalog resolves product ids to their current view.
type Catalog interface {
	Products(ctx context.Context, ids []string) (map[string]*domain.CartProduct, error)
}

// GuestCartHandler serves carts of shoppers who have not signed in, keyed by
// a client-generated guest id. Only (productId, quantity) pairs are stored;
// names, prices and stock always come from the catalog.
type GuestCartHandler struct {
	storage Storage
	catalog Catalog
	logger  *slog.Logger
}

func NewGuestCartHandler(storage Storage, catalog Catalog, logger *slog.Logger) *GuestCartHandler {
	return &GuestCartHandler{storage: storage, catalog: catalog, logger: logger}
}

type guestCartResponse struct {
	Items      []Item                     `json:"items"`
	TotalItems int                        `json:"totalItems"`
	Subtotal   map[domain.Currency]string `json:"subtotal"`
}

func render(items []Item) guestCartResponse {
	resp := guestCartResponse{Items: items}
	mad, eur := decimal.Zero, decimal.Zero
	for _, item := range items {
		qty := decimal.NewFromInt(int64(item.Quantity))
		resp.TotalItems += item.Quantity
		mad = mad.Add(item.PriceMAD.Mul(qty))
		eur = eur.Add(item.PriceEUR.Mul(qty))
	}
	resp.Subtotal = map[domain.Currency]string{
		domain.CurrencyMAD: mad.StringFixed(2),
		domain.CurrencyEUR: eur.StringFixed(2),
	}
	return resp
}

func (h *GuestCartHandler) guestID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, err := uuid.Parse(r.Header.Get(GuestIDHeader))
	if err != nil {
		httpx.WriteError(w, h.logger, http.StatusBadRequest, "missing or invalid "+GuestIDHeader+" header")
		return "", false
	}
	return id.String(), true
}

// resolve builds the displayed lines from the catalog. With strict set,
// unknown, inactive and over-stock lines are errors; otherwise lines whose
// product is gone or inactive are left out of the view.
func (h *GuestCartHandler) resolve(ctx context.Context, lines []domain.CartLine, strict bool) ([]Item, error) {
	items := make([]Item, 0, len(lines))
	if len(lines) == 0 {
		return items, nil
	}

	ids := make([]string, len(lines))
	for i, l := range lines {
		ids[i] = l.ProductID
	}
	products, err := h.catalog.Products(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}

	for _, l := range lines {
		p, ok := products[l.ProductID]
		switch {
		case !ok && strict:
			return nil, fmt.Errorf("product %s: %w", l.ProductID, domain.ErrNotFound)
		case (!ok || !p.IsActive) && !strict:
			continue
		case strict && (!p.IsActive || p.Stock <= 0):
			return nil, &domain.StockError{ProductID: p.ID, ProductName: p.Name, Err: domain.ErrProductUnavailable}
		case strict && l.Quantity > p.Stock:
			return nil, &domain.StockError{ProductID: p.ID, ProductName: p.Name, Err: domain.ErrInsufficientStock}
		}
		items = append(items, Item{
			ProductID: p.ID,
			Name:      p.Name,
			Slug:      p.Slug,
			ImageURL:  p.ImageURL,
			PriceMAD:  p.PriceMAD,
			PriceEUR:  p.PriceEUR,
			Stock:     p.Stock,
			Quantity:  l.Quantity,
		})
	}
	return items, nil
}

func (h *GuestCartHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.guestID(w, r)
	if !ok {
		return
	}

	var lines []domain.CartLine
	if err := load(r.Context(), h.storage, id, &lines); err != nil {
		h.logger.Error("failed to load guest cart", "error", err, "guest_id", id)
		httpx.WriteError(w, h.logger, http.StatusInternalServerError, "internal server error")
		return
	}

	items, err := h.resolve(r.Context(), lines, false)
	if err != nil {
		httpx.Error(w, h.logger, err, "failed to resolve guest cart", "guest_id", id)
		return
	}
	httpx.WriteJSON(w, h.logger, http.StatusOK, map[string]any{"cart": render(items)})
}

type replaceRequest struct {
	Items []domain.CartLine `json:"items"`
}

// HandlePut replaces the guest cart. Any field other than productId and
// quantity in the request is ignored.
func (h *GuestCartHandler) HandlePut(w http.ResponseWriter, r *http.Request) {
	id, ok := h.guestID(w, r)
	if !ok {
		return
	}

	var req replaceRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, h.logger, err, "invalid guest cart body")
		return
	}

	seen := make(map[string]bool, len(req.Items))
	for _, l := range req.Items {
		if l.ProductID == "" || seen[l.ProductID] || l.Quantity < 1 || l.Quantity > domain.MaxLineQuantity {
			httpx.WriteError(w, h.logger, http.StatusBadRequest, "invalid cart items")
			return
		}
		seen[l.ProductID] = true
	}

	items, err := h.resolve(r.Context(), req.Items, true)
	if err != nil {
		if status, _ := httpx.StatusFor(err); status == http.StatusNotFound {
			httpx.WriteError(w, h.logger, http.StatusNotFound, "Product not found")
			return
		}
		httpx.Error(w, h.logger, err, "failed to resolve guest cart", "guest_id", id)
		return
	}

	if err := save(r.Context(), h.storage, id, req.Items); err != nil {
		h.logger.Error("failed to save guest cart", "error", err, "guest_id", id)
		httpx.WriteError(w, h.logger, http.StatusInternalServerError, "internal server error")
		return
	}

	httpx.WriteJSON(w, h.logger, http.StatusOK, map[string]any{"cart": render(items)})
}
