package inventory

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/kadriissam365-ops/artisanat-marocain/internal/domain"
	"github.com/kadriissam365-ops/artisanat-marocain/internal/httpx"
)

type Store interface {
	GetStock(ctx context.Context, productID string) (*domain.StockLevel, error)
	Adjust(ctx context.Context, productID string, delta int) (*domain.StockLevel, error)
	ListLowStock(ctx context.Context) ([]domain.StockLevel, error)
}

// Invalidator drops cached product state after a stock change.
type Invalidator interface {
	InvalidateProduct(ctx context.Context, slug string)
}

type Handler struct {
	repo        Store
	invalidator Invalidator
	logger      *slog.Logger
}

func NewHandler(repo Store, invalidator Invalidator, logger *slog.Logger) *Handler {
	return &Handler{
		repo:        repo,
		invalidator: invalidator,
		logger:      logger,
	}
}

func (h *Handler) HandleListLowStock(w http.ResponseWriter, r *http.Request) {
	items, err := h.repo.ListLowStock(r.Context())
	if err != nil {
		h.logger.Error("failed to list low stock", "error", err)
		httpx.WriteError(w, h.logger, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("low stock listed", "count", len(items))
	httpx.WriteJSON(w, h.logger, http.StatusOK, map[string]any{"products": items})
}

type adjustRequest struct {
	Delta int `json:"delta"`
}

func (h *Handler) HandleAdjust(w http.ResponseWriter, r *http.Request) {
	productID := r.PathValue("id")
	if productID == "" {
		httpx.WriteError(w, h.logger, http.StatusBadRequest, "missing product id")
		return
	}

	var req adjustRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, h.logger, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Delta == 0 {
		httpx.WriteError(w, h.logger, http.StatusBadRequest, "delta must not be zero")
		return
	}

	stock, err := h.repo.Adjust(r.Context(), productID, req.Delta)
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientStock) {
			httpx.WriteError(w, h.logger, http.StatusBadRequest, "Stock cannot go below zero")
			return
		}
		h.logger.Error("failed to adjust stock", "error", err, "product_id", productID, "delta", req.Delta)
		httpx.WriteError(w, h.logger, http.StatusInternalServerError, "internal server error")
		return
	}

	if stock == nil {
		httpx.WriteError(w, h.logger, http.StatusNotFound, "Product not found")
		return
	}

	if h.invalidator != nil {
		h.invalidator.InvalidateProduct(r.Context(), stock.Slug)
	}

	h.logger.Info("stock adjusted", "product_id", productID, "delta", req.Delta, "stock", stock.Stock)
	httpx.WriteJSON(w, h.logger, http.StatusOK, map[string]any{"stock": stock, "isLow": stock.IsLow()})
}
