package cart

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/kadriissam365-ops/artisanat-marocain/internal/auth"
	"github.com/kadriissam365-ops/artisanat-marocain/internal/domain"
	"github.com/kadriissam365-ops/artisanat-marocain/internal/httpx"
)

type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	cart, err := h.service.Get(r.Context(), auth.UserID(r))
	if err != nil {
		h.logger.Error("failed to get cart", "error", err)
		httpx.WriteError(w, h.logger, http.StatusInternalServerError, "internal server error")
		return
	}

	httpx.WriteJSON(w, h.logger, http.StatusOK, map[string]any{"cart": cart})
}

type addItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  *int   `json:"quantity"`
}

func (h *Handler) HandleAddItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, h.logger, err, "invalid cart item body")
		return
	}
	qty := 1
	if req.Quantity != nil {
		qty = *req.Quantity
	}

	userID := auth.UserID(r)
	item, err := h.service.AddItem(r.Context(), userID, req.ProductID, qty)
	if err != nil {
		h.fail(w, err, "Product not found", "failed to add cart item", "user_id", userID, "product_id", req.ProductID)
		return
	}

	h.logger.Info("cart item added", "user_id", userID, "product_id", req.ProductID, "quantity", item.Quantity)
	httpx.WriteJSON(w, h.logger, http.StatusCreated, map[string]any{"cartItem": item})
}

type updateItemRequest struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) HandleUpdateItem(w http.ResponseWriter, r *http.Request) {
	itemID := r.PathValue("id")

	var req updateItemRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, h.logger, err, "invalid cart item body")
		return
	}

	item, err := h.service.UpdateQuantity(r.Context(), auth.UserID(r), itemID, req.Quantity)
	if err != nil {
		h.fail(w, err, "Cart item not found", "failed to update cart item", "item_id", itemID)
		return
	}

	httpx.WriteJSON(w, h.logger, http.StatusOK, map[string]any{"cartItem": item})
}

func (h *Handler) HandleDeleteItem(w http.ResponseWriter, r *http.Request) {
	itemID := r.PathValue("id")

	if err := h.service.RemoveItem(r.Context(), auth.UserID(r), itemID); err != nil {
		h.fail(w, err, "Cart item not found", "failed to delete cart item", "item_id", itemID)
		return
	}

	httpx.WriteJSON(w, h.logger, http.StatusOK, map[string]bool{"success": true})
}

type syncRequest struct {
	Items []domain.CartLine `json:"items"`
}

func (h *Handler) HandleSync(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, h.logger, err, "invalid cart sync body")
		return
	}

	userID := auth.UserID(r)
	cart, err := h.service.Sync(r.Context(), userID, req.Items)
	if err != nil {
		h.fail(w, err, "Product not found", "failed to sync cart", "user_id", userID)
		return
	}

	h.logger.Info("cart synced", "user_id", userID, "lines", len(cart.Items))
	httpx.WriteJSON(w, h.logger, http.StatusOK, map[string]any{"cart": cart})
}

func (h *Handler) fail(w http.ResponseWriter, err error, notFound, msg string, args ...any) {
	if errors.Is(err, domain.ErrNotFound) {
		httpx.WriteError(w, h.logger, http.StatusNotFound, notFound)
		return
	}
	httpx.Error(w, h.logger, err, msg, args...)
}
