package orders

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

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req PlaceOrderRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, h.logger, err, "invalid order body")
		return
	}

	userID := auth.UserID(r)
	order, err := h.service.PlaceOrder(r.Context(), userID, req)
	if err != nil {
		h.fail(w, err, "failed to create order", "user_id", userID)
		return
	}

	httpx.WriteJSON(w, h.logger, http.StatusCreated, map[string]any{"order": order})
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		httpx.WriteError(w, h.logger, http.StatusBadRequest, "missing order id")
		return
	}

	order, err := h.service.Get(r.Context(), auth.UserID(r), id)
	if err != nil {
		h.fail(w, err, "failed to get order", "order_id", id)
		return
	}

	httpx.WriteJSON(w, h.logger, http.StatusOK, map[string]any{"order": order})
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	page := httpx.ParsePage(r)

	orders, total, err := h.service.List(r.Context(), auth.UserID(r), page)
	if err != nil {
		httpx.Error(w, h.logger, err, "failed to list orders")
		return
	}

	h.logger.Info("orders listed", "count", len(orders))
	httpx.WriteJSON(w, h.logger, http.StatusOK, map[string]any{
		"orders":     orders,
		"pagination": page.Result(total),
	})
}

func (h *Handler) fail(w http.ResponseWriter, err error, msg string, args ...any) {
	switch {
	case errors.Is(err, ErrAddressNotFound):
		httpx.WriteError(w, h.logger, http.StatusNotFound, "Shipping address not found")
	case errors.Is(err, domain.ErrNotFound):
		httpx.WriteError(w, h.logger, http.StatusNotFound, "Order not found")
	default:
		httpx.Error(w, h.logger, err, msg, args...)
	}
}
