package admin

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/kadriissam365-ops/artisanat-marocain/internal/catalog"
	"github.com/kadriissam365-ops/artisanat-marocain/internal/domain"
	"github.com/kadriissam365-ops/artisanat-marocain/internal/httpx"
	"github.com/kadriissam365-ops/artisanat-marocain/internal/orders"
)

type Orders interface {
	OrderLister
	UpdateStatus(ctx context.Context, id string, u orders.StatusUpdate) (*domain.Order, error)
}

type Products interface {
	AdminListProducts(ctx context.Context, f catalog.ProductFilter, page httpx.Page) ([]domain.Product, int, error)
	CreateProduct(ctx context.Context, in catalog.ProductInput) (*domain.Product, error)
	UpdateProduct(ctx context.Context, id string, in catalog.ProductInput) (*domain.Product, error)
}

type Handler struct {
	counter  Counter
	orders   Orders
	products Products
	logger   *slog.Logger
}

func NewHandler(counter Counter, orders Orders, products Products, logger *slog.Logger) *Handler {
	return &Handler{
		counter:  counter,
		orders:   orders,
		products: products,
		logger:   logger,
	}
}

func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := CollectStats(r.Context(), h.counter, h.orders)
	if err != nil {
		h.logger.Error("failed to collect stats", "error", err)
		httpx.WriteError(w, h.logger, http.StatusInternalServerError, "internal server error")
		return
	}

	httpx.WriteJSON(w, h.logger, http.StatusOK, stats)
}

func (h *Handler) HandleListOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := orders.Filter{
		Status:        domain.OrderStatus(q.Get("status")),
		PaymentStatus: domain.PaymentStatus(q.Get("paymentStatus")),
	}
	page := httpx.ParsePage(r)

	list, total, err := h.orders.AdminList(r.Context(), f, page)
	if err != nil {
		httpx.Error(w, h.logger, err, "failed to list orders")
		return
	}

	httpx.WriteJSON(w, h.logger, http.StatusOK, map[string]any{
		"orders":     list,
		"pagination": page.Result(total),
	})
}

type statusRequest struct {
	Status         domain.OrderStatus `json:"status"`
	TrackingNumber *string            `json:"trackingNumber"`
	AdminNotes     *string            `json:"adminNotes"`
}

func (h *Handler) HandleUpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req statusRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, h.logger, err, "invalid status body")
		return
	}

	order, err := h.orders.UpdateStatus(r.Context(), id, orders.StatusUpdate{
		Status:         req.Status,
		TrackingNumber: req.TrackingNumber,
		AdminNotes:     req.AdminNotes,
	})
	if err != nil {
		h.fail(w, err, "Order not found", "failed to update order status", "order_id", id)
		return
	}

	httpx.WriteJSON(w, h.logger, http.StatusOK, map[string]any{"order": order})
}

func (h *Handler) HandleListProducts(w http.ResponseWriter, r *http.Request) {
	f, err := catalog.ParseFilter(r.URL.Query())
	if err != nil {
		httpx.Error(w, h.logger, err, "invalid product filter")
		return
	}
	page := httpx.ParsePage(r)

	products, total, err := h.products.AdminListProducts(r.Context(), f, page)
	if err != nil {
		httpx.Error(w, h.logger, err, "failed to list products")
		return
	}

	httpx.WriteJSON(w, h.logger, http.StatusOK, map[string]any{
		"products":   products,
		"pagination": page.Result(total),
	})
}

func (h *Handler) HandleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var in catalog.ProductInput
	if err := httpx.Decode(r, &in); err != nil {
		httpx.Error(w, h.logger, err, "invalid product body")
		return
	}

	product, err := h.products.CreateProduct(r.Context(), in)
	if err != nil {
		h.fail(w, err, "Category not found", "failed to create product", "slug", in.Slug)
		return
	}

	h.logger.Info("product created", "product_id", product.ID, "slug", product.Slug)
	httpx.WriteJSON(w, h.logger, http.StatusCreated, map[string]any{"product": product})
}

func (h *Handler) HandleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var in catalog.ProductInput
	if err := httpx.Decode(r, &in); err != nil {
		httpx.Error(w, h.logger, err, "invalid product body")
		return
	}

	product, err := h.products.UpdateProduct(r.Context(), id, in)
	if err != nil {
		h.fail(w, err, "Product not found", "failed to update product", "product_id", id)
		return
	}

	h.logger.Info("product updated", "product_id", product.ID, "active", product.IsActive)
	httpx.WriteJSON(w, h.logger, http.StatusOK, map[string]any{"product": product})
}

func (h *Handler) fail(w http.ResponseWriter, err error, notFound, msg string, args ...any) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		httpx.WriteError(w, h.logger, http.StatusNotFound, notFound)
	case errors.Is(err, domain.ErrDuplicate):
		httpx.WriteError(w, h.logger, http.StatusConflict, "A product with this slug or SKU already exists")
	default:
		httpx.Error(w, h.logger, err, msg, args...)
	}
}
