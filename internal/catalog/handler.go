package catalog

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

func (h *Handler) HandleListProducts(w http.ResponseWriter, r *http.Request) {
	f, err := ParseFilter(r.URL.Query())
	if err != nil {
		httpx.Error(w, h.logger, err, "invalid product filter")
		return
	}
	page := httpx.ParsePage(r)

	products, total, err := h.service.ListProducts(r.Context(), f, page)
	if err != nil {
		h.logger.Error("failed to list products", "error", err)
		httpx.WriteError(w, h.logger, http.StatusInternalServerError, "internal server error")
		return
	}

	httpx.WriteJSON(w, h.logger, http.StatusOK, map[string]any{
		"products":   products,
		"pagination": page.Result(total),
	})
}

func (h *Handler) HandleFeatured(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.FeaturedProducts(r.Context())
	if err != nil {
		h.logger.Error("failed to list featured products", "error", err)
		httpx.WriteError(w, h.logger, http.StatusInternalServerError, "internal server error")
		return
	}

	httpx.WriteJSON(w, h.logger, http.StatusOK, map[string]any{"products": products})
}

func (h *Handler) HandleGetProduct(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")

	detail, err := h.service.ProductDetail(r.Context(), slug)
	if err != nil {
		h.fail(w, err, "Product not found", "failed to get product", "slug", slug)
		return
	}

	httpx.WriteJSON(w, h.logger, http.StatusOK, detail)
}

func (h *Handler) HandleListCategories(w http.ResponseWriter, r *http.Request) {
	tree, err := h.service.CategoryTree(r.Context())
	if err != nil {
		h.logger.Error("failed to list categories", "error", err)
		httpx.WriteError(w, h.logger, http.StatusInternalServerError, "internal server error")
		return
	}

	httpx.WriteJSON(w, h.logger, http.StatusOK, map[string]any{"categories": tree})
}

func (h *Handler) HandleGetCategory(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")

	f, err := ParseFilter(r.URL.Query())
	if err != nil {
		httpx.Error(w, h.logger, err, "invalid product filter")
		return
	}

	page, err := h.service.CategoryProducts(r.Context(), slug, f, httpx.ParsePage(r))
	if err != nil {
		h.fail(w, err, "Category not found", "failed to get category", "slug", slug)
		return
	}

	httpx.WriteJSON(w, h.logger, http.StatusOK, page)
}

func (h *Handler) HandleListReviews(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")

	page, err := h.service.Reviews(r.Context(), slug, httpx.ParsePage(r))
	if err != nil {
		h.fail(w, err, "Product not found", "failed to list reviews", "slug", slug)
		return
	}

	httpx.WriteJSON(w, h.logger, http.StatusOK, page)
}

func (h *Handler) HandleCreateReview(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	userID := auth.UserID(r)

	var in ReviewInput
	if err := httpx.Decode(r, &in); err != nil {
		httpx.Error(w, h.logger, err, "invalid review body")
		return
	}

	review, err := h.service.CreateReview(r.Context(), userID, slug, in)
	if errors.Is(err, domain.ErrDuplicate) {
		httpx.WriteError(w, h.logger, http.StatusConflict, "You have already reviewed this product")
		return
	}
	if err != nil {
		h.fail(w, err, "Product not found", "failed to create review", "slug", slug, "user_id", userID)
		return
	}

	h.logger.Info("review created", "product_id", review.ProductID, "user_id", userID, "verified", review.IsVerified)
	httpx.WriteJSON(w, h.logger, http.StatusCreated, map[string]any{"review": review})
}

func (h *Handler) fail(w http.ResponseWriter, err error, notFound, msg string, args ...any) {
	if errors.Is(err, domain.ErrNotFound) {
		httpx.WriteError(w, h.logger, http.StatusNotFound, notFound)
		return
	}
	httpx.Error(w, h.logger, err, msg, args...)
}
