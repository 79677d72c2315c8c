package addresses

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

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(r.Context(), auth.UserID(r))
	if err != nil {
		httpx.Error(w, h.logger, err, "failed to list addresses")
		return
	}
	httpx.WriteJSON(w, h.logger, http.StatusOK, map[string]any{"addresses": list})
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var in Input
	if err := httpx.Decode(r, &in); err != nil {
		httpx.Error(w, h.logger, err, "invalid address body")
		return
	}

	userID := auth.UserID(r)
	a, err := h.service.Create(r.Context(), userID, in)
	if err != nil {
		httpx.Error(w, h.logger, err, "failed to create address", "user_id", userID)
		return
	}

	h.logger.Info("address created", "user_id", userID, "address_id", a.ID, "is_default", a.IsDefault)
	httpx.WriteJSON(w, h.logger, http.StatusCreated, map[string]any{"address": a})
}

func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var in Input
	if err := httpx.Decode(r, &in); err != nil {
		httpx.Error(w, h.logger, err, "invalid address body")
		return
	}

	a, err := h.service.Update(r.Context(), auth.UserID(r), id, in)
	if err != nil {
		h.fail(w, err, "failed to update address", "address_id", id)
		return
	}
	httpx.WriteJSON(w, h.logger, http.StatusOK, map[string]any{"address": a})
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if err := h.service.Delete(r.Context(), auth.UserID(r), id); err != nil {
		h.fail(w, err, "failed to delete address", "address_id", id)
		return
	}
	httpx.WriteJSON(w, h.logger, http.StatusOK, map[string]bool{"success": true})
}

func (h *Handler) fail(w http.ResponseWriter, err error, msg string, args ...any) {
	if errors.Is(err, domain.ErrNotFound) {
		httpx.WriteError(w, h.logger, http.StatusNotFound, "Address not found")
		return
	}
	if errors.Is(err, domain.ErrDuplicate) {
		httpx.WriteError(w, h.logger, http.StatusConflict, "Another default address was saved at the same time")
		return
	}
	httpx.Error(w, h.logger, err, msg, args...)
}
