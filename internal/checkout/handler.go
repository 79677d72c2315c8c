package checkout

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/kadriissam365-ops/artisanat-marocain/internal/auth"
	"github.com/kadriissam365-ops/artisanat-marocain/internal/httpx"
	"github.com/kadriissam365-ops/artisanat-marocain/internal/orders"
	"github.com/kadriissam365-ops/artisanat-marocain/internal/payment"
	"github.com/kadriissam365-ops/artisanat-marocain/internal/telemetry"
)

const maxWebhookBody = 64 << 10

type Handler struct {
	service *Service
	gateway payment.Gateway
	metrics *telemetry.Metrics
	logger  *slog.Logger
}

func NewHandler(service *Service, gateway payment.Gateway, metrics *telemetry.Metrics, logger *slog.Logger) *Handler {
	if metrics == nil {
		metrics = telemetry.NopMetrics()
	}
	return &Handler{
		service: service,
		gateway: gateway,
		metrics: metrics,
		logger:  logger,
	}
}

func (h *Handler) HandleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req SessionRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, h.logger, err, "invalid checkout body")
		return
	}

	userID := auth.UserID(r)
	url, err := h.service.CreateSession(r.Context(), userID, req)
	if err != nil {
		if errors.Is(err, orders.ErrAddressNotFound) {
			httpx.WriteError(w, h.logger, http.StatusNotFound, "Shipping address not found")
			return
		}
		httpx.Error(w, h.logger, err, "failed to create checkout session", "user_id", userID)
		return
	}

	httpx.WriteJSON(w, h.logger, http.StatusOK, map[string]string{"sessionUrl": url})
}

func (h *Handler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		httpx.WriteError(w, h.logger, http.StatusBadRequest, "invalid request body")
		return
	}

	event, err := h.gateway.ParseWebhook(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		h.logger.Warn("rejected webhook", "error", err)
		h.metrics.WebhookEvent(r.Context(), "unknown", "invalid_signature")
		httpx.WriteError(w, h.logger, http.StatusBadRequest, "Invalid signature")
		return
	}

	outcome, err := h.service.HandleEvent(r.Context(), event)
	if err != nil {
		h.metrics.WebhookEvent(r.Context(), string(event.Type), "error")
		h.logger.Error("failed to handle webhook", "error", err, "event_id", event.ID, "type", event.Type)
		httpx.WriteError(w, h.logger, http.StatusInternalServerError, "internal server error")
		return
	}

	h.metrics.WebhookEvent(r.Context(), string(event.Type), string(outcome))
	h.logger.Info("webhook handled", "event_id", event.ID, "type", event.Type, "outcome", outcome)
	httpx.WriteJSON(w, h.logger, http.StatusOK, map[string]bool{"received": true})
}
