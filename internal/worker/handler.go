package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kadriissam365-ops/artisanat-marocain/internal/domain"
	"github.com/kadriissam365-ops/artisanat-marocain/internal/email"
)

type Sender interface {
	Send(ctx context.Context, msg email.Message) error
}

// NotificationHandler turns order events into customer and admin mail.
type NotificationHandler struct {
	sender     Sender
	adminEmail string
	logger     *slog.Logger
}

func NewNotificationHandler(sender Sender, adminEmail string, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{
		sender:     sender,
		adminEmail: adminEmail,
		logger:     logger,
	}
}

func (h *NotificationHandler) Handle(ctx context.Context, payload []byte) error {
	var event domain.OrderEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		// A message that cannot be decoded will never succeed; skip it.
		h.logger.Error("dropping malformed order event", "error", err)
		return nil
	}

	h.logger.Info("processing order event", "type", event.Type, "order_id", event.OrderID, "order_number", event.OrderNumber)

	switch event.Type {
	case domain.OrderEventPlaced:
		return h.handlePlaced(ctx, event)
	case domain.OrderEventRefunded:
		return h.notifyCustomer(ctx, event, refundNotice(event))
	default:
		h.logger.Warn("ignoring unknown order event", "type", event.Type, "order_id", event.OrderID)
		return nil
	}
}

func (h *NotificationHandler) handlePlaced(ctx context.Context, event domain.OrderEvent) error {
	if err := h.notifyCustomer(ctx, event, confirmation(event)); err != nil {
		return err
	}

	low := lowStockItems(event)
	if len(low) == 0 || h.adminEmail == "" {
		return nil
	}
	if err := h.sender.Send(ctx, lowStockAlert(h.adminEmail, event, low)); err != nil {
		h.logger.Error("failed to send low stock alert", "error", err, "order_id", event.OrderID)
		return fmt.Errorf("send low stock alert: %w", err)
	}
	h.logger.Info("low stock alert sent", "order_id", event.OrderID, "products", len(low))
	return nil
}

func (h *NotificationHandler) notifyCustomer(ctx context.Context, event domain.OrderEvent, msg email.Message) error {
	if event.CustomerEmail == "" {
		h.logger.Warn("order event without customer email", "order_id", event.OrderID)
		return nil
	}
	if err := h.sender.Send(ctx, msg); err != nil {
		h.logger.Error("failed to send customer email", "error", err, "order_id", event.OrderID, "type", event.Type)
		return fmt.Errorf("send %s email: %w", event.Type, err)
	}
	return nil
}

func lowStockItems(event domain.OrderEvent) []domain.OrderEventItem {
	var low []domain.OrderEventItem
	for _, item := range event.Items {
		if item.RemainingStock <= item.LowStockAt {
			low = append(low, item)
		}
	}
	return low
}

func confirmation(event domain.OrderEvent) email.Message {
	var b strings.Builder
	fmt.Fprintf(&b, "Merci pour votre commande %s.\n\n", event.OrderNumber)
	for _, item := range event.Items {
		fmt.Fprintf(&b, "- %d x %s\n", item.Quantity, item.ProductName)
	}
	fmt.Fprintf(&b, "\nTotal: %s %s\n", event.Total.StringFixed(2), event.Currency)
	if event.PaymentStatus == domain.PaymentStatusPaid {
		b.WriteString("Paiement reçu.\n")
	}

	return email.Message{
		To:      event.CustomerEmail,
		Subject: "Confirmation de commande " + event.OrderNumber,
		Body:    b.String(),
	}
}

func refundNotice(event domain.OrderEvent) email.Message {
	return email.Message{
		To:      event.CustomerEmail,
		Subject: "Remboursement de la commande " + event.OrderNumber,
		Body: fmt.Sprintf("Votre commande %s a été remboursée (%s %s).",
			event.OrderNumber, event.Total.StringFixed(2), event.Currency),
	}
}

func lowStockAlert(to string, event domain.OrderEvent, items []domain.OrderEventItem) email.Message {
	var b strings.Builder
	fmt.Fprintf(&b, "Stock bas après la commande %s:\n\n", event.OrderNumber)
	for _, item := range items {
		fmt.Fprintf(&b, "- %s: %d restant(s) (seuil %d)\n", item.ProductName, item.RemainingStock, item.LowStockAt)
	}

	return email.Message{
		To:      to,
		Subject: fmt.Sprintf("Alerte stock bas: %d produit(s)", len(items)),
		Body:    b.String(),
	}
}
