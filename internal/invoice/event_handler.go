package invoice

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/reckot/payments/internal/core/events"
)

type EventHandler struct {
	service *Service
	logger  *slog.Logger
}

func NewEventHandler(service *Service, logger *slog.Logger) *EventHandler {
	return &EventHandler{
		service: service,
		logger:  logger,
	}
}

// HandlePaymentConfirmed issues the invoice for a freshly confirmed payment.
// Errors are logged and returned to the bus only; they never reach the
// confirmation path.
func (h *EventHandler) HandlePaymentConfirmed(ctx context.Context, event events.Event) error {
	confirmed, ok := event.(*events.PaymentConfirmedEvent)
	if !ok {
		h.logger.Error("invalid event type for invoice handler", "event_type", event.EventType())
		return fmt.Errorf("expected PaymentConfirmedEvent, got %T", event)
	}

	inv, err := h.service.IssueForPayment(
		confirmed.PaymentID,
		confirmed.Reference,
		confirmed.Amount,
		confirmed.Currency,
		confirmed.Provider,
		confirmed.CustomerEmail,
	)
	if err != nil {
		h.logger.Error("failed to issue invoice for confirmed payment",
			"error", err,
			"payment_id", confirmed.PaymentID,
			"reference", confirmed.Reference,
			"event_id", confirmed.EventID())
		return fmt.Errorf("invoice issuance failed for payment %d: %w", confirmed.PaymentID, err)
	}

	h.logger.Info("invoice issued for confirmed payment",
		"number", inv.Number,
		"payment_id", confirmed.PaymentID,
		"event_id", confirmed.EventID())
	return nil
}

func (h *EventHandler) RegisterEventHandlers(eventBus *events.EventBus) {
	eventBus.Subscribe(events.EventTypePaymentConfirmed, h.HandlePaymentConfirmed)

	h.logger.Info("invoice event handlers registered",
		"handlers", []string{events.EventTypePaymentConfirmed})
}
