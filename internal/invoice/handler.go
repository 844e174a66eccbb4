package invoice

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"

	"github.com/reckot/payments/internal/core/datamodel/payment"
	"github.com/reckot/payments/internal/transport"
)

type PaymentResolver interface {
	GetByReference(reference string) (*payment.Payment, error)
}

type Handler struct {
	*transport.BaseHandler
	service  *Service
	payments PaymentResolver
	logger   *slog.Logger
}

func NewHandler(baseHandler *transport.BaseHandler, service *Service, payments PaymentResolver, logger *slog.Logger) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
		service:     service,
		payments:    payments,
		logger:      logger,
	}
}

// DownloadInvoice streams the stored PDF for a payment reference.
func (h *Handler) DownloadInvoice(w http.ResponseWriter, r *http.Request) {
	reference := chi.URLParam(r, "reference")

	p, err := h.payments.GetByReference(reference)
	if err != nil {
		h.HandleError(w, err)
		return
	}

	inv, err := h.service.GetByPayment(p.ID)
	if err != nil {
		h.HandleError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.pdf", inv.Number))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(inv.Document); err != nil {
		h.logger.Error("failed to stream invoice document", "number", inv.Number, "error", err)
	}
}
