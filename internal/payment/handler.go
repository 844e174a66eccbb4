package payment

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"

	"github.com/reckot/payments/internal/transport"
)

type Handler struct {
	*transport.BaseHandler
	service *Service
	logger  *slog.Logger
}

func NewHandler(baseHandler *transport.BaseHandler, service *Service, logger *slog.Logger) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
		service:     service,
		logger:      logger,
	}
}

func (h *Handler) InitiatePayment(w http.ResponseWriter, r *http.Request) {
	var req InitiatePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	p, err := h.service.InitiatePayment(r.Context(), &req)
	if err != nil {
		h.HandleError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, ToPaymentResponse(p))
}

// GetPayment returns the current state of a payment. Pending payments with a
// provider reference get an opportunistic reconcile so customers polling
// after checkout see confirmations without waiting for the webhook.
func (h *Handler) GetPayment(w http.ResponseWriter, r *http.Request) {
	reference := chi.URLParam(r, "reference")

	p, err := h.service.GetByReference(reference)
	if err != nil {
		h.HandleError(w, err)
		return
	}

	if !p.IsTerminal() && p.ExternalReference != "" {
		reconciled, err := h.service.Reconcile(r.Context(), p)
		if err != nil {
			h.logger.Warn("opportunistic reconcile failed", "reference", reference, "error", err)
		} else {
			p = reconciled
		}
	}

	h.WriteJSON(w, http.StatusOK, ToPaymentResponse(p))
}

func (h *Handler) RetryPayment(w http.ResponseWriter, r *http.Request) {
	reference := chi.URLParam(r, "reference")

	p, err := h.service.Retry(r.Context(), reference)
	if err != nil {
		h.HandleError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, ToPaymentResponse(p))
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats()
	if err != nil {
		h.HandleError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, stats)
}
