package refund

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

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

func (h *Handler) RequestRefund(w http.ResponseWriter, r *http.Request) {
	var req RequestRefundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.service.RequestRefund(r.Context(), &req)
	if err != nil {
		h.HandleError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, ToRefundResponse(result))
}

func (h *Handler) ApproveRefund(w http.ResponseWriter, r *http.Request) {
	id, ok := h.refundID(w, r)
	if !ok {
		return
	}

	var req ReviewRefundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.service.Approve(r.Context(), id, req.PerformedBy)
	if err != nil {
		h.HandleError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, ToRefundResponse(result))
}

func (h *Handler) RejectRefund(w http.ResponseWriter, r *http.Request) {
	id, ok := h.refundID(w, r)
	if !ok {
		return
	}

	var req ReviewRefundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.service.Reject(r.Context(), id, req.PerformedBy, req.RejectionReason)
	if err != nil {
		h.HandleError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, ToRefundResponse(result))
}

func (h *Handler) ProcessRefund(w http.ResponseWriter, r *http.Request) {
	id, ok := h.refundID(w, r)
	if !ok {
		return
	}

	var req ReviewRefundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.service.Process(r.Context(), id, req.PerformedBy)
	if err != nil {
		h.HandleError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, ToRefundResponse(result))
}

func (h *Handler) GetRefund(w http.ResponseWriter, r *http.Request) {
	id, ok := h.refundID(w, r)
	if !ok {
		return
	}

	result, err := h.service.GetByID(id)
	if err != nil {
		h.HandleError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, ToRefundResponse(result))
}

func (h *Handler) GetAuditTrail(w http.ResponseWriter, r *http.Request) {
	id, ok := h.refundID(w, r)
	if !ok {
		return
	}

	logs, err := h.service.AuditTrail(id)
	if err != nil {
		h.HandleError(w, err)
		return
	}

	out := make([]*AuditLogResponse, 0, len(logs))
	for _, l := range logs {
		out = append(out, ToAuditLogResponse(l))
	}
	h.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) ListForPayment(w http.ResponseWriter, r *http.Request) {
	reference := chi.URLParam(r, "reference")

	refunds, err := h.service.ListByPayment(reference)
	if err != nil {
		h.HandleError(w, err)
		return
	}

	out := make([]*RefundResponse, 0, len(refunds))
	for _, rf := range refunds {
		out = append(out, ToRefundResponse(rf))
	}
	h.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) refundID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		h.WriteError(w, http.StatusBadRequest, "invalid refund id")
		return 0, false
	}
	return id, true
}
