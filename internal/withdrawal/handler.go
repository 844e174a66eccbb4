package withdrawal

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"

	"github.com/reckot/payments/internal"
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

func (h *Handler) RequestWithdrawal(w http.ResponseWriter, r *http.Request) {
	var req RequestWithdrawalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.HandleError(w, internal.NewValidationError("invalid request body", internal.ErrCodeValidationFailed))
		return
	}

	wd, err := h.service.RequestWithdrawal(r.Context(), &req)
	if err != nil {
		h.HandleError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, ToWithdrawalResponse(wd))
}

func (h *Handler) ApproveWithdrawal(w http.ResponseWriter, r *http.Request) {
	reference := chi.URLParam(r, "reference")

	var req ApproveWithdrawalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	wd, err := h.service.Approve(r.Context(), reference, req.ApprovedBy)
	if err != nil {
		h.HandleError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, ToWithdrawalResponse(wd))
}

func (h *Handler) GetWithdrawal(w http.ResponseWriter, r *http.Request) {
	reference := chi.URLParam(r, "reference")

	wd, err := h.service.GetByReference(reference)
	if err != nil {
		h.HandleError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, ToWithdrawalResponse(wd))
}

func (h *Handler) ListWithdrawals(w http.ResponseWriter, r *http.Request) {
	organizationID, err := strconv.ParseInt(r.URL.Query().Get("organization_id"), 10, 64)
	if err != nil || organizationID <= 0 {
		h.HandleError(w, internal.NewValidationFieldError("organization_id", "organization_id query parameter is required", internal.ErrCodeValidationFailed))
		return
	}

	list, err := h.service.ListByOrganization(organizationID)
	if err != nil {
		h.HandleError(w, err)
		return
	}

	out := make([]*WithdrawalResponse, 0, len(list))
	for _, wd := range list {
		out = append(out, ToWithdrawalResponse(wd))
	}
	h.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	organizationID, err := strconv.ParseInt(chi.URLParam(r, "organizationID"), 10, 64)
	if err != nil || organizationID <= 0 {
		h.HandleError(w, internal.NewValidationFieldError("organization_id", "invalid organization id", internal.ErrCodeValidationFailed))
		return
	}
	currency := r.URL.Query().Get("currency")
	if currency == "" {
		currency = "XAF"
	}

	balance, err := h.service.AvailableBalance(organizationID, currency)
	if err != nil {
		h.HandleError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, balance)
}

func (h *Handler) GetAuditTrail(w http.ResponseWriter, r *http.Request) {
	reference := chi.URLParam(r, "reference")

	wd, err := h.service.GetByReference(reference)
	if err != nil {
		h.HandleError(w, err)
		return
	}

	logs, err := h.service.AuditTrail(wd.ID)
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
