package payment

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi"

	"github.com/reckot/payments/internal/core/datamodel/payment"
	"github.com/reckot/payments/internal/gateway"
	"github.com/reckot/payments/internal/transport"
)

// WebhookHandler ingests provider callbacks. Providers differ in shape:
// CamPay sends GET with query parameters and a JWT signature, pawaPay and
// Razorpay POST JSON. Both land on the same route and are normalized into a
// flat parameter map before dispatch.
type WebhookHandler struct {
	*transport.BaseHandler
	service  *Service
	gateways GatewayChain
	logger   *slog.Logger
}

func NewWebhookHandler(baseHandler *transport.BaseHandler, service *Service, gateways GatewayChain, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		BaseHandler: baseHandler,
		service:     service,
		gateways:    gateways,
		logger:      logger,
	}
}

type CallbackResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func (h *WebhookHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	provider := strings.ToUpper(chi.URLParam(r, "provider"))

	gw, ok := h.gateways.Get(provider)
	if !ok {
		h.logger.Warn("callback for unknown provider", "provider", provider)
		h.WriteError(w, http.StatusNotFound, "unknown provider")
		return
	}

	params := h.collectParams(r)

	h.logger.Info("received provider callback",
		"provider", provider,
		"reference", params["reference"],
		"external_reference", params["external_reference"],
		"status", params["status"])

	signature := params["signature"]
	if signature == "" {
		signature = r.Header.Get("X-Signature")
	}
	if signature == "" {
		// Some provider environments omit signatures. Accept but leave a
		// trace so operators can spot misconfigured webhook keys.
		h.logger.Warn("callback arrived without signature", "provider", provider)
	} else if err := gw.VerifyWebhook(signature, params); err != nil {
		h.logger.Error("callback signature rejected", "provider", provider, "error", err)
		h.WriteError(w, http.StatusBadRequest, "invalid signature")
		return
	}

	p, found := h.lookupPayment(params)
	if !found {
		h.logger.Error("callback for unknown payment",
			"provider", provider,
			"reference", params["reference"],
			"external_reference", params["external_reference"])
		h.WriteError(w, http.StatusNotFound, "payment not found")
		return
	}

	status := mapCallbackStatus(params["status"])
	extra := callbackMetadata(provider, params)

	var err error
	switch status {
	case gateway.StatusSuccess:
		_, err = h.service.ConfirmPayment(r.Context(), p, params["external_reference"], extra)
	case gateway.StatusFailed, gateway.StatusCancelled:
		reason := firstNonEmpty(params["reason"], params["message"], "provider reported "+params["status"])
		_, err = h.service.FailPayment(r.Context(), p, reason)
	default:
		h.logger.Info("callback left payment pending",
			"provider", provider,
			"reference", p.Reference,
			"provider_status", params["status"])
	}

	if err != nil {
		h.logger.Error("failed to apply callback", "reference", p.Reference, "error", err)
		h.HandleError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, CallbackResponse{
		Status:  "success",
		Message: "callback processed",
	})
}

// collectParams flattens query parameters, form values and a JSON body into
// one string map. Known aliases are folded onto canonical keys.
func (h *WebhookHandler) collectParams(r *http.Request) map[string]string {
	params := make(map[string]string)

	for key, values := range r.URL.Query() {
		if len(values) > 0 {
			params[key] = values[0]
		}
	}

	if r.Method == http.MethodPost && r.Body != nil {
		body, _ := io.ReadAll(r.Body)
		if len(body) > 0 {
			var decoded map[string]interface{}
			if err := json.Unmarshal(body, &decoded); err == nil {
				flattenInto(params, "", decoded)
			}
		}
	}

	// Provider-specific aliases for the provider-side transaction id.
	for _, alias := range []string{"depositId", "deposit_id", "razorpay_order_id"} {
		if v, ok := params[alias]; ok && params["external_reference"] == "" {
			params["external_reference"] = v
		}
	}
	if v, ok := params["externalReference"]; ok && params["reference"] == "" {
		params["reference"] = v
	}
	return params
}

func flattenInto(dst map[string]string, prefix string, src map[string]interface{}) {
	for key, value := range src {
		name := key
		if prefix != "" {
			name = prefix + "." + key
		}
		switch v := value.(type) {
		case string:
			dst[name] = v
		case float64:
			dst[name] = strconv.FormatFloat(v, 'f', -1, 64)
		case bool:
			if v {
				dst[name] = "true"
			} else {
				dst[name] = "false"
			}
		case map[string]interface{}:
			flattenInto(dst, name, v)
		}
	}
}

// lookupPayment resolves the affected payment: our reference first, then the
// provider-side reference.
func (h *WebhookHandler) lookupPayment(params map[string]string) (*payment.Payment, bool) {
	if ref := params["reference"]; ref != "" {
		if p, err := h.service.GetByReference(ref); err == nil {
			return p, true
		}
	}
	if ext := params["external_reference"]; ext != "" {
		if p, err := h.service.GetByExternalReference(ext); err == nil {
			return p, true
		}
	}
	return nil, false
}

// mapCallbackStatus normalizes the provider's status vocabulary.
func mapCallbackStatus(status string) gateway.Status {
	switch strings.ToUpper(status) {
	case "SUCCESSFUL", "SUCCESS", "COMPLETED", "CAPTURED", "PAID":
		return gateway.StatusSuccess
	case "FAILED", "REJECTED":
		return gateway.StatusFailed
	case "CANCELLED", "CANCELED":
		return gateway.StatusCancelled
	case "PENDING", "ACCEPTED", "SUBMITTED", "ENQUEUED", "CREATED", "":
		return gateway.StatusPending
	default:
		return gateway.StatusUnknown
	}
}

func callbackMetadata(provider string, params map[string]string) map[string]interface{} {
	extra := map[string]interface{}{
		"callback_provider": provider,
		"callback_status":   params["status"],
		"callback_time":     time.Now().UTC().Format(time.RFC3339),
	}
	for _, key := range []string{"operator", "operator_reference", "code", "razorpay_payment_id"} {
		if v := params[key]; v != "" {
			extra[key] = v
		}
	}
	return extra
}
