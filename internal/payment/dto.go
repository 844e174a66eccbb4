package payment

import (
	"encoding/json"
	"time"

	"github.com/reckot/payments/internal/core/datamodel/payment"
)

type InitiatePaymentRequest struct {
	BookingID     int64  `json:"booking_id"`
	PhoneNumber   string `json:"phone_number"`
	Provider      string `json:"provider,omitempty"`
	CustomerEmail string `json:"customer_email,omitempty"`
}

type PaymentResponse struct {
	Reference         string          `json:"reference"`
	BookingID         int64           `json:"booking_id"`
	Amount            int64           `json:"amount"`
	ServiceFee        int64           `json:"service_fee"`
	TotalAmount       int64           `json:"total_amount"`
	Currency          string          `json:"currency"`
	Provider          string          `json:"provider,omitempty"`
	Status            string          `json:"status"`
	ExternalReference string          `json:"external_reference,omitempty"`
	RedirectURL       string          `json:"redirect_url,omitempty"`
	Metadata          json.RawMessage `json:"metadata,omitempty"`
	ExpiresAt         time.Time       `json:"expires_at"`
	ConfirmedAt       *time.Time      `json:"confirmed_at,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
}

func ToPaymentResponse(p *payment.Payment) *PaymentResponse {
	return &PaymentResponse{
		Reference:         p.Reference,
		BookingID:         p.BookingID,
		Amount:            p.Amount,
		ServiceFee:        p.ServiceFee,
		TotalAmount:       p.TotalAmount(),
		Currency:          p.Currency,
		Provider:          p.Provider,
		Status:            p.Status,
		ExternalReference: p.ExternalReference,
		RedirectURL:       p.RedirectURL,
		Metadata:          p.Metadata,
		ExpiresAt:         p.ExpiresAt,
		ConfirmedAt:       p.ConfirmedAt,
		CreatedAt:         p.CreatedAt,
	}
}

type StatsResponse struct {
	TotalCount      int64 `json:"total_count"`
	PendingCount    int64 `json:"pending_count"`
	ConfirmedCount  int64 `json:"confirmed_count"`
	FailedCount     int64 `json:"failed_count"`
	ExpiredCount    int64 `json:"expired_count"`
	ConfirmedAmount int64 `json:"confirmed_amount"`
}
