package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypePaymentConfirmed        = "payment.confirmed"
	EventTypePaymentFailed           = "payment.failed"
	EventTypePaymentExpired          = "payment.expired"
	EventTypeRefundStatusChanged     = "refund.status_changed"
	EventTypeWithdrawalStatusChanged = "withdrawal.status_changed"
)

type PaymentConfirmedEvent struct {
	BaseEvent
	PaymentID         int64  `json:"payment_id"`
	BookingID         int64  `json:"booking_id"`
	Reference         string `json:"reference"`
	ExternalReference string `json:"external_reference"`
	Amount            int64  `json:"amount"`
	Currency          string `json:"currency"`
	Provider          string `json:"provider"`
	CustomerEmail     string `json:"customer_email"`
}

func NewPaymentConfirmedEvent(paymentID, bookingID int64, reference, externalReference string, amount int64, currency, provider, customerEmail string) *PaymentConfirmedEvent {
	return &PaymentConfirmedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypePaymentConfirmed,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"payment_id":         paymentID,
				"booking_id":         bookingID,
				"reference":          reference,
				"external_reference": externalReference,
				"amount":             amount,
				"currency":           currency,
				"provider":           provider,
			},
		},
		PaymentID:         paymentID,
		BookingID:         bookingID,
		Reference:         reference,
		ExternalReference: externalReference,
		Amount:            amount,
		Currency:          currency,
		Provider:          provider,
		CustomerEmail:     customerEmail,
	}
}

type PaymentFailedEvent struct {
	BaseEvent
	PaymentID     int64  `json:"payment_id"`
	BookingID     int64  `json:"booking_id"`
	Reference     string `json:"reference"`
	Provider      string `json:"provider"`
	FailureReason string `json:"failure_reason"`
}

func NewPaymentFailedEvent(paymentID, bookingID int64, reference, provider, failureReason string) *PaymentFailedEvent {
	return &PaymentFailedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypePaymentFailed,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"payment_id":     paymentID,
				"booking_id":     bookingID,
				"reference":      reference,
				"provider":       provider,
				"failure_reason": failureReason,
			},
		},
		PaymentID:     paymentID,
		BookingID:     bookingID,
		Reference:     reference,
		Provider:      provider,
		FailureReason: failureReason,
	}
}

type PaymentExpiredEvent struct {
	BaseEvent
	PaymentID int64  `json:"payment_id"`
	BookingID int64  `json:"booking_id"`
	Reference string `json:"reference"`
}

func NewPaymentExpiredEvent(paymentID, bookingID int64, reference string) *PaymentExpiredEvent {
	return &PaymentExpiredEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypePaymentExpired,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"payment_id": paymentID,
				"booking_id": bookingID,
				"reference":  reference,
			},
		},
		PaymentID: paymentID,
		BookingID: bookingID,
		Reference: reference,
	}
}

type RefundStatusChangedEvent struct {
	BaseEvent
	RefundID    int64  `json:"refund_id"`
	PaymentID   int64  `json:"payment_id"`
	OldStatus   string `json:"old_status"`
	NewStatus   string `json:"new_status"`
	PerformedBy string `json:"performed_by"`
}

func NewRefundStatusChangedEvent(refundID, paymentID int64, oldStatus, newStatus, performedBy string) *RefundStatusChangedEvent {
	return &RefundStatusChangedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeRefundStatusChanged,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"refund_id":    refundID,
				"payment_id":   paymentID,
				"old_status":   oldStatus,
				"new_status":   newStatus,
				"performed_by": performedBy,
			},
		},
		RefundID:    refundID,
		PaymentID:   paymentID,
		OldStatus:   oldStatus,
		NewStatus:   newStatus,
		PerformedBy: performedBy,
	}
}

type WithdrawalStatusChangedEvent struct {
	BaseEvent
	WithdrawalID   int64  `json:"withdrawal_id"`
	OrganizationID int64  `json:"organization_id"`
	OldStatus      string `json:"old_status"`
	NewStatus      string `json:"new_status"`
	FailureReason  string `json:"failure_reason,omitempty"`
}

func NewWithdrawalStatusChangedEvent(withdrawalID, organizationID int64, oldStatus, newStatus, failureReason string) *WithdrawalStatusChangedEvent {
	return &WithdrawalStatusChangedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeWithdrawalStatusChanged,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"withdrawal_id":   withdrawalID,
				"organization_id": organizationID,
				"old_status":      oldStatus,
				"new_status":      newStatus,
				"failure_reason":  failureReason,
			},
		},
		WithdrawalID:   withdrawalID,
		OrganizationID: organizationID,
		OldStatus:      oldStatus,
		NewStatus:      newStatus,
		FailureReason:  failureReason,
	}
}
