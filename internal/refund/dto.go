package refund

import (
	"time"

	"github.com/reckot/payments/internal/core/datamodel/refund"
)

type RequestRefundRequest struct {
	PaymentReference string `json:"payment_reference"`
	Amount           int64  `json:"amount"`
	Reason           string `json:"reason"`
	RequestedBy      string `json:"requested_by"`
}

type ReviewRefundRequest struct {
	PerformedBy     string `json:"performed_by"`
	RejectionReason string `json:"rejection_reason,omitempty"`
}

type RefundResponse struct {
	ID              int64      `json:"id"`
	PaymentID       int64      `json:"payment_id"`
	Reference       string     `json:"reference"`
	Amount          int64      `json:"amount"`
	RefundType      string     `json:"refund_type"`
	Status          string     `json:"status"`
	Reason          string     `json:"reason"`
	RejectionReason string     `json:"rejection_reason,omitempty"`
	RequestedBy     string     `json:"requested_by"`
	ProcessedBy     string     `json:"processed_by,omitempty"`
	ProcessedAt     *time.Time `json:"processed_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

func ToRefundResponse(r *refund.Refund) *RefundResponse {
	return &RefundResponse{
		ID:              r.ID,
		PaymentID:       r.PaymentID,
		Reference:       r.Reference,
		Amount:          r.Amount,
		RefundType:      r.RefundType,
		Status:          r.Status,
		Reason:          r.Reason,
		RejectionReason: r.RejectionReason,
		RequestedBy:     r.RequestedBy,
		ProcessedBy:     r.ProcessedBy,
		ProcessedAt:     r.ProcessedAt,
		CreatedAt:       r.CreatedAt,
	}
}

type AuditLogResponse struct {
	ID          int64     `json:"id"`
	RefundID    int64     `json:"refund_id"`
	Action      string    `json:"action"`
	OldStatus   string    `json:"old_status,omitempty"`
	NewStatus   string    `json:"new_status"`
	PerformedBy string    `json:"performed_by"`
	Notes       string    `json:"notes,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func ToAuditLogResponse(l *refund.AuditLog) *AuditLogResponse {
	return &AuditLogResponse{
		ID:          l.ID,
		RefundID:    l.RefundID,
		Action:      l.Action,
		OldStatus:   l.OldStatus,
		NewStatus:   l.NewStatus,
		PerformedBy: l.PerformedBy,
		Notes:       l.Notes,
		CreatedAt:   l.CreatedAt,
	}
}
