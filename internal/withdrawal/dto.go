package withdrawal

import (
	"time"

	"github.com/reckot/payments/internal/core/datamodel/withdrawal"
)

type RequestWithdrawalRequest struct {
	OrganizationID int64  `json:"organization_id"`
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	PhoneNumber    string `json:"phone_number"`
	Provider       string `json:"provider"`
	RequestedBy    string `json:"requested_by"`
}

type ApproveWithdrawalRequest struct {
	ApprovedBy string `json:"approved_by"`
}

type WithdrawalResponse struct {
	ID                 int64      `json:"id"`
	OrganizationID     int64      `json:"organization_id"`
	Reference          string     `json:"reference"`
	Amount             int64      `json:"amount"`
	GatewayFee         int64      `json:"gateway_fee"`
	PlatformCommission int64      `json:"platform_commission"`
	NetAmount          int64      `json:"net_amount"`
	Currency           string     `json:"currency"`
	Provider           string     `json:"provider"`
	Status             string     `json:"status"`
	FailureReason      string     `json:"failure_reason,omitempty"`
	ExternalReference  string     `json:"external_reference,omitempty"`
	RequestedBy        string     `json:"requested_by"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
}

func ToWithdrawalResponse(w *withdrawal.Withdrawal) *WithdrawalResponse {
	return &WithdrawalResponse{
		ID:                 w.ID,
		OrganizationID:     w.OrganizationID,
		Reference:          w.Reference,
		Amount:             w.Amount,
		GatewayFee:         w.GatewayFee,
		PlatformCommission: w.PlatformCommission,
		NetAmount:          w.NetAmount,
		Currency:           w.Currency,
		Provider:           w.Provider,
		Status:             w.Status,
		FailureReason:      w.FailureReason,
		ExternalReference:  w.ExternalReference,
		RequestedBy:        w.RequestedBy,
		CompletedAt:        w.CompletedAt,
		CreatedAt:          w.CreatedAt,
	}
}

type BalanceResponse struct {
	OrganizationID int64  `json:"organization_id"`
	Currency       string `json:"currency"`
	Available      int64  `json:"available"`
}

type AuditLogResponse struct {
	ID           int64     `json:"id"`
	WithdrawalID int64     `json:"withdrawal_id"`
	Action       string    `json:"action"`
	OldStatus    string    `json:"old_status,omitempty"`
	NewStatus    string    `json:"new_status"`
	PerformedBy  string    `json:"performed_by"`
	Notes        string    `json:"notes,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

func ToAuditLogResponse(l *withdrawal.AuditLog) *AuditLogResponse {
	return &AuditLogResponse{
		ID:           l.ID,
		WithdrawalID: l.WithdrawalID,
		Action:       l.Action,
		OldStatus:    l.OldStatus,
		NewStatus:    l.NewStatus,
		PerformedBy:  l.PerformedBy,
		Notes:        l.Notes,
		CreatedAt:    l.CreatedAt,
	}
}
