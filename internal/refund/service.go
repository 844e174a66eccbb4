package refund

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/reckot/payments/internal"
	"github.com/reckot/payments/internal/core/common/validation"
	paymentmodel "github.com/reckot/payments/internal/core/datamodel/payment"
	"github.com/reckot/payments/internal/core/datamodel/refund"
	"github.com/reckot/payments/internal/core/events"
	"github.com/reckot/payments/internal/gateway"
)

type RepositoryAPI interface {
	Create(r *refund.Refund) error
	GetByID(id int64) (*refund.Refund, error)
	GetOpenByPayment(paymentID int64) (*refund.Refund, error)
	ListByPayment(paymentID int64) ([]*refund.Refund, error)
	UpdateStatus(id int64, from, to string, updates map[string]interface{}) (bool, error)
	CreateAuditLog(log *refund.AuditLog) error
	ListAuditLogs(refundID int64) ([]*refund.AuditLog, error)
}

type PaymentAPI interface {
	GetByID(id int64) (*paymentmodel.Payment, error)
	GetByReference(reference string) (*paymentmodel.Payment, error)
}

type GatewayResolver interface {
	Get(name string) (gateway.Gateway, bool)
}

type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// Service runs the refund review flow: customers or staff request, finance
// approves or rejects, approved refunds get processed. Every status change
// leaves an audit row naming who did it.
type Service struct {
	repo     RepositoryAPI
	payments PaymentAPI
	gateways GatewayResolver
	events   EventPublisher
	logger   *slog.Logger
}

func NewService(repo RepositoryAPI, payments PaymentAPI, gateways GatewayResolver, bus EventPublisher, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		payments: payments,
		gateways: gateways,
		events:   bus,
		logger:   logger,
	}
}

// RequestRefund opens a refund against a confirmed payment. A payment can
// carry at most one refund that is not rejected: a pending, approved or
// already processed refund blocks new requests.
func (s *Service) RequestRefund(ctx context.Context, req *RequestRefundRequest) (*refund.Refund, error) {
	if err := validation.ValidateRefundReason(req.Reason); err != nil {
		return nil, err
	}
	if req.Amount <= 0 {
		return nil, internal.NewValidationFieldError("amount", "amount must be positive", internal.ErrCodeInvalidAmount)
	}

	p, err := s.payments.GetByReference(req.PaymentReference)
	if err != nil {
		return nil, internal.ErrPaymentNotFound
	}
	if p.Status != paymentmodel.StatusConfirmed {
		return nil, internal.ErrPaymentNotConfirmed
	}
	if req.Amount > p.Amount {
		return nil, internal.ErrRefundExceedsAmount
	}

	open, err := s.repo.GetOpenByPayment(p.ID)
	if err != nil {
		return nil, internal.NewInternalError("failed to look up open refunds", err)
	}
	if open != nil {
		return nil, internal.ErrRefundExists
	}

	refundType := refund.TypePartial
	if req.Amount == p.Amount {
		refundType = refund.TypeFull
	}

	r := &refund.Refund{
		PaymentID:   p.ID,
		Reference:   newReference(),
		Amount:      req.Amount,
		RefundType:  refundType,
		Status:      refund.StatusPending,
		Reason:      req.Reason,
		RequestedBy: req.RequestedBy,
	}
	if err := s.repo.Create(r); err != nil {
		return nil, internal.NewInternalError("failed to create refund", err)
	}

	s.audit(r.ID, "requested", "", refund.StatusPending, req.RequestedBy, req.Reason)
	s.publishChange(ctx, r, "", refund.StatusPending, req.RequestedBy)

	s.logger.Info("refund requested",
		"refund_reference", r.Reference,
		"payment_reference", p.Reference,
		"amount", req.Amount,
		"type", refundType)
	return r, nil
}

// Approve moves a pending refund to approved.
func (s *Service) Approve(ctx context.Context, id int64, approvedBy string) (*refund.Refund, error) {
	return s.review(ctx, id, refund.StatusPending, refund.StatusApproved, "approved", approvedBy, nil)
}

// Reject closes a pending or approved refund with a reason. Finance can
// still back out after approval as long as money has not moved. Rejected
// refunds free the payment for a new request.
func (s *Service) Reject(ctx context.Context, id int64, rejectedBy, reason string) (*refund.Refund, error) {
	r, err := s.repo.GetByID(id)
	if err != nil {
		return nil, internal.ErrRefundNotFound
	}
	if r.Status != refund.StatusPending && r.Status != refund.StatusApproved {
		return nil, internal.ErrRefundInvalidStatus
	}
	return s.review(ctx, id, r.Status, refund.StatusRejected, "rejected", rejectedBy, map[string]interface{}{
		"rejection_reason": reason,
	})
}

// Process executes an approved refund. Providers that expose a refund API
// get called; mobile money providers without one fall back to manual
// settlement and the refund is recorded as processed either way.
func (s *Service) Process(ctx context.Context, id int64, processedBy string) (*refund.Refund, error) {
	r, err := s.repo.GetByID(id)
	if err != nil {
		return nil, internal.ErrRefundNotFound
	}
	if r.Status != refund.StatusApproved {
		return nil, internal.ErrRefundInvalidStatus
	}

	p, err := s.paymentForRefund(r)
	if err != nil {
		return nil, err
	}

	if gw, ok := s.gateways.Get(p.Provider); ok {
		refundCtx, cancel := internal.WithGatewayTimeout(ctx)
		result := gw.Refund(refundCtx, gateway.RefundRequest{
			ExternalReference: p.ExternalReference,
			Amount:            r.Amount,
			Currency:          p.Currency,
			Reason:            r.Reason,
		})
		cancel()

		switch {
		case result.Success:
			s.logger.Info("provider refund executed",
				"refund_reference", r.Reference,
				"provider", p.Provider,
				"provider_refund_id", result.ExternalReference)
		case strings.Contains(result.Message, "does not support"):
			s.logger.Info("provider has no refund API, settling manually",
				"refund_reference", r.Reference,
				"provider", p.Provider)
		default:
			s.logger.Error("provider refund failed",
				"refund_reference", r.Reference,
				"provider", p.Provider,
				"reason", result.Message)
			return nil, internal.NewExternalError("provider refund failed: "+result.Message, internal.ErrCodeGatewayFailed)
		}
	}

	now := time.Now()
	moved, err := s.repo.UpdateStatus(id, refund.StatusApproved, refund.StatusProcessed, map[string]interface{}{
		"processed_by": processedBy,
		"processed_at": now,
	})
	if err != nil {
		return nil, internal.NewInternalError("failed to mark refund processed", err)
	}
	if !moved {
		return nil, internal.ErrRefundInvalidStatus
	}

	r, err = s.repo.GetByID(id)
	if err != nil {
		return nil, internal.NewInternalError("failed to reload refund", err)
	}

	s.audit(r.ID, "processed", refund.StatusApproved, refund.StatusProcessed, processedBy, "")
	s.publishChange(ctx, r, refund.StatusApproved, refund.StatusProcessed, processedBy)

	s.logger.Info("refund processed", "refund_reference", r.Reference, "amount", r.Amount)
	return r, nil
}

func (s *Service) GetByID(id int64) (*refund.Refund, error) {
	r, err := s.repo.GetByID(id)
	if err != nil {
		return nil, internal.ErrRefundNotFound
	}
	return r, nil
}

func (s *Service) ListByPayment(paymentReference string) ([]*refund.Refund, error) {
	p, err := s.payments.GetByReference(paymentReference)
	if err != nil {
		return nil, internal.ErrPaymentNotFound
	}
	refunds, err := s.repo.ListByPayment(p.ID)
	if err != nil {
		return nil, internal.NewInternalError("failed to list refunds", err)
	}
	return refunds, nil
}

func (s *Service) AuditTrail(refundID int64) ([]*refund.AuditLog, error) {
	logs, err := s.repo.ListAuditLogs(refundID)
	if err != nil {
		return nil, internal.NewInternalError("failed to list refund audit logs", err)
	}
	return logs, nil
}

func (s *Service) review(ctx context.Context, id int64, from, to, action, performedBy string, extra map[string]interface{}) (*refund.Refund, error) {
	if _, err := s.repo.GetByID(id); err != nil {
		return nil, internal.ErrRefundNotFound
	}

	moved, err := s.repo.UpdateStatus(id, from, to, extra)
	if err != nil {
		return nil, internal.NewInternalError("failed to update refund status", err)
	}
	if !moved {
		return nil, internal.ErrRefundInvalidStatus
	}

	r, err := s.repo.GetByID(id)
	if err != nil {
		return nil, internal.NewInternalError("failed to reload refund", err)
	}

	notes := ""
	if extra != nil {
		if v, ok := extra["rejection_reason"].(string); ok {
			notes = v
		}
	}
	s.audit(r.ID, action, from, to, performedBy, notes)
	s.publishChange(ctx, r, from, to, performedBy)

	s.logger.Info("refund "+action, "refund_reference", r.Reference, "performed_by", performedBy)
	return r, nil
}

func (s *Service) paymentForRefund(r *refund.Refund) (*paymentmodel.Payment, error) {
	p, err := s.payments.GetByID(r.PaymentID)
	if err != nil {
		return nil, internal.ErrPaymentNotFound
	}
	return p, nil
}

func (s *Service) audit(refundID int64, action, oldStatus, newStatus, performedBy, notes string) {
	err := s.repo.CreateAuditLog(&refund.AuditLog{
		RefundID:    refundID,
		Action:      action,
		OldStatus:   oldStatus,
		NewStatus:   newStatus,
		PerformedBy: performedBy,
		Notes:       notes,
	})
	if err != nil {
		s.logger.Error("failed to write refund audit log", "refund_id", refundID, "action", action, "error", err)
	}
}

func (s *Service) publishChange(ctx context.Context, r *refund.Refund, oldStatus, newStatus, performedBy string) {
	s.events.Publish(ctx, events.NewRefundStatusChangedEvent(r.ID, r.PaymentID, oldStatus, newStatus, performedBy))
}

func newReference() string {
	return "REF-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:16])
}
