package withdrawal

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/reckot/payments/internal"
	"github.com/reckot/payments/internal/core/common/validation"
	"github.com/reckot/payments/internal/core/datamodel/withdrawal"
	"github.com/reckot/payments/internal/core/events"
	"github.com/reckot/payments/internal/gateway"
)

type RepositoryAPI interface {
	Create(w *withdrawal.Withdrawal) error
	GetByID(id int64) (*withdrawal.Withdrawal, error)
	GetByReference(reference string) (*withdrawal.Withdrawal, error)
	ListByOrganization(organizationID int64) ([]*withdrawal.Withdrawal, error)
	UpdateStatus(id int64, from, to string, updates map[string]interface{}) (bool, error)
	AvailableBalance(organizationID int64, currency string) (int64, error)
	CreateAuditLog(log *withdrawal.AuditLog) error
	ListAuditLogs(withdrawalID int64) ([]*withdrawal.AuditLog, error)
}

type GatewayResolver interface {
	Get(name string) (gateway.Gateway, bool)
}

type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// Service pays organizers out of their confirmed ticket revenue. Fees are
// frozen at request time so a later fee schedule change never alters what a
// queued withdrawal pays out. Disbursement runs on the worker pool.
type Service struct {
	repo       RepositoryAPI
	gateways   GatewayResolver
	dispatcher *Dispatcher
	events     EventPublisher
	logger     *slog.Logger
}

func NewService(repo RepositoryAPI, gateways GatewayResolver, dispatcher *Dispatcher, bus EventPublisher, logger *slog.Logger) *Service {
	s := &Service{
		repo:       repo,
		gateways:   gateways,
		dispatcher: dispatcher,
		events:     bus,
		logger:     logger,
	}
	if dispatcher != nil {
		dispatcher.Start(s.processJob)
	}
	return s
}

// RequestWithdrawal validates the payout and queues it. The balance check
// happens before any provider is contacted: an organizer who asks for more
// than their confirmed revenue minus fees, open withdrawals and processed
// refunds is rejected outright.
func (s *Service) RequestWithdrawal(ctx context.Context, req *RequestWithdrawalRequest) (*withdrawal.Withdrawal, error) {
	if req.OrganizationID <= 0 {
		return nil, internal.NewValidationFieldError("organization_id", "organization_id is required", internal.ErrCodeValidationFailed)
	}
	if err := validation.ValidatePaymentAmount(req.Amount); err != nil {
		return nil, err
	}
	if err := validation.ValidateCurrency(req.Currency); err != nil {
		return nil, err
	}
	if err := validation.ValidatePhoneNumber(req.PhoneNumber); err != nil {
		return nil, err
	}

	provider := strings.ToUpper(req.Provider)
	gw, ok := s.gateways.Get(provider)
	if !ok {
		return nil, internal.NewValidationFieldError("provider", fmt.Sprintf("provider %q is not configured", req.Provider), internal.ErrCodeValidationFailed)
	}
	if !gw.Supports(req.Currency) {
		return nil, internal.NewValidationFieldError("currency", fmt.Sprintf("%s does not support %s", provider, req.Currency), internal.ErrCodeInvalidCurrency)
	}

	balance, err := s.repo.AvailableBalance(req.OrganizationID, req.Currency)
	if err != nil {
		return nil, internal.NewInternalError("failed to compute available balance", err)
	}
	if req.Amount > balance {
		s.logger.Warn("withdrawal exceeds available balance",
			"organization_id", req.OrganizationID,
			"requested", req.Amount,
			"available", balance)
		return nil, internal.ErrInsufficientBalance
	}

	gatewayFee := gw.WithdrawalFee(req.Amount)
	commission := gw.PlatformCommission(req.Amount)
	net := req.Amount - gatewayFee - commission
	if net <= 0 {
		return nil, internal.NewValidationFieldError("amount", "amount does not cover fees", internal.ErrCodeInvalidAmount)
	}

	w := &withdrawal.Withdrawal{
		OrganizationID:     req.OrganizationID,
		Reference:          newReference(),
		Amount:             req.Amount,
		GatewayFee:         gatewayFee,
		PlatformCommission: commission,
		NetAmount:          net,
		Currency:           req.Currency,
		PhoneNumber:        req.PhoneNumber,
		Provider:           provider,
		Status:             withdrawal.StatusPending,
		RequestedBy:        req.RequestedBy,
	}
	if err := s.repo.Create(w); err != nil {
		return nil, internal.NewInternalError("failed to create withdrawal", err)
	}

	s.audit(w.ID, "requested", "", withdrawal.StatusPending, req.RequestedBy, "")
	s.publishChange(ctx, w, "", withdrawal.StatusPending, "")

	s.logger.Info("withdrawal requested",
		"reference", w.Reference,
		"organization_id", w.OrganizationID,
		"amount", w.Amount,
		"net_amount", w.NetAmount,
		"provider", provider)
	return w, nil
}

// Approve releases a pending withdrawal for disbursement. The money does
// not move at request time: a reviewer signs off first, and only then does
// the job land on the worker pool. Without a dispatcher the disbursement
// runs inline.
func (s *Service) Approve(ctx context.Context, reference, approvedBy string) (*withdrawal.Withdrawal, error) {
	w, err := s.repo.GetByReference(reference)
	if err != nil {
		return nil, internal.ErrWithdrawalNotFound
	}
	if w.Status != withdrawal.StatusPending {
		return nil, internal.ErrWithdrawalInvalidMove
	}

	s.audit(w.ID, "approved", withdrawal.StatusPending, withdrawal.StatusPending, approvedBy, "")
	s.logger.Info("withdrawal approved", "reference", w.Reference, "approved_by", approvedBy)

	if s.dispatcher == nil {
		return s.Disburse(ctx, w.ID)
	}
	if !s.dispatcher.Enqueue(DisbursementJob{WithdrawalID: w.ID, Reference: w.Reference}) {
		// Queue backpressure: the withdrawal stays pending and can be
		// approved again once the workers drain.
		s.logger.Warn("disbursement queue full, withdrawal left pending", "reference", w.Reference)
	}
	return w, nil
}

// Disburse executes one withdrawal synchronously. The pending→processing
// guard makes it safe against double-dispatch: whoever loses the swap walks
// away without touching the provider.
func (s *Service) Disburse(ctx context.Context, withdrawalID int64) (*withdrawal.Withdrawal, error) {
	w, err := s.repo.GetByID(withdrawalID)
	if err != nil {
		return nil, internal.ErrWithdrawalNotFound
	}

	moved, err := s.repo.UpdateStatus(w.ID, withdrawal.StatusPending, withdrawal.StatusProcessing, nil)
	if err != nil {
		return nil, internal.NewInternalError("failed to mark withdrawal processing", err)
	}
	if !moved {
		current, err := s.repo.GetByID(withdrawalID)
		if err != nil {
			return nil, internal.NewInternalError("failed to reload withdrawal", err)
		}
		s.logger.Info("disbursement skipped, withdrawal not pending",
			"reference", current.Reference,
			"status", current.Status)
		return current, nil
	}
	s.audit(w.ID, "processing", withdrawal.StatusPending, withdrawal.StatusProcessing, "system", "")

	gw, ok := s.gateways.Get(w.Provider)
	if !ok {
		return s.fail(ctx, w, fmt.Sprintf("provider %s is no longer configured", w.Provider))
	}

	disburseCtx, cancel := internal.WithGatewayTimeout(ctx)
	result := gw.Disburse(disburseCtx, gateway.DisburseRequest{
		Reference:   w.Reference,
		Amount:      w.NetAmount,
		Currency:    w.Currency,
		PhoneNumber: w.PhoneNumber,
		Description: fmt.Sprintf("Organizer payout %s", w.Reference),
	})
	cancel()

	if !result.Success {
		return s.fail(ctx, w, result.Message)
	}

	now := time.Now()
	updates := map[string]interface{}{
		"completed_at": now,
	}
	if result.ExternalReference != "" {
		updates["external_reference"] = result.ExternalReference
	}
	moved, err = s.repo.UpdateStatus(w.ID, withdrawal.StatusProcessing, withdrawal.StatusCompleted, updates)
	if err != nil || !moved {
		return nil, internal.NewInternalError("failed to complete withdrawal", err)
	}

	w, err = s.repo.GetByID(withdrawalID)
	if err != nil {
		return nil, internal.NewInternalError("failed to reload withdrawal", err)
	}

	s.audit(w.ID, "completed", withdrawal.StatusProcessing, withdrawal.StatusCompleted, "system", "")
	s.publishChange(ctx, w, withdrawal.StatusProcessing, withdrawal.StatusCompleted, "")

	s.logger.Info("withdrawal completed",
		"reference", w.Reference,
		"net_amount", w.NetAmount,
		"external_reference", w.ExternalReference)
	return w, nil
}

func (s *Service) fail(ctx context.Context, w *withdrawal.Withdrawal, reason string) (*withdrawal.Withdrawal, error) {
	moved, err := s.repo.UpdateStatus(w.ID, withdrawal.StatusProcessing, withdrawal.StatusFailed, map[string]interface{}{
		"failure_reason": reason,
	})
	if err != nil || !moved {
		return nil, internal.NewInternalError("failed to mark withdrawal failed", err)
	}

	current, err := s.repo.GetByID(w.ID)
	if err != nil {
		return nil, internal.NewInternalError("failed to reload withdrawal", err)
	}

	s.audit(w.ID, "failed", withdrawal.StatusProcessing, withdrawal.StatusFailed, "system", reason)
	s.publishChange(ctx, current, withdrawal.StatusProcessing, withdrawal.StatusFailed, reason)

	s.logger.Error("withdrawal failed", "reference", w.Reference, "reason", reason)
	return current, nil
}

func (s *Service) processJob(ctx context.Context, job DisbursementJob) {
	if _, err := s.Disburse(ctx, job.WithdrawalID); err != nil {
		s.logger.Error("disbursement job failed", "reference", job.Reference, "error", err)
	}
}

func (s *Service) GetByReference(reference string) (*withdrawal.Withdrawal, error) {
	w, err := s.repo.GetByReference(reference)
	if err != nil {
		return nil, internal.ErrWithdrawalNotFound
	}
	return w, nil
}

func (s *Service) ListByOrganization(organizationID int64) ([]*withdrawal.Withdrawal, error) {
	list, err := s.repo.ListByOrganization(organizationID)
	if err != nil {
		return nil, internal.NewInternalError("failed to list withdrawals", err)
	}
	return list, nil
}

func (s *Service) AvailableBalance(organizationID int64, currency string) (*BalanceResponse, error) {
	balance, err := s.repo.AvailableBalance(organizationID, currency)
	if err != nil {
		return nil, internal.NewInternalError("failed to compute available balance", err)
	}
	return &BalanceResponse{
		OrganizationID: organizationID,
		Currency:       currency,
		Available:      balance,
	}, nil
}

func (s *Service) AuditTrail(withdrawalID int64) ([]*withdrawal.AuditLog, error) {
	logs, err := s.repo.ListAuditLogs(withdrawalID)
	if err != nil {
		return nil, internal.NewInternalError("failed to list withdrawal audit logs", err)
	}
	return logs, nil
}

func (s *Service) audit(withdrawalID int64, action, oldStatus, newStatus, performedBy, notes string) {
	err := s.repo.CreateAuditLog(&withdrawal.AuditLog{
		WithdrawalID: withdrawalID,
		Action:       action,
		OldStatus:    oldStatus,
		NewStatus:    newStatus,
		PerformedBy:  performedBy,
		Notes:        notes,
	})
	if err != nil {
		s.logger.Error("failed to write withdrawal audit log", "withdrawal_id", withdrawalID, "action", action, "error", err)
	}
}

func (s *Service) publishChange(ctx context.Context, w *withdrawal.Withdrawal, oldStatus, newStatus, failureReason string) {
	s.events.Publish(ctx, events.NewWithdrawalStatusChangedEvent(w.ID, w.OrganizationID, oldStatus, newStatus, failureReason))
}

func newReference() string {
	return "WDR-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:16])
}
