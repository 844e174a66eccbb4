package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/reckot/payments/internal"
	"github.com/reckot/payments/internal/core/common/validation"
	"github.com/reckot/payments/internal/core/datamodel/booking"
	"github.com/reckot/payments/internal/core/datamodel/gatewayconfig"
	"github.com/reckot/payments/internal/core/datamodel/payment"
	"github.com/reckot/payments/internal/core/events"
	"github.com/reckot/payments/internal/gateway"
)

// RepositoryAPI covers payment persistence. Transition methods are guarded
// compare-and-swap updates: they report false when the payment was no longer
// pending, which callers treat as an idempotent no-op.
type RepositoryAPI interface {
	Create(p *payment.Payment) error
	GetByID(id int64) (*payment.Payment, error)
	GetByReference(reference string) (*payment.Payment, error)
	GetByExternalReference(externalReference string) (*payment.Payment, error)
	GetActiveByBooking(bookingID int64) (*payment.Payment, error)
	ListByBooking(bookingID int64) ([]*payment.Payment, error)
	UpdateGatewayDetails(id int64, provider, externalReference, redirectURL string, serviceFee int64) error
	UpdateMetadata(id int64, metadata json.RawMessage) error
	MarkConfirmed(id int64, externalReference string, confirmedAt time.Time) (bool, error)
	MarkFailed(id int64) (bool, error)
	MarkExpired(id int64) (bool, error)
	ResetForRetry(id int64, expiresAt time.Time) (bool, error)
	SweepExpired(now time.Time) ([]*payment.Payment, error)
	Stats() (*StatsResponse, error)
}

type BookingAPI interface {
	GetByID(id int64) (*booking.Booking, error)
}

// GatewayChain is the slice of the gateway manager the service needs.
type GatewayChain interface {
	Initiate(ctx context.Context, hint string, req gateway.InitiateRequest) (gateway.Gateway, gateway.Result)
	Get(name string) (gateway.Gateway, bool)
}

type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// FeeScheduleAPI looks up the organization's service fee policy for a
// provider. (nil, nil) means no schedule is configured and the payer is
// charged the ticket price alone.
type FeeScheduleAPI interface {
	GetForProvider(organizationID int64, provider string) (*gatewayconfig.GatewayConfig, error)
}

type Service struct {
	repo         RepositoryAPI
	bookings     BookingAPI
	gateways     GatewayChain
	events       EventPublisher
	feeSchedules FeeScheduleAPI
	logger       *slog.Logger
	locks        *paymentLocks
}

type Option func(*Service)

func WithFeeSchedules(api FeeScheduleAPI) Option {
	return func(s *Service) {
		s.feeSchedules = api
	}
}

func NewService(repo RepositoryAPI, bookings BookingAPI, gateways GatewayChain, bus EventPublisher, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		bookings: bookings,
		gateways: gateways,
		events:   bus,
		logger:   logger,
		locks:    newPaymentLocks(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// InitiatePayment starts collection for a booking. A booking holds at most
// one live pending payment: if one exists and has not expired it is returned
// as-is instead of creating a second charge attempt.
func (s *Service) InitiatePayment(ctx context.Context, req *InitiatePaymentRequest) (*payment.Payment, error) {
	if req.BookingID <= 0 {
		return nil, internal.NewValidationFieldError("booking_id", "booking_id is required", internal.ErrCodeValidationFailed)
	}
	if err := validation.ValidatePhoneNumber(req.PhoneNumber); err != nil {
		return nil, err
	}

	bk, err := s.bookings.GetByID(req.BookingID)
	if err != nil {
		s.logger.Warn("booking lookup failed", "booking_id", req.BookingID, "error", err)
		return nil, internal.ErrBookingNotFound
	}
	if err := validation.ValidatePaymentAmount(bk.TotalAmount); err != nil {
		return nil, err
	}

	existing, err := s.repo.GetActiveByBooking(req.BookingID)
	if err != nil {
		return nil, internal.NewInternalError("failed to look up active payment", err)
	}
	if existing != nil {
		if !existing.IsExpired(time.Now()) {
			s.logger.Info("reusing active pending payment",
				"booking_id", req.BookingID,
				"reference", existing.Reference)
			return existing, nil
		}
		// Lapsed but not yet swept: retire it so a fresh attempt can start.
		if _, err := s.repo.MarkExpired(existing.ID); err != nil {
			return nil, internal.NewInternalError("failed to expire stale payment", err)
		}
	}

	now := time.Now()
	p := &payment.Payment{
		BookingID:     req.BookingID,
		Reference:     newReference(),
		Amount:        bk.TotalAmount,
		Currency:      bk.Currency,
		PhoneNumber:   req.PhoneNumber,
		CustomerEmail: firstNonEmpty(req.CustomerEmail, bk.CustomerEmail),
		Status:        payment.StatusPending,
		ExpiresAt:     now.Add(payment.PendingTTL),
	}
	if err := s.repo.Create(p); err != nil {
		return nil, internal.NewInternalError("failed to create payment", err)
	}

	return s.runChain(ctx, p, req.Provider)
}

// runChain walks the provider chain for a pending payment and records the
// outcome. The payment row already exists so a crash mid-chain leaves a
// pending record the sweeper will eventually expire.
func (s *Service) runChain(ctx context.Context, p *payment.Payment, hint string) (*payment.Payment, error) {
	gwCtx, cancel := internal.WithGatewayTimeout(ctx)
	defer cancel()

	gw, result := s.gateways.Initiate(gwCtx, hint, gateway.InitiateRequest{
		Reference:     p.Reference,
		Amount:        p.Amount,
		Currency:      p.Currency,
		PhoneNumber:   p.PhoneNumber,
		Description:   fmt.Sprintf("Ticket payment for booking %d", p.BookingID),
		CustomerEmail: p.CustomerEmail,
	})

	if gw == nil || !result.Success {
		s.logger.Error("all gateway candidates declined",
			"reference", p.Reference,
			"reason", result.Message)
		s.failPayment(ctx, p, firstNonEmpty(result.Message, "no gateway accepted the payment"))
		return p, internal.ErrNoGatewayAvailable.WithDetails(map[string]string{
			"reference": p.Reference,
			"reason":    result.Message,
		})
	}

	serviceFee := s.serviceFeeFor(p, gw.Name())
	if err := s.repo.UpdateGatewayDetails(p.ID, gw.Name(), result.ExternalReference, result.RedirectURL, serviceFee); err != nil {
		return nil, internal.NewInternalError("failed to record gateway details", err)
	}
	p.ServiceFee = serviceFee
	p.Provider = gw.Name()
	p.ExternalReference = result.ExternalReference
	p.RedirectURL = result.RedirectURL

	if result.Message != "" {
		s.mergeAndStoreMetadata(p, map[string]interface{}{"instruction": result.Message})
	}

	s.logger.Info("payment initiated",
		"reference", p.Reference,
		"provider", gw.Name(),
		"external_reference", result.ExternalReference)
	return p, nil
}

// serviceFeeFor resolves the payer-side fee once the provider is known.
// No schedule, or a lookup failure, charges no fee rather than blocking
// the payment.
func (s *Service) serviceFeeFor(p *payment.Payment, provider string) int64 {
	if s.feeSchedules == nil {
		return p.ServiceFee
	}
	bk, err := s.bookings.GetByID(p.BookingID)
	if err != nil {
		s.logger.Warn("fee schedule booking lookup failed", "booking_id", p.BookingID, "error", err)
		return p.ServiceFee
	}
	cfg, err := s.feeSchedules.GetForProvider(bk.OrganizationID, provider)
	if err != nil {
		s.logger.Warn("fee schedule lookup failed",
			"organization_id", bk.OrganizationID,
			"provider", provider,
			"error", err)
		return p.ServiceFee
	}
	if cfg == nil {
		return p.ServiceFee
	}
	return cfg.ServiceFee(p.Amount)
}

// ConfirmPayment moves a pending payment to confirmed. Calling it on an
// already terminal payment is a no-op that returns the current row, so
// duplicate webhooks and concurrent reconciles converge on one outcome.
func (s *Service) ConfirmPayment(ctx context.Context, p *payment.Payment, externalReference string, extra map[string]interface{}) (*payment.Payment, error) {
	s.locks.Lock(p.ID)
	defer s.locks.Unlock(p.ID)

	if p.IsTerminal() {
		return p, nil
	}

	moved, err := s.repo.MarkConfirmed(p.ID, externalReference, time.Now())
	if err != nil {
		return nil, internal.NewInternalError("failed to confirm payment", err)
	}

	current, err := s.repo.GetByID(p.ID)
	if err != nil {
		return nil, internal.NewInternalError("failed to reload payment", err)
	}

	if !moved {
		s.logger.Info("confirm skipped, payment already final",
			"reference", p.Reference,
			"status", current.Status)
		return current, nil
	}

	if len(extra) > 0 {
		s.mergeAndStoreMetadata(current, extra)
	}

	s.events.Publish(ctx, events.NewPaymentConfirmedEvent(
		current.ID,
		current.BookingID,
		current.Reference,
		current.ExternalReference,
		current.Amount,
		current.Currency,
		current.Provider,
		current.CustomerEmail,
	))

	s.logger.Info("payment confirmed",
		"reference", current.Reference,
		"provider", current.Provider,
		"amount", current.Amount)
	return current, nil
}

// FailPayment moves a pending payment to failed. Terminal payments are left
// untouched.
func (s *Service) FailPayment(ctx context.Context, p *payment.Payment, reason string) (*payment.Payment, error) {
	s.locks.Lock(p.ID)
	defer s.locks.Unlock(p.ID)

	if p.IsTerminal() {
		return p, nil
	}
	return s.failLocked(ctx, p, reason)
}

func (s *Service) failPayment(ctx context.Context, p *payment.Payment, reason string) {
	s.locks.Lock(p.ID)
	defer s.locks.Unlock(p.ID)
	s.failLocked(ctx, p, reason)
}

func (s *Service) failLocked(ctx context.Context, p *payment.Payment, reason string) (*payment.Payment, error) {
	moved, err := s.repo.MarkFailed(p.ID)
	if err != nil {
		return nil, internal.NewInternalError("failed to mark payment failed", err)
	}

	current, err := s.repo.GetByID(p.ID)
	if err != nil {
		return nil, internal.NewInternalError("failed to reload payment", err)
	}
	if !moved {
		return current, nil
	}

	if reason != "" {
		s.mergeAndStoreMetadata(current, map[string]interface{}{"failure_reason": reason})
	}

	s.events.Publish(ctx, events.NewPaymentFailedEvent(
		current.ID,
		current.BookingID,
		current.Reference,
		current.Provider,
		reason,
	))

	s.logger.Warn("payment failed",
		"reference", current.Reference,
		"provider", current.Provider,
		"reason", reason)
	return current, nil
}

// Reconcile asks the provider for the authoritative status of a pending
// payment and applies it. A pending payment that never reached a provider
// has nothing to reconcile against and is returned unchanged.
func (s *Service) Reconcile(ctx context.Context, p *payment.Payment) (*payment.Payment, error) {
	if p.IsTerminal() {
		return p, nil
	}
	if p.ExternalReference == "" {
		s.logger.Info("reconcile skipped, no provider reference yet", "reference", p.Reference)
		return p, nil
	}

	gw, ok := s.gateways.Get(p.Provider)
	if !ok {
		return nil, internal.NewInternalError(fmt.Sprintf("gateway %s is not configured", p.Provider), nil)
	}

	checkCtx, cancel := internal.WithTimeout(ctx, internal.StatusCheckTimeout)
	defer cancel()
	result := gw.CheckStatus(checkCtx, p.ExternalReference)

	switch result.Status {
	case gateway.StatusSuccess:
		return s.ConfirmPayment(ctx, p, p.ExternalReference, result.Raw)
	case gateway.StatusFailed, gateway.StatusCancelled:
		return s.FailPayment(ctx, p, firstNonEmpty(result.Message, "provider reported "+string(result.Status)))
	default:
		s.logger.Debug("reconcile left payment pending",
			"reference", p.Reference,
			"provider_status", result.Status)
		return p, nil
	}
}

// Retry restarts collection for a failed or expired payment. When an old
// provider reference exists the provider is consulted first: a charge that
// actually went through gets confirmed instead of charged again.
func (s *Service) Retry(ctx context.Context, reference string) (*payment.Payment, error) {
	p, err := s.GetByReference(reference)
	if err != nil {
		return nil, err
	}

	switch p.Status {
	case payment.StatusFailed, payment.StatusExpired:
	case payment.StatusPending:
		if !p.IsExpired(time.Now()) {
			return nil, internal.ErrPaymentNotRetryable
		}
		// Lapsed but not yet swept: retire the row so the retry guard on
		// failed/expired status applies.
		if _, err := s.repo.MarkExpired(p.ID); err != nil {
			return nil, internal.NewInternalError("failed to expire stale payment", err)
		}
		p.Status = payment.StatusExpired
	default:
		return nil, internal.ErrPaymentNotRetryable
	}

	if p.ExternalReference != "" {
		if gw, ok := s.gateways.Get(p.Provider); ok {
			checkCtx, cancel := internal.WithTimeout(ctx, internal.StatusCheckTimeout)
			result := gw.CheckStatus(checkCtx, p.ExternalReference)
			cancel()

			if result.Status == gateway.StatusSuccess {
				s.logger.Info("retry found the original charge succeeded",
					"reference", p.Reference,
					"external_reference", p.ExternalReference)
				// Force the status forward even though the row is terminal.
				reset, err := s.repo.ResetForRetry(p.ID, time.Now().Add(payment.PendingTTL))
				if err != nil || !reset {
					return nil, internal.NewInternalError("failed to reopen payment for confirmation", err)
				}
				reopened, err := s.repo.GetByID(p.ID)
				if err != nil {
					return nil, internal.NewInternalError("failed to reload payment", err)
				}
				return s.ConfirmPayment(ctx, reopened, p.ExternalReference, result.Raw)
			}
		}
	}

	reset, err := s.repo.ResetForRetry(p.ID, time.Now().Add(payment.PendingTTL))
	if err != nil {
		return nil, internal.NewInternalError("failed to reset payment for retry", err)
	}
	if !reset {
		return nil, internal.ErrPaymentNotRetryable
	}

	p, err = s.repo.GetByID(p.ID)
	if err != nil {
		return nil, internal.NewInternalError("failed to reload payment", err)
	}

	return s.runChain(ctx, p, p.Provider)
}

// SweepExpired retires pending payments whose window lapsed and reports how
// many rows moved.
func (s *Service) SweepExpired(ctx context.Context) (int, error) {
	swept, err := s.repo.SweepExpired(time.Now())
	if err != nil {
		return 0, internal.NewInternalError("failed to sweep expired payments", err)
	}

	for _, p := range swept {
		s.events.Publish(ctx, events.NewPaymentExpiredEvent(p.ID, p.BookingID, p.Reference))
	}

	if len(swept) > 0 {
		s.logger.Info("expired pending payments", "count", len(swept))
	}
	return len(swept), nil
}

func (s *Service) GetByID(id int64) (*payment.Payment, error) {
	p, err := s.repo.GetByID(id)
	if err != nil {
		return nil, internal.ErrPaymentNotFound
	}
	return p, nil
}

func (s *Service) GetByReference(reference string) (*payment.Payment, error) {
	p, err := s.repo.GetByReference(reference)
	if err != nil {
		return nil, internal.ErrPaymentNotFound
	}
	return p, nil
}

func (s *Service) GetByExternalReference(externalReference string) (*payment.Payment, error) {
	p, err := s.repo.GetByExternalReference(externalReference)
	if err != nil {
		return nil, internal.ErrPaymentNotFound
	}
	return p, nil
}

func (s *Service) Stats() (*StatsResponse, error) {
	stats, err := s.repo.Stats()
	if err != nil {
		return nil, internal.NewInternalError("failed to compute payment stats", err)
	}
	return stats, nil
}

func (s *Service) mergeAndStoreMetadata(p *payment.Payment, extra map[string]interface{}) {
	if err := p.MergeMetadata(extra); err != nil {
		s.logger.Warn("metadata merge failed", "reference", p.Reference, "error", err)
		return
	}
	if err := s.repo.UpdateMetadata(p.ID, p.Metadata); err != nil {
		s.logger.Warn("metadata update failed", "reference", p.Reference, "error", err)
	}
}

func newReference() string {
	return "PAY-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:16])
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
