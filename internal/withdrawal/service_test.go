package withdrawal_test

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/reckot/payments/internal"
	withdrawalmodel "github.com/reckot/payments/internal/core/datamodel/withdrawal"
	"github.com/reckot/payments/internal/core/events"
	"github.com/reckot/payments/internal/gateway"
	"github.com/reckot/payments/internal/withdrawal"
)

func TestWithdrawalService(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Withdrawal Service Suite")
}

type mockWithdrawalRepo struct {
	mu      sync.Mutex
	seq     int64
	byID    map[int64]*withdrawalmodel.Withdrawal
	balance int64
	logs    []*withdrawalmodel.AuditLog
	logSeq  int64
}

func newMockWithdrawalRepo(balance int64) *mockWithdrawalRepo {
	return &mockWithdrawalRepo{
		byID:    make(map[int64]*withdrawalmodel.Withdrawal),
		balance: balance,
	}
}

func (m *mockWithdrawalRepo) Create(w *withdrawalmodel.Withdrawal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	w.ID = m.seq
	w.CreatedAt = time.Now()
	clone := *w
	m.byID[w.ID] = &clone
	return nil
}

func (m *mockWithdrawalRepo) GetByID(id int64) (*withdrawalmodel.Withdrawal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.byID[id]
	if !ok {
		return nil, fmt.Errorf("withdrawal %d not found", id)
	}
	clone := *w
	return &clone, nil
}

func (m *mockWithdrawalRepo) GetByReference(reference string) (*withdrawalmodel.Withdrawal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, w := range m.byID {
		if w.Reference == reference {
			clone := *w
			return &clone, nil
		}
	}
	return nil, fmt.Errorf("withdrawal %s not found", reference)
}

func (m *mockWithdrawalRepo) ListByOrganization(organizationID int64) ([]*withdrawalmodel.Withdrawal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*withdrawalmodel.Withdrawal
	for _, w := range m.byID {
		if w.OrganizationID == organizationID {
			clone := *w
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (m *mockWithdrawalRepo) UpdateStatus(id int64, from, to string, updates map[string]interface{}) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.byID[id]
	if !ok || w.Status != from {
		return false, nil
	}
	w.Status = to
	if v, ok := updates["external_reference"].(string); ok {
		w.ExternalReference = v
	}
	if v, ok := updates["failure_reason"].(string); ok {
		w.FailureReason = v
	}
	if v, ok := updates["completed_at"].(time.Time); ok {
		w.CompletedAt = &v
	}
	return true, nil
}

func (m *mockWithdrawalRepo) AvailableBalance(organizationID int64, currency string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balance, nil
}

func (m *mockWithdrawalRepo) CreateAuditLog(log *withdrawalmodel.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logSeq++
	log.ID = m.logSeq
	log.CreatedAt = time.Now()
	m.logs = append(m.logs, log)
	return nil
}

func (m *mockWithdrawalRepo) ListAuditLogs(withdrawalID int64) ([]*withdrawalmodel.AuditLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*withdrawalmodel.AuditLog
	for _, l := range m.logs {
		if l.WithdrawalID == withdrawalID {
			out = append(out, l)
		}
	}
	return out, nil
}

type disbursingGateway struct {
	mu            sync.Mutex
	name          string
	disburseFn    func(req gateway.DisburseRequest) gateway.Result
	disburseCalls int
}

func (g *disbursingGateway) Name() string                  { return g.name }
func (g *disbursingGateway) SupportedCurrencies() []string { return []string{"XAF"} }
func (g *disbursingGateway) Supports(currency string) bool { return currency == "XAF" }
func (g *disbursingGateway) Initiate(ctx context.Context, req gateway.InitiateRequest) gateway.Result {
	return gateway.Failure("not used")
}
func (g *disbursingGateway) CheckStatus(ctx context.Context, externalReference string) gateway.Result {
	return gateway.Result{Status: gateway.StatusPending}
}
func (g *disbursingGateway) Verify(ctx context.Context, reference string) gateway.Result {
	return gateway.Result{Status: gateway.StatusPending}
}
func (g *disbursingGateway) Refund(ctx context.Context, req gateway.RefundRequest) gateway.Result {
	return gateway.Failure("not used")
}
func (g *disbursingGateway) Disburse(ctx context.Context, req gateway.DisburseRequest) gateway.Result {
	g.mu.Lock()
	g.disburseCalls++
	g.mu.Unlock()
	return g.disburseFn(req)
}
func (g *disbursingGateway) VerifyWebhook(signature string, params map[string]string) error {
	return nil
}
func (g *disbursingGateway) FormatPhone(phone string) string { return phone }
func (g *disbursingGateway) WithdrawalFee(amount int64) int64 {
	if amount < 5000 {
		return 100
	}
	return amount * 2 / 100
}
func (g *disbursingGateway) PlatformCommission(amount int64) int64 { return amount * 5 / 100 }

func (g *disbursingGateway) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.disburseCalls
}

type gatewayMap map[string]gateway.Gateway

func (m gatewayMap) Get(name string) (gateway.Gateway, bool) {
	gw, ok := m[name]
	return gw, ok
}

type recordingBus struct {
	mu     sync.Mutex
	events []events.Event
}

func (b *recordingBus) Publish(ctx context.Context, event events.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
	return nil
}

func (b *recordingBus) byType(eventType string) []events.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []events.Event
	for _, e := range b.events {
		if e.EventType() == eventType {
			out = append(out, e)
		}
	}
	return out
}

var _ = Describe("WithdrawalService", func() {
	var (
		repo    *mockWithdrawalRepo
		gw      *disbursingGateway
		bus     *recordingBus
		service *withdrawal.Service
		ctx     context.Context
	)

	logger := slog.Default()

	request := func(amount int64) *withdrawal.RequestWithdrawalRequest {
		return &withdrawal.RequestWithdrawalRequest{
			OrganizationID: 100,
			Amount:         amount,
			Currency:       "XAF",
			PhoneNumber:    "237670000001",
			Provider:       "campay",
			RequestedBy:    "organizer@example.com",
		}
	}

	BeforeEach(func() {
		ctx = context.Background()
		repo = newMockWithdrawalRepo(50000)
		gw = &disbursingGateway{
			name: "CAMPAY",
			disburseFn: func(req gateway.DisburseRequest) gateway.Result {
				return gateway.Result{
					Success:           true,
					Status:            gateway.StatusSuccess,
					ExternalReference: "cp-payout-1",
				}
			},
		}
		bus = &recordingBus{}
		// No dispatcher: specs drive Disburse directly. The dispatcher path
		// is covered by its own spec below.
		service = withdrawal.NewService(repo, gatewayMap{"CAMPAY": gw}, nil, bus, logger)
	})

	Describe("RequestWithdrawal", func() {
		It("creates a pending withdrawal with fees frozen at request time", func() {
			// Given a 10000 XAF request against a 50000 balance
			// When the withdrawal is requested
			w, err := service.RequestWithdrawal(ctx, request(10000))

			// Then fees are computed once and stored alongside the row
			Expect(err).NotTo(HaveOccurred())
			Expect(w.Status).To(Equal(withdrawalmodel.StatusPending))
			Expect(w.GatewayFee).To(Equal(int64(200)))
			Expect(w.PlatformCommission).To(Equal(int64(500)))
			Expect(w.NetAmount).To(Equal(int64(9300)))
			Expect(w.Reference).To(HavePrefix("WDR-"))

			logs, _ := repo.ListAuditLogs(w.ID)
			Expect(logs).To(HaveLen(1))
			Expect(logs[0].Action).To(Equal("requested"))

			Expect(bus.byType(events.EventTypeWithdrawalStatusChanged)).To(HaveLen(1))
		})

		It("applies the flat fee below the threshold", func() {
			w, err := service.RequestWithdrawal(ctx, request(4000))

			Expect(err).NotTo(HaveOccurred())
			Expect(w.GatewayFee).To(Equal(int64(100)))
			Expect(w.NetAmount).To(Equal(int64(3700)))
		})

		It("rejects a request above the available balance without touching the provider", func() {
			// Given a balance of 50000
			// When more than that is requested
			_, err := service.RequestWithdrawal(ctx, request(60000))

			// Then the request fails before any gateway call
			Expect(err).To(MatchError(internal.ErrInsufficientBalance))
			Expect(gw.calls()).To(BeZero())
			Expect(repo.byID).To(BeEmpty())
		})

		It("rejects an unknown provider", func() {
			req := request(10000)
			req.Provider = "stripe"

			_, err := service.RequestWithdrawal(ctx, req)

			Expect(err).To(HaveOccurred())
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Type).To(Equal(internal.ErrorTypeValidation))
		})

		It("rejects a currency the provider does not support", func() {
			req := request(10000)
			req.Currency = "USD"

			_, err := service.RequestWithdrawal(ctx, req)

			Expect(err).To(HaveOccurred())
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Type).To(Equal(internal.ErrorTypeValidation))
			details, ok := appErr.Details.(internal.ValidationErrors)
			Expect(ok).To(BeTrue())
			Expect(details.Errors).To(HaveLen(1))
			Expect(details.Errors[0].Field).To(Equal("currency"))
			Expect(details.Errors[0].Code).To(Equal(string(internal.ErrCodeInvalidCurrency)))
		})
	})

	Describe("Approve", func() {
		It("leaves a requested withdrawal untouched until someone approves it", func() {
			// Given a freshly requested withdrawal
			w, err := service.RequestWithdrawal(ctx, request(10000))
			Expect(err).NotTo(HaveOccurred())

			// Then no money moves before approval
			Expect(w.Status).To(Equal(withdrawalmodel.StatusPending))
			Expect(gw.calls()).To(BeZero())

			// When a reviewer approves it
			done, err := service.Approve(ctx, w.Reference, "finance@example.com")

			// Then the disbursement runs and the approval is audited
			Expect(err).NotTo(HaveOccurred())
			Expect(done.Status).To(Equal(withdrawalmodel.StatusCompleted))
			Expect(gw.calls()).To(Equal(1))

			logs, _ := repo.ListAuditLogs(w.ID)
			actions := make([]string, 0, len(logs))
			for _, l := range logs {
				actions = append(actions, l.Action)
			}
			Expect(actions).To(Equal([]string{"requested", "approved", "processing", "completed"}))
			Expect(logs[1].PerformedBy).To(Equal("finance@example.com"))
		})

		It("rejects approval of a withdrawal that already ran", func() {
			w, _ := service.RequestWithdrawal(ctx, request(10000))
			_, err := service.Approve(ctx, w.Reference, "finance@example.com")
			Expect(err).NotTo(HaveOccurred())

			_, err = service.Approve(ctx, w.Reference, "finance@example.com")

			Expect(err).To(MatchError(internal.ErrWithdrawalInvalidMove))
			Expect(gw.calls()).To(Equal(1))
		})

		It("rejects approval of an unknown reference", func() {
			_, err := service.Approve(ctx, "WDR-MISSING", "finance@example.com")

			Expect(err).To(MatchError(internal.ErrWithdrawalNotFound))
		})
	})

	Describe("Disburse", func() {
		It("completes a pending withdrawal through the provider", func() {
			w, err := service.RequestWithdrawal(ctx, request(10000))
			Expect(err).NotTo(HaveOccurred())

			done, err := service.Disburse(ctx, w.ID)

			Expect(err).NotTo(HaveOccurred())
			Expect(done.Status).To(Equal(withdrawalmodel.StatusCompleted))
			Expect(done.ExternalReference).To(Equal("cp-payout-1"))
			Expect(done.CompletedAt).NotTo(BeNil())
			Expect(gw.calls()).To(Equal(1))

			logs, _ := repo.ListAuditLogs(w.ID)
			Expect(logs).To(HaveLen(3)) // requested, processing, completed
		})

		It("pays out the net amount, not the gross", func() {
			var paid int64
			gw.disburseFn = func(req gateway.DisburseRequest) gateway.Result {
				paid = req.Amount
				return gateway.Result{Success: true, Status: gateway.StatusSuccess}
			}
			w, _ := service.RequestWithdrawal(ctx, request(10000))

			_, err := service.Disburse(ctx, w.ID)

			Expect(err).NotTo(HaveOccurred())
			Expect(paid).To(Equal(int64(9300)))
		})

		It("marks the withdrawal failed when the provider declines", func() {
			gw.disburseFn = func(req gateway.DisburseRequest) gateway.Result {
				return gateway.Failure("recipient wallet closed")
			}
			w, _ := service.RequestWithdrawal(ctx, request(10000))

			done, err := service.Disburse(ctx, w.ID)

			Expect(err).NotTo(HaveOccurred())
			Expect(done.Status).To(Equal(withdrawalmodel.StatusFailed))
			Expect(done.FailureReason).To(Equal("recipient wallet closed"))
		})

		It("skips a withdrawal that is no longer pending", func() {
			w, _ := service.RequestWithdrawal(ctx, request(10000))
			_, err := service.Disburse(ctx, w.ID)
			Expect(err).NotTo(HaveOccurred())

			// When disbursed a second time
			again, err := service.Disburse(ctx, w.ID)

			// Then the provider is not called again
			Expect(err).NotTo(HaveOccurred())
			Expect(again.Status).To(Equal(withdrawalmodel.StatusCompleted))
			Expect(gw.calls()).To(Equal(1))
		})
	})

	Describe("with a running dispatcher", func() {
		It("disburses queued withdrawals on worker goroutines", func() {
			dispatcher := withdrawal.NewDispatcher(withdrawal.DispatcherConfig{MaxWorkers: 2, JobQueueSize: 10}, logger)
			defer dispatcher.Shutdown()
			queued := withdrawal.NewService(repo, gatewayMap{"CAMPAY": gw}, dispatcher, bus, logger)

			w, err := queued.RequestWithdrawal(ctx, request(10000))
			Expect(err).NotTo(HaveOccurred())
			_, err = queued.Approve(ctx, w.Reference, "finance@example.com")
			Expect(err).NotTo(HaveOccurred())

			Eventually(func() string {
				current, err := repo.GetByID(w.ID)
				if err != nil {
					return ""
				}
				return current.Status
			}).Should(Equal(withdrawalmodel.StatusCompleted))
		})
	})

	Describe("AvailableBalance", func() {
		It("reports the repository balance", func() {
			balance, err := service.AvailableBalance(100, "XAF")

			Expect(err).NotTo(HaveOccurred())
			Expect(balance.Available).To(Equal(int64(50000)))
			Expect(balance.Currency).To(Equal("XAF"))
		})
	})
})
