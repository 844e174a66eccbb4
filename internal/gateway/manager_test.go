package gateway_test

import (
	"context"
	"log/slog"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/reckot/payments/internal"
	"github.com/reckot/payments/internal/gateway"
)

type fakeGateway struct {
	name          string
	currencies    []string
	initiateCalls int
	result        gateway.Result
}

func (f *fakeGateway) Name() string                  { return f.name }
func (f *fakeGateway) SupportedCurrencies() []string { return f.currencies }
func (f *fakeGateway) Supports(currency string) bool {
	for _, c := range f.currencies {
		if c == currency {
			return true
		}
	}
	return false
}
func (f *fakeGateway) Initiate(ctx context.Context, req gateway.InitiateRequest) gateway.Result {
	f.initiateCalls++
	return f.result
}
func (f *fakeGateway) CheckStatus(ctx context.Context, externalReference string) gateway.Result {
	return f.result
}
func (f *fakeGateway) Verify(ctx context.Context, reference string) gateway.Result {
	return f.result
}
func (f *fakeGateway) Refund(ctx context.Context, req gateway.RefundRequest) gateway.Result {
	return gateway.Failure("refunds not supported")
}
func (f *fakeGateway) Disburse(ctx context.Context, req gateway.DisburseRequest) gateway.Result {
	return f.result
}
func (f *fakeGateway) VerifyWebhook(signature string, params map[string]string) error { return nil }
func (f *fakeGateway) FormatPhone(phone string) string                                { return phone }
func (f *fakeGateway) WithdrawalFee(amount int64) int64                               { return 0 }
func (f *fakeGateway) PlatformCommission(amount int64) int64                          { return 0 }

var _ = Describe("Manager", func() {
	var (
		manager  *gateway.Manager
		campay   *fakeGateway
		pawapay  *fakeGateway
		razorpay *fakeGateway
	)

	BeforeEach(func() {
		campay = &fakeGateway{
			name:       "CAMPAY",
			currencies: []string{"XAF"},
			result:     gateway.Result{Success: true, Status: gateway.StatusPending, ExternalReference: "cp-1"},
		}
		pawapay = &fakeGateway{
			name:       "PAWAPAY",
			currencies: []string{"XAF", "XOF", "GHS"},
			result:     gateway.Result{Success: true, Status: gateway.StatusPending, ExternalReference: "pw-1"},
		}
		razorpay = &fakeGateway{
			name:       "RAZORPAY",
			currencies: []string{"INR", "USD"},
			result:     gateway.Result{Success: true, Status: gateway.StatusPending, ExternalReference: "rz-1"},
		}

		manager = gateway.NewManager(internal.GatewaysConfig{
			Primary:         "CAMPAY",
			Fallbacks:       []string{"PAWAPAY", "RAZORPAY"},
			CallbackBaseURL: "https://tickets.example.com",
		}, slog.Default())
		manager.Register(campay)
		manager.Register(pawapay)
		manager.Register(razorpay)
	})

	Describe("Candidates", func() {
		It("should order hint first, then primary, then fallbacks", func() {
			// When asking for the chain with a fallback hinted
			candidates := manager.Candidates("PAWAPAY", "XAF")

			// Then the hint leads and duplicates are removed
			Expect(candidates).To(HaveLen(2))
			Expect(candidates[0].Name()).To(Equal("PAWAPAY"))
			Expect(candidates[1].Name()).To(Equal("CAMPAY"))
		})

		It("should drop providers that do not support the currency", func() {
			candidates := manager.Candidates("", "INR")

			Expect(candidates).To(HaveLen(1))
			Expect(candidates[0].Name()).To(Equal("RAZORPAY"))
		})

		It("should not duplicate the primary when hinted", func() {
			candidates := manager.Candidates("CAMPAY", "XAF")

			Expect(candidates).To(HaveLen(2))
			Expect(candidates[0].Name()).To(Equal("CAMPAY"))
		})
	})

	Describe("Initiate", func() {
		It("should stop at the first provider that accepts", func() {
			// When the primary accepts
			gw, result := manager.Initiate(context.Background(), "", gateway.InitiateRequest{
				Reference: "PAY-1", Amount: 1000, Currency: "XAF",
			})

			// Then no fallback was contacted
			Expect(result.Success).To(BeTrue())
			Expect(gw.Name()).To(Equal("CAMPAY"))
			Expect(campay.initiateCalls).To(Equal(1))
			Expect(pawapay.initiateCalls).To(BeZero())
		})

		It("should fall through to the next provider on decline", func() {
			// Given the primary declining
			campay.result = gateway.Failure("ER101: insufficient funds")

			// When initiating
			gw, result := manager.Initiate(context.Background(), "", gateway.InitiateRequest{
				Reference: "PAY-2", Amount: 1000, Currency: "XAF",
			})

			// Then the fallback handled it
			Expect(result.Success).To(BeTrue())
			Expect(gw.Name()).To(Equal("PAWAPAY"))
			Expect(result.ExternalReference).To(Equal("pw-1"))
			Expect(campay.initiateCalls).To(Equal(1))
			Expect(pawapay.initiateCalls).To(Equal(1))
		})

		It("should return the last failure when every candidate declines", func() {
			campay.result = gateway.Failure("primary down")
			pawapay.result = gateway.Failure("fallback down")

			gw, result := manager.Initiate(context.Background(), "", gateway.InitiateRequest{
				Reference: "PAY-3", Amount: 1000, Currency: "XAF",
			})

			Expect(gw).To(BeNil())
			Expect(result.Success).To(BeFalse())
			Expect(result.Message).To(Equal("fallback down"))
		})

		It("should fail without contacting anyone for an unsupported currency", func() {
			gw, result := manager.Initiate(context.Background(), "", gateway.InitiateRequest{
				Reference: "PAY-4", Amount: 1000, Currency: "JPY",
			})

			Expect(gw).To(BeNil())
			Expect(result.Success).To(BeFalse())
			Expect(campay.initiateCalls).To(BeZero())
		})
	})
})
