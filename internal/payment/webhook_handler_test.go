package payment_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"

	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/reckot/payments/internal"
	paymentmodel "github.com/reckot/payments/internal/core/datamodel/payment"
	"github.com/reckot/payments/internal/core/events"
	"github.com/reckot/payments/internal/gateway"
	"github.com/reckot/payments/internal/payment"
	"github.com/reckot/payments/internal/transport"
)

var _ = Describe("WebhookHandler", func() {
	var (
		repo    *mockRepo
		campay  *stubGateway
		pawapay *stubGateway
		bus     *recordingBus
		server  *httptest.Server
		pending *paymentmodel.Payment
	)

	BeforeEach(func() {
		repo = newMockRepo()
		campay = &stubGateway{name: "CAMPAY", currencies: []string{"XAF"}}
		pawapay = &stubGateway{name: "PAWAPAY", currencies: []string{"XAF"}}

		manager := gateway.NewManager(internal.GatewaysConfig{
			Primary:         "CAMPAY",
			Fallbacks:       []string{"PAWAPAY"},
			CallbackBaseURL: "https://tickets.example.com",
		}, slog.Default())
		manager.Register(campay)
		manager.Register(pawapay)

		bus = &recordingBus{}
		service := payment.NewService(repo, &mockBookings{bookings: nil}, manager, bus, slog.Default())

		handler := payment.NewWebhookHandler(transport.NewBaseHandler(slog.Default()), service, manager, slog.Default())

		router := chi.NewRouter()
		router.Get("/api/v1/payments/callback/{provider}", handler.HandleCallback)
		router.Post("/api/v1/payments/callback/{provider}", handler.HandleCallback)
		server = httptest.NewServer(router)

		pending = &paymentmodel.Payment{
			BookingID:         1,
			Reference:         "PAY-HOOK1",
			Amount:            25000,
			Currency:          "XAF",
			Provider:          "CAMPAY",
			ExternalReference: "cp-ext-hook",
			Status:            paymentmodel.StatusPending,
		}
		Expect(repo.Create(pending)).To(Succeed())
	})

	AfterEach(func() {
		server.Close()
	})

	get := func(query string) *http.Response {
		resp, err := http.Get(server.URL + "/api/v1/payments/callback/campay?" + query)
		Expect(err).ToNot(HaveOccurred())
		return resp
	}

	It("should confirm the payment on a success callback", func() {
		// When the provider reports success via GET
		resp := get("reference=PAY-HOOK1&status=SUCCESSFUL&operator=MTN")
		defer resp.Body.Close()

		// Then the payment confirmed and one event fired
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		reloaded, _ := repo.GetByID(pending.ID)
		Expect(reloaded.Status).To(Equal(paymentmodel.StatusConfirmed))
		Expect(bus.byType(events.EventTypePaymentConfirmed)).To(HaveLen(1))
	})

	It("should process duplicate callbacks exactly once", func() {
		resp := get("reference=PAY-HOOK1&status=SUCCESSFUL")
		resp.Body.Close()
		resp = get("reference=PAY-HOOK1&status=SUCCESSFUL")
		defer resp.Body.Close()

		// Second delivery still answers 200 but changes nothing
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		Expect(bus.byType(events.EventTypePaymentConfirmed)).To(HaveLen(1))
	})

	It("should fail the payment on a failure callback", func() {
		resp := get("reference=PAY-HOOK1&status=FAILED&reason=payer+rejected")
		defer resp.Body.Close()

		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		reloaded, _ := repo.GetByID(pending.ID)
		Expect(reloaded.Status).To(Equal(paymentmodel.StatusFailed))
		Expect(bus.byType(events.EventTypePaymentFailed)).To(HaveLen(1))
	})

	It("should leave the payment pending on an in-flight status", func() {
		resp := get("reference=PAY-HOOK1&status=PENDING")
		defer resp.Body.Close()

		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		reloaded, _ := repo.GetByID(pending.ID)
		Expect(reloaded.Status).To(Equal(paymentmodel.StatusPending))
	})

	It("should fall back to the provider reference for lookup", func() {
		// Given a POST body that only carries the provider-side id
		body, _ := json.Marshal(map[string]interface{}{
			"depositId": "cp-ext-hook",
			"status":    "COMPLETED",
		})

		resp, err := http.Post(server.URL+"/api/v1/payments/callback/pawapay", "application/json", bytes.NewReader(body))
		Expect(err).ToNot(HaveOccurred())
		defer resp.Body.Close()

		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		reloaded, _ := repo.GetByID(pending.ID)
		Expect(reloaded.Status).To(Equal(paymentmodel.StatusConfirmed))
	})

	It("should answer 404 for a callback naming no known payment", func() {
		resp := get("reference=PAY-GHOST&status=SUCCESSFUL")
		defer resp.Body.Close()

		Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
	})

	It("should answer 404 for an unknown provider", func() {
		resp, err := http.Get(server.URL + "/api/v1/payments/callback/stripe?reference=PAY-HOOK1&status=SUCCESSFUL")
		Expect(err).ToNot(HaveOccurred())
		defer resp.Body.Close()

		Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
	})

	It("should accept an unsigned callback and still apply it", func() {
		// Given a gateway that would reject any verification attempt
		campay.verifyFn = func(signature string, params map[string]string) error {
			return fmt.Errorf("missing webhook signature")
		}

		// When the callback arrives without a signature at all
		resp := get("reference=PAY-HOOK1&status=SUCCESSFUL")
		defer resp.Body.Close()

		// Then verification is skipped: the payment confirms with a warning
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		reloaded, _ := repo.GetByID(pending.ID)
		Expect(reloaded.Status).To(Equal(paymentmodel.StatusConfirmed))
	})

	It("should reject a callback with a bad signature", func() {
		// Given the gateway rejecting the signature
		campay.verifyFn = func(signature string, params map[string]string) error {
			return fmt.Errorf("invalid webhook signature")
		}

		resp := get("reference=PAY-HOOK1&status=SUCCESSFUL&signature=forged")
		defer resp.Body.Close()

		Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		reloaded, _ := repo.GetByID(pending.ID)
		Expect(reloaded.Status).To(Equal(paymentmodel.StatusPending))
	})
})
