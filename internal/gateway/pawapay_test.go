package gateway_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/reckot/payments/internal/gateway"
)

var _ = Describe("PawaPay", func() {
	var (
		server        *httptest.Server
		client        *gateway.PawaPay
		depositStatus string
		rejectDeposit bool
		lastDeposit   map[string]interface{}
	)

	BeforeEach(func() {
		depositStatus = "COMPLETED"
		rejectDeposit = false
		lastDeposit = nil

		mux := http.NewServeMux()
		mux.HandleFunc("/deposits", func(w http.ResponseWriter, r *http.Request) {
			defer GinkgoRecover()
			Expect(r.Header.Get("Authorization")).To(Equal("Bearer api-token"))

			var body map[string]interface{}
			json.NewDecoder(r.Body).Decode(&body)
			lastDeposit = body

			if rejectDeposit {
				json.NewEncoder(w).Encode(map[string]interface{}{
					"depositId": body["depositId"],
					"status":    "REJECTED",
					"rejectionReason": map[string]string{
						"rejectionMessage": "correspondent temporarily unavailable",
					},
				})
				return
			}
			json.NewEncoder(w).Encode(map[string]interface{}{
				"depositId": body["depositId"],
				"status":    "ACCEPTED",
			})
		})
		mux.HandleFunc("/deposits/", func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode([]map[string]interface{}{
				{"depositId": "dep-001", "status": depositStatus},
			})
		})
		mux.HandleFunc("/payouts", func(w http.ResponseWriter, r *http.Request) {
			var body map[string]interface{}
			json.NewDecoder(r.Body).Decode(&body)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"payoutId": body["payoutId"],
				"status":   "ACCEPTED",
			})
		})

		server = httptest.NewServer(mux)
		client = gateway.NewPawaPay(map[string]string{
			"api_token": "api-token",
			"base_url":  server.URL,
		}, "237", server.Client())
	})

	AfterEach(func() {
		server.Close()
	})

	Describe("Initiate", func() {
		It("should submit a deposit with a generated deposit id", func() {
			// When initiating a collection
			result := client.Initiate(context.Background(), gateway.InitiateRequest{
				Reference:   "PAY-101",
				Amount:      10000,
				Currency:    "XAF",
				PhoneNumber: "670000001",
				Description: "Conference ticket",
			})

			// Then the deposit was accepted and the deposit id is the external reference
			Expect(result.Success).To(BeTrue())
			Expect(result.Status).To(Equal(gateway.StatusPending))
			Expect(result.ExternalReference).NotTo(BeEmpty())
			Expect(lastDeposit["depositId"]).To(Equal(result.ExternalReference))
			Expect(lastDeposit["correspondent"]).To(Equal("MTN_MOMO_CMR"))
		})

		It("should surface a rejection message as a failed result", func() {
			rejectDeposit = true

			result := client.Initiate(context.Background(), gateway.InitiateRequest{
				Reference:   "PAY-102",
				Amount:      10000,
				Currency:    "XAF",
				PhoneNumber: "670000001",
			})

			Expect(result.Success).To(BeFalse())
			Expect(result.Message).To(ContainSubstring("correspondent temporarily unavailable"))
		})

		It("should detect the Orange correspondent from the phone prefix", func() {
			client.Initiate(context.Background(), gateway.InitiateRequest{
				Reference:   "PAY-103",
				Amount:      10000,
				Currency:    "XAF",
				PhoneNumber: "690000001",
			})

			Expect(lastDeposit["correspondent"]).To(Equal("ORANGE_CMR"))
		})

		It("should split the shared 65 prefix between operators", func() {
			client.Initiate(context.Background(), gateway.InitiateRequest{
				Reference: "PAY-104", Amount: 100, Currency: "XAF", PhoneNumber: "652000001",
			})
			Expect(lastDeposit["correspondent"]).To(Equal("MTN_MOMO_CMR"))

			client.Initiate(context.Background(), gateway.InitiateRequest{
				Reference: "PAY-105", Amount: 100, Currency: "XAF", PhoneNumber: "657000001",
			})
			Expect(lastDeposit["correspondent"]).To(Equal("ORANGE_CMR"))
		})
	})

	Describe("CheckStatus", func() {
		It("should map COMPLETED to a successful result", func() {
			depositStatus = "COMPLETED"

			result := client.CheckStatus(context.Background(), "dep-001")

			Expect(result.Success).To(BeTrue())
			Expect(result.Status).To(Equal(gateway.StatusSuccess))
		})

		It("should keep ACCEPTED and SUBMITTED pending", func() {
			depositStatus = "SUBMITTED"

			result := client.CheckStatus(context.Background(), "dep-001")

			Expect(result.Success).To(BeFalse())
			Expect(result.Status).To(Equal(gateway.StatusPending))
		})

		It("should map CANCELLED to a cancelled result", func() {
			depositStatus = "CANCELLED"

			result := client.CheckStatus(context.Background(), "dep-001")

			Expect(result.Status).To(Equal(gateway.StatusCancelled))
		})
	})

	Describe("Disburse", func() {
		It("should submit a payout to the recipient", func() {
			result := client.Disburse(context.Background(), gateway.DisburseRequest{
				Reference:   "WD-001",
				Amount:      50000,
				Currency:    "XAF",
				PhoneNumber: "670000001",
				Description: "Organizer payout",
			})

			Expect(result.Success).To(BeTrue())
			Expect(result.Status).To(Equal(gateway.StatusPending))
			Expect(result.ExternalReference).NotTo(BeEmpty())
		})
	})
})
