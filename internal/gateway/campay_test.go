package gateway_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/reckot/payments/internal/gateway"
)

var _ = Describe("CamPay", func() {
	var (
		server       *httptest.Server
		client       *gateway.CamPay
		tokenCalls   int32
		collectCalls int32
		collectFail  bool
		statusValue  string
	)

	BeforeEach(func() {
		tokenCalls = 0
		collectCalls = 0
		collectFail = false
		statusValue = "PENDING"

		mux := http.NewServeMux()
		mux.HandleFunc("/token/", func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&tokenCalls, 1)
			var creds map[string]string
			json.NewDecoder(r.Body).Decode(&creds)
			if creds["username"] != "app-user" || creds["password"] != "app-pass" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			json.NewEncoder(w).Encode(map[string]interface{}{"token": "tok-123", "expires_in": 3600})
		})
		mux.HandleFunc("/collect/", func(w http.ResponseWriter, r *http.Request) {
			defer GinkgoRecover()
			atomic.AddInt32(&collectCalls, 1)
			if r.Header.Get("Authorization") != "Token tok-123" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			if collectFail {
				w.WriteHeader(http.StatusBadRequest)
				json.NewEncoder(w).Encode(map[string]string{"message": "ER101: insufficient funds"})
				return
			}
			var body map[string]string
			json.NewDecoder(r.Body).Decode(&body)
			Expect(body["from"]).To(Equal("237670000001"))
			json.NewEncoder(w).Encode(map[string]interface{}{
				"reference": "cp-ext-001",
				"ussd_code": "*126#",
				"status":    "PENDING",
			})
		})
		mux.HandleFunc("/transaction/", func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]interface{}{
				"reference": "cp-ext-001",
				"status":    statusValue,
			})
		})

		server = httptest.NewServer(mux)
		client = gateway.NewCamPay(map[string]string{
			"app_username": "app-user",
			"app_password": "app-pass",
			"webhook_key":  "hook-secret",
			"base_url":     server.URL,
		}, "237", server.Client())
	})

	AfterEach(func() {
		server.Close()
	})

	Describe("Initiate", func() {
		It("should request a collection and return the provider reference", func() {
			// Given a local phone number needing country code normalization
			req := gateway.InitiateRequest{
				Reference:   "PAY-001",
				Amount:      5000,
				Currency:    "XAF",
				PhoneNumber: "670000001",
				Description: "Conference ticket",
			}

			// When initiating
			result := client.Initiate(context.Background(), req)

			// Then the result is a pending success carrying the external reference
			Expect(result.Success).To(BeTrue())
			Expect(result.Status).To(Equal(gateway.StatusPending))
			Expect(result.ExternalReference).To(Equal("cp-ext-001"))
		})

		It("should report a decline as a failed result, not an error", func() {
			// Given the provider rejecting collections
			collectFail = true

			// When initiating
			result := client.Initiate(context.Background(), gateway.InitiateRequest{
				Reference:   "PAY-002",
				Amount:      5000,
				Currency:    "XAF",
				PhoneNumber: "670000001",
			})

			// Then the failure carries the provider message
			Expect(result.Success).To(BeFalse())
			Expect(result.Message).To(ContainSubstring("insufficient funds"))
		})

		It("should reuse the cached token across calls", func() {
			// When initiating twice
			client.Initiate(context.Background(), gateway.InitiateRequest{
				Reference: "PAY-003", Amount: 100, Currency: "XAF", PhoneNumber: "670000001",
			})
			client.Initiate(context.Background(), gateway.InitiateRequest{
				Reference: "PAY-004", Amount: 100, Currency: "XAF", PhoneNumber: "670000001",
			})

			// Then the token endpoint was hit once
			Expect(atomic.LoadInt32(&tokenCalls)).To(Equal(int32(1)))
			Expect(atomic.LoadInt32(&collectCalls)).To(Equal(int32(2)))
		})
	})

	Describe("CheckStatus", func() {
		It("should map SUCCESSFUL to a successful result", func() {
			statusValue = "SUCCESSFUL"

			result := client.CheckStatus(context.Background(), "cp-ext-001")

			Expect(result.Success).To(BeTrue())
			Expect(result.Status).To(Equal(gateway.StatusSuccess))
		})

		It("should map FAILED to a failed result", func() {
			statusValue = "FAILED"

			result := client.CheckStatus(context.Background(), "cp-ext-001")

			Expect(result.Success).To(BeFalse())
			Expect(result.Status).To(Equal(gateway.StatusFailed))
		})

		It("should map unrecognized provider statuses to unknown", func() {
			statusValue = "SOMETHING_NEW"

			result := client.CheckStatus(context.Background(), "cp-ext-001")

			Expect(result.Status).To(Equal(gateway.StatusUnknown))
		})
	})

	Describe("VerifyWebhook", func() {
		It("should accept a token signed with the webhook key", func() {
			// Given a JWT signed with the configured key
			token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
				"status": "SUCCESSFUL",
				"exp":    time.Now().Add(time.Hour).Unix(),
			})
			signed, err := token.SignedString([]byte("hook-secret"))
			Expect(err).NotTo(HaveOccurred())

			// Then verification passes
			Expect(client.VerifyWebhook(signed, nil)).To(Succeed())
		})

		It("should reject a token signed with a different key", func() {
			token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
				"status": "SUCCESSFUL",
			})
			signed, err := token.SignedString([]byte("wrong-secret"))
			Expect(err).NotTo(HaveOccurred())

			Expect(client.VerifyWebhook(signed, nil)).NotTo(Succeed())
		})

		It("should reject an empty signature when a key is configured", func() {
			Expect(client.VerifyWebhook("", nil)).NotTo(Succeed())
		})
	})

	Describe("fees", func() {
		It("should charge the flat fee below the threshold and percentage above", func() {
			Expect(client.WithdrawalFee(4999)).To(Equal(int64(100)))
			Expect(client.WithdrawalFee(5000)).To(Equal(int64(100)))
			Expect(client.WithdrawalFee(100000)).To(Equal(int64(2000)))
		})

		It("should take a five percent platform commission", func() {
			Expect(client.PlatformCommission(100000)).To(Equal(int64(5000)))
		})
	})

	Describe("FormatPhone", func() {
		It("should normalize local numbers to international digits", func() {
			Expect(client.FormatPhone("+237 670 000 001")).To(Equal("237670000001"))
			Expect(client.FormatPhone("0670000001")).To(Equal("237670000001"))
			Expect(client.FormatPhone("670000001")).To(Equal("237670000001"))
			Expect(client.FormatPhone("237670000001")).To(Equal("237670000001"))
		})
	})
})
