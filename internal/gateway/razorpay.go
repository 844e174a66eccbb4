package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	razorpay "github.com/razorpay/razorpay-go"
)

// Razorpay handles card and netbanking checkout. Unlike the mobile money
// providers it is redirect based: Initiate creates an order and the customer
// completes checkout on the hosted page, after which the callback carries an
// HMAC signature over "order_id|payment_id".
type Razorpay struct {
	base
	keyID     string
	keySecret string
	client    *razorpay.Client
}

func NewRazorpay(creds map[string]string, countryCode string) *Razorpay {
	return &Razorpay{
		base: base{
			name:        "RAZORPAY",
			currencies:  []string{"INR", "USD", "EUR"},
			countryCode: countryCode,
		},
		keyID:     creds["key_id"],
		keySecret: creds["key_secret"],
		client:    razorpay.NewClient(creds["key_id"], creds["key_secret"]),
	}
}

func (r *Razorpay) Initiate(ctx context.Context, req InitiateRequest) Result {
	orderData := map[string]interface{}{
		"amount":          req.Amount,
		"currency":        req.Currency,
		"receipt":         req.Reference,
		"payment_capture": 1,
		"notes": map[string]interface{}{
			"reference":   req.Reference,
			"description": req.Description,
		},
	}

	order, err := r.client.Order.Create(orderData, nil)
	if err != nil {
		return Failure(fmt.Sprintf("razorpay order create failed: %v", err))
	}

	orderID, _ := order["id"].(string)
	if orderID == "" {
		return Failure("razorpay order response missing id")
	}

	return Result{
		Success:           true,
		Status:            StatusPending,
		TransactionID:     req.Reference,
		ExternalReference: orderID,
		RedirectURL:       fmt.Sprintf("https://checkout.razorpay.com/v1/checkout.js?order_id=%s&key_id=%s", orderID, r.keyID),
		Raw:               order,
	}
}

func (r *Razorpay) CheckStatus(ctx context.Context, externalReference string) Result {
	payments, err := r.client.Order.Payments(externalReference, nil, nil)
	if err != nil {
		return Result{Success: false, Status: StatusUnknown, Message: fmt.Sprintf("razorpay status check failed: %v", err)}
	}

	items, _ := payments["items"].([]interface{})
	if len(items) == 0 {
		return Result{Success: false, Status: StatusPending, ExternalReference: externalReference, Message: "no payment attempts yet"}
	}

	// The latest attempt decides: any captured payment wins.
	var status Status = StatusPending
	var message string
	for _, item := range items {
		p, _ := item.(map[string]interface{})
		switch stringField(p, "status") {
		case "captured":
			return Result{
				Success:           true,
				Status:            StatusSuccess,
				ExternalReference: externalReference,
				Raw:               p,
			}
		case "failed":
			status = StatusFailed
			message = stringField(p, "error_description")
		}
	}

	return Result{Success: false, Status: status, ExternalReference: externalReference, Message: message}
}

func (r *Razorpay) Refund(ctx context.Context, req RefundRequest) Result {
	payments, err := r.client.Order.Payments(req.ExternalReference, nil, nil)
	if err != nil {
		return Failure(fmt.Sprintf("razorpay refund: payment lookup failed: %v", err))
	}

	items, _ := payments["items"].([]interface{})
	var paymentID string
	for _, item := range items {
		p, _ := item.(map[string]interface{})
		if stringField(p, "status") == "captured" {
			paymentID = stringField(p, "id")
			break
		}
	}
	if paymentID == "" {
		return Failure("razorpay refund: no captured payment on order")
	}

	refund, err := r.client.Payment.Refund(paymentID, int(req.Amount), map[string]interface{}{
		"notes": map[string]interface{}{"reason": req.Reason},
	}, nil)
	if err != nil {
		return Failure(fmt.Sprintf("razorpay refund failed: %v", err))
	}

	return Result{
		Success:           true,
		Status:            StatusSuccess,
		ExternalReference: stringField(refund, "id"),
		Raw:               refund,
	}
}

// VerifyWebhook checks the checkout signature: HMAC-SHA256 over
// "order_id|payment_id" keyed with the API secret.
func (r *Razorpay) VerifyWebhook(signature string, params map[string]string) error {
	if signature == "" {
		return fmt.Errorf("missing webhook signature")
	}
	orderID := params["razorpay_order_id"]
	paymentID := params["razorpay_payment_id"]
	if orderID == "" || paymentID == "" {
		return fmt.Errorf("missing order or payment id in callback")
	}

	h := hmac.New(sha256.New, []byte(r.keySecret))
	h.Write([]byte(orderID + "|" + paymentID))
	expected := hex.EncodeToString(h.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return fmt.Errorf("invalid webhook signature")
	}
	return nil
}
