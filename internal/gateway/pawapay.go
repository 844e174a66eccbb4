package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	pawapaySandboxURL = "https://api.sandbox.pawapay.cloud"
	pawapayProdURL    = "https://api.pawapay.cloud"
)

// PawaPay integrates the pawaPay pan-African deposits and payouts API.
// Deposits are push requests to a mobile money correspondent resolved from
// the payer's MSISDN prefix.
type PawaPay struct {
	base
	baseURL    string
	apiToken   string
	httpClient *http.Client
}

func NewPawaPay(creds map[string]string, countryCode string, httpClient *http.Client) *PawaPay {
	baseURL := pawapayProdURL
	if creds["environment"] == "sandbox" {
		baseURL = pawapaySandboxURL
	}
	if u := creds["base_url"]; u != "" {
		baseURL = u
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &PawaPay{
		base: base{
			name:        "PAWAPAY",
			currencies:  []string{"XAF", "XOF", "GHS", "UGX", "NGN"},
			countryCode: countryCode,
		},
		baseURL:    baseURL,
		apiToken:   creds["api_token"],
		httpClient: httpClient,
	}
}

func (p *PawaPay) call(ctx context.Context, method, path string, payload interface{}) (json.RawMessage, int, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, err
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, body)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiToken)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return raw, resp.StatusCode, nil
}

func (p *PawaPay) Initiate(ctx context.Context, req InitiateRequest) Result {
	msisdn := p.FormatPhone(req.PhoneNumber)
	correspondent := p.correspondentFor(msisdn)
	if correspondent == "" {
		return Failure("pawapay: could not resolve correspondent for " + msisdn)
	}

	depositID := uuid.New().String()
	payload := map[string]interface{}{
		"depositId":     depositID,
		"amount":        strconv.FormatInt(req.Amount, 10),
		"currency":      req.Currency,
		"correspondent": correspondent,
		"payer": map[string]interface{}{
			"type":    "MSISDN",
			"address": map[string]string{"value": msisdn},
		},
		"customerTimestamp":    time.Now().UTC().Format(time.RFC3339),
		"statementDescription": truncateDescription(req.Description),
	}

	raw, status, err := p.call(ctx, http.MethodPost, "/deposits", payload)
	if err != nil {
		return Failure(fmt.Sprintf("pawapay deposit failed: %v", err))
	}

	var resp struct {
		DepositID       string `json:"depositId"`
		Status          string `json:"status"`
		RejectionReason struct {
			RejectionMessage string `json:"rejectionMessage"`
		} `json:"rejectionReason"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return Failure(fmt.Sprintf("pawapay deposit: bad response: %v", err))
	}

	if status != http.StatusOK || (resp.Status != "ACCEPTED" && resp.Status != "SUBMITTED") {
		msg := resp.RejectionReason.RejectionMessage
		if msg == "" {
			msg = fmt.Sprintf("pawapay deposit rejected with status %q (http %d)", resp.Status, status)
		}
		return Failure(msg)
	}

	return Result{
		Success:           true,
		Status:            StatusPending,
		TransactionID:     req.Reference,
		ExternalReference: depositID,
		Raw:               map[string]interface{}{"depositId": depositID, "status": resp.Status, "correspondent": correspondent},
	}
}

func (p *PawaPay) CheckStatus(ctx context.Context, externalReference string) Result {
	raw, status, err := p.call(ctx, http.MethodGet, "/deposits/"+externalReference, nil)
	if err != nil {
		return Result{Success: false, Status: StatusUnknown, Message: fmt.Sprintf("pawapay status check failed: %v", err)}
	}
	if status != http.StatusOK {
		return Result{Success: false, Status: StatusUnknown, Message: fmt.Sprintf("pawapay status check returned %d", status)}
	}

	// The deposits endpoint returns a single-element array.
	var deposits []struct {
		DepositID     string `json:"depositId"`
		Status        string `json:"status"`
		FailureReason struct {
			FailureMessage string `json:"failureMessage"`
		} `json:"failureReason"`
	}
	if err := json.Unmarshal(raw, &deposits); err != nil || len(deposits) == 0 {
		return Result{Success: false, Status: StatusUnknown, Message: "pawapay status check: empty response"}
	}

	mapped := mapPawaPayStatus(deposits[0].Status)
	return Result{
		Success:           mapped == StatusSuccess,
		Status:            mapped,
		ExternalReference: externalReference,
		Message:           deposits[0].FailureReason.FailureMessage,
		Raw:               map[string]interface{}{"status": deposits[0].Status},
	}
}

func (p *PawaPay) Disburse(ctx context.Context, req DisburseRequest) Result {
	msisdn := p.FormatPhone(req.PhoneNumber)
	correspondent := p.correspondentFor(msisdn)
	if correspondent == "" {
		return Failure("pawapay: could not resolve correspondent for " + msisdn)
	}

	payoutID := uuid.New().String()
	payload := map[string]interface{}{
		"payoutId":      payoutID,
		"amount":        strconv.FormatInt(req.Amount, 10),
		"currency":      req.Currency,
		"correspondent": correspondent,
		"recipient": map[string]interface{}{
			"type":    "MSISDN",
			"address": map[string]string{"value": msisdn},
		},
		"customerTimestamp":    time.Now().UTC().Format(time.RFC3339),
		"statementDescription": truncateDescription(req.Description),
	}

	raw, status, err := p.call(ctx, http.MethodPost, "/payouts", payload)
	if err != nil {
		return Failure(fmt.Sprintf("pawapay payout failed: %v", err))
	}

	var resp struct {
		PayoutID string `json:"payoutId"`
		Status   string `json:"status"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return Failure(fmt.Sprintf("pawapay payout: bad response: %v", err))
	}
	if status != http.StatusOK || (resp.Status != "ACCEPTED" && resp.Status != "SUBMITTED") {
		return Failure(fmt.Sprintf("pawapay payout rejected with status %q (http %d)", resp.Status, status))
	}

	return Result{
		Success:           true,
		Status:            StatusPending,
		TransactionID:     req.Reference,
		ExternalReference: payoutID,
	}
}

// correspondentFor maps a Cameroonian MSISDN to its mobile money operator by
// prefix. MTN holds 67x and 650-654, Orange holds 69x and 655-659.
func (p *PawaPay) correspondentFor(msisdn string) string {
	local := strings.TrimPrefix(msisdn, "237")
	if len(local) < 3 {
		return ""
	}

	switch {
	case strings.HasPrefix(local, "67"), strings.HasPrefix(local, "68"):
		return "MTN_MOMO_CMR"
	case strings.HasPrefix(local, "69"):
		return "ORANGE_CMR"
	case strings.HasPrefix(local, "65"):
		third := local[2]
		if third >= '0' && third <= '4' {
			return "MTN_MOMO_CMR"
		}
		return "ORANGE_CMR"
	}
	return ""
}

func mapPawaPayStatus(status string) Status {
	switch status {
	case "COMPLETED":
		return StatusSuccess
	case "ACCEPTED", "SUBMITTED", "ENQUEUED":
		return StatusPending
	case "FAILED":
		return StatusFailed
	case "CANCELLED", "REJECTED":
		return StatusCancelled
	default:
		return StatusUnknown
	}
}

func truncateDescription(s string) string {
	// pawaPay caps statement descriptions at 22 characters.
	if len(s) > 22 {
		return s[:22]
	}
	if s == "" {
		return "Ticket payment"
	}
	return s
}
