package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	campayDemoURL = "https://demo.campay.net/api"
	campayProdURL = "https://www.campay.net/api"

	campayTokenTTL = 55 * time.Minute
)

// CamPay integrates the CamPay mobile money aggregator (XAF only). Auth is a
// short-lived token obtained from app credentials and cached until shortly
// before expiry. Webhook callbacks are signed with an HS256 JWT.
type CamPay struct {
	base
	baseURL    string
	username   string
	password   string
	webhookKey string
	httpClient *http.Client

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

func NewCamPay(creds map[string]string, countryCode string, httpClient *http.Client) *CamPay {
	baseURL := campayProdURL
	if creds["environment"] == "demo" {
		baseURL = campayDemoURL
	}
	if u := creds["base_url"]; u != "" {
		baseURL = u
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &CamPay{
		base: base{
			name:        "CAMPAY",
			currencies:  []string{"XAF"},
			countryCode: countryCode,
		},
		baseURL:    baseURL,
		username:   creds["app_username"],
		password:   creds["app_password"],
		webhookKey: creds["webhook_key"],
		httpClient: httpClient,
	}
}

func (c *CamPay) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	body, _ := json.Marshal(map[string]string{
		"username": c.username,
		"password": c.password,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/token/", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("token request returned %d: %s", resp.StatusCode, string(raw))
	}

	var tokenResp struct {
		Token     string `json:"token"`
		ExpiresIn int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", err
	}
	if tokenResp.Token == "" {
		return "", fmt.Errorf("token response missing token")
	}

	c.token = tokenResp.Token
	ttl := campayTokenTTL
	if tokenResp.ExpiresIn > 0 {
		ttl = time.Duration(tokenResp.ExpiresIn-300) * time.Second
	}
	c.tokenExpiry = time.Now().Add(ttl)
	return c.token, nil
}

func (c *CamPay) call(ctx context.Context, method, path string, payload interface{}) (map[string]interface{}, int, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("campay auth: %w", err)
	}

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, err
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Token "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	var decoded map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil && err != io.EOF {
		return nil, resp.StatusCode, err
	}
	return decoded, resp.StatusCode, nil
}

func (c *CamPay) Initiate(ctx context.Context, req InitiateRequest) Result {
	payload := map[string]string{
		"amount":             strconv.FormatInt(req.Amount, 10),
		"currency":           req.Currency,
		"from":               c.FormatPhone(req.PhoneNumber),
		"description":        req.Description,
		"external_reference": req.Reference,
	}

	resp, status, err := c.call(ctx, http.MethodPost, "/collect/", payload)
	if err != nil {
		return Failure(fmt.Sprintf("campay collect failed: %v", err))
	}
	if status != http.StatusOK {
		return Failure(fmt.Sprintf("campay collect returned %d: %s", status, stringField(resp, "message")))
	}

	reference := stringField(resp, "reference")
	if reference == "" {
		return Failure("campay collect response missing reference")
	}

	return Result{
		Success:           true,
		Status:            StatusPending,
		TransactionID:     req.Reference,
		ExternalReference: reference,
		Message:           stringField(resp, "ussd_code"),
		Raw:               resp,
	}
}

// Verify and CheckStatus hit the same transaction endpoint: CamPay keys
// status lookups by its transaction reference either way.
func (c *CamPay) Verify(ctx context.Context, reference string) Result {
	return c.CheckStatus(ctx, reference)
}

func (c *CamPay) CheckStatus(ctx context.Context, externalReference string) Result {
	resp, status, err := c.call(ctx, http.MethodGet, "/transaction/"+externalReference+"/", nil)
	if err != nil {
		return Result{Success: false, Status: StatusUnknown, Message: fmt.Sprintf("campay status check failed: %v", err)}
	}
	if status != http.StatusOK {
		return Result{Success: false, Status: StatusUnknown, Message: fmt.Sprintf("campay status check returned %d", status)}
	}

	mapped := mapCamPayStatus(stringField(resp, "status"))
	return Result{
		Success:           mapped == StatusSuccess,
		Status:            mapped,
		ExternalReference: externalReference,
		Message:           stringField(resp, "reason"),
		Raw:               resp,
	}
}

func (c *CamPay) Disburse(ctx context.Context, req DisburseRequest) Result {
	payload := map[string]string{
		"amount":             strconv.FormatInt(req.Amount, 10),
		"to":                 c.FormatPhone(req.PhoneNumber),
		"description":        req.Description,
		"external_reference": req.Reference,
	}

	resp, status, err := c.call(ctx, http.MethodPost, "/withdraw/", payload)
	if err != nil {
		return Failure(fmt.Sprintf("campay withdraw failed: %v", err))
	}
	if status != http.StatusOK {
		return Failure(fmt.Sprintf("campay withdraw returned %d: %s", status, stringField(resp, "message")))
	}

	reference := stringField(resp, "reference")
	if reference == "" {
		return Failure("campay withdraw response missing reference")
	}

	return Result{
		Success:           true,
		Status:            StatusPending,
		TransactionID:     req.Reference,
		ExternalReference: reference,
		Raw:               resp,
	}
}

// VerifyWebhook validates the signature query parameter as an HS256 JWT
// issued with the app webhook key.
func (c *CamPay) VerifyWebhook(signature string, params map[string]string) error {
	if signature == "" {
		if c.webhookKey == "" {
			return nil
		}
		return fmt.Errorf("missing webhook signature")
	}

	_, err := jwt.Parse(signature, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(c.webhookKey), nil
	})
	if err != nil {
		return fmt.Errorf("invalid webhook signature: %w", err)
	}
	return nil
}

func mapCamPayStatus(status string) Status {
	switch status {
	case "SUCCESSFUL":
		return StatusSuccess
	case "PENDING":
		return StatusPending
	case "FAILED":
		return StatusFailed
	default:
		return StatusUnknown
	}
}

func stringField(m map[string]interface{}, key string) string {
	if m == nil {
		return ""
	}
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}
