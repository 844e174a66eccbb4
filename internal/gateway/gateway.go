package gateway

import (
	"context"
	"strings"
)

type Status string

const (
	StatusSuccess   Status = "SUCCESS"
	StatusPending   Status = "PENDING"
	StatusFailed    Status = "FAILED"
	StatusCancelled Status = "CANCELLED"
	StatusUnknown   Status = "UNKNOWN"
)

// Result carries the outcome of a gateway call. Gateways never return a Go
// error from domain operations: transport failures, declines and provider
// rejections all surface as Success=false with a Message, so the caller can
// fall through to the next provider without unwrapping error chains.
type Result struct {
	Success           bool
	Status            Status
	TransactionID     string
	ExternalReference string
	RedirectURL       string
	Message           string
	Raw               map[string]interface{}
}

func Failure(message string) Result {
	return Result{Success: false, Status: StatusFailed, Message: message}
}

type InitiateRequest struct {
	Reference     string
	Amount        int64
	Currency      string
	PhoneNumber   string
	Description   string
	CustomerEmail string
	CallbackURL   string
}

type RefundRequest struct {
	ExternalReference string
	Amount            int64
	Currency          string
	Reason            string
}

type DisburseRequest struct {
	Reference   string
	Amount      int64
	Currency    string
	PhoneNumber string
	Description string
}

type Gateway interface {
	Name() string
	SupportedCurrencies() []string
	Supports(currency string) bool

	Initiate(ctx context.Context, req InitiateRequest) Result

	// Verify looks a payment up by the merchant reference we sent at
	// initiation; CheckStatus by the provider's own id. Providers whose
	// API only exposes one of the two report the other as unsupported.
	Verify(ctx context.Context, reference string) Result
	CheckStatus(ctx context.Context, externalReference string) Result
	Refund(ctx context.Context, req RefundRequest) Result
	Disburse(ctx context.Context, req DisburseRequest) Result

	// VerifyWebhook checks the authenticity of a callback. An empty
	// signature with no configured secret passes; a bad signature fails.
	VerifyWebhook(signature string, params map[string]string) error

	FormatPhone(phone string) string
	WithdrawalFee(amount int64) int64
	PlatformCommission(amount int64) int64
}

const (
	// Flat withdrawal fee for small disbursements, percentage above the
	// threshold. Matched against provider pricing sheets.
	withdrawalFlatFee       = 100
	withdrawalFeeThreshold  = 5000
	withdrawalFeePercent    = 2
	platformCommissionCents = 5
)

// base supplies shared behavior: currency matching, phone normalization and
// the default fee schedule. Providers embed it and override what differs.
type base struct {
	name        string
	currencies  []string
	countryCode string
}

func (b *base) Name() string {
	return b.name
}

func (b *base) SupportedCurrencies() []string {
	return b.currencies
}

func (b *base) Supports(currency string) bool {
	for _, c := range b.currencies {
		if strings.EqualFold(c, currency) {
			return true
		}
	}
	return false
}

// FormatPhone normalizes an MSISDN to international digits without the plus:
// strip formatting, drop leading zeros, then prefix the country code when
// the number is bare local digits.
func (b *base) FormatPhone(phone string) string {
	var digits strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	n := digits.String()
	n = strings.TrimLeft(n, "0")
	if b.countryCode != "" && !strings.HasPrefix(n, b.countryCode) && len(n) <= 9 {
		n = b.countryCode + n
	}
	return n
}

func (b *base) WithdrawalFee(amount int64) int64 {
	if amount < withdrawalFeeThreshold {
		return withdrawalFlatFee
	}
	return amount * withdrawalFeePercent / 100
}

func (b *base) PlatformCommission(amount int64) int64 {
	return amount * platformCommissionCents / 100
}

func (b *base) Verify(ctx context.Context, reference string) Result {
	return Failure(b.name + " does not support status lookup by merchant reference")
}

func (b *base) Refund(ctx context.Context, req RefundRequest) Result {
	return Failure(b.name + " does not support refunds")
}

func (b *base) Disburse(ctx context.Context, req DisburseRequest) Result {
	return Failure(b.name + " does not support disbursements")
}

func (b *base) VerifyWebhook(signature string, params map[string]string) error {
	return nil
}
