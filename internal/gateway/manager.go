package gateway

import (
	"context"
	"log/slog"
	"strings"

	"github.com/reckot/payments/internal"
)

// Manager owns the configured provider chain. Candidate ordering is hint
// first, then primary, then fallbacks, deduplicated and filtered by currency
// support. Initiation is strictly sequential: the first provider that accepts
// wins and later candidates are never contacted.
type Manager struct {
	gateways  map[string]Gateway
	primary   string
	fallbacks []string
	logger    *slog.Logger
}

func NewManager(cfg internal.GatewaysConfig, logger *slog.Logger) *Manager {
	m := &Manager{
		gateways:  make(map[string]Gateway),
		primary:   strings.ToUpper(cfg.Primary),
		fallbacks: make([]string, 0, len(cfg.Fallbacks)),
		logger:    logger,
	}

	countryCode := cfg.DefaultCountryCode
	if countryCode == "" {
		countryCode = "237"
	}

	for name, creds := range cfg.Credentials {
		gw := buildGateway(strings.ToUpper(name), creds, countryCode)
		if gw == nil {
			logger.Warn("skipping unknown or misconfigured gateway", "provider", name)
			continue
		}
		m.gateways[gw.Name()] = gw
		logger.Info("gateway registered", "provider", gw.Name(), "currencies", gw.SupportedCurrencies())
	}

	for _, f := range cfg.Fallbacks {
		m.fallbacks = append(m.fallbacks, strings.ToUpper(f))
	}

	return m
}

func buildGateway(name string, creds map[string]string, countryCode string) Gateway {
	switch name {
	case "CAMPAY":
		if creds["app_username"] == "" || creds["app_password"] == "" {
			return nil
		}
		return NewCamPay(creds, countryCode, nil)
	case "PAWAPAY":
		if creds["api_token"] == "" {
			return nil
		}
		return NewPawaPay(creds, countryCode, nil)
	case "RAZORPAY":
		if creds["key_id"] == "" || creds["key_secret"] == "" {
			return nil
		}
		return NewRazorpay(creds, countryCode)
	default:
		return nil
	}
}

// Register adds a gateway directly, replacing any provider of the same name.
func (m *Manager) Register(gw Gateway) {
	m.gateways[gw.Name()] = gw
}

func (m *Manager) Get(name string) (Gateway, bool) {
	gw, ok := m.gateways[strings.ToUpper(name)]
	return gw, ok
}

// Candidates returns the ordered provider chain for a payment. A hint (for
// example the provider a customer picked, or the one a payment already used)
// goes first; the configured primary and fallbacks follow. Providers that do
// not support the currency are dropped.
func (m *Manager) Candidates(hint, currency string) []Gateway {
	ordered := make([]string, 0, 2+len(m.fallbacks))
	if hint != "" {
		ordered = append(ordered, strings.ToUpper(hint))
	}
	ordered = append(ordered, m.primary)
	ordered = append(ordered, m.fallbacks...)

	seen := make(map[string]bool, len(ordered))
	candidates := make([]Gateway, 0, len(ordered))
	for _, name := range ordered {
		if seen[name] {
			continue
		}
		seen[name] = true

		gw, ok := m.gateways[name]
		if !ok {
			continue
		}
		if !gw.Supports(currency) {
			continue
		}
		candidates = append(candidates, gw)
	}
	return candidates
}

// Initiate walks the candidate chain sequentially and returns the first
// accepted result together with the provider that produced it.
func (m *Manager) Initiate(ctx context.Context, hint string, req InitiateRequest) (Gateway, Result) {
	candidates := m.Candidates(hint, req.Currency)
	if len(candidates) == 0 {
		return nil, Failure("no gateway supports currency " + req.Currency)
	}

	var last Result
	for _, gw := range candidates {
		m.logger.Info("initiating payment",
			"provider", gw.Name(),
			"reference", req.Reference,
			"amount", req.Amount,
			"currency", req.Currency)

		last = gw.Initiate(ctx, req)
		if last.Success {
			return gw, last
		}

		m.logger.Warn("gateway declined, trying next candidate",
			"provider", gw.Name(),
			"reference", req.Reference,
			"reason", last.Message)
	}

	return nil, last
}
