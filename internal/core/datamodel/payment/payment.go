package payment

import (
	"encoding/json"
	"time"
)

// Payment statuses. PENDING is the only non-terminal status; a payment
// never leaves CONFIRMED, FAILED or EXPIRED once it gets there.
const (
	StatusPending   = "PENDING"
	StatusConfirmed = "CONFIRMED"
	StatusFailed    = "FAILED"
	StatusExpired   = "EXPIRED"
)

// PendingTTL is how long a payer has to approve a pending payment.
const PendingTTL = 30 * time.Minute

type Payment struct {
	ID                int64           `gorm:"primaryKey"`
	BookingID         int64           `gorm:"column:booking_id;not null;index"`
	Reference         string          `gorm:"column:reference;not null;uniqueIndex"`
	Amount            int64           `gorm:"column:amount;not null"`
	ServiceFee        int64           `gorm:"column:service_fee;default:0"`
	Currency          string          `gorm:"column:currency;size:3;not null"`
	Provider          string          `gorm:"column:provider"`
	PhoneNumber       string          `gorm:"column:phone_number"`
	CustomerEmail     string          `gorm:"column:customer_email"`
	Status            string          `gorm:"column:status;default:PENDING;index"`
	ExternalReference string          `gorm:"column:external_reference;index"`
	RedirectURL       string          `gorm:"column:redirect_url"`
	Metadata          json.RawMessage `gorm:"column:metadata;type:jsonb"`
	CreatedAt         time.Time       `gorm:"column:created_at;default:now()"`
	UpdatedAt         time.Time       `gorm:"column:updated_at;default:now()"`
	ConfirmedAt       *time.Time      `gorm:"column:confirmed_at"`
	ExpiresAt         time.Time       `gorm:"column:expires_at;not null"`
}

func (Payment) TableName() string {
	return "payments"
}

// IsTerminal reports whether the payment has reached a final status.
func (p *Payment) IsTerminal() bool {
	return p.Status != StatusPending
}

// IsExpired reports whether a still-pending payment is past its
// deadline. Only the sweep job may act on this; request paths treat an
// expired-but-unswept payment as pending so a late provider success is
// still honored.
func (p *Payment) IsExpired(now time.Time) bool {
	return p.Status == StatusPending && now.After(p.ExpiresAt)
}

// TotalAmount is what the payer is actually charged.
func (p *Payment) TotalAmount() int64 {
	return p.Amount + p.ServiceFee
}

// MergeMetadata folds additional keys into the metadata bag without
// overwriting keys that are already present.
func (p *Payment) MergeMetadata(extra map[string]interface{}) error {
	merged := make(map[string]interface{})
	if len(p.Metadata) > 0 {
		if err := json.Unmarshal(p.Metadata, &merged); err != nil {
			return err
		}
	}
	for k, v := range extra {
		if _, exists := merged[k]; !exists {
			merged[k] = v
		}
	}
	raw, err := json.Marshal(merged)
	if err != nil {
		return err
	}
	p.Metadata = raw
	return nil
}
