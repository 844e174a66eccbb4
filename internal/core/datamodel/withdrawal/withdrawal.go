package withdrawal

import "time"

// Withdrawal statuses. COMPLETED and FAILED are terminal.
const (
	StatusPending    = "PENDING"
	StatusProcessing = "PROCESSING"
	StatusCompleted  = "COMPLETED"
	StatusFailed     = "FAILED"
)

// Withdrawal is a disbursement of an organization's accumulated
// balance to a mobile money account. GatewayFee, PlatformCommission
// and NetAmount are frozen at creation; a later fee-schedule change
// never alters a pending disbursement.
type Withdrawal struct {
	ID                 int64      `gorm:"primaryKey"`
	OrganizationID     int64      `gorm:"column:organization_id;not null;index"`
	Reference          string     `gorm:"column:reference;not null;uniqueIndex"`
	Amount             int64      `gorm:"column:amount;not null"`
	GatewayFee         int64      `gorm:"column:gateway_fee;not null"`
	PlatformCommission int64      `gorm:"column:platform_commission;not null"`
	NetAmount          int64      `gorm:"column:net_amount;not null"`
	Currency           string     `gorm:"column:currency;size:3;not null"`
	PhoneNumber        string     `gorm:"column:phone_number;not null"`
	Provider           string     `gorm:"column:provider"`
	ExternalReference  string     `gorm:"column:external_reference"`
	Status             string     `gorm:"column:status;default:PENDING;index"`
	FailureReason      string     `gorm:"column:failure_reason"`
	RequestedBy        string     `gorm:"column:requested_by"`
	CreatedAt          time.Time  `gorm:"column:created_at;default:now()"`
	UpdatedAt          time.Time  `gorm:"column:updated_at;default:now()"`
	CompletedAt        *time.Time `gorm:"column:completed_at"`
}

func (Withdrawal) TableName() string {
	return "withdrawals"
}

func (w *Withdrawal) IsTerminal() bool {
	return w.Status == StatusCompleted || w.Status == StatusFailed
}

// AuditLog is an append-only record of a withdrawal status change.
type AuditLog struct {
	ID           int64     `gorm:"primaryKey"`
	WithdrawalID int64     `gorm:"column:withdrawal_id;not null;index"`
	Action       string    `gorm:"column:action;not null"`
	OldStatus    string    `gorm:"column:old_status"`
	NewStatus    string    `gorm:"column:new_status;not null"`
	PerformedBy  string    `gorm:"column:performed_by"`
	Notes        string    `gorm:"column:notes"`
	CreatedAt    time.Time `gorm:"column:created_at;default:now()"`
}

func (AuditLog) TableName() string {
	return "withdrawal_audit_logs"
}
