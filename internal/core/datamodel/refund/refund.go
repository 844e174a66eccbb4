package refund

import "time"

// Refund statuses. REJECTED and PROCESSED are terminal.
const (
	StatusPending   = "PENDING"
	StatusApproved  = "APPROVED"
	StatusProcessed = "PROCESSED"
	StatusRejected  = "REJECTED"
)

const (
	TypeFull    = "FULL"
	TypePartial = "PARTIAL"
)

type Refund struct {
	ID              int64      `gorm:"primaryKey"`
	PaymentID       int64      `gorm:"column:payment_id;not null;index"`
	Reference       string     `gorm:"column:reference;not null;uniqueIndex"`
	Amount          int64      `gorm:"column:amount;not null"`
	RefundType      string     `gorm:"column:refund_type;default:FULL"`
	Status          string     `gorm:"column:status;default:PENDING;index"`
	Reason          string     `gorm:"column:reason"`
	RejectionReason string     `gorm:"column:rejection_reason"`
	RequestedBy     string     `gorm:"column:requested_by"`
	ProcessedBy     string     `gorm:"column:processed_by"`
	CreatedAt       time.Time  `gorm:"column:created_at;default:now()"`
	UpdatedAt       time.Time  `gorm:"column:updated_at;default:now()"`
	ProcessedAt     *time.Time `gorm:"column:processed_at"`
}

func (Refund) TableName() string {
	return "refunds"
}

// Open reports whether the refund still blocks a new refund request
// for the same payment. Only a rejected refund frees the payment up.
func (r *Refund) Open() bool {
	return r.Status != StatusRejected
}

// AuditLog is an append-only record of a refund status change.
type AuditLog struct {
	ID          int64     `gorm:"primaryKey"`
	RefundID    int64     `gorm:"column:refund_id;not null;index"`
	Action      string    `gorm:"column:action;not null"`
	OldStatus   string    `gorm:"column:old_status"`
	NewStatus   string    `gorm:"column:new_status;not null"`
	PerformedBy string    `gorm:"column:performed_by"`
	Notes       string    `gorm:"column:notes"`
	CreatedAt   time.Time `gorm:"column:created_at;default:now()"`
}

func (AuditLog) TableName() string {
	return "refund_audit_logs"
}
