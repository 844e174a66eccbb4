package postgres

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/reckot/payments/internal/core/datamodel/refund"
	refundpkg "github.com/reckot/payments/internal/refund"
)

type RefundRepository struct {
	db *gorm.DB
}

func NewRefundRepository(db *gorm.DB) refundpkg.RepositoryAPI {
	return &RefundRepository{
		db: db,
	}
}

func (r *RefundRepository) Create(ref *refund.Refund) error {
	return r.db.Create(ref).Error
}

func (r *RefundRepository) GetByID(id int64) (*refund.Refund, error) {
	var ref refund.Refund
	err := r.db.First(&ref, id).Error
	if err != nil {
		return nil, err
	}
	return &ref, nil
}

// GetOpenByPayment finds a refund that still blocks new requests. Only a
// rejected refund frees the payment.
func (r *RefundRepository) GetOpenByPayment(paymentID int64) (*refund.Refund, error) {
	var ref refund.Refund
	err := r.db.Where("payment_id = ? AND status != ?", paymentID, refund.StatusRejected).
		Order("created_at DESC").
		First(&ref).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ref, nil
}

func (r *RefundRepository) ListByPayment(paymentID int64) ([]*refund.Refund, error) {
	var refunds []*refund.Refund
	err := r.db.Where("payment_id = ?", paymentID).Order("created_at DESC").Find(&refunds).Error
	return refunds, err
}

// UpdateStatus is a guarded transition: the row only moves when it is still
// in the expected source status.
func (r *RefundRepository) UpdateStatus(id int64, from, to string, updates map[string]interface{}) (bool, error) {
	values := map[string]interface{}{
		"status":     to,
		"updated_at": time.Now(),
	}
	for k, v := range updates {
		values[k] = v
	}

	result := r.db.Model(&refund.Refund{}).
		Where("id = ? AND status = ?", id, from).
		Updates(values)
	return result.RowsAffected > 0, result.Error
}

func (r *RefundRepository) CreateAuditLog(log *refund.AuditLog) error {
	return r.db.Create(log).Error
}

func (r *RefundRepository) ListAuditLogs(refundID int64) ([]*refund.AuditLog, error) {
	var logs []*refund.AuditLog
	err := r.db.Where("refund_id = ?", refundID).Order("created_at ASC").Find(&logs).Error
	return logs, err
}
