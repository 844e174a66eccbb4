package postgres

import (
	"time"

	"gorm.io/gorm"

	"github.com/reckot/payments/internal/core/datamodel/payment"
	"github.com/reckot/payments/internal/core/datamodel/refund"
	"github.com/reckot/payments/internal/core/datamodel/withdrawal"
	withdrawalpkg "github.com/reckot/payments/internal/withdrawal"
)

type WithdrawalRepository struct {
	db *gorm.DB
}

func NewWithdrawalRepository(db *gorm.DB) withdrawalpkg.RepositoryAPI {
	return &WithdrawalRepository{
		db: db,
	}
}

func (r *WithdrawalRepository) Create(w *withdrawal.Withdrawal) error {
	return r.db.Create(w).Error
}

func (r *WithdrawalRepository) GetByID(id int64) (*withdrawal.Withdrawal, error) {
	var w withdrawal.Withdrawal
	err := r.db.First(&w, id).Error
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *WithdrawalRepository) GetByReference(reference string) (*withdrawal.Withdrawal, error) {
	var w withdrawal.Withdrawal
	err := r.db.Where("reference = ?", reference).First(&w).Error
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *WithdrawalRepository) ListByOrganization(organizationID int64) ([]*withdrawal.Withdrawal, error) {
	var withdrawals []*withdrawal.Withdrawal
	err := r.db.Where("organization_id = ?", organizationID).Order("created_at DESC").Find(&withdrawals).Error
	return withdrawals, err
}

// UpdateStatus is a guarded transition: the row only moves when it is still
// in the expected source status.
func (r *WithdrawalRepository) UpdateStatus(id int64, from, to string, updates map[string]interface{}) (bool, error) {
	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["status"] = to
	updates["updated_at"] = time.Now()

	result := r.db.Model(&withdrawal.Withdrawal{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// AvailableBalance is confirmed ticket revenue for the organization's
// bookings net of gateway fees and platform commission, less everything
// already committed: withdrawals that have not failed and processed refunds.
func (r *WithdrawalRepository) AvailableBalance(organizationID int64, currency string) (int64, error) {
	var balance int64
	err := r.db.Raw(`
		SELECT
			COALESCE((
				SELECT SUM(p.amount - p.service_fee)
				FROM payments p
				JOIN bookings b ON b.id = p.booking_id
				WHERE b.organization_id = ?
				  AND p.currency = ?
				  AND p.status = ?
			), 0)
			- COALESCE((
				SELECT SUM(w.amount)
				FROM withdrawals w
				WHERE w.organization_id = ?
				  AND w.currency = ?
				  AND w.status != ?
			), 0)
			- COALESCE((
				SELECT SUM(rf.amount)
				FROM refunds rf
				JOIN payments p ON p.id = rf.payment_id
				JOIN bookings b ON b.id = p.booking_id
				WHERE b.organization_id = ?
				  AND p.currency = ?
				  AND rf.status = ?
			), 0)
	`,
		organizationID, currency, payment.StatusConfirmed,
		organizationID, currency, withdrawal.StatusFailed,
		organizationID, currency, refund.StatusProcessed,
	).Scan(&balance).Error
	return balance, err
}

func (r *WithdrawalRepository) CreateAuditLog(log *withdrawal.AuditLog) error {
	return r.db.Create(log).Error
}

func (r *WithdrawalRepository) ListAuditLogs(withdrawalID int64) ([]*withdrawal.AuditLog, error) {
	var logs []*withdrawal.AuditLog
	err := r.db.Where("withdrawal_id = ?", withdrawalID).Order("created_at ASC").Find(&logs).Error
	return logs, err
}
