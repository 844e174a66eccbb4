package postgres

import (
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/reckot/payments/internal/core/datamodel/payment"
	paymentpkg "github.com/reckot/payments/internal/payment"
)

type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) paymentpkg.RepositoryAPI {
	return &PaymentRepository{
		db: db,
	}
}

func (r *PaymentRepository) Create(p *payment.Payment) error {
	return r.db.Create(p).Error
}

func (r *PaymentRepository) GetByID(id int64) (*payment.Payment, error) {
	var p payment.Payment
	err := r.db.First(&p, id).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PaymentRepository) GetByReference(reference string) (*payment.Payment, error) {
	var p payment.Payment
	err := r.db.Where("reference = ?", reference).First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PaymentRepository) GetByExternalReference(externalReference string) (*payment.Payment, error) {
	var p payment.Payment
	err := r.db.Where("external_reference = ?", externalReference).First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PaymentRepository) GetActiveByBooking(bookingID int64) (*payment.Payment, error) {
	var p payment.Payment
	err := r.db.Where("booking_id = ? AND status = ?", bookingID, payment.StatusPending).
		Order("created_at DESC").
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PaymentRepository) ListByBooking(bookingID int64) ([]*payment.Payment, error) {
	var payments []*payment.Payment
	err := r.db.Where("booking_id = ?", bookingID).Order("created_at DESC").Find(&payments).Error
	return payments, err
}

func (r *PaymentRepository) UpdateGatewayDetails(id int64, provider, externalReference, redirectURL string, serviceFee int64) error {
	updates := map[string]interface{}{
		"provider":   provider,
		"updated_at": time.Now(),
	}
	if externalReference != "" {
		updates["external_reference"] = externalReference
	}
	if redirectURL != "" {
		updates["redirect_url"] = redirectURL
	}
	if serviceFee > 0 {
		updates["service_fee"] = serviceFee
	}
	return r.db.Model(&payment.Payment{}).Where("id = ?", id).Updates(updates).Error
}

func (r *PaymentRepository) UpdateMetadata(id int64, metadata json.RawMessage) error {
	return r.db.Model(&payment.Payment{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"metadata":   metadata,
			"updated_at": time.Now(),
		}).Error
}

// MarkConfirmed moves a payment to confirmed iff it is still pending. The
// status guard in the WHERE clause makes the transition a compare-and-swap:
// a concurrent confirm or fail wins the row and this call reports false.
func (r *PaymentRepository) MarkConfirmed(id int64, externalReference string, confirmedAt time.Time) (bool, error) {
	updates := map[string]interface{}{
		"status":       payment.StatusConfirmed,
		"confirmed_at": confirmedAt,
		"updated_at":   time.Now(),
	}
	if externalReference != "" {
		updates["external_reference"] = externalReference
	}

	result := r.db.Model(&payment.Payment{}).
		Where("id = ? AND status = ?", id, payment.StatusPending).
		Updates(updates)
	return result.RowsAffected > 0, result.Error
}

func (r *PaymentRepository) MarkFailed(id int64) (bool, error) {
	result := r.db.Model(&payment.Payment{}).
		Where("id = ? AND status = ?", id, payment.StatusPending).
		Updates(map[string]interface{}{
			"status":     payment.StatusFailed,
			"updated_at": time.Now(),
		})
	return result.RowsAffected > 0, result.Error
}

func (r *PaymentRepository) MarkExpired(id int64) (bool, error) {
	result := r.db.Model(&payment.Payment{}).
		Where("id = ? AND status = ?", id, payment.StatusPending).
		Updates(map[string]interface{}{
			"status":     payment.StatusExpired,
			"updated_at": time.Now(),
		})
	return result.RowsAffected > 0, result.Error
}

// ResetForRetry reopens a failed or expired payment with a fresh window.
func (r *PaymentRepository) ResetForRetry(id int64, expiresAt time.Time) (bool, error) {
	result := r.db.Model(&payment.Payment{}).
		Where("id = ? AND status IN ?", id, []string{payment.StatusFailed, payment.StatusExpired}).
		Updates(map[string]interface{}{
			"status":     payment.StatusPending,
			"expires_at": expiresAt,
			"updated_at": time.Now(),
		})
	return result.RowsAffected > 0, result.Error
}

// SweepExpired retires every pending payment whose window lapsed. The
// update guards on status, so a payment confirmed between the read and the
// write is left alone; only rows the update actually moved are returned,
// re-read after the write, so callers emit events for those alone.
func (r *PaymentRepository) SweepExpired(now time.Time) ([]*payment.Payment, error) {
	var lapsed []*payment.Payment
	err := r.db.Where("status = ? AND expires_at < ?", payment.StatusPending, now).Find(&lapsed).Error
	if err != nil {
		return nil, err
	}
	if len(lapsed) == 0 {
		return nil, nil
	}

	ids := make([]int64, 0, len(lapsed))
	for _, p := range lapsed {
		ids = append(ids, p.ID)
	}

	result := r.db.Model(&payment.Payment{}).
		Where("id IN ? AND status = ?", ids, payment.StatusPending).
		Updates(map[string]interface{}{
			"status":     payment.StatusExpired,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}

	var moved []*payment.Payment
	err = r.db.Where("id IN ? AND status = ?", ids, payment.StatusExpired).Find(&moved).Error
	if err != nil {
		return nil, err
	}
	return moved, nil
}

func (r *PaymentRepository) Stats() (*paymentpkg.StatsResponse, error) {
	stats := &paymentpkg.StatsResponse{}

	type statusCount struct {
		Status string
		Count  int64
	}
	var counts []statusCount
	err := r.db.Model(&payment.Payment{}).
		Select("status, COUNT(*) as count").
		Group("status").
		Scan(&counts).Error
	if err != nil {
		return nil, err
	}

	for _, c := range counts {
		stats.TotalCount += c.Count
		switch c.Status {
		case payment.StatusPending:
			stats.PendingCount = c.Count
		case payment.StatusConfirmed:
			stats.ConfirmedCount = c.Count
		case payment.StatusFailed:
			stats.FailedCount = c.Count
		case payment.StatusExpired:
			stats.ExpiredCount = c.Count
		}
	}

	err = r.db.Model(&payment.Payment{}).
		Where("status = ?", payment.StatusConfirmed).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&stats.ConfirmedAmount).Error
	if err != nil {
		return nil, err
	}

	return stats, nil
}
