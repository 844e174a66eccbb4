package postgres

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/reckot/payments/internal/core/datamodel/invoice"
	invoicepkg "github.com/reckot/payments/internal/invoice"
)

type InvoiceRepository struct {
	db *gorm.DB
}

func NewInvoiceRepository(db *gorm.DB) invoicepkg.RepositoryAPI {
	return &InvoiceRepository{
		db: db,
	}
}

func (r *InvoiceRepository) Create(inv *invoice.Invoice) error {
	return r.db.Create(inv).Error
}

func (r *InvoiceRepository) GetByPayment(paymentID int64) (*invoice.Invoice, error) {
	var inv invoice.Invoice
	err := r.db.Where("payment_id = ?", paymentID).First(&inv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *InvoiceRepository) GetByNumber(number string) (*invoice.Invoice, error) {
	var inv invoice.Invoice
	err := r.db.Where("number = ?", number).First(&inv).Error
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// NextSequence counts issued invoices for the year. Numbers stay unique
// under concurrency because the unique index on number forces the loser
// of a race to retry through the service's create fallback.
func (r *InvoiceRepository) NextSequence(year int) (int64, error) {
	var count int64
	err := r.db.Model(&invoice.Invoice{}).
		Where("issued_at >= ? AND issued_at < ?",
			yearStart(year), yearStart(year+1)).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count + 1, nil
}

func yearStart(year int) time.Time {
	return time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
}
