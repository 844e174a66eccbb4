package postgres

import (
	"gorm.io/gorm"

	"github.com/reckot/payments/internal/core/datamodel/booking"
)

// BookingRepository reads the booking rows the ticketing flow writes.
// The payments core never mutates them.
type BookingRepository struct {
	db *gorm.DB
}

func NewBookingRepository(db *gorm.DB) *BookingRepository {
	return &BookingRepository{
		db: db,
	}
}

func (r *BookingRepository) GetByID(id int64) (*booking.Booking, error) {
	var b booking.Booking
	err := r.db.First(&b, id).Error
	if err != nil {
		return nil, err
	}
	return &b, nil
}
