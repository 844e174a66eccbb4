package booking

import "time"

// Booking is the read model of a ticket order. The booking flow that
// creates these rows lives outside this service; the payments core
// only resolves the chargeable amount from them.
type Booking struct {
	ID             int64     `gorm:"primaryKey"`
	OrganizationID int64     `gorm:"column:organization_id;not null;index"`
	TotalAmount    int64     `gorm:"column:total_amount;not null"`
	Currency       string    `gorm:"column:currency;size:3;not null"`
	CustomerEmail  string    `gorm:"column:customer_email"`
	CreatedAt      time.Time `gorm:"column:created_at;default:now()"`
}

func (Booking) TableName() string {
	return "bookings"
}
