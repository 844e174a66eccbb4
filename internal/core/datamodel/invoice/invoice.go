package invoice

import "time"

type Invoice struct {
	ID            int64     `gorm:"primaryKey"`
	PaymentID     int64     `gorm:"column:payment_id;not null;uniqueIndex"`
	Number        string    `gorm:"column:number;not null;uniqueIndex"`
	Amount        int64     `gorm:"column:amount;not null"`
	Currency      string    `gorm:"column:currency;size:3;not null"`
	CustomerEmail string    `gorm:"column:customer_email"`
	Document      []byte    `gorm:"column:document"`
	IssuedAt      time.Time `gorm:"column:issued_at;default:now()"`
}

func (Invoice) TableName() string {
	return "invoices"
}
