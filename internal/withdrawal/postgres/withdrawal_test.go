package postgres

import (
	"testing"
	"time"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/reckot/payments/internal/core/datamodel/refund"
	"github.com/reckot/payments/internal/core/datamodel/withdrawal"
	withdrawalpkg "github.com/reckot/payments/internal/withdrawal"
)

func TestWithdrawalRepository(t *testing.T) {
	gomega.RegisterFailHandler(ginkgo.Fail)
	ginkgo.RunSpecs(t, "Withdrawal Repository Suite")
}

// PaymentSQLite mirrors the payments table with text instead of jsonb for SQLite compatibility
type PaymentSQLite struct {
	ID                int64      `gorm:"primaryKey"`
	BookingID         int64      `gorm:"column:booking_id;not null"`
	Reference         string     `gorm:"column:reference;not null;uniqueIndex"`
	Amount            int64      `gorm:"column:amount;not null"`
	ServiceFee        int64      `gorm:"column:service_fee;default:0"`
	Currency          string     `gorm:"column:currency;not null"`
	Status            string     `gorm:"column:status;default:PENDING"`
	ExternalReference string     `gorm:"column:external_reference"`
	Metadata          string     `gorm:"column:metadata;type:text"`
	CreatedAt         time.Time  `gorm:"column:created_at"`
	UpdatedAt         time.Time  `gorm:"column:updated_at"`
	ConfirmedAt       *time.Time `gorm:"column:confirmed_at"`
	ExpiresAt         time.Time  `gorm:"column:expires_at"`
}

func (PaymentSQLite) TableName() string {
	return "payments"
}

// SQLite-friendly variants of the other tables: no now() column defaults.
type WithdrawalSQLite struct {
	ID                 int64      `gorm:"primaryKey"`
	OrganizationID     int64      `gorm:"column:organization_id;not null"`
	Reference          string     `gorm:"column:reference;not null;uniqueIndex"`
	Amount             int64      `gorm:"column:amount;not null"`
	GatewayFee         int64      `gorm:"column:gateway_fee;not null"`
	PlatformCommission int64      `gorm:"column:platform_commission;not null"`
	NetAmount          int64      `gorm:"column:net_amount;not null"`
	Currency           string     `gorm:"column:currency;not null"`
	PhoneNumber        string     `gorm:"column:phone_number;not null"`
	Provider           string     `gorm:"column:provider"`
	ExternalReference  string     `gorm:"column:external_reference"`
	Status             string     `gorm:"column:status;default:PENDING"`
	FailureReason      string     `gorm:"column:failure_reason"`
	RequestedBy        string     `gorm:"column:requested_by"`
	CreatedAt          time.Time  `gorm:"column:created_at"`
	UpdatedAt          time.Time  `gorm:"column:updated_at"`
	CompletedAt        *time.Time `gorm:"column:completed_at"`
}

func (WithdrawalSQLite) TableName() string {
	return "withdrawals"
}

type AuditLogSQLite struct {
	ID           int64     `gorm:"primaryKey"`
	WithdrawalID int64     `gorm:"column:withdrawal_id;not null"`
	Action       string    `gorm:"column:action;not null"`
	OldStatus    string    `gorm:"column:old_status"`
	NewStatus    string    `gorm:"column:new_status;not null"`
	PerformedBy  string    `gorm:"column:performed_by"`
	Notes        string    `gorm:"column:notes"`
	CreatedAt    time.Time `gorm:"column:created_at"`
}

func (AuditLogSQLite) TableName() string {
	return "withdrawal_audit_logs"
}

type BookingSQLite struct {
	ID             int64     `gorm:"primaryKey"`
	OrganizationID int64     `gorm:"column:organization_id;not null"`
	TotalAmount    int64     `gorm:"column:total_amount;not null"`
	Currency       string    `gorm:"column:currency;not null"`
	CustomerEmail  string    `gorm:"column:customer_email"`
	CreatedAt      time.Time `gorm:"column:created_at"`
}

func (BookingSQLite) TableName() string {
	return "bookings"
}

type RefundSQLite struct {
	ID          int64      `gorm:"primaryKey"`
	PaymentID   int64      `gorm:"column:payment_id;not null"`
	Reference   string     `gorm:"column:reference;not null;uniqueIndex"`
	Amount      int64      `gorm:"column:amount;not null"`
	RefundType  string     `gorm:"column:refund_type;default:FULL"`
	Status      string     `gorm:"column:status;default:PENDING"`
	Reason      string     `gorm:"column:reason"`
	RequestedBy string     `gorm:"column:requested_by"`
	CreatedAt   time.Time  `gorm:"column:created_at"`
	UpdatedAt   time.Time  `gorm:"column:updated_at"`
	ProcessedAt *time.Time `gorm:"column:processed_at"`
}

func (RefundSQLite) TableName() string {
	return "refunds"
}

var _ = ginkgo.Describe("WithdrawalRepository", func() {
	var (
		db   *gorm.DB
		repo withdrawalpkg.RepositoryAPI
	)

	newPending := func(organizationID, amount int64, reference string) *withdrawal.Withdrawal {
		w := &withdrawal.Withdrawal{
			OrganizationID:     organizationID,
			Reference:          reference,
			Amount:             amount,
			GatewayFee:         amount * 2 / 100,
			PlatformCommission: amount * 5 / 100,
			NetAmount:          amount - amount*2/100 - amount*5/100,
			Currency:           "XAF",
			PhoneNumber:        "237670000001",
			Provider:           "CAMPAY",
			Status:             withdrawal.StatusPending,
		}
		gomega.Expect(repo.Create(w)).To(gomega.Succeed())
		return w
	}

	ginkgo.BeforeEach(func() {
		var err error
		db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
			NowFunc: func() time.Time {
				return time.Now().UTC()
			},
		})
		gomega.Expect(err).ToNot(gomega.HaveOccurred())

		err = db.AutoMigrate(&WithdrawalSQLite{}, &AuditLogSQLite{}, &BookingSQLite{}, &RefundSQLite{}, &PaymentSQLite{})
		gomega.Expect(err).ToNot(gomega.HaveOccurred())

		repo = NewWithdrawalRepository(db)
	})

	ginkgo.Describe("UpdateStatus", func() {
		ginkgo.It("moves a row only from the expected status", func() {
			w := newPending(100, 10000, "WDR-1")

			moved, err := repo.UpdateStatus(w.ID, withdrawal.StatusPending, withdrawal.StatusProcessing, nil)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(moved).To(gomega.BeTrue())

			// A second pending->processing move must lose.
			moved, err = repo.UpdateStatus(w.ID, withdrawal.StatusPending, withdrawal.StatusProcessing, nil)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(moved).To(gomega.BeFalse())

			reloaded, err := repo.GetByID(w.ID)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(reloaded.Status).To(gomega.Equal(withdrawal.StatusProcessing))
		})

		ginkgo.It("applies extra column updates alongside the transition", func() {
			w := newPending(100, 10000, "WDR-2")
			_, err := repo.UpdateStatus(w.ID, withdrawal.StatusPending, withdrawal.StatusProcessing, nil)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())

			now := time.Now().UTC()
			moved, err := repo.UpdateStatus(w.ID, withdrawal.StatusProcessing, withdrawal.StatusCompleted, map[string]interface{}{
				"external_reference": "cp-payout-2",
				"completed_at":       now,
			})
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(moved).To(gomega.BeTrue())

			reloaded, _ := repo.GetByID(w.ID)
			gomega.Expect(reloaded.ExternalReference).To(gomega.Equal("cp-payout-2"))
			gomega.Expect(reloaded.CompletedAt).ToNot(gomega.BeNil())
		})
	})

	ginkgo.Describe("AvailableBalance", func() {
		confirmedPayment := func(bookingID, amount, serviceFee int64, reference string) {
			now := time.Now().UTC()
			gomega.Expect(db.Create(&PaymentSQLite{
				BookingID:   bookingID,
				Reference:   reference,
				Amount:      amount,
				ServiceFee:  serviceFee,
				Currency:    "XAF",
				Status:      "CONFIRMED",
				ConfirmedAt: &now,
				ExpiresAt:   now,
			}).Error).To(gomega.Succeed())
		}

		ginkgo.BeforeEach(func() {
			gomega.Expect(db.Create(&BookingSQLite{ID: 1, OrganizationID: 100, TotalAmount: 30000, Currency: "XAF"}).Error).To(gomega.Succeed())
			gomega.Expect(db.Create(&BookingSQLite{ID: 2, OrganizationID: 100, TotalAmount: 20000, Currency: "XAF"}).Error).To(gomega.Succeed())
			gomega.Expect(db.Create(&BookingSQLite{ID: 3, OrganizationID: 200, TotalAmount: 50000, Currency: "XAF"}).Error).To(gomega.Succeed())
		})

		ginkgo.It("sums confirmed revenue net of service fees", func() {
			confirmedPayment(1, 30000, 900, "PAY-1")
			confirmedPayment(2, 20000, 600, "PAY-2")
			// Another organization's revenue stays out of the balance.
			confirmedPayment(3, 50000, 0, "PAY-3")

			balance, err := repo.AvailableBalance(100, "XAF")

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(balance).To(gomega.Equal(int64(48500)))
		})

		ginkgo.It("subtracts open withdrawals and processed refunds", func() {
			confirmedPayment(1, 30000, 0, "PAY-1")
			newPending(100, 10000, "WDR-3")
			// Failed withdrawals release their hold.
			failed := newPending(100, 5000, "WDR-4")
			_, err := repo.UpdateStatus(failed.ID, withdrawal.StatusPending, withdrawal.StatusProcessing, nil)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			_, err = repo.UpdateStatus(failed.ID, withdrawal.StatusProcessing, withdrawal.StatusFailed, nil)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())

			gomega.Expect(db.Create(&RefundSQLite{
				PaymentID: 1,
				Reference: "REF-1",
				Amount:    4000,
				Status:    refund.StatusProcessed,
			}).Error).To(gomega.Succeed())

			balance, err := repo.AvailableBalance(100, "XAF")

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			// 30000 - 10000 held - 4000 refunded; the failed 5000 does not count.
			gomega.Expect(balance).To(gomega.Equal(int64(16000)))
		})

		ginkgo.It("reports zero for an organization with no revenue", func() {
			balance, err := repo.AvailableBalance(999, "XAF")

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(balance).To(gomega.BeZero())
		})
	})
})
