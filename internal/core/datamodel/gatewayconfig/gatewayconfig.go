package gatewayconfig

import (
	"encoding/json"
	"time"
)

// Service fee schedules for what the payer is charged on top of the
// ticket price.
const (
	FeeTypeFixed      = "FIXED"
	FeeTypePercentage = "PERCENTAGE"
	FeeTypeBoth       = "BOTH"
)

// GatewayConfig is a per-organization credential and fee policy row
// for one provider. The payments core only reads it; administration of
// these rows lives outside this service.
type GatewayConfig struct {
	ID                   int64           `gorm:"primaryKey"`
	OrganizationID       int64           `gorm:"column:organization_id;not null;index:idx_gateway_configs_org_provider,unique"`
	Provider             string          `gorm:"column:provider;not null;index:idx_gateway_configs_org_provider,unique"`
	IsActive             bool            `gorm:"column:is_active;default:true"`
	IsDefault            bool            `gorm:"column:is_default;default:false"`
	Credentials          json.RawMessage `gorm:"column:credentials;type:jsonb"`
	SupportedCurrencies  json.RawMessage `gorm:"column:supported_currencies;type:jsonb"`
	ServiceFeeType       string          `gorm:"column:service_fee_type;default:PERCENTAGE"`
	ServiceFeeFixed      int64           `gorm:"column:service_fee_fixed;default:0"`
	ServiceFeePercentage float64         `gorm:"column:service_fee_percentage;default:0"`
	CreatedAt            time.Time       `gorm:"column:created_at;default:now()"`
	UpdatedAt            time.Time       `gorm:"column:updated_at;default:now()"`
}

func (GatewayConfig) TableName() string {
	return "payment_gateway_configs"
}

// ServiceFee computes the payer-side fee for an amount under this
// config's schedule. Percentage math is integer and rounds down.
func (c *GatewayConfig) ServiceFee(amount int64) int64 {
	switch c.ServiceFeeType {
	case FeeTypeFixed:
		return c.ServiceFeeFixed
	case FeeTypePercentage:
		return int64(float64(amount) * c.ServiceFeePercentage / 100)
	default:
		return c.ServiceFeeFixed + int64(float64(amount)*c.ServiceFeePercentage/100)
	}
}
