package postgres

import (
	"errors"

	"gorm.io/gorm"

	"github.com/reckot/payments/internal/core/datamodel/gatewayconfig"
	paymentpkg "github.com/reckot/payments/internal/payment"
)

type GatewayConfigRepository struct {
	db *gorm.DB
}

func NewGatewayConfigRepository(db *gorm.DB) paymentpkg.FeeScheduleAPI {
	return &GatewayConfigRepository{
		db: db,
	}
}

// GetForProvider prefers the organization's row for the chosen provider
// and falls back to its default config. No row at all means no fee.
func (r *GatewayConfigRepository) GetForProvider(organizationID int64, provider string) (*gatewayconfig.GatewayConfig, error) {
	var cfg gatewayconfig.GatewayConfig
	err := r.db.Where("organization_id = ? AND provider = ? AND is_active", organizationID, provider).
		First(&cfg).Error
	if err == nil {
		return &cfg, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	err = r.db.Where("organization_id = ? AND is_default AND is_active", organizationID).
		First(&cfg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}
