package rates

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/entregalo/entregalo-backend/pkg/db/models"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a rates repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindCarrier(ctx context.Context, carrierID uuid.UUID) (*models.Carrier, error) {
	var carrier models.Carrier
	err := r.db.WithContext(ctx).
		Where("id = ?", carrierID).
		First(&carrier).Error
	if err != nil {
		return nil, err
	}
	return &carrier, nil
}

func (r *repository) FindCarrierForStore(ctx context.Context, storeID, carrierID uuid.UUID) (*models.Carrier, error) {
	var carrier models.Carrier
	err := r.db.WithContext(ctx).
		Where("id = ? AND store_id = ?", carrierID, storeID).
		First(&carrier).Error
	if err != nil {
		return nil, err
	}
	return &carrier, nil
}

func (r *repository) FindRateByCity(ctx context.Context, carrierID uuid.UUID, city string) (*models.CarrierRate, error) {
	var rate models.CarrierRate
	err := r.db.WithContext(ctx).
		Where("carrier_id = ? AND city = ?", carrierID, city).
		Order("created_at ASC").
		First(&rate).Error
	if err != nil {
		return nil, err
	}
	return &rate, nil
}

func (r *repository) FindRateByZone(ctx context.Context, carrierID uuid.UUID, zone string) (*models.CarrierRate, error) {
	var rate models.CarrierRate
	err := r.db.WithContext(ctx).
		Where("carrier_id = ? AND zone = ? AND city IS NULL", carrierID, zone).
		Order("created_at ASC").
		First(&rate).Error
	if err != nil {
		return nil, err
	}
	return &rate, nil
}
