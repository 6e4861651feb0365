package rates

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/entregalo/entregalo-backend/pkg/db/models"
)

// Repository defines persistence operations for carriers and their rates.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindCarrier(ctx context.Context, carrierID uuid.UUID) (*models.Carrier, error)
	FindCarrierForStore(ctx context.Context, storeID, carrierID uuid.UUID) (*models.Carrier, error)
	FindRateByCity(ctx context.Context, carrierID uuid.UUID, city string) (*models.CarrierRate, error)
	FindRateByZone(ctx context.Context, carrierID uuid.UUID, zone string) (*models.CarrierRate, error)
}
