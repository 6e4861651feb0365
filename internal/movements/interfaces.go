package movements

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/entregalo/entregalo-backend/pkg/db/models"
	"github.com/entregalo/entregalo-backend/pkg/enums"
)

// Repository manages persistence for account movements.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Upsert(ctx context.Context, movement *models.AccountMovement) error
	Delete(ctx context.Context, orderID uuid.UUID, movementType enums.MovementType) error
	FindByOrderAndType(ctx context.Context, orderID uuid.UUID, movementType enums.MovementType) (*models.AccountMovement, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.AccountMovement, error)
	ListBySettlement(ctx context.Context, settlementID uuid.UUID) ([]models.AccountMovement, error)
	FindPrepaidCodAnomalies(ctx context.Context, limit int) ([]models.AccountMovement, error)
	FindDeliveredOrdersMissingFee(ctx context.Context, limit int) ([]models.Order, error)
	CountPrepaidCodAnomalies(ctx context.Context) (int64, error)
	CountDeliveredOrdersMissingFee(ctx context.Context) (int64, error)
	CountByType(ctx context.Context, movementType enums.MovementType) (int64, error)
}
