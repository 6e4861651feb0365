package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/entregalo/entregalo-backend/pkg/db/models"
	"github.com/entregalo/entregalo-backend/pkg/enums"
)

// Repository is the persistence surface over the orders table. Orders are
// owned by the upstream storefront; this engine only reads them and mutates
// status, carrier assignment and reconciliation fields.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	FindByIDsForStore(ctx context.Context, storeID uuid.UUID, orderIDs []uuid.UUID) ([]models.Order, error)
	FindByIDsForStoreLocked(ctx context.Context, storeID uuid.UUID, orderIDs []uuid.UUID) ([]models.Order, error)
	AssignToCarrier(ctx context.Context, orderIDs []uuid.UUID, carrierID uuid.UUID, status enums.OrderStatus) error
	MarkDelivered(ctx context.Context, orderID uuid.UUID, deliveredAt time.Time) error
	MarkReconciled(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus, deliveredAt *time.Time) error
}
