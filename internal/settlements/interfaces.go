package settlements

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/entregalo/entregalo-backend/pkg/db/models"
	"github.com/entregalo/entregalo-backend/pkg/pagination"
)

// Repository manages persistence for settlements.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, settlement *models.Settlement) error
	FindForStore(ctx context.Context, storeID, settlementID uuid.UUID) (*models.Settlement, error)
	FindForStoreLocked(ctx context.Context, storeID, settlementID uuid.UUID) (*models.Settlement, error)
	UpdatePayment(ctx context.Context, settlementID uuid.UUID, updates map[string]any) error
	ListPending(ctx context.Context, storeID uuid.UUID, params pagination.Params) (*PendingList, error)
	ExistsForSession(ctx context.Context, sessionID uuid.UUID) (bool, error)
}
