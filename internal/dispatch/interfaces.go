package dispatch

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/entregalo/entregalo-backend/pkg/db/models"
	"github.com/entregalo/entregalo-backend/pkg/enums"
)

// Repository defines persistence operations for dispatch sessions and their
// lines.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateSession(ctx context.Context, session *models.DispatchSession) (*models.DispatchSession, error)
	CreateLines(ctx context.Context, lines []models.DispatchedOrder) error
	FindSession(ctx context.Context, sessionID uuid.UUID) (*models.DispatchSession, error)
	FindSessionForStore(ctx context.Context, storeID, sessionID uuid.UUID) (*models.DispatchSession, error)
	FindSessionsByDate(ctx context.Context, storeID, carrierID uuid.UUID, date time.Time) ([]models.DispatchSession, error)
	FindActiveSessionOrderIDs(ctx context.Context, orderIDs []uuid.UUID) ([]uuid.UUID, error)
	FindLine(ctx context.Context, sessionID, orderID uuid.UUID) (*models.DispatchedOrder, error)
	UpdateLineOutcome(ctx context.Context, lineID uuid.UUID, updates map[string]any) error
	UpdateSessionStatus(ctx context.Context, sessionID uuid.UUID, status enums.DispatchSessionStatus, at time.Time) error
}
