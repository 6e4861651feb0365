package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/entregalo/entregalo-backend/pkg/db/models"
	"github.com/entregalo/entregalo-backend/pkg/enums"
)

type repository struct {
	db *gorm.DB
	// lockingSupported is false under sqlite, which has no FOR UPDATE.
	lockingSupported bool
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db, lockingSupported: db != nil && db.Dialector.Name() == "postgres"}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx, lockingSupported: r.lockingSupported}
}

func (r *repository) FindByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Where("id = ?", orderID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindByIDsForStore(ctx context.Context, storeID uuid.UUID, orderIDs []uuid.UUID) ([]models.Order, error) {
	if len(orderIDs) == 0 {
		return nil, nil
	}
	var rows []models.Order
	err := r.db.WithContext(ctx).
		Where("store_id = ? AND id IN ?", storeID, orderIDs).
		Find(&rows).Error
	return rows, err
}

// FindByIDsForStoreLocked fetches orders with FOR UPDATE NOWAIT so a
// competing dispatch or reconciliation fails fast instead of queueing.
func (r *repository) FindByIDsForStoreLocked(ctx context.Context, storeID uuid.UUID, orderIDs []uuid.UUID) ([]models.Order, error) {
	if len(orderIDs) == 0 {
		return nil, nil
	}
	query := r.db.WithContext(ctx)
	if r.lockingSupported {
		query = query.Clauses(clause.Locking{Strength: "UPDATE", Options: "NOWAIT"})
	}
	var rows []models.Order
	err := query.
		Where("store_id = ? AND id IN ?", storeID, orderIDs).
		Find(&rows).Error
	return rows, err
}

func (r *repository) AssignToCarrier(ctx context.Context, orderIDs []uuid.UUID, carrierID uuid.UUID, status enums.OrderStatus) error {
	if len(orderIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id IN ?", orderIDs).
		Updates(map[string]any{
			"carrier_id": carrierID,
			"status":     status,
			"updated_at": time.Now(),
		}).Error
}

func (r *repository) MarkDelivered(ctx context.Context, orderID uuid.UUID, deliveredAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Updates(map[string]any{
			"status":       enums.OrderStatusDelivered,
			"delivered_at": deliveredAt,
			"updated_at":   time.Now(),
		}).Error
}

func (r *repository) MarkReconciled(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus, deliveredAt *time.Time) error {
	updates := map[string]any{
		"status":     status,
		"reconciled": true,
		"updated_at": time.Now(),
	}
	if deliveredAt != nil {
		updates["delivered_at"] = *deliveredAt
	}
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Updates(updates).Error
}
