package movements

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
}

// NewRepository builds a movements repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Upsert inserts the movement or, when a row already exists for the same
// (order_id, movement_type), updates it in place. Both the event-driven
// delivery path and the batch reconciliation path converge on one row.
func (r *repository) Upsert(ctx context.Context, movement *models.AccountMovement) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "order_id"},
			{Name: "movement_type"},
		},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"amount_cents":  movement.AmountCents,
			"description":   movement.Description,
			"metadata":      movement.Metadata,
			"session_id":    movement.SessionID,
			"settlement_id": movement.SettlementID,
			"movement_date": movement.MovementDate,
			"updated_at":    time.Now(),
		}),
	}).Create(movement).Error
}

func (r *repository) Delete(ctx context.Context, orderID uuid.UUID, movementType enums.MovementType) error {
	return r.db.WithContext(ctx).
		Where("order_id = ? AND movement_type = ?", orderID, movementType).
		Delete(&models.AccountMovement{}).Error
}

func (r *repository) FindByOrderAndType(ctx context.Context, orderID uuid.UUID, movementType enums.MovementType) (*models.AccountMovement, error) {
	var movement models.AccountMovement
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND movement_type = ?", orderID, movementType).
		First(&movement).Error
	if err != nil {
		return nil, err
	}
	return &movement, nil
}

func (r *repository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.AccountMovement, error) {
	var rows []models.AccountMovement
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) ListBySettlement(ctx context.Context, settlementID uuid.UUID) ([]models.AccountMovement, error) {
	var rows []models.AccountMovement
	err := r.db.WithContext(ctx).
		Where("settlement_id = ?", settlementID).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}

// FindPrepaidCodAnomalies returns cod_collected movements whose order now
// carries a prepaid override. These rows were created before the override was
// set and misattribute revenue until repaired.
func (r *repository) FindPrepaidCodAnomalies(ctx context.Context, limit int) ([]models.AccountMovement, error) {
	var rows []models.AccountMovement
	err := r.db.WithContext(ctx).
		Joins("JOIN orders ON orders.id = account_movements.order_id").
		Where("account_movements.movement_type = ?", enums.MovementTypeCodCollected).
		Where("orders.prepaid_method IS NOT NULL AND orders.prepaid_method != ''").
		Order("account_movements.created_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// FindDeliveredOrdersMissingFee returns delivered orders that never received
// their delivery_fee movement.
func (r *repository) FindDeliveredOrdersMissingFee(ctx context.Context, limit int) ([]models.Order, error) {
	var rows []models.Order
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("orders.status = ?", enums.OrderStatusDelivered).
		Where("NOT EXISTS (SELECT 1 FROM account_movements m WHERE m.order_id = orders.id AND m.movement_type = ?)", enums.MovementTypeDeliveryFee).
		Order("orders.created_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *repository) CountPrepaidCodAnomalies(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.AccountMovement{}).
		Joins("JOIN orders ON orders.id = account_movements.order_id").
		Where("account_movements.movement_type = ?", enums.MovementTypeCodCollected).
		Where("orders.prepaid_method IS NOT NULL AND orders.prepaid_method != ''").
		Count(&count).Error
	return count, err
}

func (r *repository) CountDeliveredOrdersMissingFee(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("orders.status = ?", enums.OrderStatusDelivered).
		Where("NOT EXISTS (SELECT 1 FROM account_movements m WHERE m.order_id = orders.id AND m.movement_type = ?)", enums.MovementTypeDeliveryFee).
		Count(&count).Error
	return count, err
}

func (r *repository) CountByType(ctx context.Context, movementType enums.MovementType) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.AccountMovement{}).
		Where("movement_type = ?", movementType).
		Count(&count).Error
	return count, err
}
