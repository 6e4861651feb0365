package dispatch

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/entregalo/entregalo-backend/pkg/db/models"
	"github.com/entregalo/entregalo-backend/pkg/enums"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a dispatch repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateSession(ctx context.Context, session *models.DispatchSession) (*models.DispatchSession, error) {
	if err := r.db.WithContext(ctx).Omit("Lines").Create(session).Error; err != nil {
		return nil, err
	}
	return session, nil
}

func (r *repository) CreateLines(ctx context.Context, lines []models.DispatchedOrder) error {
	if len(lines) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&lines).Error
}

func (r *repository) FindSession(ctx context.Context, sessionID uuid.UUID) (*models.DispatchSession, error) {
	var session models.DispatchSession
	err := r.db.WithContext(ctx).
		Preload("Lines").
		Where("id = ?", sessionID).
		First(&session).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *repository) FindSessionForStore(ctx context.Context, storeID, sessionID uuid.UUID) (*models.DispatchSession, error) {
	var session models.DispatchSession
	err := r.db.WithContext(ctx).
		Preload("Lines").
		Where("id = ? AND store_id = ?", sessionID, storeID).
		First(&session).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *repository) FindSessionsByDate(ctx context.Context, storeID, carrierID uuid.UUID, date time.Time) ([]models.DispatchSession, error) {
	var sessions []models.DispatchSession
	err := r.db.WithContext(ctx).
		Preload("Lines").
		Where("store_id = ? AND carrier_id = ? AND dispatch_date = ?", storeID, carrierID, date.Format("2006-01-02")).
		Order("created_at ASC").
		Find(&sessions).Error
	return sessions, err
}

// FindActiveSessionOrderIDs returns the subset of orderIDs that already
// belong to a session whose status is not terminal.
func (r *repository) FindActiveSessionOrderIDs(ctx context.Context, orderIDs []uuid.UUID) ([]uuid.UUID, error) {
	if len(orderIDs) == 0 {
		return nil, nil
	}
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.DispatchedOrder{}).
		Select("dispatched_orders.order_id").
		Joins("JOIN dispatch_sessions s ON s.id = dispatched_orders.session_id").
		Where("dispatched_orders.order_id IN ?", orderIDs).
		Where("s.status NOT IN ?", []enums.DispatchSessionStatus{
			enums.DispatchSessionStatusSettled,
			enums.DispatchSessionStatusCancelled,
		}).
		Scan(&ids).Error
	return ids, err
}

func (r *repository) FindLine(ctx context.Context, sessionID, orderID uuid.UUID) (*models.DispatchedOrder, error) {
	var line models.DispatchedOrder
	err := r.db.WithContext(ctx).
		Where("session_id = ? AND order_id = ?", sessionID, orderID).
		First(&line).Error
	if err != nil {
		return nil, err
	}
	return &line, nil
}

func (r *repository) UpdateLineOutcome(ctx context.Context, lineID uuid.UUID, updates map[string]any) error {
	updates["updated_at"] = time.Now()
	return r.db.WithContext(ctx).
		Model(&models.DispatchedOrder{}).
		Where("id = ?", lineID).
		Updates(updates).Error
}

func (r *repository) UpdateSessionStatus(ctx context.Context, sessionID uuid.UUID, status enums.DispatchSessionStatus, at time.Time) error {
	updates := map[string]any{
		"status":     status,
		"updated_at": at,
	}
	switch status {
	case enums.DispatchSessionStatusSettled:
		updates["settled_at"] = at
	case enums.DispatchSessionStatusCancelled:
		updates["cancelled_at"] = at
	}
	err := r.db.WithContext(ctx).
		Model(&models.DispatchSession{}).
		Where("id = ?", sessionID).
		Updates(updates).Error
	if err != nil {
		return err
	}
	// terminal sessions release their lines so the orders can re-dispatch;
	// the partial unique index on (order_id) WHERE active relies on this
	if status.IsTerminal() {
		return r.db.WithContext(ctx).
			Model(&models.DispatchedOrder{}).
			Where("session_id = ?", sessionID).
			Update("active", false).Error
	}
	return nil
}
