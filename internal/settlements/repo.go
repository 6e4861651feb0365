package settlements

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/entregalo/entregalo-backend/pkg/db/models"
	"github.com/entregalo/entregalo-backend/pkg/enums"
	"github.com/entregalo/entregalo-backend/pkg/pagination"
)

type repository struct {
	db *gorm.DB
	// lockingSupported is false under sqlite, which has no FOR UPDATE.
	lockingSupported bool
}

// NewRepository builds a settlements repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db, lockingSupported: db != nil && db.Dialector.Name() == "postgres"}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx, lockingSupported: r.lockingSupported}
}

func (r *repository) Create(ctx context.Context, settlement *models.Settlement) error {
	return r.db.WithContext(ctx).Create(settlement).Error
}

func (r *repository) FindForStore(ctx context.Context, storeID, settlementID uuid.UUID) (*models.Settlement, error) {
	var settlement models.Settlement
	err := r.db.WithContext(ctx).
		Where("id = ? AND store_id = ?", settlementID, storeID).
		First(&settlement).Error
	if err != nil {
		return nil, err
	}
	return &settlement, nil
}

// FindForStoreLocked fetches the settlement FOR UPDATE. The row lock is held
// until the surrounding transaction commits, serializing concurrent payments.
func (r *repository) FindForStoreLocked(ctx context.Context, storeID, settlementID uuid.UUID) (*models.Settlement, error) {
	query := r.db.WithContext(ctx)
	if r.lockingSupported {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var settlement models.Settlement
	err := query.
		Where("id = ? AND store_id = ?", settlementID, storeID).
		First(&settlement).Error
	if err != nil {
		return nil, err
	}
	return &settlement, nil
}

func (r *repository) UpdatePayment(ctx context.Context, settlementID uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Settlement{}).
		Where("id = ?", settlementID).
		Updates(updates).Error
}

func (r *repository) ListPending(ctx context.Context, storeID uuid.UUID, params pagination.Params) (*PendingList, error) {
	limit := pagination.NormalizeLimit(params.Limit)

	query := r.db.WithContext(ctx).
		Where("store_id = ?", storeID).
		Where("status IN ?", []enums.SettlementStatus{
			enums.SettlementStatusPending,
			enums.SettlementStatusPartial,
		}).
		Order("created_at DESC").
		Order("id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit))

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}
	if cursor != nil {
		query = query.Where(
			"(created_at < ?) OR (created_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}

	var rows []models.Settlement
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}

	list := &PendingList{}
	if len(rows) > limit {
		rows = rows[:limit]
		last := rows[len(rows)-1]
		list.NextCursor = pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}
	list.Settlements = rows
	return list, nil
}

func (r *repository) ExistsForSession(ctx context.Context, sessionID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Settlement{}).
		Where("session_id = ?", sessionID).
		Count(&count).Error
	return count > 0, err
}
