package codes

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/entregalo/entregalo-backend/pkg/db/models"
)

const (
	ScopeSession    = "session"
	ScopeSettlement = "settlement"
)

// Generator allocates sequential document codes of the form
// PREFIX-DDMMYYYY-NNN, scoped to (store, day) and reset daily.
type Generator struct {
	db *gorm.DB
}

func NewGenerator(db *gorm.DB) *Generator {
	return &Generator{db: db}
}

// Next increments the (store, scope, day) counter atomically and formats the
// resulting code. When tx is non-nil the allocation joins the caller's
// transaction so it commits or rolls back with the rest of the unit of work.
// The upsert guarantees two concurrent allocations never receive the same
// number.
func (g *Generator) Next(tx *gorm.DB, storeID uuid.UUID, scope, prefix string, day time.Time) (string, error) {
	db := g.db
	if tx != nil {
		db = tx
	}
	dayKey := day.Format("2006-01-02")

	counter := models.CodeCounter{
		StoreID: storeID,
		Scope:   scope,
		Day:     dayKey,
		Value:   1,
	}
	err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "store_id"},
			{Name: "scope"},
			{Name: "day"},
		},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"value": gorm.Expr("code_counters.value + 1"),
		}),
	}).Create(&counter).Error
	if err != nil {
		return "", fmt.Errorf("increment code counter: %w", err)
	}

	var value int64
	err = db.Model(&models.CodeCounter{}).
		Select("value").
		Where("store_id = ? AND scope = ? AND day = ?", storeID, scope, dayKey).
		Scan(&value).Error
	if err != nil {
		return "", fmt.Errorf("read code counter: %w", err)
	}

	return Format(prefix, day, value), nil
}

// Format renders a document code: PREFIX-DDMMYYYY-NNN.
func Format(prefix string, day time.Time, seq int64) string {
	return fmt.Sprintf("%s-%s-%03d", prefix, day.Format("02012006"), seq)
}
