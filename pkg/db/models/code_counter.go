package models

import "github.com/google/uuid"

// CodeCounter backs the sequential per-store per-day document codes
// (DESP-DDMMYYYY-NNN, LIQ-DDMMYYYY-NNN). Incremented with an atomic upsert so
// concurrent allocations never hand out the same number.
type CodeCounter struct {
	StoreID uuid.UUID `gorm:"column:store_id;type:uuid;primaryKey"`
	Scope   string    `gorm:"column:scope;primaryKey"`
	Day     string    `gorm:"column:day;primaryKey"`
	Value   int64     `gorm:"column:value;not null;default:0"`
}
