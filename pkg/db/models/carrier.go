package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Carrier is a delivery company a store dispatches orders to.
type Carrier struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	StoreID     uuid.UUID `gorm:"column:store_id;type:uuid;not null"`
	Name        string    `gorm:"column:name;not null"`
	Phone       *string   `gorm:"column:phone"`
	DefaultZone *string   `gorm:"column:default_zone"`
	// FailedFeePercent is the share of the delivery fee owed on a failed
	// attempt. Nil means the platform default of 50 applies.
	FailedFeePercent *decimal.Decimal `gorm:"column:failed_fee_percent;type:numeric(5,2)"`
	Active           bool             `gorm:"column:active;not null;default:true"`
	CreatedAt        time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

// CarrierRate prices deliveries for a carrier by zone, optionally narrowed to
// a city inside that zone.
type CarrierRate struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CarrierID uuid.UUID `gorm:"column:carrier_id;type:uuid;not null"`
	Zone      string    `gorm:"column:zone;not null"`
	City      *string   `gorm:"column:city"`
	FeeCents  int64     `gorm:"column:fee_cents;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
