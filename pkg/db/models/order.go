package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/entregalo/entregalo-backend/pkg/enums"
)

// Order is the sellable order record supplied by the upstream storefront
// integrations. This engine mutates only its status, carrier assignment and
// reconciliation fields.
type Order struct {
	ID           uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	StoreID      uuid.UUID  `gorm:"column:store_id;type:uuid;not null"`
	CarrierID    *uuid.UUID `gorm:"column:carrier_id;type:uuid"`
	CustomerName string     `gorm:"column:customer_name;not null"`
	Phone        *string    `gorm:"column:phone"`
	Address      string     `gorm:"column:address;not null"`
	Zone         *string    `gorm:"column:zone"`
	City         *string    `gorm:"column:city"`
	// PaymentMethod is free-form upstream input ("efectivo", "tarjeta", ...).
	PaymentMethod *string `gorm:"column:payment_method"`
	// PrepaidMethod records that the customer paid before delivery. When set
	// it overrides PaymentMethod for COD classification.
	PrepaidMethod *string            `gorm:"column:prepaid_method"`
	TotalCents    int64              `gorm:"column:total_cents;not null"`
	Status        enums.OrderStatus  `gorm:"column:status;type:order_status_enum;not null;default:pending"`
	Reconciled    bool               `gorm:"column:reconciled;not null;default:false"`
	DeliveredAt   *time.Time         `gorm:"column:delivered_at"`
	CreatedAt     time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
