package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/entregalo/entregalo-backend/pkg/enums"
)

// DispatchedOrder is one order inside a dispatch session, with customer and
// payment fields snapshotted at dispatch time. CarrierFeeCents is frozen once
// the session leaves the dispatched state.
type DispatchedOrder struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SessionID uuid.UUID `gorm:"column:session_id;type:uuid;not null;uniqueIndex:ux_dispatched_orders_session_order"`
	OrderID   uuid.UUID `gorm:"column:order_id;type:uuid;not null;uniqueIndex:ux_dispatched_orders_session_order"`

	CustomerName  string  `gorm:"column:customer_name;not null"`
	Phone         *string `gorm:"column:phone"`
	Address       string  `gorm:"column:address;not null"`
	Zone          *string `gorm:"column:zone"`
	City          *string `gorm:"column:city"`
	PaymentMethod *string `gorm:"column:payment_method"`
	PrepaidMethod *string `gorm:"column:prepaid_method"`
	TotalCents    int64   `gorm:"column:total_cents;not null"`

	// Active mirrors the session being non-terminal. A partial unique index
	// on (order_id) WHERE active keeps an order out of two open sessions.
	Active bool `gorm:"column:active;not null;default:true"`

	CarrierFeeCents      int64                `gorm:"column:carrier_fee_cents;not null"`
	DeliveryStatus       enums.DeliveryStatus `gorm:"column:delivery_status;type:delivery_status_enum;not null;default:pending"`
	AmountCollectedCents int64                `gorm:"column:amount_collected_cents;not null;default:0"`
	FailureReason        *string              `gorm:"column:failure_reason"`
	ProcessedAt          *time.Time           `gorm:"column:processed_at"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
