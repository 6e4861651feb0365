package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/entregalo/entregalo-backend/pkg/enums"
)

// DispatchSession is a batch of orders handed to one carrier for delivery on
// one day. Status only moves forward; settled and cancelled are terminal.
type DispatchSession struct {
	ID               uuid.UUID                   `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	StoreID          uuid.UUID                   `gorm:"column:store_id;type:uuid;not null"`
	CarrierID        uuid.UUID                   `gorm:"column:carrier_id;type:uuid;not null"`
	SessionCode      string                      `gorm:"column:session_code;not null;uniqueIndex:ux_dispatch_sessions_code"`
	DispatchDate     time.Time                   `gorm:"column:dispatch_date;type:date;not null"`
	Status           enums.DispatchSessionStatus `gorm:"column:status;type:dispatch_session_status_enum;not null;default:dispatched"`
	TotalOrders      int                         `gorm:"column:total_orders;not null;default:0"`
	ExpectedCodCents int64                       `gorm:"column:expected_cod_cents;not null;default:0"`
	PrepaidCount     int                         `gorm:"column:prepaid_count;not null;default:0"`
	CreatedBy        uuid.UUID                   `gorm:"column:created_by;type:uuid;not null"`
	DispatchedAt     time.Time                   `gorm:"column:dispatched_at;not null"`
	SettledAt        *time.Time                  `gorm:"column:settled_at"`
	CancelledAt      *time.Time                  `gorm:"column:cancelled_at"`
	CreatedAt        time.Time                   `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time                   `gorm:"column:updated_at;autoUpdateTime"`

	Lines []DispatchedOrder `gorm:"foreignKey:SessionID"`
}
