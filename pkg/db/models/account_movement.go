package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/entregalo/entregalo-backend/pkg/enums"
)

// AccountMovement is one ledger entry attributing a monetary effect to a
// specific order and category. The (order_id, movement_type) pair is unique:
// both the event-driven delivery path and the batch reconciliation path
// converge on a single row per pair.
type AccountMovement struct {
	ID           uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	StoreID      uuid.UUID          `gorm:"column:store_id;type:uuid;not null"`
	CarrierID    uuid.UUID          `gorm:"column:carrier_id;type:uuid;not null"`
	OrderID      uuid.UUID          `gorm:"column:order_id;type:uuid;not null;uniqueIndex:ux_account_movements_order_type"`
	SessionID    *uuid.UUID         `gorm:"column:session_id;type:uuid"`
	SettlementID *uuid.UUID         `gorm:"column:settlement_id;type:uuid"`
	MovementType enums.MovementType `gorm:"column:movement_type;type:movement_type_enum;not null;uniqueIndex:ux_account_movements_order_type"`
	// AmountCents is signed: positive for money collected on the store's
	// behalf, negative for liabilities toward the carrier.
	AmountCents  int64           `gorm:"column:amount_cents;not null"`
	Description  string          `gorm:"column:description;not null"`
	Metadata     json.RawMessage `gorm:"column:metadata;type:jsonb"`
	MovementDate time.Time       `gorm:"column:movement_date;type:date;not null"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
