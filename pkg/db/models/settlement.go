package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/entregalo/entregalo-backend/pkg/enums"
)

// Settlement is the computed reconciliation of money owed between a store and
// a carrier for one batch of deliveries.
//
// Invariants maintained by the settlements service:
//
//	net_receivable = cod_collected - total_fees - failed_attempt_fee
//	balance_due    = max(net_receivable - amount_paid, 0)
//
// Status is derived from amount_paid vs net_receivable except for the
// terminal disputed/cancelled overrides.
type Settlement struct {
	ID             uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	StoreID        uuid.UUID  `gorm:"column:store_id;type:uuid;not null"`
	CarrierID      uuid.UUID  `gorm:"column:carrier_id;type:uuid;not null"`
	SessionID      *uuid.UUID `gorm:"column:session_id;type:uuid"`
	SettlementCode string     `gorm:"column:settlement_code;not null;uniqueIndex:ux_settlements_code"`
	SettlementDate time.Time  `gorm:"column:settlement_date;type:date;not null"`

	TotalDispatched   int `gorm:"column:total_dispatched;not null;default:0"`
	TotalDelivered    int `gorm:"column:total_delivered;not null;default:0"`
	TotalNotDelivered int `gorm:"column:total_not_delivered;not null;default:0"`
	CodDelivered      int `gorm:"column:cod_delivered;not null;default:0"`
	PrepaidDelivered  int `gorm:"column:prepaid_delivered;not null;default:0"`

	CodCollectedCents     int64 `gorm:"column:cod_collected_cents;not null;default:0"`
	CodExpectedCents      int64 `gorm:"column:cod_expected_cents;not null;default:0"`
	CodFeesCents          int64 `gorm:"column:cod_fees_cents;not null;default:0"`
	PrepaidFeesCents      int64 `gorm:"column:prepaid_fees_cents;not null;default:0"`
	TotalFeesCents        int64 `gorm:"column:total_fees_cents;not null;default:0"`
	FailedAttemptFeeCents int64 `gorm:"column:failed_attempt_fee_cents;not null;default:0"`
	NetReceivableCents    int64 `gorm:"column:net_receivable_cents;not null;default:0"`
	AmountPaidCents       int64 `gorm:"column:amount_paid_cents;not null;default:0"`
	BalanceDueCents       int64 `gorm:"column:balance_due_cents;not null;default:0"`

	Status           enums.SettlementStatus `gorm:"column:status;type:settlement_status_enum;not null;default:pending"`
	PaymentMethod    *string                `gorm:"column:payment_method"`
	PaymentReference *string                `gorm:"column:payment_reference"`
	Notes            *string                `gorm:"column:notes"`
	PaidAt           *time.Time             `gorm:"column:paid_at"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
