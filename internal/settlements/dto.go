package settlements

import (
	"time"

	"github.com/google/uuid"

	"github.com/entregalo/entregalo-backend/pkg/db/models"
	"github.com/entregalo/entregalo-backend/pkg/enums"
)

// ComputeSessionInput reconciles a single dispatch session.
type ComputeSessionInput struct {
	StoreID        uuid.UUID
	SessionID      uuid.UUID
	CollectedCents *int64
	Notes          *string
}

// ComputeDateInput reconciles every open session of a carrier for one day.
type ComputeDateInput struct {
	StoreID        uuid.UUID
	CarrierID      uuid.UUID
	Date           time.Time
	CollectedCents *int64
	Notes          *string
}

// RecordPaymentInput applies one payment against a settlement.
type RecordPaymentInput struct {
	StoreID      uuid.UUID
	SettlementID uuid.UUID
	AmountCents  int64
	Method       *string
	Reference    *string
	Notes        *string
}

// PendingList wraps the paginated open settlements plus the next page cursor.
type PendingList struct {
	Settlements []models.Settlement `json:"settlements"`
	NextCursor  string              `json:"next_cursor,omitempty"`
}

// SettlementComputedEvent is emitted when a settlement is created.
type SettlementComputedEvent struct {
	SettlementID       uuid.UUID   `json:"settlement_id"`
	SettlementCode     string      `json:"settlement_code"`
	StoreID            uuid.UUID   `json:"store_id"`
	CarrierID          uuid.UUID   `json:"carrier_id"`
	SessionIDs         []uuid.UUID `json:"session_ids"`
	NetReceivableCents int64       `json:"net_receivable_cents"`
	CodCollectedCents  int64       `json:"cod_collected_cents"`
}

// SettlementPaymentEvent is emitted after a payment is applied.
type SettlementPaymentEvent struct {
	SettlementID    uuid.UUID              `json:"settlement_id"`
	AmountCents     int64                  `json:"amount_cents"`
	AmountPaidCents int64                  `json:"amount_paid_cents"`
	BalanceDueCents int64                  `json:"balance_due_cents"`
	Status          enums.SettlementStatus `json:"status"`
}
