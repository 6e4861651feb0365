package dispatch

import (
	"time"

	"github.com/google/uuid"
)

// CreateSessionInput carries everything required to dispatch a batch of
// orders to a carrier.
type CreateSessionInput struct {
	StoreID      uuid.UUID
	CarrierID    uuid.UUID
	OrderIDs     []uuid.UUID
	CreatedBy    uuid.UUID
	DispatchDate time.Time
}

// SessionDispatchedEvent is emitted when a dispatch session is created.
type SessionDispatchedEvent struct {
	SessionID        uuid.UUID `json:"session_id"`
	SessionCode      string    `json:"session_code"`
	StoreID          uuid.UUID `json:"store_id"`
	CarrierID        uuid.UUID `json:"carrier_id"`
	TotalOrders      int       `json:"total_orders"`
	ExpectedCodCents int64     `json:"expected_cod_cents"`
	PrepaidCount     int       `json:"prepaid_count"`
}
