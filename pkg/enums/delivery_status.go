package enums

// DeliveryStatus maps to the delivery_status_enum enum in Postgres. It tracks
// the per-order outcome inside a dispatch session.
type DeliveryStatus string

const (
	DeliveryStatusPending      DeliveryStatus = "pending"
	DeliveryStatusDelivered    DeliveryStatus = "delivered"
	DeliveryStatusNotDelivered DeliveryStatus = "not_delivered"
	DeliveryStatusRejected     DeliveryStatus = "rejected"
	DeliveryStatusRescheduled  DeliveryStatus = "rescheduled"
	DeliveryStatusReturned     DeliveryStatus = "returned"
)

var validDeliveryStatuses = []DeliveryStatus{
	DeliveryStatusPending,
	DeliveryStatusDelivered,
	DeliveryStatusNotDelivered,
	DeliveryStatusRejected,
	DeliveryStatusRescheduled,
	DeliveryStatusReturned,
}

// IsValid reports whether the value matches the canonical delivery status enum.
func (s DeliveryStatus) IsValid() bool {
	for _, candidate := range validDeliveryStatuses {
		if s == candidate {
			return true
		}
	}
	return false
}

// IsFailedAttempt reports whether the outcome owes the carrier a failed
// attempt fee.
func (s DeliveryStatus) IsFailedAttempt() bool {
	switch s {
	case DeliveryStatusNotDelivered, DeliveryStatusRejected, DeliveryStatusReturned:
		return true
	default:
		return false
	}
}

// IsProcessed reports whether a final outcome has been captured for the line.
// Rescheduled lines roll over into a later session and settle there.
func (s DeliveryStatus) IsProcessed() bool {
	return s == DeliveryStatusDelivered || s.IsFailedAttempt()
}
