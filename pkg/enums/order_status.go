package enums

// OrderStatus maps to the order_status_enum enum in Postgres. Orders are
// ingested upstream; this engine advances them from a dispatch-eligible status
// to shipped and later to a terminal status during reconciliation.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusPacked    OrderStatus = "packed"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusReturned  OrderStatus = "returned"
	OrderStatusCancelled OrderStatus = "cancelled"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusConfirmed,
	OrderStatusPacked,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusReturned,
	OrderStatusCancelled,
}

// IsValid reports whether the value matches the canonical order status enum.
func (s OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if s == candidate {
			return true
		}
	}
	return false
}

// IsDispatchEligible reports whether the order can join a dispatch session.
func (s OrderStatus) IsDispatchEligible() bool {
	return s == OrderStatusConfirmed || s == OrderStatusPacked
}
