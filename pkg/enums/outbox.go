package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type_enum enum in Postgres.
type OutboxAggregateType string

const (
	AggregateDispatchSession OutboxAggregateType = "dispatch_session"
	AggregateSettlement      OutboxAggregateType = "settlement"
	AggregateOrder           OutboxAggregateType = "order"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateDispatchSession,
	AggregateSettlement,
	AggregateOrder,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type_enum enum in Postgres.
type OutboxEventType string

const (
	EventSessionDispatched  OutboxEventType = "session_dispatched"
	EventDeliveryOutcome    OutboxEventType = "delivery_outcome_recorded"
	EventSettlementComputed OutboxEventType = "settlement_computed"
	EventSettlementPayment  OutboxEventType = "settlement_payment_recorded"
	EventMovementsRepaired  OutboxEventType = "movements_repaired"
)

var validOutboxEventTypes = []OutboxEventType{
	EventSessionDispatched,
	EventDeliveryOutcome,
	EventSettlementComputed,
	EventSettlementPayment,
	EventMovementsRepaired,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
