package enums

// DispatchSessionStatus maps to the dispatch_session_status_enum enum in Postgres.
type DispatchSessionStatus string

const (
	DispatchSessionStatusDispatched DispatchSessionStatus = "dispatched"
	DispatchSessionStatusProcessing DispatchSessionStatus = "processing"
	DispatchSessionStatusSettled    DispatchSessionStatus = "settled"
	DispatchSessionStatusCancelled  DispatchSessionStatus = "cancelled"
)

var validDispatchSessionStatuses = []DispatchSessionStatus{
	DispatchSessionStatusDispatched,
	DispatchSessionStatusProcessing,
	DispatchSessionStatusSettled,
	DispatchSessionStatusCancelled,
}

// IsValid reports whether the value matches the canonical session status enum.
func (s DispatchSessionStatus) IsValid() bool {
	for _, candidate := range validDispatchSessionStatuses {
		if s == candidate {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the session can no longer change state.
func (s DispatchSessionStatus) IsTerminal() bool {
	return s == DispatchSessionStatusSettled || s == DispatchSessionStatusCancelled
}

// CanTransitionTo enforces the forward-only session state machine.
func (s DispatchSessionStatus) CanTransitionTo(next DispatchSessionStatus) bool {
	if s.IsTerminal() {
		return false
	}
	switch s {
	case DispatchSessionStatusDispatched:
		return next == DispatchSessionStatusProcessing ||
			next == DispatchSessionStatusSettled ||
			next == DispatchSessionStatusCancelled
	case DispatchSessionStatusProcessing:
		return next == DispatchSessionStatusSettled || next == DispatchSessionStatusCancelled
	default:
		return false
	}
}
