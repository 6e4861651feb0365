package enums

// SettlementStatus maps to the settlement_status_enum enum in Postgres.
//
// pending/partial/paid are derived from amount_paid vs net_receivable and are
// never stored independently of that relationship; disputed/cancelled are
// terminal operator overrides.
type SettlementStatus string

const (
	SettlementStatusPending   SettlementStatus = "pending"
	SettlementStatusPartial   SettlementStatus = "partial"
	SettlementStatusPaid      SettlementStatus = "paid"
	SettlementStatusDisputed  SettlementStatus = "disputed"
	SettlementStatusCancelled SettlementStatus = "cancelled"
)

var validSettlementStatuses = []SettlementStatus{
	SettlementStatusPending,
	SettlementStatusPartial,
	SettlementStatusPaid,
	SettlementStatusDisputed,
	SettlementStatusCancelled,
}

// IsValid reports whether the value matches the canonical settlement status enum.
func (s SettlementStatus) IsValid() bool {
	for _, candidate := range validSettlementStatuses {
		if s == candidate {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the settlement accepts no further payments.
func (s SettlementStatus) IsTerminal() bool {
	switch s {
	case SettlementStatusPaid, SettlementStatusDisputed, SettlementStatusCancelled:
		return true
	default:
		return false
	}
}
