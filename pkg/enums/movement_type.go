package enums

// MovementType maps to the movement_type_enum enum in Postgres. A movement is
// unique per (order, type): reprocessing an order updates the existing row.
type MovementType string

const (
	MovementTypeCodCollected     MovementType = "cod_collected"
	MovementTypeDeliveryFee      MovementType = "delivery_fee"
	MovementTypeFailedAttemptFee MovementType = "failed_attempt_fee"
)

var validMovementTypes = []MovementType{
	MovementTypeCodCollected,
	MovementTypeDeliveryFee,
	MovementTypeFailedAttemptFee,
}

// IsValid reports whether the value matches the canonical movement type enum.
func (t MovementType) IsValid() bool {
	for _, candidate := range validMovementTypes {
		if t == candidate {
			return true
		}
	}
	return false
}
