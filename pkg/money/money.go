package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// DefaultFailedFeePercent applies when a carrier has no failed-attempt fee
// percentage configured.
var DefaultFailedFeePercent = decimal.NewFromInt(50)

var hundred = decimal.NewFromInt(100)

// PercentOf computes percent% of an amount in cents, rounded half-up to the
// currency's minor unit. Percent may carry decimals (e.g. 12.5).
func PercentOf(amountCents int64, percent decimal.Decimal) int64 {
	result := decimal.NewFromInt(amountCents).
		Mul(percent).
		Div(hundred).
		Round(0)
	return result.IntPart()
}

// FailedFeePercentOrDefault normalizes a carrier's configured percentage.
// Only an unset percentage falls back to the default; an explicit 0 means
// the carrier waives the failed-attempt fee.
func FailedFeePercentOrDefault(percent *decimal.Decimal) decimal.Decimal {
	if percent == nil {
		return DefaultFailedFeePercent
	}
	return *percent
}

// FormatCents renders an integer cent amount as a currency string for
// descriptions and logs.
func FormatCents(amountCents int64) string {
	d := decimal.NewFromInt(amountCents).Div(hundred)
	return fmt.Sprintf("$%s", d.StringFixed(2))
}
