package settlements

import (
	"github.com/shopspring/decimal"

	"github.com/entregalo/entregalo-backend/internal/movements"
	"github.com/entregalo/entregalo-backend/pkg/db/models"
	"github.com/entregalo/entregalo-backend/pkg/enums"
	"github.com/entregalo/entregalo-backend/pkg/money"
)

// Totals is the aggregation of one reconciliation unit. Lines still pending
// or rescheduled are excluded; they roll over into a later settlement.
type Totals struct {
	TotalDispatched   int
	TotalDelivered    int
	TotalNotDelivered int
	CodDelivered      int
	PrepaidDelivered  int

	CodCollectedCents     int64
	CodExpectedCents      int64
	CodFeesCents          int64
	PrepaidFeesCents      int64
	TotalFeesCents        int64
	FailedAttemptFeeCents int64
	NetReceivableCents    int64
}

// Aggregate folds dispatched order lines into settlement totals. When
// collectedOverride is set it replaces the per-line collected sum: the store
// counted the cash drawer and that number wins.
//
//	net_receivable = cod_collected - total_fees - failed_attempt_fee
func Aggregate(lines []models.DispatchedOrder, failedFeePercent decimal.Decimal, collectedOverride *int64) Totals {
	t := Totals{TotalDispatched: len(lines)}

	for _, line := range lines {
		switch {
		case line.DeliveryStatus == enums.DeliveryStatusDelivered:
			t.TotalDelivered++
			fee := line.CarrierFeeCents
			if movements.IsOrderCOD(line.PaymentMethod, line.PrepaidMethod) {
				t.CodDelivered++
				t.CodCollectedCents += line.AmountCollectedCents
				t.CodExpectedCents += line.TotalCents
				t.CodFeesCents += fee
			} else {
				t.PrepaidDelivered++
				t.PrepaidFeesCents += fee
			}
		case line.DeliveryStatus.IsFailedAttempt():
			t.TotalNotDelivered++
			t.FailedAttemptFeeCents += money.PercentOf(line.CarrierFeeCents, failedFeePercent)
		}
	}

	if collectedOverride != nil {
		t.CodCollectedCents = *collectedOverride
	}
	t.TotalFeesCents = t.CodFeesCents + t.PrepaidFeesCents
	t.NetReceivableCents = t.CodCollectedCents - t.TotalFeesCents - t.FailedAttemptFeeCents
	return t
}

// ProcessedLines returns the lines with a final outcome.
func ProcessedLines(lines []models.DispatchedOrder) []models.DispatchedOrder {
	out := make([]models.DispatchedOrder, 0, len(lines))
	for _, line := range lines {
		if line.DeliveryStatus.IsProcessed() {
			out = append(out, line)
		}
	}
	return out
}

// deriveStatus computes the settlement status from payment coverage. It is a
// pure function of (amount_paid, net_receivable) plus the terminal overrides;
// the status is never stored independently of these inputs.
func deriveStatus(amountPaidCents, netReceivableCents int64, current enums.SettlementStatus) enums.SettlementStatus {
	if current == enums.SettlementStatusDisputed || current == enums.SettlementStatusCancelled {
		return current
	}
	switch {
	case amountPaidCents >= netReceivableCents:
		return enums.SettlementStatusPaid
	case amountPaidCents > 0:
		return enums.SettlementStatusPartial
	default:
		return enums.SettlementStatusPending
	}
}

// balanceDue never goes negative: overpayment clamps to zero.
func balanceDue(netReceivableCents, amountPaidCents int64) int64 {
	if due := netReceivableCents - amountPaidCents; due > 0 {
		return due
	}
	return 0
}

// terminalOrderStatus maps a delivery outcome to the order's final status.
func terminalOrderStatus(status enums.DeliveryStatus) enums.OrderStatus {
	switch status {
	case enums.DeliveryStatusDelivered:
		return enums.OrderStatusDelivered
	case enums.DeliveryStatusRejected:
		return enums.OrderStatusCancelled
	default:
		return enums.OrderStatusReturned
	}
}
