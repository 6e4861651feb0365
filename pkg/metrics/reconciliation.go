package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ReconciliationMetrics records settlement, payment and repair activity.
type ReconciliationMetrics struct {
	duration     *prometheus.HistogramVec
	settlements  *prometheus.CounterVec
	payments     prometheus.Counter
	paymentCents prometheus.Counter
	repairs      *prometheus.CounterVec
}

// NewReconciliationMetrics registers the reconciliation metrics on the
// provided registerer.
func NewReconciliationMetrics(reg prometheus.Registerer) *ReconciliationMetrics {
	if reg == nil {
		return &ReconciliationMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "settlement_compute_duration_seconds",
		Help:    "Duration of settlement computations in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"grouping"})
	settlements := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "settlements_computed_total",
		Help: "Settlement computations by outcome.",
	}, []string{"outcome"})
	payments := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "settlement_payments_total",
		Help: "Payments applied to settlements.",
	})
	paymentCents := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "settlement_payment_cents_total",
		Help: "Total cents applied to settlements.",
	})
	repairs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "movement_repairs_total",
		Help: "Account movement repairs by kind.",
	}, []string{"kind"})
	reg.MustRegister(duration, settlements, payments, paymentCents, repairs)
	return &ReconciliationMetrics{
		duration:     duration,
		settlements:  settlements,
		payments:     payments,
		paymentCents: paymentCents,
		repairs:      repairs,
	}
}

// ObserveCompute records the duration of one settlement computation.
func (m *ReconciliationMetrics) ObserveCompute(grouping string, duration time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(normalizeLabel(grouping)).Observe(duration.Seconds())
}

// IncSettlement counts one settlement computation by outcome.
func (m *ReconciliationMetrics) IncSettlement(outcome string) {
	if m == nil || m.settlements == nil {
		return
	}
	m.settlements.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// AddPayment counts a payment and its amount.
func (m *ReconciliationMetrics) AddPayment(amountCents int64) {
	if m == nil || m.payments == nil {
		return
	}
	m.payments.Inc()
	m.paymentCents.Add(float64(amountCents))
}

// IncRepair counts one backfill correction by kind.
func (m *ReconciliationMetrics) IncRepair(kind string) {
	if m == nil || m.repairs == nil {
		return
	}
	m.repairs.WithLabelValues(normalizeLabel(kind)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
