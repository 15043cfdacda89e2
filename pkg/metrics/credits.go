package metrics

import "github.com/prometheus/client_golang/prometheus"

// CreditMetrics tracks ledger movements and reclaim outcomes.
type CreditMetrics struct {
	movements    *prometheus.CounterVec
	insufficient prometheus.Counter
	reclaim      *prometheus.CounterVec
	drift        prometheus.Counter
}

// NewCreditMetrics registers the credit metrics on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewCreditMetrics(reg prometheus.Registerer) *CreditMetrics {
	if reg == nil {
		return &CreditMetrics{}
	}
	movements := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "credit_ledger_entries_total",
		Help: "Ledger entries written, by reason.",
	}, []string{"reason"})
	insufficient := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "credit_insufficient_total",
		Help: "Debits rejected for insufficient credits.",
	})
	reclaim := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "credit_reclaim_invitations_total",
		Help: "Expired invitations processed by the reclaimer, by outcome.",
	}, []string{"outcome"})
	drift := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "credit_ledger_drift_total",
		Help: "Companies whose balance disagreed with the ledger sum.",
	})
	reg.MustRegister(movements, insufficient, reclaim, drift)
	return &CreditMetrics{
		movements:    movements,
		insufficient: insufficient,
		reclaim:      reclaim,
		drift:        drift,
	}
}

// IncEntry counts a ledger entry for the given reason.
func (m *CreditMetrics) IncEntry(reason string) {
	if m == nil || m.movements == nil {
		return
	}
	m.movements.WithLabelValues(normalizeLabel(reason)).Inc()
}

func (m *CreditMetrics) IncInsufficient() {
	if m == nil || m.insufficient == nil {
		return
	}
	m.insufficient.Inc()
}

// AddReclaim adds n to the reclaim counter for outcome (refunded, skipped, failed).
func (m *CreditMetrics) AddReclaim(outcome string, n int) {
	if m == nil || m.reclaim == nil || n <= 0 {
		return
	}
	m.reclaim.WithLabelValues(normalizeLabel(outcome)).Add(float64(n))
}

func (m *CreditMetrics) IncDrift() {
	if m == nil || m.drift == nil {
		return
	}
	m.drift.Inc()
}
