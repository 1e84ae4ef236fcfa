package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// WalletMetrics records money-movement outcomes for the wallet core.
type WalletMetrics struct {
	unlocks         *prometheus.CounterVec
	initiations     *prometheus.CounterVec
	reconciliations *prometheus.CounterVec
	credits         prometheus.Counter
	gatewayLatency  *prometheus.HistogramVec
}

// NewWalletMetrics registers the wallet metrics on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewWalletMetrics(reg prometheus.Registerer) *WalletMetrics {
	if reg == nil {
		return &WalletMetrics{}
	}
	unlocks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wallet_maturity_unlocks_total",
		Help: "Deposit maturity checks by result.",
	}, []string{"result"})
	initiations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wallet_topup_initiations_total",
		Help: "Top-up initiations by result.",
	}, []string{"result"})
	reconciliations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wallet_topup_reconciliations_total",
		Help: "Top-up reconcile calls by outcome.",
	}, []string{"outcome"})
	credits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "wallet_topup_credits_total",
		Help: "Wallet balance credits applied for completed top-ups.",
	})
	gatewayLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "payment_gateway_request_duration_seconds",
		Help:    "Latency of payment gateway calls in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
	reg.MustRegister(unlocks, initiations, reconciliations, credits, gatewayLatency)
	return &WalletMetrics{
		unlocks:         unlocks,
		initiations:     initiations,
		reconciliations: reconciliations,
		credits:         credits,
		gatewayLatency:  gatewayLatency,
	}
}

// IncUnlock counts a maturity check result: unlocked, noop or error.
func (m *WalletMetrics) IncUnlock(result string) {
	if m == nil || m.unlocks == nil {
		return
	}
	m.unlocks.WithLabelValues(normalizeLabel(result)).Inc()
}

// IncInitiation counts a top-up initiation result.
func (m *WalletMetrics) IncInitiation(result string) {
	if m == nil || m.initiations == nil {
		return
	}
	m.initiations.WithLabelValues(normalizeLabel(result)).Inc()
}

// IncReconcile counts a reconcile outcome.
func (m *WalletMetrics) IncReconcile(outcome string) {
	if m == nil || m.reconciliations == nil {
		return
	}
	m.reconciliations.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncCredit counts an applied top-up credit.
func (m *WalletMetrics) IncCredit() {
	if m == nil || m.credits == nil {
		return
	}
	m.credits.Inc()
}

// ObserveGateway records the duration of a gateway call.
func (m *WalletMetrics) ObserveGateway(operation string, d time.Duration) {
	if m == nil || m.gatewayLatency == nil {
		return
	}
	m.gatewayLatency.WithLabelValues(normalizeLabel(operation)).Observe(d.Seconds())
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
