package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// SettlementMetrics counts wallet mutations, commission legs and payouts.
type SettlementMetrics struct {
	walletOps   *prometheus.CounterVec
	commissions *prometheus.CounterVec
	payouts     *prometheus.CounterVec
}

// NewSettlementMetrics registers the settlement counters on the provided registerer.
func NewSettlementMetrics(reg prometheus.Registerer) *SettlementMetrics {
	if reg == nil {
		return &SettlementMetrics{}
	}
	walletOps := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "settlement",
		Name:      "wallet_operations_total",
		Help:      "Wallet debit/credit attempts by outcome.",
	}, []string{"action", "outcome"})
	commissions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "settlement",
		Name:      "commission_legs_total",
		Help:      "Commission legs settled by tier and gateway.",
	}, []string{"tier", "gateway"})
	payouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "settlement",
		Name:      "payouts_total",
		Help:      "Payout and withdrawal transfers by resulting status.",
	}, []string{"status"})
	reg.MustRegister(walletOps, commissions, payouts)
	return &SettlementMetrics{
		walletOps:   walletOps,
		commissions: commissions,
		payouts:     payouts,
	}
}

// IncWalletOperation counts a wallet mutation attempt.
func (m *SettlementMetrics) IncWalletOperation(action, outcome string) {
	if m == nil || m.walletOps == nil {
		return
	}
	m.walletOps.WithLabelValues(label(action), label(outcome)).Inc()
}

// IncCommissionSettled counts a settled commission leg.
func (m *SettlementMetrics) IncCommissionSettled(tier, gateway string) {
	if m == nil || m.commissions == nil {
		return
	}
	m.commissions.WithLabelValues(label(tier), label(gateway)).Inc()
}

// IncPayout counts a payout whose status changed.
func (m *SettlementMetrics) IncPayout(status string) {
	if m == nil || m.payouts == nil {
		return
	}
	m.payouts.WithLabelValues(label(status)).Inc()
}
