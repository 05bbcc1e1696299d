package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// LedgerMetrics records balance-mutating activity.
type LedgerMetrics struct {
	transferDuration *prometheus.HistogramVec
	transfers        *prometheus.CounterVec
	deposits         *prometheus.CounterVec
	webhooks         *prometheus.CounterVec
	lockRetries      prometheus.Counter
}

// NewLedgerMetrics registers the ledger metrics on the provided registerer.
func NewLedgerMetrics(reg prometheus.Registerer) *LedgerMetrics {
	if reg == nil {
		return &LedgerMetrics{}
	}
	transferDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "transfer_duration_seconds",
		Help:    "Duration of wallet transfer attempts in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})
	transfers := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "transfers_total",
		Help: "Wallet transfers by outcome.",
	}, []string{"outcome"})
	deposits := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "deposits_total",
		Help: "Deposit confirmations by resulting status.",
	}, []string{"status"})
	webhooks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_total",
		Help: "Provider webhook deliveries by disposition.",
	}, []string{"disposition"})
	lockRetries := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledger_lock_retries_total",
		Help: "Balance updates retried after losing a version race.",
	})
	reg.MustRegister(transferDuration, transfers, deposits, webhooks, lockRetries)
	return &LedgerMetrics{
		transferDuration: transferDuration,
		transfers:        transfers,
		deposits:         deposits,
		webhooks:         webhooks,
		lockRetries:      lockRetries,
	}
}

// ObserveTransfer records one transfer attempt.
func (m *LedgerMetrics) ObserveTransfer(outcome string, duration time.Duration) {
	if m == nil || m.transfers == nil {
		return
	}
	m.transfers.WithLabelValues(normalizeLabel(outcome)).Inc()
	m.transferDuration.WithLabelValues(normalizeLabel(outcome)).Observe(duration.Seconds())
}

// IncDeposit counts a deposit reaching the given status.
func (m *LedgerMetrics) IncDeposit(status string) {
	if m == nil || m.deposits == nil {
		return
	}
	m.deposits.WithLabelValues(normalizeLabel(status)).Inc()
}

// IncWebhook counts a webhook delivery by disposition.
func (m *LedgerMetrics) IncWebhook(disposition string) {
	if m == nil || m.webhooks == nil {
		return
	}
	m.webhooks.WithLabelValues(normalizeLabel(disposition)).Inc()
}

// IncLockRetry counts a lost optimistic-lock race.
func (m *LedgerMetrics) IncLockRetry() {
	if m == nil || m.lockRetries == nil {
		return
	}
	m.lockRetries.Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
