package watch

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes poller counters. A nil *Metrics is a no-op, so the
// poller works without a registry wired in.
type Metrics struct {
	cycles        prometheus.Counter
	skippedTicks  prometheus.Counter
	notifications prometheus.Counter
	dedupSkips    prometheus.Counter
	ruleErrors    *prometheus.CounterVec
}

// NewMetrics creates and registers the poller metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "prodsync_watch_cycles_total",
			Help: "Completed poll cycles.",
		}),
		skippedTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "prodsync_watch_skipped_ticks_total",
			Help: "Ticks skipped because a cycle was still in flight.",
		}),
		notifications: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "prodsync_watch_notifications_total",
			Help: "Notifications dispatched.",
		}),
		dedupSkips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "prodsync_watch_dedup_skips_total",
			Help: "Matches skipped because the (rule, entity) pair was already notified.",
		}),
		ruleErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "prodsync_watch_rule_errors_total",
			Help: "Per-rule query failures.",
		}, []string{"rule"}),
	}
	reg.MustRegister(m.cycles, m.skippedTicks, m.notifications, m.dedupSkips, m.ruleErrors)
	return m
}

func (m *Metrics) cycleCompleted() {
	if m != nil {
		m.cycles.Inc()
	}
}

func (m *Metrics) tickSkipped() {
	if m != nil {
		m.skippedTicks.Inc()
	}
}

func (m *Metrics) notified() {
	if m != nil {
		m.notifications.Inc()
	}
}

func (m *Metrics) dedupSkipped() {
	if m != nil {
		m.dedupSkips.Inc()
	}
}

func (m *Metrics) ruleError(ruleID string) {
	if m != nil {
		m.ruleErrors.WithLabelValues(ruleID).Inc()
	}
}
