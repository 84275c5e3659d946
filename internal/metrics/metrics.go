package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the reminder system.
type Metrics struct {
	// Polls is the total number of scheduler polls.
	Polls prometheus.Counter

	// PollDuration is the time spent evaluating one poll.
	PollDuration prometheus.Histogram

	// Fired counts reminders fired, by meal type.
	Fired *prometheus.CounterVec

	// LedgerResets counts ledger resets by reason (stale, midnight, reload).
	LedgerResets *prometheus.CounterVec

	// DispatchFailures counts side-effect failures by channel.
	DispatchFailures *prometheus.CounterVec

	// SyncRequests counts remote sync calls by outcome (ok, error, dropped).
	SyncRequests *prometheus.CounterVec
}

// New creates and registers metrics on reg. A nil reg uses the default registerer.
func New(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		Polls: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminders_polls_total",
			Help:      "Total number of reminder polls",
		}),

		PollDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reminders_poll_duration_seconds",
			Help:      "Time to evaluate one reminder poll",
			Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5},
		}),

		Fired: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminders_fired_total",
			Help:      "Total number of meal reminders fired",
		}, []string{"meal_type"}),

		LedgerResets: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminders_ledger_resets_total",
			Help:      "Total number of trigger ledger resets",
		}, []string{"reason"}),

		DispatchFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminders_dispatch_failures_total",
			Help:      "Total number of failed reminder side effects",
		}, []string{"channel"}),

		SyncRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminders_sync_requests_total",
			Help:      "Total number of reminder-log sync requests",
		}, []string{"status"}),
	}
}

// NewNop returns metrics registered on a throwaway registry.
func NewNop() *Metrics {
	return New("", prometheus.NewRegistry())
}

// IncPoll increments the poll counter and records its duration.
func (m *Metrics) IncPoll(seconds float64) {
	m.Polls.Inc()
	m.PollDuration.Observe(seconds)
}

// IncFired increments the fired counter for a meal type.
func (m *Metrics) IncFired(mealType string) {
	m.Fired.WithLabelValues(mealType).Inc()
}

// IncLedgerReset increments the ledger reset counter.
func (m *Metrics) IncLedgerReset(reason string) {
	m.LedgerResets.WithLabelValues(reason).Inc()
}

// IncDispatchFailure increments the failure counter for a channel.
func (m *Metrics) IncDispatchFailure(channel string) {
	m.DispatchFailures.WithLabelValues(channel).Inc()
}

// IncSync increments the sync counter for an outcome.
func (m *Metrics) IncSync(status string) {
	m.SyncRequests.WithLabelValues(status).Inc()
}
