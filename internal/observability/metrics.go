// Package observability holds the service-level Prometheus collectors.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"example.com/planner/internal/tracker"
)

var (
	activityPersistGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "planner",
		Subsystem: "persistence",
		Name:      "last_activity_persisted_timestamp_seconds",
		Help:      "Unix timestamp of the most recent activity persisted.",
	})
	completionToggles = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "planner",
		Subsystem: "tracker",
		Name:      "completion_toggles_total",
		Help:      "Completion toggles by activity frequency and resulting state.",
	}, []string{"frequency", "completed"})
	duplicateCompletions = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "planner",
		Subsystem: "tracker",
		Name:      "duplicate_completions_total",
		Help:      "Activity periods found holding more than one completion record.",
	})
	viewCompletionRatio = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "planner",
		Subsystem: "tracker",
		Name:      "view_completion_ratio",
		Help:      "Native completion ratio of the most recently served view.",
	}, []string{"view"})
)

func init() {
	prometheus.MustRegister(activityPersistGauge, completionToggles, duplicateCompletions, viewCompletionRatio)
}

// RecordActivityPersisted updates the persistence watermark gauge.
func RecordActivityPersisted(ts time.Time) {
	if ts.IsZero() {
		return
	}
	activityPersistGauge.Set(float64(ts.Unix()))
}

// RecordCompletionToggled counts a stored toggle.
func RecordCompletionToggled(freq tracker.Frequency, completed bool) {
	state := "false"
	if completed {
		state = "true"
	}
	completionToggles.WithLabelValues(string(freq), state).Inc()
}

// RecordDuplicateCompletion counts one duplicated period.
func RecordDuplicateCompletion() {
	duplicateCompletions.Inc()
}

// RecordViewRate publishes the ratio of a served view.
func RecordViewRate(view tracker.ViewMode, rate tracker.ViewRate) {
	viewCompletionRatio.WithLabelValues(string(view)).Set(rate.Ratio())
}
