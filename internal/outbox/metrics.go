package outbox

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// DLQ outcomes counted by dlqOutcomes.
const (
	outcomeRouted      = "routed"
	outcomeRequeued    = "requeued"
	outcomeRetry       = "retry_scheduled"
	outcomeQuarantined = "quarantined"
)

var (
	publishedEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "planner",
		Subsystem: "outbox",
		Name:      "events_published_total",
		Help:      "Outbox events written to Kafka, by event type.",
	}, []string{"event_type"})

	failedEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "planner",
		Subsystem: "outbox",
		Name:      "events_failed_total",
		Help:      "Outbox events whose batch failed to publish, by event type.",
	}, []string{"event_type"})

	batchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "planner",
		Subsystem: "outbox",
		Name:      "batch_duration_seconds",
		Help:      "Time spent claiming, publishing and marking one outbox batch.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
	})

	dlqOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "planner",
		Subsystem: "dlq",
		Name:      "entries_total",
		Help:      "Dead-letter entries by topic, event type and outcome.",
	}, []string{"topic", "event_type", "outcome"})

	dlqBacklog = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "planner",
		Subsystem: "dlq",
		Name:      "backlog",
		Help:      "Dead-letter entries still waiting for a retry.",
	})
)

func init() {
	prometheus.MustRegister(publishedEvents, failedEvents, batchDuration, dlqOutcomes, dlqBacklog)
}

func countEvents(vec *prometheus.CounterVec, messages []Message) {
	for _, msg := range messages {
		vec.WithLabelValues(msg.EventType).Inc()
	}
}

func countDLQ(topic, eventType, outcome string) {
	dlqOutcomes.WithLabelValues(topic, eventType, outcome).Inc()
}

func refreshBacklog(ctx context.Context, pool *pgxpool.Pool) {
	var count int
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox_dlq WHERE quarantined_at IS NULL`).Scan(&count); err != nil {
		return
	}
	dlqBacklog.Set(float64(count))
}
