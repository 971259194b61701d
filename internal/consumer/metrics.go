package consumer

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels of consumedMessages.
const (
	resultStored       = "stored"
	resultHandlerError = "handler_error"
	resultUndecodable  = "undecodable"
)

var (
	consumedMessages = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "planner",
		Subsystem: "consumer",
		Name:      "messages_total",
		Help:      "Kafka records seen by the event log consumer, by topic, event type and result.",
	}, []string{"topic", "event_type", "result"})

	deliveryDelay = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "planner",
		Subsystem: "consumer",
		Name:      "delivery_delay_seconds",
		Help:      "Time between a record being produced and it being stored in the event log.",
		Buckets:   prometheus.ExponentialBuckets(0.005, 3, 10),
	}, []string{"topic"})
)

func init() {
	prometheus.MustRegister(consumedMessages, deliveryDelay)
}

func observe(msg Message, result string) {
	consumedMessages.WithLabelValues(msg.Topic, msg.EventType, result).Inc()
	if result == resultStored && !msg.Timestamp.IsZero() {
		deliveryDelay.WithLabelValues(msg.Topic).Observe(time.Since(msg.Timestamp).Seconds())
	}
}
