package outbox

import (
	"context"

	"github.com/segmentio/kafka-go"
)

// KafkaProducer publishes framed outbox records. Keys are hashed so every event
// of one activity lands on the same partition in enqueue order.
type KafkaProducer struct {
	writer *kafka.Writer
}

// NewKafkaProducer returns a producer for brokers. Topics are taken per call.
func NewKafkaProducer(brokers []string) *KafkaProducer {
	return &KafkaProducer{writer: &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		Compression:            kafka.Snappy,
		AllowAutoTopicCreation: true,
	}}
}

// WriteMessages sends msgs to topic and waits for all in-sync replicas.
func (p *KafkaProducer) WriteMessages(ctx context.Context, topic string, msgs ...kafka.Message) error {
	for i := range msgs {
		msgs[i].Topic = topic
	}
	return p.writer.WriteMessages(ctx, msgs...)
}

// Close flushes pending writes and closes broker connections.
func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}
