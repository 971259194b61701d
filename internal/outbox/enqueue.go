package outbox

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Event is a domain event to be written to the outbox table.
type Event struct {
	OwnerID       string
	AggregateType string
	AggregateID   string
	EventType     string
	PartitionKey  string
	DedupeKey     string
	Payload       any
}

// Enqueue records evt inside tx so it commits or rolls back with the state change.
func Enqueue(ctx context.Context, tx pgx.Tx, evt Event) error {
	route, ok := RouteFor(evt.EventType)
	if !ok {
		return fmt.Errorf("unknown event type: %s", evt.EventType)
	}
	body, err := json.Marshal(evt.Payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", evt.EventType, err)
	}
	partitionKey := evt.PartitionKey
	if partitionKey == "" {
		partitionKey = evt.AggregateID
	}

	const stmt = `INSERT INTO outbox (owner_id, aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload, dedupe_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`

	_, err = tx.Exec(ctx, stmt,
		evt.OwnerID,
		evt.AggregateType,
		evt.AggregateID,
		evt.EventType,
		route.Topic,
		route.SchemaSubject,
		partitionKey,
		body,
		nullIfEmpty(evt.DedupeKey),
	)
	return err
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}
