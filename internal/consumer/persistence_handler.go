package consumer

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const insertEventLog = `
INSERT INTO planner_event_log
    (event_type, owner_id, schema_id, schema_subject, topic, partition, record_offset, payload, received_at)
VALUES
    (@event_type, @owner_id, @schema_id, @schema_subject, @topic, @partition, @record_offset, @payload, @received_at)
ON CONFLICT (topic, partition, record_offset) DO NOTHING`

// PersistenceHandler appends consumed events to planner_event_log. A redelivered
// record (same topic, partition and offset) is stored once.
type PersistenceHandler struct {
	pool *pgxpool.Pool
}

// NewPersistenceHandler returns a handler writing through pool.
func NewPersistenceHandler(pool *pgxpool.Pool) *PersistenceHandler {
	return &PersistenceHandler{pool: pool}
}

// Handle implements Handler.
func (h *PersistenceHandler) Handle(ctx context.Context, msg Message) error {
	if _, err := h.pool.Exec(ctx, insertEventLog, pgx.NamedArgs{
		"event_type":     msg.EventType,
		"owner_id":       msg.OwnerID,
		"schema_id":      msg.SchemaID,
		"schema_subject": msg.SchemaSubject,
		"topic":          msg.Topic,
		"partition":      msg.Partition,
		"record_offset":  msg.Offset,
		"payload":        msg.Payload,
		"received_at":    msg.Timestamp,
	}); err != nil {
		return fmt.Errorf("store %s at %s/%d/%d: %w", msg.EventType, msg.Topic, msg.Partition, msg.Offset, err)
	}
	return nil
}
