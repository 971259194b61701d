package outbox

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"example.com/planner/pkg/events"
)

type fakeRegistry struct {
	calls map[string]int
	err   error
}

func (f *fakeRegistry) EnsureSchema(_ context.Context, subject, _ string) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[subject]++
	return 40 + len(f.calls), nil
}

type recordingWriter struct {
	written map[string][]kafka.Message
}

func (w *recordingWriter) WriteMessages(_ context.Context, topic string, msgs ...kafka.Message) error {
	if w.written == nil {
		w.written = make(map[string][]kafka.Message)
	}
	w.written[topic] = append(w.written[topic], msgs...)
	return nil
}

func header(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func outboxMessage(t *testing.T, id int64, eventType string, payload any) Message {
	t.Helper()
	route, ok := RouteFor(eventType)
	require.True(t, ok)
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	return Message{
		EventID:       id,
		OwnerID:       "owner-1",
		AggregateType: "activity",
		AggregateID:   "act-1",
		EventType:     eventType,
		Topic:         route.Topic,
		SchemaSubject: route.SchemaSubject,
		PartitionKey:  "owner-1:act-1",
		Payload:       body,
	}
}

func TestDeliverFramesPayloadAndSetsHeaders(t *testing.T) {
	registry := &fakeRegistry{}
	writer := &recordingWriter{}
	d := NewDispatcher(nil, writer, registry, time.Second, 10, WithLogger(log.New(io.Discard)))
	d.now = func() time.Time { return time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC) }

	messages := []Message{
		outboxMessage(t, 1, events.TypeActivityCreated, events.ActivityCreated{ActivityID: "act-1", OwnerID: "owner-1"}),
		outboxMessage(t, 2, events.TypeCompletionToggled, events.CompletionToggled{ActivityID: "act-1", PeriodKey: "2024-W03"}),
		outboxMessage(t, 3, events.TypeActivityUpdated, events.ActivityUpdated{ActivityID: "act-1"}),
		outboxMessage(t, 4, events.TypeCompletionToggled, events.CompletionToggled{ActivityID: "act-1", PeriodKey: "2024-W04"}),
	}
	require.NoError(t, d.deliver(context.Background(), messages))

	require.Len(t, writer.written[TopicActivity], 2)
	require.Len(t, writer.written[TopicCompletion], 2)
	require.Equal(t, 1, registry.calls[TopicCompletion+"-completion.toggled"], "schema ids are cached per subject")

	record := writer.written[TopicCompletion][0]
	require.Equal(t, byte(0), record.Value[0])
	schemaID := binary.BigEndian.Uint32(record.Value[1:5])
	require.NotZero(t, schemaID)
	var payload events.CompletionToggled
	require.NoError(t, json.Unmarshal(record.Value[5:], &payload))
	require.Equal(t, "2024-W03", payload.PeriodKey)

	require.Equal(t, events.TypeCompletionToggled, header(record, HeaderEventType))
	require.Equal(t, "owner-1", header(record, HeaderOwnerID))
	require.Equal(t, TopicCompletion+"-completion.toggled", header(record, HeaderSchemaSubject))
	require.Equal(t, "act-1", header(record, HeaderAggregateID))
	require.Equal(t, "owner-1:act-1", string(record.Key))
}

func TestDeliverFailsOnUnknownEventOrRegistryError(t *testing.T) {
	d := NewDispatcher(nil, &recordingWriter{}, &fakeRegistry{}, time.Second, 10)
	err := d.deliver(context.Background(), []Message{{EventType: "activity.exploded"}})
	require.ErrorContains(t, err, "activity.exploded")

	boom := errors.New("registry down")
	d = NewDispatcher(nil, &recordingWriter{}, &fakeRegistry{err: boom}, time.Second, 10)
	err = d.deliver(context.Background(), []Message{outboxMessage(t, 1, events.TypeActivityArchived, events.ActivityArchived{})})
	require.ErrorIs(t, err, boom)
}

func TestEveryEventTypeHasARoute(t *testing.T) {
	for _, eventType := range []string{events.TypeActivityCreated, events.TypeActivityUpdated, events.TypeActivityArchived, events.TypeCompletionToggled} {
		route, ok := RouteFor(eventType)
		require.True(t, ok, eventType)
		require.NotEmpty(t, route.Topic)
		require.NotEmpty(t, route.SchemaSubject)
		require.True(t, json.Valid([]byte(route.Schema)), eventType)
	}
}

func TestBackoffDelayDoublesAndCaps(t *testing.T) {
	m := NewDLQManager(nil, 0, time.Minute, log.New(io.Discard))
	require.Equal(t, 5, m.maxRetries)
	require.Equal(t, time.Minute, m.backoffDelay(1))
	require.Equal(t, 2*time.Minute, m.backoffDelay(2))
	require.Equal(t, 32*time.Minute, m.backoffDelay(6))
	require.Equal(t, time.Hour, m.backoffDelay(7))
	require.Equal(t, time.Hour, m.backoffDelay(60))
}
