//go:build integration

package consumer

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"example.com/planner/internal/domain"
	"example.com/planner/internal/outbox"
	"example.com/planner/internal/persistence/postgres"
	"example.com/planner/internal/testsupport"
	"example.com/planner/internal/tracker"
)

func TestPersistenceHandlerStoresEventOnce(t *testing.T) {
	ctx := context.Background()
	pool := testsupport.StartPostgres(ctx, t)

	handler := NewPersistenceHandler(pool)

	payload := json.RawMessage(`{"activity_id":"abc","owner_id":"owner-123","period_key":"2024-01"}`)
	msg := Message{
		EventType:     "completion.toggled",
		OwnerID:       "owner-123",
		SchemaID:      42,
		SchemaSubject: outbox.TopicCompletion + "-completion.toggled",
		Topic:         outbox.TopicCompletion,
		Partition:     0,
		Offset:        5,
		Payload:       payload,
		Timestamp:     time.Now().UTC(),
	}

	require.NoError(t, handler.Handle(ctx, msg))
	require.NoError(t, handler.Handle(ctx, msg))

	var count int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM planner_event_log`).Scan(&count))
	require.Equal(t, 1, count)

	var storedPayload []byte
	var owner string
	err := pool.QueryRow(ctx, `SELECT payload, owner_id FROM planner_event_log LIMIT 1`).Scan(&storedPayload, &owner)
	require.NoError(t, err)
	require.JSONEq(t, string(payload), string(storedPayload))
	require.Equal(t, "owner-123", owner)
}

type fixedRegistry struct {
	mu  sync.Mutex
	ids map[string]int
}

func (r *fixedRegistry) EnsureSchema(_ context.Context, subject, _ string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.ids[subject]; ok {
		return id, nil
	}
	id := len(r.ids) + 1
	r.ids[subject] = id
	return id, nil
}

func TestOutboxToEventLogPipeline(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	pool := testsupport.StartPostgres(ctx, t)
	broker := testsupport.StartKafka(ctx, t)
	quiet := log.New(io.Discard)

	service := domain.NewService(postgres.NewRepository(pool), domain.WithLogger(quiet))
	owner := "owner-pipeline"
	agg, _, err := service.CreateActivity(ctx, domain.CreateActivityInput{
		OwnerID:       owner,
		Title:         "Revisar presupuesto",
		FrequencyType: "MONTHLY",
	})
	require.NoError(t, err)
	_, err = service.ToggleCompletion(ctx, domain.ToggleCompletionInput{
		OwnerID:    owner,
		ActivityID: agg.ID,
		Date:       tracker.MustParseDate("2024-03-18"),
		Completed:  true,
	})
	require.NoError(t, err)

	producer := outbox.NewKafkaProducer([]string{broker})
	t.Cleanup(func() { _ = producer.Close() })
	dispatcher := outbox.NewDispatcher(pool, producer, &fixedRegistry{ids: map[string]int{}}, 200*time.Millisecond, 10, outbox.WithLogger(quiet))
	dispatchCtx, stopDispatch := context.WithCancel(ctx)
	go dispatcher.Start(dispatchCtx)
	t.Cleanup(func() {
		stopDispatch()
		dispatcher.Wait()
	})

	handler := NewPersistenceHandler(pool)
	for _, topic := range []string{outbox.TopicActivity, outbox.TopicCompletion} {
		reader := kafka.NewReader(kafka.ReaderConfig{
			Brokers:     []string{broker},
			GroupID:     "planner-pipeline-test",
			Topic:       topic,
			StartOffset: kafka.FirstOffset,
			MaxWait:     200 * time.Millisecond,
		})
		t.Cleanup(func() { _ = reader.Close() })
		processor := NewProcessor(reader, handler, WithLogger(quiet))
		go func() { _ = processor.Run(dispatchCtx) }()
	}

	require.Eventually(t, func() bool {
		var count int
		if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM planner_event_log WHERE owner_id=$1`, owner).Scan(&count); err != nil {
			return false
		}
		return count == 2
	}, 2*time.Minute, 500*time.Millisecond)

	var payload []byte
	require.NoError(t, pool.QueryRow(ctx,
		`SELECT payload FROM planner_event_log WHERE event_type='completion.toggled' AND owner_id=$1`, owner).Scan(&payload))
	var toggled struct {
		ActivityID string `json:"activity_id"`
		PeriodKey  string `json:"period_key"`
		Completed  bool   `json:"completed"`
	}
	require.NoError(t, json.Unmarshal(payload, &toggled))
	require.Equal(t, agg.ID, toggled.ActivityID)
	require.Equal(t, "2024-03", toggled.PeriodKey)
	require.True(t, toggled.Completed)
}
