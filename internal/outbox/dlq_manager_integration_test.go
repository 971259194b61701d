//go:build integration

package outbox

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"example.com/planner/internal/testsupport"
	"example.com/planner/pkg/events"
)

func TestDLQManagerRequeuesAndQuarantines(t *testing.T) {
	ctx := context.Background()
	pool := testsupport.StartPostgres(ctx, t)

	ownerID := uuid.NewString()
	enqueue(t, ctx, pool, ownerID, events.TypeCompletionToggled, events.CompletionToggled{OwnerID: ownerID, PeriodKey: "2024-01-15"})
	enqueue(t, ctx, pool, ownerID, events.TypeActivityArchived, events.ActivityArchived{OwnerID: ownerID})

	failing := NewDispatcher(pool, failingWriter{err: io.ErrClosedPipe}, &fakeRegistry{}, time.Second, 10)
	require.NoError(t, failing.processBatch(ctx))

	// Exhaust the second entry so it is quarantined instead of replayed.
	_, err := pool.Exec(ctx, `UPDATE outbox_dlq SET retry_count = 3 WHERE event_type = $1`, events.TypeActivityArchived)
	require.NoError(t, err)

	manager := NewDLQManager(pool, 3, time.Second, log.New(io.Discard))
	beforeQuarantined := testutil.ToFloat64(dlqOutcomes.WithLabelValues(TopicActivity, events.TypeActivityArchived, outcomeQuarantined))

	requeued, err := manager.RunOnce(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, 1, requeued)
	require.InDelta(t, beforeQuarantined+1, testutil.ToFloat64(dlqOutcomes.WithLabelValues(TopicActivity, events.TypeActivityArchived, outcomeQuarantined)), 0.0001)
	require.Zero(t, testutil.ToFloat64(dlqBacklog))

	require.Equal(t, 1, countRows(t, ctx, pool,
		`SELECT COUNT(*) FROM outbox WHERE published_at IS NULL AND event_type = $1`, events.TypeCompletionToggled))
	require.Equal(t, 1, countRows(t, ctx, pool, `SELECT COUNT(*) FROM outbox_dlq WHERE quarantined_at IS NOT NULL`))

	replay := &recordingWriter{}
	require.NoError(t, NewDispatcher(pool, replay, &fakeRegistry{}, time.Second, 10).processBatch(ctx))
	require.Len(t, replay.written[TopicCompletion], 1)
	require.Empty(t, replay.written[TopicActivity])
}
