package consumer

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"example.com/planner/internal/outbox"
)

func framed(schemaID uint32, payload []byte) []byte {
	value := make([]byte, 5+len(payload))
	binary.BigEndian.PutUint32(value[1:5], schemaID)
	copy(value[5:], payload)
	return value
}

func plannerMessage(offset int64, eventType string, value []byte) kafka.Message {
	return kafka.Message{
		Topic:     outbox.TopicCompletion,
		Partition: 0,
		Offset:    offset,
		Time:      time.Now().UTC(),
		Value:     value,
		Headers: []kafka.Header{
			{Key: outbox.HeaderEventType, Value: []byte(eventType)},
			{Key: outbox.HeaderOwnerID, Value: []byte("owner-1")},
			{Key: outbox.HeaderAggregateID, Value: []byte("act-1")},
			{Key: outbox.HeaderSchemaSubject, Value: []byte(outbox.TopicCompletion + "-completion.toggled")},
		},
	}
}

func quietLogger() *log.Logger {
	return log.New(io.Discard)
}

func TestProcessorCommitsOnSuccess(t *testing.T) {
	payload := []byte(`{"activity_id":"act-1","period_key":"2024-W03"}`)
	reader := &stubReader{messages: []kafka.Message{plannerMessage(10, "completion.toggled", framed(42, payload))}}
	handler := &stubHandler{}

	processor := NewProcessor(reader, handler, WithLogger(quietLogger()))

	err := processor.Run(context.Background())
	require.ErrorIs(t, err, context.Canceled)

	require.Equal(t, 1, handler.calls)
	require.Equal(t, 1, reader.commitCalls)
	require.Equal(t, "completion.toggled", handler.last.EventType)
	require.Equal(t, "owner-1", handler.last.OwnerID)
	require.Equal(t, "act-1", handler.last.AggregateID)
	require.Equal(t, 42, handler.last.SchemaID)
	require.Equal(t, int64(10), handler.last.Offset)
	require.JSONEq(t, string(payload), string(handler.last.Payload))
}

func TestProcessorSkipsCommitOnHandlerError(t *testing.T) {
	payload := []byte(`{"activity_id":"act-1"}`)
	reader := &stubReader{messages: []kafka.Message{plannerMessage(20, "activity.archived", framed(99, payload))}}
	handler := &stubHandler{err: errors.New("boom")}

	processor := NewProcessor(reader, handler, WithLogger(quietLogger()))

	err := processor.Run(context.Background())
	require.ErrorIs(t, err, context.Canceled)

	require.Equal(t, 1, handler.calls)
	require.Equal(t, 0, reader.commitCalls)
}

func TestProcessorCommitsUndecodableMessages(t *testing.T) {
	noHeader := plannerMessage(2, "activity.created", framed(1, []byte(`{}`)))
	noHeader.Headers = nil
	badMagic := plannerMessage(3, "activity.created", framed(1, []byte(`{}`)))
	badMagic.Value[0] = 7
	reader := &stubReader{messages: []kafka.Message{
		plannerMessage(1, "activity.created", []byte{0, 0}),
		noHeader,
		badMagic,
		plannerMessage(4, "activity.created", framed(1, []byte(`not json`))),
	}}
	handler := &stubHandler{}
	undecodable := consumedMessages.WithLabelValues(reader.messages[0].Topic, "", resultUndecodable)
	before := testutil.ToFloat64(undecodable)

	processor := NewProcessor(reader, handler, WithLogger(quietLogger()))

	err := processor.Run(context.Background())
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, handler.calls)
	require.Equal(t, 4, reader.commitCalls)
	require.InDelta(t, before+4, testutil.ToFloat64(undecodable), 0.0001)
}

func TestProcessorRetriesAfterFetchError(t *testing.T) {
	reader := &stubReader{
		fetchErrs: []error{errors.New("broker unavailable")},
		messages:  []kafka.Message{plannerMessage(5, "activity.updated", framed(3, []byte(`{}`)))},
	}
	handler := &stubHandler{}

	processor := NewProcessor(reader, handler, WithLogger(quietLogger()), WithFetchBackoff(time.Millisecond))

	err := processor.Run(context.Background())
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, handler.calls)
	require.Equal(t, 1, reader.commitCalls)
}

func TestProcessorStopsWhenContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	processor := NewProcessor(&stubReader{}, &stubHandler{}, WithLogger(quietLogger()))
	require.ErrorIs(t, processor.Run(ctx), context.Canceled)
}

type stubReader struct {
	fetchErrs   []error
	messages    []kafka.Message
	index       int
	commitCalls int
}

func (r *stubReader) FetchMessage(context.Context) (kafka.Message, error) {
	if len(r.fetchErrs) > 0 {
		err := r.fetchErrs[0]
		r.fetchErrs = r.fetchErrs[1:]
		return kafka.Message{}, err
	}
	if r.index >= len(r.messages) {
		return kafka.Message{}, context.Canceled
	}
	msg := r.messages[r.index]
	r.index++
	return msg, nil
}

func (r *stubReader) CommitMessages(_ context.Context, _ ...kafka.Message) error {
	r.commitCalls++
	return nil
}

func (r *stubReader) Close() error { return nil }

type stubHandler struct {
	calls int
	err   error
	last  Message
}

func (h *stubHandler) Handle(_ context.Context, msg Message) error {
	h.calls++
	h.last = msg
	return h.err
}
