package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/paperflow/internal/errs"
	"github.com/drblury/paperflow/internal/messages"
	"github.com/drblury/paperflow/internal/schema"
	"github.com/drblury/paperflow/internal/summarize"
)

// fakeConsumer replays a scripted command sequence and records dispositions.
type fakeConsumer[T any] struct {
	msgs       []T
	consumeErr error

	acks    int
	nacks   []bool
	closed  int
	ackErr  error
	nackErr error
}

func (f *fakeConsumer[T]) Consume(ctx context.Context) (<-chan T, error) {
	if f.consumeErr != nil {
		return nil, f.consumeErr
	}
	out := make(chan T)
	go func() {
		defer close(out)
		for _, m := range f.msgs {
			select {
			case out <- m:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (f *fakeConsumer[T]) Ack() error {
	if f.ackErr != nil {
		return f.ackErr
	}
	f.acks++
	return nil
}

func (f *fakeConsumer[T]) Nack(requeue bool) error {
	if f.nackErr != nil {
		return f.nackErr
	}
	f.nacks = append(f.nacks, requeue)
	return nil
}

func (f *fakeConsumer[T]) Close() error {
	f.closed++
	return nil
}

type publishedEvent struct {
	key string
	msg any
}

type fakePublisher struct {
	events []publishedEvent
	errs   []error
}

func (f *fakePublisher) Publish(ctx context.Context, routingKey string, msg any) error {
	f.events = append(f.events, publishedEvent{key: routingKey, msg: msg})
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return err
	}
	return nil
}

func (f *fakePublisher) genaiEvents(t *testing.T) []messages.GenAIEvent {
	t.Helper()
	var out []messages.GenAIEvent
	for _, e := range f.events {
		require.Equal(t, schema.GenAIEventRouting, e.key)
		event, ok := e.msg.(messages.GenAIEvent)
		require.True(t, ok, "expected a GenAIEvent, got %T", e.msg)
		out = append(out, event)
	}
	return out
}

func command(id, text string) messages.GenAICommand {
	return messages.GenAICommand{DocumentID: id, Text: text}
}

func fixedSummarizer(summary string, err error) summarize.Summarizer {
	return summarize.Func(func(ctx context.Context, text string) (string, error) {
		return summary, err
	})
}

func TestSummaryWorker_Success(t *testing.T) {
	consumer := &fakeConsumer[messages.GenAICommand]{msgs: []messages.GenAICommand{command("doc-1", "long text")}}
	publisher := &fakePublisher{}
	w := NewSummaryWorker(consumer, publisher, fixedSummarizer("a fine summary", nil))

	require.NoError(t, w.Run(context.Background()))

	events := publisher.genaiEvents(t)
	require.Len(t, events, 1)
	assert.Equal(t, "doc-1", events[0].DocumentID)
	require.True(t, events[0].Succeeded())
	assert.Equal(t, "a fine summary", *events[0].Summary)
	assert.Equal(t, 1, consumer.acks)
	assert.Empty(t, consumer.nacks)
}

func TestSummaryWorker_BlankTextSkipped(t *testing.T) {
	consumer := &fakeConsumer[messages.GenAICommand]{msgs: []messages.GenAICommand{command("doc-1", "   ")}}
	publisher := &fakePublisher{}
	called := false
	w := NewSummaryWorker(consumer, publisher, summarize.Func(func(ctx context.Context, text string) (string, error) {
		called = true
		return "", nil
	}))

	require.NoError(t, w.Run(context.Background()))

	assert.False(t, called, "blank text must not reach the summarizer")
	assert.Empty(t, publisher.events)
	assert.Equal(t, 1, consumer.acks)
}

func TestSummaryWorker_SoftFailurePublishesFailureAndAcks(t *testing.T) {
	consumer := &fakeConsumer[messages.GenAICommand]{msgs: []messages.GenAICommand{command("doc-1", "text")}}
	publisher := &fakePublisher{}
	w := NewSummaryWorker(consumer, publisher, fixedSummarizer("", nil))

	require.NoError(t, w.Run(context.Background()))

	events := publisher.genaiEvents(t)
	require.Len(t, events, 1)
	require.False(t, events[0].Succeeded())
	assert.Equal(t, "failed to generate summary", *events[0].ErrorMessage)
	assert.Equal(t, 1, consumer.acks)
	assert.Empty(t, consumer.nacks)
}

func TestSummaryWorker_TransientErrorRequeuesWithoutEvent(t *testing.T) {
	consumer := &fakeConsumer[messages.GenAICommand]{msgs: []messages.GenAICommand{command("doc-1", "text")}}
	publisher := &fakePublisher{}
	w := NewSummaryWorker(consumer, publisher, fixedSummarizer("", errs.Transient(errors.New("gateway timeout"))))

	require.NoError(t, w.Run(context.Background()))

	assert.Empty(t, publisher.events, "transient failures publish nothing")
	assert.Equal(t, 0, consumer.acks)
	assert.Equal(t, []bool{true}, consumer.nacks)
}

func TestSummaryWorker_FatalErrorDiscardsWithFailureEvent(t *testing.T) {
	consumer := &fakeConsumer[messages.GenAICommand]{msgs: []messages.GenAICommand{command("doc-1", "text")}}
	publisher := &fakePublisher{}
	w := NewSummaryWorker(consumer, publisher, fixedSummarizer("", errors.New("invalid request")))

	require.NoError(t, w.Run(context.Background()))

	events := publisher.genaiEvents(t)
	require.Len(t, events, 1)
	require.False(t, events[0].Succeeded())
	assert.Equal(t, "invalid request", *events[0].ErrorMessage)
	assert.Equal(t, 0, consumer.acks)
	assert.Equal(t, []bool{false}, consumer.nacks)
}

func TestSummaryWorker_FailureEventPublishErrorStillDiscards(t *testing.T) {
	consumer := &fakeConsumer[messages.GenAICommand]{msgs: []messages.GenAICommand{command("doc-1", "text")}}
	publisher := &fakePublisher{errs: []error{errors.New("broker down")}}
	w := NewSummaryWorker(consumer, publisher, fixedSummarizer("", errors.New("invalid request")))

	require.NoError(t, w.Run(context.Background()))

	// The failure event was attempted, failed, and the discard still happened.
	assert.Len(t, publisher.events, 1)
	assert.Equal(t, []bool{false}, consumer.nacks)
	assert.Equal(t, 0, consumer.acks)
}

func TestSummaryWorker_ResultPublishErrorDiscards(t *testing.T) {
	consumer := &fakeConsumer[messages.GenAICommand]{msgs: []messages.GenAICommand{command("doc-1", "text")}}
	publisher := &fakePublisher{errs: []error{errors.New("broker down")}}
	w := NewSummaryWorker(consumer, publisher, fixedSummarizer("summary", nil))

	require.NoError(t, w.Run(context.Background()))

	// First publish is the success event that failed, second the best-effort
	// failure event from the discard path.
	events := publisher.genaiEvents(t)
	require.Len(t, events, 2)
	assert.True(t, events[0].Succeeded())
	assert.False(t, events[1].Succeeded())
	assert.Equal(t, []bool{false}, consumer.nacks)
	assert.Equal(t, 0, consumer.acks)
}

func TestSummaryWorker_CancellationLeavesMessageUndisposed(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	consumer := &fakeConsumer[messages.GenAICommand]{msgs: []messages.GenAICommand{command("doc-1", "text")}}
	publisher := &fakePublisher{}
	w := NewSummaryWorker(consumer, publisher, summarize.Func(func(ctx context.Context, text string) (string, error) {
		cancel()
		return "", ctx.Err()
	}))

	err := w.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, publisher.events)
	assert.Equal(t, 0, consumer.acks)
	assert.Empty(t, consumer.nacks, "cancellation must leave the message to redelivery")
}

func TestSummaryWorker_ConsumeErrorPropagates(t *testing.T) {
	consumeErr := errors.New("queue missing")
	consumer := &fakeConsumer[messages.GenAICommand]{consumeErr: consumeErr}
	w := NewSummaryWorker(consumer, &fakePublisher{}, fixedSummarizer("", nil))

	assert.ErrorIs(t, w.Run(context.Background()), consumeErr)
}

func TestSummaryWorker_ProcessesSequence(t *testing.T) {
	consumer := &fakeConsumer[messages.GenAICommand]{msgs: []messages.GenAICommand{
		command("doc-1", "first"),
		command("doc-2", ""),
		command("doc-3", "third"),
	}}
	publisher := &fakePublisher{}
	w := NewSummaryWorker(consumer, publisher, summarize.Func(func(ctx context.Context, text string) (string, error) {
		return "summary of " + text, nil
	}))

	require.NoError(t, w.Run(context.Background()))

	events := publisher.genaiEvents(t)
	require.Len(t, events, 2)
	assert.Equal(t, "doc-1", events[0].DocumentID)
	assert.Equal(t, "doc-3", events[1].DocumentID)
	assert.Equal(t, 3, consumer.acks, "blank-text command is acked too")
}

func TestIsCancellation(t *testing.T) {
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	live := context.Background()

	assert.True(t, isCancellation(cancelled, context.Canceled))
	assert.True(t, isCancellation(cancelled, context.DeadlineExceeded))
	assert.False(t, isCancellation(cancelled, nil))
	assert.False(t, isCancellation(cancelled, errors.New("boom")))
	assert.False(t, isCancellation(live, context.Canceled), "summarizer-internal timeouts are not caller cancellation")
}
