package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"revenue-market/internal/domain"
)

func seqEvents(from, to uint64) []domain.Event {
	var out []domain.Event
	for s := from; s <= to; s++ {
		out = append(out, domain.Event{Seq: s, Type: domain.EventPurchaseRecorded})
	}
	return out
}

func TestQueue_DeliversInOrder(t *testing.T) {
	logger, _ := test.NewNullLogger()
	rec := NewRecorder()
	q := NewQueue(rec, logger)
	defer q.Close()

	q.Enqueue(seqEvents(1, 3)...)
	q.Enqueue(seqEvents(4, 6)...)
	require.NoError(t, q.Flush(context.Background()))

	got := rec.Events()
	require.Len(t, got, 6)
	for i, e := range got {
		assert.Equal(t, uint64(i+1), e.Seq)
	}
}

func TestQueue_EnqueueDoesNotWaitForSink(t *testing.T) {
	logger, _ := test.NewNullLogger()
	release := make(chan struct{})
	q := NewQueue(SinkFunc(func(context.Context, domain.Event) error {
		<-release
		return nil
	}), logger)

	done := make(chan struct{})
	go func() {
		q.Enqueue(seqEvents(1, 100)...)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("enqueue blocked on a stalled sink")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, q.Flush(ctx), context.DeadlineExceeded)

	close(release)
	q.Close()
}

func TestQueue_LogsSinkFailures(t *testing.T) {
	logger, hook := test.NewNullLogger()
	q := NewQueue(SinkFunc(func(context.Context, domain.Event) error {
		return errors.New("broker down")
	}), logger)
	defer q.Close()

	q.Enqueue(seqEvents(1, 2)...)
	require.NoError(t, q.Flush(context.Background()))

	warnings := 0
	for _, entry := range hook.AllEntries() {
		if entry.Level == logrus.WarnLevel && entry.Message == "event sink failed" {
			warnings++
		}
	}
	assert.Equal(t, 2, warnings)
}

func TestQueue_CloseDrainsAndRejects(t *testing.T) {
	logger, _ := test.NewNullLogger()
	rec := NewRecorder()
	q := NewQueue(rec, logger)

	q.Enqueue(seqEvents(1, 10)...)
	q.Close()
	assert.Len(t, rec.Events(), 10)

	q.Enqueue(seqEvents(11, 11)...)
	assert.Len(t, rec.Events(), 10)
	assert.ErrorIs(t, q.Flush(context.Background()), ErrQueueClosed)
	q.Close()
}
