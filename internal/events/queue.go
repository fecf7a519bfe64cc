package events

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"revenue-market/internal/domain"
	"revenue-market/internal/observability"
)

// ErrQueueClosed is returned by Flush after Close.
var ErrQueueClosed = errors.New("event queue closed")

// queued is either an event to deliver or a flush marker.
type queued struct {
	event   domain.Event
	flushed chan struct{}
}

// Queue is an unbounded outbox in front of a Sink. Enqueue never blocks;
// a single goroutine delivers events in enqueue order, so a stalled sink
// delays delivery but never the caller.
type Queue struct {
	sink Sink
	log  logrus.FieldLogger

	mu      sync.Mutex
	pending []queued
	closed  bool
	wake    chan struct{}
	done    chan struct{}
}

// NewQueue starts delivering to sink. Call Close to drain and stop.
func NewQueue(sink Sink, log logrus.FieldLogger) *Queue {
	if log == nil {
		log = logrus.StandardLogger()
	}
	q := &Queue{
		sink: sink,
		log:  log.WithField("component", "outbox"),
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go q.run()
	return q
}

// Enqueue appends evs for delivery. Events enqueued after Close are dropped.
func (q *Queue) Enqueue(evs ...domain.Event) {
	if len(evs) == 0 {
		return
	}
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		q.log.WithField("events", len(evs)).Warn("dropping events enqueued after close")
		return
	}
	for _, e := range evs {
		q.pending = append(q.pending, queued{event: e})
	}
	q.mu.Unlock()
	q.signal()
}

// Flush waits until every event enqueued before the call has been delivered.
func (q *Queue) Flush(ctx context.Context) error {
	marker := make(chan struct{})
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	q.pending = append(q.pending, queued{flushed: marker})
	q.mu.Unlock()
	q.signal()

	select {
	case <-marker:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting events, delivers what is pending and waits for the
// delivery goroutine to exit.
func (q *Queue) Close() {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.wake)
	}
	q.mu.Unlock()
	<-q.done
}

func (q *Queue) signal() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *Queue) run() {
	defer close(q.done)
	for {
		batch, closed := q.take()
		for _, it := range batch {
			if it.flushed != nil {
				close(it.flushed)
				continue
			}
			q.deliver(it.event)
		}
		if closed && len(batch) == 0 {
			return
		}
		if len(batch) == 0 {
			<-q.wake
		}
	}
}

// take swaps out everything pending.
func (q *Queue) take() ([]queued, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	batch := q.pending
	q.pending = nil
	return batch, q.closed
}

func (q *Queue) deliver(e domain.Event) {
	if err := q.sink.Publish(context.Background(), e); err != nil {
		q.log.WithError(err).WithFields(logrus.Fields{
			"event": e.Type,
			"seq":   e.Seq,
		}).Warn("event sink failed")
		return
	}
	observability.RecordEventPublished(string(e.Type), e.Seq)
}
