// Package events delivers committed ledger events to independent consumers:
// a message broker, live WebSocket subscribers and analytics projections.
// Consumers never affect ledger state; delivery failures are reported and
// logged by the caller.
package events

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"revenue-market/internal/domain"
	"revenue-market/internal/observability"
)

// Sink receives ledger events after they are committed.
type Sink interface {
	Publish(ctx context.Context, e domain.Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, e domain.Event) error

// Publish calls f.
func (f SinkFunc) Publish(ctx context.Context, e domain.Event) error {
	return f(ctx, e)
}

// Discard drops every event.
var Discard Sink = SinkFunc(func(context.Context, domain.Event) error { return nil })

type namedSink struct {
	name string
	sink Sink
}

// Fanout delivers each event to every registered sink, in registration order.
// A failing sink does not prevent delivery to the others.
type Fanout struct {
	mu    sync.RWMutex
	sinks []namedSink
	log   logrus.FieldLogger
}

// NewFanout creates an empty Fanout.
func NewFanout(log logrus.FieldLogger) *Fanout {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Fanout{log: log.WithField("component", "events")}
}

// Add registers a sink under name.
func (f *Fanout) Add(name string, s Sink) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sinks = append(f.sinks, namedSink{name: name, sink: s})
}

// Len returns the number of registered sinks.
func (f *Fanout) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.sinks)
}

// Publish delivers e to all sinks and returns the joined delivery errors.
func (f *Fanout) Publish(ctx context.Context, e domain.Event) error {
	f.mu.RLock()
	sinks := append([]namedSink(nil), f.sinks...)
	f.mu.RUnlock()

	var errs []error
	for _, s := range sinks {
		if err := s.sink.Publish(ctx, e); err != nil {
			observability.RecordSinkError(s.name)
			f.log.WithError(err).WithFields(logrus.Fields{
				"sink":  s.name,
				"event": e.Type,
				"seq":   e.Seq,
			}).Warn("event delivery failed")
			errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
		}
	}
	return errors.Join(errs...)
}

// Recorder keeps every published event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []domain.Event
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Publish appends e.
func (r *Recorder) Publish(_ context.Context, e domain.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

// Events returns a copy of the recorded events in publish order.
func (r *Recorder) Events() []domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Event(nil), r.events...)
}

// OfType returns the recorded events of type t.
func (r *Recorder) OfType(t domain.EventType) []domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []domain.Event
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}
