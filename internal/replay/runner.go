// Package replay re-delivers the committed event log to event sinks, in
// sequence order. It rebuilds projections such as the distribution history
// and republishes to the broker after an outage.
package replay

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"revenue-market/internal/domain"
	"revenue-market/internal/events"
	"revenue-market/internal/storage"
)

// DefaultPageSize is the number of events loaded per read.
const DefaultPageSize = 500

// Runner loads events from storage and replays them in deterministic order.
type Runner struct {
	store    storage.Store
	pageSize int
	log      logrus.FieldLogger
}

// NewRunner creates a new replay runner. A non-positive pageSize uses DefaultPageSize.
func NewRunner(store storage.Store, pageSize int, log logrus.FieldLogger) *Runner {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Runner{
		store:    store,
		pageSize: pageSize,
		log:      log.WithField("component", "replay"),
	}
}

// Run replays every event with Seq > after through sink and returns the
// sequence of the last event delivered. Delivery stops at the first sink error.
func (r *Runner) Run(ctx context.Context, after uint64, sink events.Sink) (uint64, error) {
	last := after
	replayed := 0
	for {
		if err := ctx.Err(); err != nil {
			return last, err
		}

		page, err := r.load(ctx, last)
		if err != nil {
			return last, err
		}
		if err := CheckOrdering(page, last); err != nil {
			return last, err
		}

		for _, e := range page {
			if err := sink.Publish(ctx, *e); err != nil {
				return last, fmt.Errorf("replay event %d (%s): %w", e.Seq, e.Type, err)
			}
			last = e.Seq
			replayed++
		}

		if len(page) < r.pageSize {
			break
		}
	}

	r.log.WithFields(logrus.Fields{
		"from":     after,
		"to":       last,
		"replayed": replayed,
	}).Info("replay complete")
	return last, nil
}

// RunAll replays the whole log through sink.
func (r *Runner) RunAll(ctx context.Context, sink events.Sink) (uint64, error) {
	return r.Run(ctx, 0, sink)
}

func (r *Runner) load(ctx context.Context, after uint64) ([]*domain.Event, error) {
	var page []*domain.Event
	err := r.store.Atomic(ctx, func(tx storage.Tx) error {
		var err error
		page, err = tx.Events().GetAfter(ctx, after, r.pageSize)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("load events after %d: %w", after, err)
	}
	return page, nil
}
