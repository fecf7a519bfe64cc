package memory

import (
	"context"

	"revenue-market/internal/domain"
	"revenue-market/internal/idhash"
	"revenue-market/internal/storage"
)

type eventStore struct{ t *tx }

// Append assigns Seq and ID to e and stages it for the log.
func (s eventStore) Append(_ context.Context, e *domain.Event) error {
	if e == nil || e.Type == "" {
		return storage.ErrInvalidInput
	}

	e.Seq = uint64(len(s.t.store.events)+len(s.t.events)) + 1
	e.ID = idhash.EventID(e.Type, e.Seq, e.Timestamp)
	s.t.events = append(s.t.events, *e)
	return nil
}

// GetAfter retrieves up to limit events with Seq > afterSeq ordered by Seq ASC.
func (s eventStore) GetAfter(_ context.Context, afterSeq uint64, limit int) ([]*domain.Event, error) {
	var result []*domain.Event
	s.each(func(e domain.Event) bool {
		if e.Seq > afterSeq {
			eventCopy := e
			result = append(result, &eventCopy)
		}
		return limit <= 0 || len(result) < limit
	})
	return result, nil
}

// GetByListing retrieves all events of a listing ordered by Seq ASC.
func (s eventStore) GetByListing(_ context.Context, listingID uint64) ([]*domain.Event, error) {
	var result []*domain.Event
	s.each(func(e domain.Event) bool {
		if e.ListingID == listingID && e.ListingID != 0 {
			eventCopy := e
			result = append(result, &eventCopy)
		}
		return true
	})
	return result, nil
}

// each visits committed then staged events in Seq order until fn returns false.
func (s eventStore) each(fn func(domain.Event) bool) {
	for _, e := range s.t.store.events {
		if !fn(e) {
			return
		}
	}
	for _, e := range s.t.events {
		if !fn(e) {
			return
		}
	}
}

var _ storage.EventStore = eventStore{}
