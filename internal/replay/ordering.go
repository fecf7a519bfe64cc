package replay

import (
	"fmt"

	"revenue-market/internal/domain"
)

// CheckOrdering verifies that events continue the log right after seq after:
// the first event has Seq after+1 and each following event increments by one.
func CheckOrdering(events []*domain.Event, after uint64) error {
	want := after + 1
	for _, e := range events {
		if e.Seq != want {
			return fmt.Errorf("%w: want seq %d, got %d", ErrInvalidOrdering, want, e.Seq)
		}
		want++
	}
	return nil
}
