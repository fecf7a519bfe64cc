package replay

import "errors"

// ErrInvalidOrdering is returned when the event log is not gapless and strictly increasing.
var ErrInvalidOrdering = errors.New("events are not in sequence order")
