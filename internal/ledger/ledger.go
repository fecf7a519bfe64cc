// Package ledger is the marketplace accounting state machine: asset and
// revenue token registry, listing lifecycle, per-buyer escrow, purchase and
// distribution settlement, and withdrawals.
//
// Every operation runs as one storage unit of work. Operations sharing a
// listing, an escrow position, an asset or an account are serialized by an
// in-process keyed mutex; the storage backend provides atomicity and, for
// postgres, row locks across processes. Events appended inside the unit of
// work are handed to an ordered outbox once it commits and delivered to the
// sink by a background goroutine, so a slow sink never holds ledger locks.
// Events of operations sharing a key reach the sink in commit order.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/bits"
	"time"

	"github.com/sirupsen/logrus"

	"revenue-market/internal/collateral"
	"revenue-market/internal/domain"
	"revenue-market/internal/events"
	"revenue-market/internal/observability"
	"revenue-market/internal/settlement"
	"revenue-market/internal/storage"
)

// DefaultTreasuryID is the account credited with protocol fees.
const DefaultTreasuryID = "protocol-treasury"

// Options for creating a Ledger.
type Options struct {
	// Required
	Store storage.Store

	// Settlement parameters; nil uses settlement.DefaultParams.
	Params *settlement.Params

	// Collateral formula consulted at mint; nil requires none.
	Requirement collateral.Requirement

	// TreasuryID is the account credited with protocol fees.
	TreasuryID string

	// Sink receives committed events asynchronously; nil discards them.
	Sink events.Sink

	// ValidateActor checks caller identities; nil accepts any non-empty id.
	ValidateActor func(string) error

	// Now returns the current time; nil uses time.Now.
	Now func() time.Time

	Logger logrus.FieldLogger
}

// Ledger executes marketplace operations.
type Ledger struct {
	store       storage.Store
	params      settlement.Params
	requirement collateral.Requirement
	treasuryID  string
	outbox      *events.Queue
	validate    func(string) error
	now         func() time.Time
	log         logrus.FieldLogger
	locks       *keyedMutex
}

// New creates a Ledger.
func New(opts Options) (*Ledger, error) {
	if opts.Store == nil {
		return nil, errors.New("ledger: store is required")
	}

	params := settlement.DefaultParams()
	if opts.Params != nil {
		params = *opts.Params
	}
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("ledger: %w", err)
	}

	l := &Ledger{
		store:       opts.Store,
		params:      params,
		requirement: opts.Requirement,
		treasuryID:  opts.TreasuryID,
		validate:    opts.ValidateActor,
		now:         opts.Now,
		log:         opts.Logger,
		locks:       newKeyedMutex(),
	}
	if l.requirement == nil {
		l.requirement = collateral.None
	}
	if l.treasuryID == "" {
		l.treasuryID = DefaultTreasuryID
	}
	if l.now == nil {
		l.now = time.Now
	}
	if l.log == nil {
		l.log = logrus.StandardLogger()
	}
	l.log = l.log.WithField("component", "ledger")

	sink := opts.Sink
	if sink == nil {
		sink = events.Discard
	}
	l.outbox = events.NewQueue(sink, l.log)

	return l, nil
}

// Params returns the settlement parameters in force.
func (l *Ledger) Params() settlement.Params {
	return l.params
}

// Flush waits until every event committed so far has been delivered to the sink.
func (l *Ledger) Flush(ctx context.Context) error {
	return l.outbox.Flush(ctx)
}

// Close delivers pending events and stops the outbox. Operations completed
// after Close no longer publish.
func (l *Ledger) Close() {
	l.outbox.Close()
}

// TreasuryID returns the protocol fee account.
func (l *Ledger) TreasuryID() string {
	return l.treasuryID
}

// unit is the context of one operation inside a storage unit of work.
type unit struct {
	ctx    context.Context
	tx     storage.Tx
	now    int64
	events []domain.Event
}

// emit stamps e with the operation time and appends it to the event log.
func (u *unit) emit(e domain.Event) error {
	e.Timestamp = u.now
	if err := u.tx.Events().Append(u.ctx, &e); err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	u.events = append(u.events, e)
	return nil
}

// execute runs fn as operation op while holding keys and queues the events fn
// emitted once they commit. Errors are returned wrapped with op.
func (l *Ledger) execute(ctx context.Context, op string, keys []string, fn func(u *unit) error) error {
	start := time.Now()

	err := l.commit(ctx, keys, fn)

	outcome := "ok"
	if err != nil {
		outcome = KindOf(err).String()
	}
	observability.RecordOperation(op, outcome, time.Since(start).Seconds())

	if err != nil {
		entry := l.log.WithError(err).WithFields(logrus.Fields{"op": op, "kind": outcome})
		if KindOf(err) == KindInternal {
			entry.Error("operation failed")
		} else {
			entry.Debug("operation rejected")
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// commit runs fn in a unit of work under keys. Committed events are queued
// before the keys are released.
func (l *Ledger) commit(ctx context.Context, keys []string, fn func(u *unit) error) error {
	unlock := l.locks.Lock(keys...)
	defer unlock()

	var committed []domain.Event
	err := l.store.Atomic(ctx, func(tx storage.Tx) error {
		u := &unit{ctx: ctx, tx: tx, now: l.now().Unix()}
		if err := fn(u); err != nil {
			return err
		}
		committed = u.events
		return nil
	})
	if err != nil {
		return err
	}
	l.outbox.Enqueue(committed...)
	return nil
}

// view runs a read-only unit of work without taking ledger locks.
func (l *Ledger) view(ctx context.Context, fn func(tx storage.Tx) error) error {
	return l.store.Atomic(ctx, fn)
}

// checkActor validates a caller identity.
func (l *Ledger) checkActor(actor string) error {
	if actor == "" {
		return ErrMissingActor
	}
	if actor == domain.EscrowCustodian {
		return fmt.Errorf("%w: %s", ErrReservedActor, actor)
	}
	if l.validate != nil {
		if err := l.validate(actor); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidActor, err)
		}
	}
	return nil
}

// checkedAdd returns a + b or settlement.ErrAmountOverflow.
func checkedAdd(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, settlement.ErrAmountOverflow
	}
	return sum, nil
}

// addDuration returns t + d, rejecting int64 overflow.
func addDuration(t, d int64) (int64, error) {
	if d > 0 && t > (1<<63-1)-d {
		return 0, settlement.ErrAmountOverflow
	}
	return t + d, nil
}

// mapStorage translates storage errors the ledger reports to callers.
func mapStorage(err error, notFound error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrNotFound):
		return notFound
	case errors.Is(err, storage.ErrInsufficientBalance):
		return ErrInsufficientBalance
	default:
		return err
	}
}
