package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"revenue-market/internal/domain"
	"revenue-market/internal/idhash"
	"revenue-market/internal/storage"
)

// EventStore implements storage.EventStore using PostgreSQL.
type EventStore struct {
	tx pgx.Tx
}

// Compile-time interface check.
var _ storage.EventStore = (*EventStore)(nil)

const eventColumns = `
	seq, event_id, event_type, listing_id, asset_id, token_id, actor,
	amount, payment, fee, proceeds, revenue, expires_at, timestamp`

// Append assigns Seq and ID to e and appends it to the log.
func (s *EventStore) Append(ctx context.Context, e *domain.Event) error {
	if e == nil || e.Type == "" {
		return storage.ErrInvalidInput
	}

	seq, err := nextSequence(ctx, s.tx, "event", 1)
	if err != nil {
		return err
	}
	e.Seq = seq
	e.ID = idhash.EventID(e.Type, e.Seq, e.Timestamp)

	query := `
		INSERT INTO ledger_events (` + eventColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err = s.tx.Exec(ctx, query,
		e.Seq, e.ID, string(e.Type), e.ListingID, e.AssetID, e.TokenID, e.Actor,
		e.Amount, e.Payment, e.Fee, e.Proceeds, e.Revenue, e.ExpiresAt, e.Timestamp,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert ledger event: %w", err)
	}
	return nil
}

// GetAfter retrieves up to limit events with Seq > afterSeq ordered by Seq ASC.
// A non-positive limit returns all remaining events.
func (s *EventStore) GetAfter(ctx context.Context, afterSeq uint64, limit int) ([]*domain.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM ledger_events WHERE seq > $1 ORDER BY seq ASC`
	args := []any{afterSeq}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.tx.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get ledger events after seq: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// GetByListing retrieves all events of a listing ordered by Seq ASC.
func (s *EventStore) GetByListing(ctx context.Context, listingID uint64) ([]*domain.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM ledger_events WHERE listing_id = $1 ORDER BY seq ASC`

	rows, err := s.tx.Query(ctx, query, listingID)
	if err != nil {
		return nil, fmt.Errorf("get ledger events by listing: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// scanEvents scans multiple rows into a slice of Event.
func scanEvents(rows pgx.Rows) ([]*domain.Event, error) {
	var events []*domain.Event

	for rows.Next() {
		var e domain.Event
		var eventType string

		err := rows.Scan(
			&e.Seq, &e.ID, &eventType, &e.ListingID, &e.AssetID, &e.TokenID, &e.Actor,
			&e.Amount, &e.Payment, &e.Fee, &e.Proceeds, &e.Revenue, &e.ExpiresAt, &e.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("scan ledger event row: %w", err)
		}

		e.Type = domain.EventType(eventType)
		events = append(events, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger event rows: %w", err)
	}
	return events, nil
}
