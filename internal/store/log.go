package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/grove-sh/grove/internal/event"
)

// Append inserts an event into the log. The client id is already final;
// no new id is assigned here. Duplicate events (same dedup key) are
// silently ignored via the unique constraint; the return value reports
// whether a row was actually inserted.
func (s *Store) Append(ctx context.Context, e event.Event) (bool, error) {
	payload, err := event.Marshal(e)
	if err != nil {
		return false, fmt.Errorf("append event: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO events (dedup_key, client_id, type, ts, payload)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(dedup_key) DO NOTHING
	`,
		event.DedupKey(e),
		e.Client(),
		string(e.Kind()),
		e.At().UnixMilli(),
		string(payload),
	)
	if err != nil {
		return false, fmt.Errorf("append event: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("append event: rows affected: %w", err)
	}
	return n > 0, nil
}

// All returns the full log in arrival order, deduplicated (the unique
// constraint guarantees one row per dedup key).
func (s *Store) All(ctx context.Context) ([]event.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT payload FROM events ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []event.Event{}
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e, err := event.Unmarshal([]byte(payload))
		if err != nil {
			return nil, fmt.Errorf("decode event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// Count returns the number of events in the log.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}

// ByClientID returns the event with the given client id, or ok=false
// when no such event exists locally.
func (s *Store) ByClientID(ctx context.Context, clientID string) (event.Event, bool, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `
		SELECT payload FROM events WHERE client_id = ?
	`, clientID).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("query event by client id: %w", err)
	}

	e, err := event.Unmarshal([]byte(payload))
	if err != nil {
		return nil, false, fmt.Errorf("decode event: %w", err)
	}
	return e, true, nil
}

// Has reports whether an event with the given dedup key exists locally.
func (s *Store) Has(ctx context.Context, dedupKey string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM events WHERE dedup_key = ?
	`, dedupKey).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check event: %w", err)
	}
	return n > 0, nil
}

// ReplaceAll replaces the entire log with the given events in a single
// transaction. This is the bulk-import / full-resync path: either the
// whole replacement commits or the existing log stays untouched.
func (s *Store) ReplaceAll(ctx context.Context, events []event.Event) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("replace events: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	if _, err := tx.ExecContext(ctx, `DELETE FROM events`); err != nil {
		return fmt.Errorf("replace events: clear: %w", err)
	}

	for _, e := range events {
		payload, err := event.Marshal(e)
		if err != nil {
			return fmt.Errorf("replace events: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO events (dedup_key, client_id, type, ts, payload)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(dedup_key) DO NOTHING
		`,
			event.DedupKey(e),
			e.Client(),
			string(e.Kind()),
			e.At().UnixMilli(),
			string(payload),
		)
		if err != nil {
			return fmt.Errorf("replace events: insert: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("replace events: commit: %w", err)
	}
	return nil
}
