package store

import (
	"context"
	"fmt"
	"time"
)

// MarkPending records a client id as awaiting remote confirmation.
// Marking an already-pending id is a no-op.
func (s *Store) MarkPending(ctx context.Context, clientID string) error {
	if clientID == "" {
		return fmt.Errorf("mark pending: empty client id")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pending_uploads (client_id, queued_at)
		VALUES (?, ?)
		ON CONFLICT(client_id) DO NOTHING
	`, clientID, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("mark pending: %w", err)
	}
	return nil
}

// ClearPending removes a client id once the remote store has confirmed
// it (or once it turned out to be stale). Clearing an absent id is a
// no-op.
func (s *Store) ClearPending(ctx context.Context, clientID string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM pending_uploads WHERE client_id = ?
	`, clientID)
	if err != nil {
		return fmt.Errorf("clear pending: %w", err)
	}
	return nil
}

// PendingIDs returns the client ids still awaiting confirmation, oldest
// first.
func (s *Store) PendingIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT client_id FROM pending_uploads ORDER BY queued_at ASC, client_id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query pending: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan pending: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending: %w", err)
	}
	return ids, nil
}
