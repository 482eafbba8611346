package remote

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// uniqueViolation is the Postgres error code for a unique constraint
// violation.
const uniqueViolation = "23505"

// PostgresRowStore is the production RowStore backed by Postgres.
type PostgresRowStore struct {
	db *sql.DB
}

// OpenPostgres connects to Postgres with the given DSN and bootstraps
// the events table if it does not exist.
func OpenPostgres(dsn string) (*PostgresRowStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS events (
			server_id        BIGSERIAL PRIMARY KEY,
			owner_id         TEXT NOT NULL,
			type             TEXT NOT NULL,
			payload          JSONB NOT NULL,
			client_id        TEXT NOT NULL,
			client_timestamp TIMESTAMPTZ NOT NULL,
			inserted_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (owner_id, client_id)
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create events table: %w", err)
	}
	_, err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_events_owner_inserted
		ON events (owner_id, inserted_at)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create events index: %w", err)
	}

	return &PostgresRowStore{db: db}, nil
}

func (p *PostgresRowStore) Insert(ctx context.Context, row Row) (Row, error) {
	err := p.db.QueryRowContext(ctx, `
		INSERT INTO events (owner_id, type, payload, client_id, client_timestamp)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING server_id, inserted_at
	`,
		row.OwnerID,
		row.Type,
		[]byte(row.Payload),
		row.ClientID,
		row.ClientTimestamp,
	).Scan(&row.ServerID, &row.InsertedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return Row{}, ErrDuplicateClientID
		}
		return Row{}, fmt.Errorf("insert row: %w", err)
	}
	return row, nil
}

func (p *PostgresRowStore) AllForOwner(ctx context.Context, ownerID string) ([]Row, error) {
	return p.query(ctx, `
		SELECT server_id, owner_id, type, payload, client_id, client_timestamp, inserted_at
		FROM events
		WHERE owner_id = $1
		ORDER BY inserted_at ASC, server_id ASC
	`, ownerID)
}

func (p *PostgresRowStore) SinceForOwner(ctx context.Context, ownerID string, after time.Time) ([]Row, error) {
	return p.query(ctx, `
		SELECT server_id, owner_id, type, payload, client_id, client_timestamp, inserted_at
		FROM events
		WHERE owner_id = $1 AND inserted_at > $2
		ORDER BY inserted_at ASC, server_id ASC
	`, ownerID, after)
}

func (p *PostgresRowStore) query(ctx context.Context, q string, args ...any) ([]Row, error) {
	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query rows: %w", err)
	}
	defer rows.Close()

	out := []Row{}
	for rows.Next() {
		var r Row
		var payload []byte
		if err := rows.Scan(&r.ServerID, &r.OwnerID, &r.Type, &payload, &r.ClientID, &r.ClientTimestamp, &r.InsertedAt); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		r.Payload = payload
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}

// Close closes the database connection.
func (p *PostgresRowStore) Close() error {
	return p.db.Close()
}
