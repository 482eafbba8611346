package remote

import (
	"context"
	"sort"
	"sync"
	"time"
)

// RowStore is the server-side storage contract: insert with a
// uniqueness constraint on client id, and insertion-time-ordered reads
// per owner.
type RowStore interface {
	// Insert stores a row, assigning the server id and insertion time.
	// Returns ErrDuplicateClientID when the client id already exists.
	Insert(ctx context.Context, row Row) (Row, error)

	// AllForOwner returns every row of an owner, ordered by insertion
	// time ascending.
	AllForOwner(ctx context.Context, ownerID string) ([]Row, error)

	// SinceForOwner returns an owner's rows inserted strictly after
	// the given time, ordered by insertion time ascending.
	SinceForOwner(ctx context.Context, ownerID string, after time.Time) ([]Row, error)

	// Close releases storage resources.
	Close() error
}

// MemoryRowStore is an in-memory RowStore used by tests and local
// development.
type MemoryRowStore struct {
	mu     sync.Mutex
	nextID int64
	rows   []Row
	byKey  map[string]struct{} // ownerID + "\x00" + clientID
}

// NewMemoryRowStore returns an empty in-memory row store.
func NewMemoryRowStore() *MemoryRowStore {
	return &MemoryRowStore{byKey: make(map[string]struct{})}
}

func (m *MemoryRowStore) Insert(_ context.Context, row Row) (Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := row.OwnerID + "\x00" + row.ClientID
	if _, dup := m.byKey[key]; dup {
		return Row{}, ErrDuplicateClientID
	}

	m.nextID++
	row.ServerID = m.nextID
	row.InsertedAt = time.Now().UTC()
	// Monotonic insertion times even when inserts land within the
	// clock's resolution.
	if n := len(m.rows); n > 0 && !row.InsertedAt.After(m.rows[n-1].InsertedAt) {
		row.InsertedAt = m.rows[n-1].InsertedAt.Add(time.Microsecond)
	}

	m.byKey[key] = struct{}{}
	m.rows = append(m.rows, row)
	return row, nil
}

func (m *MemoryRowStore) AllForOwner(_ context.Context, ownerID string) ([]Row, error) {
	return m.selectRows(ownerID, time.Time{}), nil
}

func (m *MemoryRowStore) SinceForOwner(_ context.Context, ownerID string, after time.Time) ([]Row, error) {
	return m.selectRows(ownerID, after), nil
}

func (m *MemoryRowStore) selectRows(ownerID string, after time.Time) []Row {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []Row{}
	for _, r := range m.rows {
		if r.OwnerID != ownerID {
			continue
		}
		if !after.IsZero() && !r.InsertedAt.After(after) {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].InsertedAt.Before(out[j].InsertedAt) })
	return out
}

// Close is a no-op for the in-memory store.
func (m *MemoryRowStore) Close() error { return nil }
