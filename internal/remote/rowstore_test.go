package remote

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRow(owner, clientID string) Row {
	return Row{
		OwnerID:         owner,
		Type:            "daily_entry",
		Payload:         []byte(`{"type":"daily_entry"}`),
		ClientID:        clientID,
		ClientTimestamp: time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC),
	}
}

func TestMemoryRowStore_InsertAssignsServerFields(t *testing.T) {
	m := NewMemoryRowStore()
	ctx := context.Background()

	stored, err := m.Insert(ctx, testRow("alice", "c1"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.ServerID)
	assert.False(t, stored.InsertedAt.IsZero())
}

func TestMemoryRowStore_DuplicateClientID(t *testing.T) {
	m := NewMemoryRowStore()
	ctx := context.Background()

	_, err := m.Insert(ctx, testRow("alice", "c1"))
	require.NoError(t, err)

	_, err = m.Insert(ctx, testRow("alice", "c1"))
	assert.True(t, errors.Is(err, ErrDuplicateClientID))

	// Same client id under a different owner is a distinct row.
	_, err = m.Insert(ctx, testRow("bob", "c1"))
	assert.NoError(t, err)
}

func TestMemoryRowStore_MonotonicInsertedAt(t *testing.T) {
	m := NewMemoryRowStore()
	ctx := context.Background()

	var prev time.Time
	for i := 0; i < 50; i++ {
		stored, err := m.Insert(ctx, testRow("alice", fmt.Sprintf("c%d", i)))
		require.NoError(t, err)
		assert.True(t, stored.InsertedAt.After(prev), "insertion times must strictly increase")
		prev = stored.InsertedAt
	}
}

func TestMemoryRowStore_ScopedToOwner(t *testing.T) {
	m := NewMemoryRowStore()
	ctx := context.Background()

	_, err := m.Insert(ctx, testRow("alice", "a1"))
	require.NoError(t, err)
	_, err = m.Insert(ctx, testRow("bob", "b1"))
	require.NoError(t, err)

	rows, err := m.AllForOwner(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "a1", rows[0].ClientID)
}

func TestMemoryRowStore_SinceIsStrictlyAfter(t *testing.T) {
	m := NewMemoryRowStore()
	ctx := context.Background()

	first, err := m.Insert(ctx, testRow("alice", "c1"))
	require.NoError(t, err)
	second, err := m.Insert(ctx, testRow("alice", "c2"))
	require.NoError(t, err)

	rows, err := m.SinceForOwner(ctx, "alice", first.InsertedAt)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "c2", rows[0].ClientID)

	rows, err = m.SinceForOwner(ctx, "alice", second.InsertedAt)
	require.NoError(t, err)
	assert.Empty(t, rows)
}
