package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/grove-sh/grove/internal/event"
)

// openTestStore creates a store in a temp directory and closes it when
// the test finishes.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "grove.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testEvent(clientID string, minutes int) event.DailyEntry {
	base := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
	return event.DailyEntry{
		Header:   event.Header{ClientID: clientID, Time: base.Add(time.Duration(minutes) * time.Minute)},
		SproutID: "s1",
		Content:  "entry " + clientID,
	}
}

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grove.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grove.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() #%d failed: %v", i+1, err)
		}
		s.Close()
	}
}

func TestOpen_SetsSchemaVersion(t *testing.T) {
	s := openTestStore(t)

	var version int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		t.Fatalf("query user_version: %v", err)
	}
	if version != currentSchemaVersion {
		t.Errorf("user_version = %d, want %d", version, currentSchemaVersion)
	}
}

func TestAppend_InsertsAndDedupes(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	e := testEvent("c1", 0)

	inserted, err := s.Append(ctx, e)
	if err != nil {
		t.Fatalf("first Append() failed: %v", err)
	}
	if !inserted {
		t.Error("first Append() should insert")
	}

	inserted, err = s.Append(ctx, e)
	if err != nil {
		t.Fatalf("second Append() failed: %v", err)
	}
	if inserted {
		t.Error("duplicate Append() should be a no-op")
	}

	n, err := s.Count(ctx)
	if err != nil {
		t.Fatalf("Count() failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Count() = %d, want 1", n)
	}
}

func TestAppend_LegacyEventsDedupeByComposite(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	legacy := testEvent("", 0)
	if _, err := s.Append(ctx, legacy); err != nil {
		t.Fatalf("Append() failed: %v", err)
	}
	inserted, err := s.Append(ctx, legacy)
	if err != nil {
		t.Fatalf("Append() failed: %v", err)
	}
	if inserted {
		t.Error("legacy event with identical type|entity|ts should dedupe")
	}
}

func TestAll_ReturnsEventsInInsertionOrder(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i, id := range []string{"c3", "c1", "c2"} {
		if _, err := s.Append(ctx, testEvent(id, i)); err != nil {
			t.Fatalf("Append(%s) failed: %v", id, err)
		}
	}

	events, err := s.All(ctx)
	if err != nil {
		t.Fatalf("All() failed: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("All() returned %d events, want 3", len(events))
	}
	want := []string{"c3", "c1", "c2"}
	for i, e := range events {
		if e.Client() != want[i] {
			t.Errorf("events[%d].Client() = %q, want %q", i, e.Client(), want[i])
		}
	}
}

func TestAll_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grove.db")
	ctx := context.Background()

	s1, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	if _, err := s1.Append(ctx, testEvent("c1", 0)); err != nil {
		t.Fatalf("Append() failed: %v", err)
	}
	s1.Close()

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s2.Close()

	events, err := s2.All(ctx)
	if err != nil {
		t.Fatalf("All() failed: %v", err)
	}
	if len(events) != 1 || events[0].Client() != "c1" {
		t.Errorf("unexpected events after reopen: %+v", events)
	}
}

func TestByClientID(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.Append(ctx, testEvent("c1", 0)); err != nil {
		t.Fatalf("Append() failed: %v", err)
	}

	e, ok, err := s.ByClientID(ctx, "c1")
	if err != nil {
		t.Fatalf("ByClientID() failed: %v", err)
	}
	if !ok {
		t.Fatal("ByClientID() should find c1")
	}
	if e.Client() != "c1" {
		t.Errorf("Client() = %q, want c1", e.Client())
	}

	_, ok, err = s.ByClientID(ctx, "missing")
	if err != nil {
		t.Fatalf("ByClientID(missing) failed: %v", err)
	}
	if ok {
		t.Error("ByClientID(missing) should report not found")
	}
}

func TestReplaceAll_Atomic(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.Append(ctx, testEvent("old", 0)); err != nil {
		t.Fatalf("Append() failed: %v", err)
	}

	replacement := []event.Event{testEvent("new1", 1), testEvent("new2", 2)}
	if err := s.ReplaceAll(ctx, replacement); err != nil {
		t.Fatalf("ReplaceAll() failed: %v", err)
	}

	events, err := s.All(ctx)
	if err != nil {
		t.Fatalf("All() failed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("All() returned %d events, want 2", len(events))
	}
	if events[0].Client() != "new1" || events[1].Client() != "new2" {
		t.Errorf("unexpected events after ReplaceAll: %v, %v", events[0].Client(), events[1].Client())
	}
}

func TestReplaceAll_Empty(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.Append(ctx, testEvent("c1", 0)); err != nil {
		t.Fatalf("Append() failed: %v", err)
	}
	if err := s.ReplaceAll(ctx, nil); err != nil {
		t.Fatalf("ReplaceAll(nil) failed: %v", err)
	}

	n, err := s.Count(ctx)
	if err != nil {
		t.Fatalf("Count() failed: %v", err)
	}
	if n != 0 {
		t.Errorf("Count() = %d, want 0", n)
	}
}

func TestPendingQueue(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.MarkPending(ctx, "c1"); err != nil {
		t.Fatalf("MarkPending(c1) failed: %v", err)
	}
	if err := s.MarkPending(ctx, "c2"); err != nil {
		t.Fatalf("MarkPending(c2) failed: %v", err)
	}
	// Marking twice is a no-op.
	if err := s.MarkPending(ctx, "c1"); err != nil {
		t.Fatalf("duplicate MarkPending failed: %v", err)
	}

	ids, err := s.PendingIDs(ctx)
	if err != nil {
		t.Fatalf("PendingIDs() failed: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("PendingIDs() = %v, want 2 entries", ids)
	}

	if err := s.ClearPending(ctx, "c1"); err != nil {
		t.Fatalf("ClearPending() failed: %v", err)
	}
	ids, err = s.PendingIDs(ctx)
	if err != nil {
		t.Fatalf("PendingIDs() failed: %v", err)
	}
	if len(ids) != 1 || ids[0] != "c2" {
		t.Errorf("PendingIDs() = %v, want [c2]", ids)
	}
}

func TestMarkPending_RejectsEmptyID(t *testing.T) {
	s := openTestStore(t)
	if err := s.MarkPending(context.Background(), ""); err == nil {
		t.Error("MarkPending(\"\") should fail")
	}
}

func TestWatermark_ZeroWhenUnset(t *testing.T) {
	s := openTestStore(t)

	wm, err := s.Watermark(context.Background())
	if err != nil {
		t.Fatalf("Watermark() failed: %v", err)
	}
	if !wm.IsZero() {
		t.Errorf("Watermark() = %v, want zero time", wm)
	}
}

func TestWatermark_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	want := time.Date(2026, 2, 3, 4, 5, 6, 789_000_000, time.UTC)
	if err := s.SetWatermark(ctx, want); err != nil {
		t.Fatalf("SetWatermark() failed: %v", err)
	}

	got, err := s.Watermark(ctx)
	if err != nil {
		t.Fatalf("Watermark() failed: %v", err)
	}
	if !got.Equal(want) {
		t.Errorf("Watermark() = %v, want %v", got, want)
	}
}

func TestCacheVersion(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	v, err := s.CacheVersion(ctx)
	if err != nil {
		t.Fatalf("CacheVersion() failed: %v", err)
	}
	if v != 0 {
		t.Errorf("unset CacheVersion() = %d, want 0", v)
	}

	if err := s.SetCacheVersion(ctx, 3); err != nil {
		t.Fatalf("SetCacheVersion() failed: %v", err)
	}
	v, err = s.CacheVersion(ctx)
	if err != nil {
		t.Fatalf("CacheVersion() failed: %v", err)
	}
	if v != 3 {
		t.Errorf("CacheVersion() = %d, want 3", v)
	}
}

func TestHas(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	e := testEvent("c1", 0)
	if _, err := s.Append(ctx, e); err != nil {
		t.Fatalf("Append() failed: %v", err)
	}

	ok, err := s.Has(ctx, event.DedupKey(e))
	if err != nil {
		t.Fatalf("Has() failed: %v", err)
	}
	if !ok {
		t.Error("Has() should find the appended event")
	}

	ok, err = s.Has(ctx, "nope")
	if err != nil {
		t.Fatalf("Has(nope) failed: %v", err)
	}
	if ok {
		t.Error("Has(nope) should be false")
	}
}
