// Package event defines the immutable domain events Grove is built on.
//
// Every user action is recorded as exactly one event. Events are never
// mutated or deleted; an edit or a state change is itself a new event.
// All application state is derived by folding the full event history
// (see internal/derive), so the only things that matter about an event
// are its type, its client-assigned timestamp, its globally unique
// client id, and its payload fields.
package event

import (
	"fmt"
	"sort"
	"time"
)

// Type discriminates the six event variants.
type Type string

const (
	TypeSproutCreated   Type = "sprout_created"
	TypeSproutCompleted Type = "sprout_completed"
	TypeSproutAbandoned Type = "sprout_abandoned"
	TypeDailyEntry      Type = "daily_entry"
	TypeWeeklyEntry     Type = "weekly_entry"
	TypeLeafCreated     Type = "leaf_created"
)

// Event is the closed union of Grove's domain events.
// Implementations are value types; an Event is immutable once created.
type Event interface {
	// Kind returns the type discriminator.
	Kind() Type

	// Client returns the globally unique client id assigned at creation.
	// Empty for legacy events recorded before client ids existed.
	Client() string

	// At returns the client-assigned timestamp (millisecond precision, UTC).
	At() time.Time

	// Entity returns the id of the entity the event references
	// (sprout id, leaf id, or plot id depending on the variant).
	Entity() string

	// Validate reports whether the event carries all required fields.
	// The derivation engine skips events that fail validation.
	Validate() error
}

// Header carries the fields shared by every event variant.
type Header struct {
	ClientID string
	Time     time.Time
}

// Client returns the client id.
func (h Header) Client() string { return h.ClientID }

// At returns the client-assigned timestamp.
func (h Header) At() time.Time { return h.Time }

func (h Header) validate(kind Type) error {
	if h.Time.IsZero() {
		return fmt.Errorf("%s: missing timestamp", kind)
	}
	return nil
}

// NewHeader stamps a header with the given client id and the current
// time truncated to millisecond precision in UTC. The client id is
// assigned exactly once; retries of remote delivery reuse it unchanged.
func NewHeader(clientID string, now time.Time) Header {
	return Header{
		ClientID: clientID,
		Time:     now.UTC().Truncate(time.Millisecond),
	}
}

// DedupKey returns the deduplication key for an event: the client id
// when present, else a composite of type, referenced entity id and
// timestamp for legacy data lacking client ids.
func DedupKey(e Event) string {
	if id := e.Client(); id != "" {
		return id
	}
	return fmt.Sprintf("%s|%s|%d", e.Kind(), e.Entity(), e.At().UnixMilli())
}

// Dedupe returns events with duplicates (by DedupKey) removed,
// keeping the first occurrence and preserving arrival order.
func Dedupe(events []Event) []Event {
	seen := make(map[string]struct{}, len(events))
	out := make([]Event, 0, len(events))
	for _, e := range events {
		key := DedupKey(e)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, e)
	}
	return out
}

// SortForDerivation sorts events into the total order the derivation
// engine folds in: ascending client timestamp, ties broken by client id
// byte order. The sort is stable, so legacy events that tie on both
// keys keep their arrival order.
func SortForDerivation(events []Event) {
	sort.SliceStable(events, func(i, j int) bool {
		ti, tj := events[i].At(), events[j].At()
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return events[i].Client() < events[j].Client()
	})
}
