package event

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func daily(clientID string, ts time.Time) DailyEntry {
	return DailyEntry{Header: Header{ClientID: clientID, Time: ts}, SproutID: "s1", Content: "x"}
}

func TestNewHeader_TruncatesToMillisUTC(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	h := NewHeader("c1", time.Date(2026, 2, 3, 13, 0, 0, 123_456_789, loc))

	assert.Equal(t, time.UTC, h.Time.Location())
	assert.Equal(t, time.Date(2026, 2, 3, 12, 0, 0, 123_000_000, time.UTC), h.Time)
}

func TestDedupKey_PrefersClientID(t *testing.T) {
	e := daily("c1", time.Now())
	assert.Equal(t, "c1", DedupKey(e))
}

func TestDedupKey_LegacyComposite(t *testing.T) {
	ts := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	e := daily("", ts)
	assert.Equal(t, "daily_entry|s1|1717236000000", DedupKey(e))
}

func TestDedupe_KeepsFirstOccurrence(t *testing.T) {
	ts := time.Now()
	a := daily("c1", ts)
	b := daily("c1", ts.Add(time.Hour)) // same client id, different payload timing
	c := daily("c2", ts)

	out := Dedupe([]Event{a, b, c})
	assert.Equal(t, []Event{a, c}, out)
}

func TestDedupe_LegacyEventsCollideOnComposite(t *testing.T) {
	ts := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	a := daily("", ts)
	b := daily("", ts)

	out := Dedupe([]Event{a, b})
	assert.Len(t, out, 1)
}

func TestSortForDerivation_ByTimestampThenClientID(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	late := daily("a", t0.Add(time.Minute))
	tieB := daily("b", t0)
	tieA := daily("a", t0)

	events := []Event{late, tieB, tieA}
	SortForDerivation(events)

	assert.Equal(t, []Event{tieA, tieB, late}, events)
}

func TestSortForDerivation_StableForLegacyTies(t *testing.T) {
	ts := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	first := DailyEntry{Header: Header{Time: ts}, SproutID: "s1", Content: "first"}
	second := DailyEntry{Header: Header{Time: ts}, SproutID: "s1", Content: "second"}

	events := []Event{first, second}
	SortForDerivation(events)

	assert.Equal(t, []Event{first, second}, events)
}

func TestValidate_RequiredFields(t *testing.T) {
	ts := time.Now()
	tests := []struct {
		name  string
		event Event
		ok    bool
	}{
		{"valid creation", SproutCreated{
			Header: Header{ClientID: "c", Time: ts}, SproutID: "s", PlotID: "p",
			Title: "t", Duration: DurationWeek, Difficulty: DifficultySteady, SoilCost: 4,
		}, true},
		{"creation missing plot", SproutCreated{
			Header: Header{ClientID: "c", Time: ts}, SproutID: "s",
			Title: "t", Duration: DurationWeek, Difficulty: DifficultySteady,
		}, false},
		{"creation bad duration", SproutCreated{
			Header: Header{ClientID: "c", Time: ts}, SproutID: "s", PlotID: "p",
			Title: "t", Duration: "fortnight", Difficulty: DifficultySteady,
		}, false},
		{"completion outcome out of range", SproutCompleted{
			Header: Header{ClientID: "c", Time: ts}, SproutID: "s", Outcome: 6,
		}, false},
		{"valid completion", SproutCompleted{
			Header: Header{ClientID: "c", Time: ts}, SproutID: "s", Outcome: 3,
		}, true},
		{"abandon missing sprout", SproutAbandoned{
			Header: Header{ClientID: "c", Time: ts},
		}, false},
		{"daily missing content", DailyEntry{
			Header: Header{ClientID: "c", Time: ts}, SproutID: "s",
		}, false},
		{"missing timestamp", DailyEntry{
			Header: Header{ClientID: "c"}, SproutID: "s", Content: "x",
		}, false},
		{"valid weekly", WeeklyEntry{
			Header: Header{ClientID: "c", Time: ts}, PlotID: "p", Label: "w1", Content: "x",
		}, true},
		{"weekly missing label", WeeklyEntry{
			Header: Header{ClientID: "c", Time: ts}, PlotID: "p", Content: "x",
		}, false},
		{"valid leaf", LeafCreated{
			Header: Header{ClientID: "c", Time: ts}, LeafID: "l", PlotID: "p", Name: "n",
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.event.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
