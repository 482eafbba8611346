package event

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatTimestamp_WireFormat(t *testing.T) {
	ts := time.Date(2026, 3, 14, 9, 26, 53, 589_000_000, time.UTC)
	assert.Equal(t, "2026-03-14T09:26:53.589Z", FormatTimestamp(ts))
}

func TestFormatTimestamp_ConvertsToUTC(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	ts := time.Date(2026, 3, 14, 10, 0, 0, 0, loc)
	assert.Equal(t, "2026-03-14T09:00:00.000Z", FormatTimestamp(ts))
}

func TestParseTimestamp_AcceptsLegacyWithoutFraction(t *testing.T) {
	ts, err := ParseTimestamp("2024-01-02T03:04:05Z")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), ts)
}

func TestParseTimestamp_AcceptsOffset(t *testing.T) {
	ts, err := ParseTimestamp("2024-01-02T04:04:05+01:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), ts)
}

func TestParseTimestamp_RejectsGarbage(t *testing.T) {
	_, err := ParseTimestamp("yesterday")
	assert.Error(t, err)
}

func TestMarshal_RoundTripAllVariants(t *testing.T) {
	h := NewHeader("client-1", time.Date(2026, 2, 3, 12, 0, 0, 500_000_000, time.UTC))

	variants := []Event{
		SproutCreated{
			Header: h, SproutID: "s1", PlotID: "health", Title: "Run",
			Duration: DurationWeek, Difficulty: DifficultySteady, SoilCost: 4, LeafID: "l1",
		},
		SproutCompleted{Header: h, SproutID: "s1", Outcome: 4, CapacityGained: 3.25, Note: "done"},
		SproutAbandoned{Header: h, SproutID: "s1", RefundAmount: 1},
		DailyEntry{Header: h, SproutID: "s1", Content: "went well", Prompt: "how was it"},
		WeeklyEntry{Header: h, PlotID: "health", Label: "week 5", Content: "steady"},
		LeafCreated{Header: h, LeafID: "l1", PlotID: "health", Name: "marathon"},
	}

	for _, original := range variants {
		t.Run(string(original.Kind()), func(t *testing.T) {
			data, err := Marshal(original)
			require.NoError(t, err)

			decoded, err := Unmarshal(data)
			require.NoError(t, err)
			assert.Equal(t, original, decoded)
		})
	}
}

func TestMarshal_NewWritesUseMillisecondForm(t *testing.T) {
	h := NewHeader("c1", time.Date(2026, 2, 3, 12, 0, 0, 0, time.UTC))
	data, err := Marshal(DailyEntry{Header: h, SproutID: "s1", Content: "x"})
	require.NoError(t, err)

	var env map[string]any
	require.NoError(t, json.Unmarshal(data, &env))
	assert.Equal(t, "2026-02-03T12:00:00.000Z", env["timestamp"])
}

func TestMarshal_ZeroSoilCostIsExplicit(t *testing.T) {
	// A zero cost is a value, not an absence; it must survive the wire.
	h := NewHeader("c1", time.Now())
	data, err := Marshal(SproutCreated{
		Header: h, SproutID: "s1", PlotID: "p", Title: "t",
		Duration: DurationDay, Difficulty: DifficultyGentle, SoilCost: 0,
	})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"soilCost":0`)
}

func TestUnmarshal_LegacyTimestampWithoutFraction(t *testing.T) {
	data := []byte(`{"type":"daily_entry","clientId":"c1","timestamp":"2024-06-01T10:00:00Z","sproutId":"s1","content":"hi"}`)
	e, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC), e.At())
}

func TestUnmarshal_MissingOptionalFieldsDefaultToZero(t *testing.T) {
	data := []byte(`{"type":"sprout_completed","clientId":"c1","timestamp":"2024-06-01T10:00:00.000Z","sproutId":"s1"}`)
	e, err := Unmarshal(data)
	require.NoError(t, err)

	done, ok := e.(SproutCompleted)
	require.True(t, ok)
	assert.Equal(t, 0, done.Outcome)
	assert.Equal(t, 0.0, done.CapacityGained)
}

func TestUnmarshal_UnknownTypeWrapsSentinel(t *testing.T) {
	data := []byte(`{"type":"sprout_pruned","timestamp":"2024-06-01T10:00:00.000Z"}`)
	_, err := Unmarshal(data)
	assert.True(t, errors.Is(err, ErrUnknownType))
}

func TestUnmarshal_MalformedJSON(t *testing.T) {
	_, err := Unmarshal([]byte(`{"type":`))
	assert.Error(t, err)
}
