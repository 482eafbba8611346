package cli

import (
	"encoding/json"
	"reflect"
	"testing"
	"time"

	"github.com/grove-sh/grove/internal/derive"
	"github.com/grove-sh/grove/internal/event"
)

func exportTestLog(t *testing.T) []event.Event {
	t.Helper()
	at := func(h int) time.Time {
		return time.Date(2026, 1, 5, h, 0, 0, 0, time.UTC)
	}
	return []event.Event{
		event.SproutCreated{
			Header:     event.NewHeader("c1", at(9)),
			SproutID:   "s1",
			PlotID:     "garden",
			Title:      "water the ferns",
			Duration:   event.DurationWeek,
			Difficulty: event.DifficultySteady,
			SoilCost:   4,
		},
		event.DailyEntry{
			Header:   event.NewHeader("c2", at(10)),
			SproutID: "s1",
			Content:  "misted the fronds",
		},
		event.SproutAbandoned{
			Header:       event.NewHeader("c3", at(11)),
			SproutID:     "s1",
			RefundAmount: 1,
		},
	}
}

func marshalAll(t *testing.T, events []event.Event) []json.RawMessage {
	t.Helper()
	docs := make([]json.RawMessage, 0, len(events))
	for _, ev := range events {
		data, err := event.Marshal(ev)
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		docs = append(docs, data)
	}
	return docs
}

func unmarshalAll(t *testing.T, docs []json.RawMessage) []event.Event {
	t.Helper()
	events := make([]event.Event, 0, len(docs))
	for _, doc := range docs {
		ev, err := event.Unmarshal(doc)
		if err != nil {
			t.Fatalf("Unmarshal: %v", err)
		}
		events = append(events, ev)
	}
	return events
}

// An export fed back through import must derive the identical state.
func TestExportImportRoundTrip_YAML(t *testing.T) {
	original := exportTestLog(t)

	out, err := yamlDump(marshalAll(t, original))
	if err != nil {
		t.Fatalf("yamlDump: %v", err)
	}

	docs, err := decodeImport("garden.yaml", out)
	if err != nil {
		t.Fatalf("decodeImport: %v", err)
	}
	restored := unmarshalAll(t, docs)

	now := time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)
	want := derive.Derive(original, now)
	got := derive.Derive(restored, now)
	if !reflect.DeepEqual(want, got) {
		t.Errorf("derived state changed across round trip:\nwant %+v\ngot  %+v", want, got)
	}
}

func TestExportImportRoundTrip_JSON(t *testing.T) {
	original := exportTestLog(t)

	out, err := json.Marshal(marshalAll(t, original))
	if err != nil {
		t.Fatalf("marshal export: %v", err)
	}

	docs, err := decodeImport("garden.json", out)
	if err != nil {
		t.Fatalf("decodeImport: %v", err)
	}
	restored := unmarshalAll(t, docs)

	if !reflect.DeepEqual(original, restored) {
		t.Errorf("events changed across round trip:\nwant %+v\ngot  %+v", original, restored)
	}
}

func TestDecodeImport_RejectsGarbage(t *testing.T) {
	if _, err := decodeImport("garden.json", []byte("not json")); err == nil {
		t.Error("garbage JSON should fail")
	}
	if _, err := decodeImport("garden.yaml", []byte(":\t:")); err == nil {
		t.Error("garbage YAML should fail")
	}
}
