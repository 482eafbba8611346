package event

import (
	"encoding/json"
	"fmt"
	"time"
)

// wireTimestamp is the format all new writes use: millisecond-precision
// ISO-8601 in UTC (YYYY-MM-DDTHH:mm:ss.SSSZ).
const wireTimestamp = "2006-01-02T15:04:05.000Z"

// legacy timestamps may lack the fractional part or carry an offset.
var legacyTimestampLayouts = []string{
	"2006-01-02T15:04:05Z",
	time.RFC3339,
	time.RFC3339Nano,
}

// ErrUnknownType is wrapped by Unmarshal when the discriminator names a
// type this build does not know. Callers that tolerate forward
// compatibility match it with errors.Is and skip the payload.
var ErrUnknownType = fmt.Errorf("unknown event type")

// envelope is the flat JSON wire shape shared by all six variants.
// Variant-specific fields are optional at the envelope level; required
// fields are enforced per variant by Validate after decoding.
type envelope struct {
	Type           Type     `json:"type"`
	ClientID       string   `json:"clientId,omitempty"`
	Timestamp      string   `json:"timestamp"`
	SproutID       string   `json:"sproutId,omitempty"`
	PlotID         string   `json:"plotId,omitempty"`
	LeafID         string   `json:"leafId,omitempty"`
	Title          string   `json:"title,omitempty"`
	Duration       string   `json:"duration,omitempty"`
	Difficulty     string   `json:"difficulty,omitempty"`
	SoilCost       *int     `json:"soilCost,omitempty"`
	Outcome        *int     `json:"outcome,omitempty"`
	CapacityGained *float64 `json:"capacityGained,omitempty"`
	RefundAmount   *float64 `json:"refundAmount,omitempty"`
	Note           string   `json:"note,omitempty"`
	Content        string   `json:"content,omitempty"`
	Prompt         string   `json:"prompt,omitempty"`
	Label          string   `json:"label,omitempty"`
	Name           string   `json:"name,omitempty"`
}

// FormatTimestamp renders t in the wire format (UTC, 3-digit fraction).
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(wireTimestamp)
}

// ParseTimestamp accepts the wire format plus the fraction-less legacy
// forms. The result is always in UTC.
func ParseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(wireTimestamp, s); err == nil {
		return t.UTC(), nil
	}
	for _, layout := range legacyTimestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("parse timestamp %q", s)
}

// Marshal encodes an event into its wire envelope.
func Marshal(e Event) ([]byte, error) {
	env := envelope{
		Type:      e.Kind(),
		ClientID:  e.Client(),
		Timestamp: FormatTimestamp(e.At()),
	}

	switch v := e.(type) {
	case SproutCreated:
		env.SproutID = v.SproutID
		env.PlotID = v.PlotID
		env.Title = v.Title
		env.Duration = string(v.Duration)
		env.Difficulty = string(v.Difficulty)
		cost := v.SoilCost
		env.SoilCost = &cost
		env.LeafID = v.LeafID
	case SproutCompleted:
		env.SproutID = v.SproutID
		outcome := v.Outcome
		env.Outcome = &outcome
		gained := v.CapacityGained
		env.CapacityGained = &gained
		env.Note = v.Note
	case SproutAbandoned:
		env.SproutID = v.SproutID
		refund := v.RefundAmount
		env.RefundAmount = &refund
	case DailyEntry:
		env.SproutID = v.SproutID
		env.Content = v.Content
		env.Prompt = v.Prompt
	case WeeklyEntry:
		env.PlotID = v.PlotID
		env.Label = v.Label
		env.Content = v.Content
		env.Prompt = v.Prompt
	case LeafCreated:
		env.LeafID = v.LeafID
		env.PlotID = v.PlotID
		env.Name = v.Name
	default:
		return nil, fmt.Errorf("marshal event: %w: %T", ErrUnknownType, e)
	}

	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return data, nil
}

// Unmarshal decodes a wire envelope into the matching variant.
// Missing payload fields decode to zero values; callers decide whether
// to Validate. An unrecognized discriminator wraps ErrUnknownType.
func Unmarshal(data []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal event: %w", err)
	}

	ts, err := ParseTimestamp(env.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("unmarshal event: %w", err)
	}
	h := Header{ClientID: env.ClientID, Time: ts}

	switch env.Type {
	case TypeSproutCreated:
		e := SproutCreated{
			Header:     h,
			SproutID:   env.SproutID,
			PlotID:     env.PlotID,
			Title:      env.Title,
			Duration:   Duration(env.Duration),
			Difficulty: Difficulty(env.Difficulty),
			LeafID:     env.LeafID,
		}
		if env.SoilCost != nil {
			e.SoilCost = *env.SoilCost
		}
		return e, nil
	case TypeSproutCompleted:
		e := SproutCompleted{Header: h, SproutID: env.SproutID, Note: env.Note}
		if env.Outcome != nil {
			e.Outcome = *env.Outcome
		}
		if env.CapacityGained != nil {
			e.CapacityGained = *env.CapacityGained
		}
		return e, nil
	case TypeSproutAbandoned:
		e := SproutAbandoned{Header: h, SproutID: env.SproutID}
		if env.RefundAmount != nil {
			e.RefundAmount = *env.RefundAmount
		}
		return e, nil
	case TypeDailyEntry:
		return DailyEntry{Header: h, SproutID: env.SproutID, Content: env.Content, Prompt: env.Prompt}, nil
	case TypeWeeklyEntry:
		return WeeklyEntry{Header: h, PlotID: env.PlotID, Label: env.Label, Content: env.Content, Prompt: env.Prompt}, nil
	case TypeLeafCreated:
		return LeafCreated{Header: h, LeafID: env.LeafID, PlotID: env.PlotID, Name: env.Name}, nil
	default:
		return nil, fmt.Errorf("unmarshal event: %w: %q", ErrUnknownType, env.Type)
	}
}
