package derive

import (
	"sort"
	"time"

	"github.com/samber/lo"

	"github.com/grove-sh/grove/internal/event"
)

// SproutState is a sprout's lifecycle state. Active is the only
// non-terminal state; once terminal, a sprout never transitions again.
type SproutState string

const (
	SproutActive    SproutState = "active"
	SproutCompleted SproutState = "completed"
	SproutAbandoned SproutState = "abandoned"
)

// Terminal reports whether s permits no further transition.
func (s SproutState) Terminal() bool {
	return s == SproutCompleted || s == SproutAbandoned
}

// Sprout is a derived goal entity.
type Sprout struct {
	ID         string           `json:"id"`
	PlotID     string           `json:"plotId"`
	Title      string           `json:"title"`
	Duration   event.Duration   `json:"duration"`
	Difficulty event.Difficulty `json:"difficulty"`
	SoilCost   int              `json:"soilCost"`
	LeafID     string           `json:"leafId,omitempty"`
	State      SproutState      `json:"state"`
	Outcome    int              `json:"outcome,omitempty"`
	Note       string           `json:"note,omitempty"`
	CreatedAt  time.Time        `json:"createdAt"`
	ClosedAt   time.Time        `json:"closedAt,omitzero"`
}

// Leaf is a derived saga entity.
type Leaf struct {
	ID        string    `json:"id"`
	PlotID    string    `json:"plotId"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// JournalEntry is one entry of a capped, append-only journal sub-log.
type JournalEntry struct {
	ClientID string    `json:"clientId,omitempty"`
	At       time.Time `json:"at"`
	Content  string    `json:"content"`
	Prompt   string    `json:"prompt,omitempty"`
	Label    string    `json:"label,omitempty"`
}

// Soil holds the global resource counters. Capacity only grows (via
// completion rewards) up to MaxSoilCapacity; Available stays within
// [0, Capacity].
type Soil struct {
	Capacity  float64 `json:"capacity"`
	Available float64 `json:"available"`
}

// State is the full derived application snapshot.
type State struct {
	AsOf          time.Time                 `json:"asOf"`
	Sprouts       map[string]*Sprout        `json:"sprouts"`
	Leaves        map[string]*Leaf          `json:"leaves"`
	SproutsByPlot map[string][]string       `json:"sproutsByPlot"`
	LeavesByPlot  map[string][]string       `json:"leavesByPlot"`
	Daily         map[string][]JournalEntry `json:"daily"`  // keyed by sprout id
	Weekly        map[string][]JournalEntry `json:"weekly"` // keyed by plot id
	Soil          Soil                      `json:"soil"`
}

// ActiveSprouts returns the non-terminal sprouts of a plot, in
// derivation (creation) order.
func (s *State) ActiveSprouts(plotID string) []*Sprout {
	ids := s.SproutsByPlot[plotID]
	sprouts := lo.Map(ids, func(id string, _ int) *Sprout { return s.Sprouts[id] })
	return lo.Filter(sprouts, func(sp *Sprout, _ int) bool {
		return sp != nil && !sp.State.Terminal()
	})
}

// Plots returns every plot id referenced by a sprout, leaf, or weekly
// journal, sorted for stable display.
func (s *State) Plots() []string {
	ids := lo.Keys(s.SproutsByPlot)
	ids = append(ids, lo.Keys(s.LeavesByPlot)...)
	ids = append(ids, lo.Keys(s.Weekly)...)
	ids = lo.Uniq(ids)
	sort.Strings(ids)
	return ids
}

// NewState returns an empty snapshot seeded with the initial soil.
func NewState(now time.Time) *State {
	return &State{
		AsOf:          now,
		Sprouts:       make(map[string]*Sprout),
		Leaves:        make(map[string]*Leaf),
		SproutsByPlot: make(map[string][]string),
		LeavesByPlot:  make(map[string][]string),
		Daily:         make(map[string][]JournalEntry),
		Weekly:        make(map[string][]JournalEntry),
		Soil:          Soil{Capacity: InitialSoilCapacity, Available: InitialSoilCapacity},
	}
}

// Derive folds the event log into a snapshot. The input may arrive in
// any order and may contain duplicates; Derive deduplicates, sorts into
// the total derivation order, and folds sequentially. Malformed events
// and events referencing unknown entities are skipped, never fatal.
func Derive(events []event.Event, now time.Time) *State {
	log := event.Dedupe(events)
	event.SortForDerivation(log)

	st := NewState(now)
	// Daily entries counted toward the soil bonus, per day window.
	counted := make(map[time.Time]int)

	for _, e := range log {
		if e.Validate() != nil {
			continue
		}
		switch v := e.(type) {
		case event.SproutCreated:
			st.applySproutCreated(v)
		case event.SproutCompleted:
			st.applySproutCompleted(v)
		case event.SproutAbandoned:
			st.applySproutAbandoned(v)
		case event.DailyEntry:
			st.applyDailyEntry(v, counted)
		case event.WeeklyEntry:
			st.applyWeeklyEntry(v)
		case event.LeafCreated:
			st.applyLeafCreated(v)
		}
	}
	return st
}

func (s *State) applySproutCreated(e event.SproutCreated) {
	if _, exists := s.Sprouts[e.SproutID]; exists {
		return
	}
	s.Sprouts[e.SproutID] = &Sprout{
		ID:         e.SproutID,
		PlotID:     e.PlotID,
		Title:      e.Title,
		Duration:   e.Duration,
		Difficulty: e.Difficulty,
		SoilCost:   e.SoilCost,
		LeafID:     e.LeafID,
		State:      SproutActive,
		CreatedAt:  e.At(),
	}
	s.SproutsByPlot[e.PlotID] = append(s.SproutsByPlot[e.PlotID], e.SproutID)
	s.Soil.Available = clamp(s.Soil.Available-float64(e.SoilCost), 0, s.Soil.Capacity)
}

// applySproutCompleted applies a completion. The lifecycle transition
// is guarded: only the first terminal event changes state. The capacity
// gain is applied from the event's own field without that guard; see
// applySproutAbandoned for the documented consequence.
func (s *State) applySproutCompleted(e event.SproutCompleted) {
	sp, ok := s.Sprouts[e.SproutID]
	if !ok {
		return
	}
	s.Soil.Capacity = clamp(s.Soil.Capacity+e.CapacityGained, 0, MaxSoilCapacity)
	s.Soil.Available = clamp(s.Soil.Available+e.CapacityGained, 0, s.Soil.Capacity)
	if sp.State.Terminal() {
		return
	}
	sp.State = SproutCompleted
	sp.Outcome = e.Outcome
	sp.Note = e.Note
	sp.ClosedAt = e.At()
}

// applySproutAbandoned applies an abandonment. The state transition is
// guarded against terminal states, but the refund is applied from the
// event's own field unconditionally: a duplicate abandon event for an
// already-abandoned sprout refunds a second time. This mirrors the
// app's long-standing observed behavior and is pinned by tests;
// changing it is a product decision, not a cleanup.
func (s *State) applySproutAbandoned(e event.SproutAbandoned) {
	sp, ok := s.Sprouts[e.SproutID]
	if !ok {
		return
	}
	s.Soil.Available = clamp(s.Soil.Available+e.RefundAmount, 0, s.Soil.Capacity)
	if sp.State.Terminal() {
		return
	}
	sp.State = SproutAbandoned
	sp.ClosedAt = e.At()
}

func (s *State) applyDailyEntry(e event.DailyEntry, counted map[time.Time]int) {
	if _, ok := s.Sprouts[e.SproutID]; !ok {
		return
	}
	s.Daily[e.SproutID] = appendCapped(s.Daily[e.SproutID], JournalEntry{
		ClientID: e.Client(),
		At:       e.At(),
		Content:  e.Content,
		Prompt:   e.Prompt,
	}, MaxDailyEntries)

	day := DailyBoundary(e.At())
	if counted[day] < WaterCapacity {
		counted[day]++
		s.Soil.Available = clamp(s.Soil.Available+DailySoilBonus, 0, s.Soil.Capacity)
	}
}

func (s *State) applyWeeklyEntry(e event.WeeklyEntry) {
	s.Weekly[e.PlotID] = appendCapped(s.Weekly[e.PlotID], JournalEntry{
		ClientID: e.Client(),
		At:       e.At(),
		Content:  e.Content,
		Prompt:   e.Prompt,
		Label:    e.Label,
	}, MaxWeeklyEntries)
}

func (s *State) applyLeafCreated(e event.LeafCreated) {
	if _, exists := s.Leaves[e.LeafID]; exists {
		return
	}
	s.Leaves[e.LeafID] = &Leaf{
		ID:        e.LeafID,
		PlotID:    e.PlotID,
		Name:      e.Name,
		CreatedAt: e.At(),
	}
	s.LeavesByPlot[e.PlotID] = append(s.LeavesByPlot[e.PlotID], e.LeafID)
}

// appendCapped appends an entry, evicting the oldest when the sub-log
// exceeds its cap. Journals stay bounded over years of use.
func appendCapped(entries []JournalEntry, e JournalEntry, limit int) []JournalEntry {
	entries = append(entries, e)
	if len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	return entries
}

func clamp(v, low, high float64) float64 {
	if v < low {
		return low
	}
	if v > high {
		return high
	}
	return v
}
