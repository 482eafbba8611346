package event

import "fmt"

// Duration classifies how long a sprout is expected to run.
type Duration string

const (
	DurationDay    Duration = "day"
	DurationWeek   Duration = "week"
	DurationMonth  Duration = "month"
	DurationSeason Duration = "season"
)

// ValidDuration reports whether d is one of the known duration classes.
func ValidDuration(d Duration) bool {
	switch d {
	case DurationDay, DurationWeek, DurationMonth, DurationSeason:
		return true
	}
	return false
}

// Difficulty classifies how demanding a sprout is.
type Difficulty string

const (
	DifficultyGentle Difficulty = "gentle"
	DifficultySteady Difficulty = "steady"
	DifficultyTough  Difficulty = "tough"
)

// ValidDifficulty reports whether d is one of the known difficulty classes.
func ValidDifficulty(d Difficulty) bool {
	switch d {
	case DifficultyGentle, DifficultySteady, DifficultyTough:
		return true
	}
	return false
}

// SproutCreated records a new goal. The soil cost was computed and paid
// at creation time; the derivation engine applies the event's own cost
// field, never recomputes it.
type SproutCreated struct {
	Header
	SproutID   string
	PlotID     string
	Title      string
	Duration   Duration
	Difficulty Difficulty
	SoilCost   int
	LeafID     string // optional link to a saga
}

func (e SproutCreated) Kind() Type     { return TypeSproutCreated }
func (e SproutCreated) Entity() string { return e.SproutID }

func (e SproutCreated) Validate() error {
	if err := e.Header.validate(e.Kind()); err != nil {
		return err
	}
	if e.SproutID == "" {
		return fmt.Errorf("sprout_created: missing sprout id")
	}
	if e.PlotID == "" {
		return fmt.Errorf("sprout_created: missing plot id")
	}
	if e.Title == "" {
		return fmt.Errorf("sprout_created: missing title")
	}
	if !ValidDuration(e.Duration) {
		return fmt.Errorf("sprout_created: invalid duration %q", e.Duration)
	}
	if !ValidDifficulty(e.Difficulty) {
		return fmt.Errorf("sprout_created: invalid difficulty %q", e.Difficulty)
	}
	if e.SoilCost < 0 {
		return fmt.Errorf("sprout_created: negative soil cost %d", e.SoilCost)
	}
	return nil
}

// SproutCompleted marks a goal as successfully finished. CapacityGained
// carries the reward computed at completion time from the capacity then
// in effect; derivation applies it as recorded.
type SproutCompleted struct {
	Header
	SproutID       string
	Outcome        int // 1..5 self-assessment
	CapacityGained float64
	Note           string // optional free text
}

func (e SproutCompleted) Kind() Type     { return TypeSproutCompleted }
func (e SproutCompleted) Entity() string { return e.SproutID }

func (e SproutCompleted) Validate() error {
	if err := e.Header.validate(e.Kind()); err != nil {
		return err
	}
	if e.SproutID == "" {
		return fmt.Errorf("sprout_completed: missing sprout id")
	}
	if e.Outcome < 1 || e.Outcome > 5 {
		return fmt.Errorf("sprout_completed: outcome %d out of range 1..5", e.Outcome)
	}
	if e.CapacityGained < 0 {
		return fmt.Errorf("sprout_completed: negative capacity gained")
	}
	return nil
}

// SproutAbandoned marks a goal as given up. RefundAmount is the portion
// of the creation cost returned to available soil.
type SproutAbandoned struct {
	Header
	SproutID     string
	RefundAmount float64
}

func (e SproutAbandoned) Kind() Type     { return TypeSproutAbandoned }
func (e SproutAbandoned) Entity() string { return e.SproutID }

func (e SproutAbandoned) Validate() error {
	if err := e.Header.validate(e.Kind()); err != nil {
		return err
	}
	if e.SproutID == "" {
		return fmt.Errorf("sprout_abandoned: missing sprout id")
	}
	if e.RefundAmount < 0 {
		return fmt.Errorf("sprout_abandoned: negative refund amount")
	}
	return nil
}

// DailyEntry is a daily-cadence journal entry attached to a sprout.
type DailyEntry struct {
	Header
	SproutID string
	Content  string
	Prompt   string // optional writing prompt the entry answered
}

func (e DailyEntry) Kind() Type     { return TypeDailyEntry }
func (e DailyEntry) Entity() string { return e.SproutID }

func (e DailyEntry) Validate() error {
	if err := e.Header.validate(e.Kind()); err != nil {
		return err
	}
	if e.SproutID == "" {
		return fmt.Errorf("daily_entry: missing sprout id")
	}
	if e.Content == "" {
		return fmt.Errorf("daily_entry: missing content")
	}
	return nil
}

// WeeklyEntry is a weekly-cadence reflection attached to a plot.
type WeeklyEntry struct {
	Header
	PlotID  string
	Label   string
	Content string
	Prompt  string // optional
}

func (e WeeklyEntry) Kind() Type     { return TypeWeeklyEntry }
func (e WeeklyEntry) Entity() string { return e.PlotID }

func (e WeeklyEntry) Validate() error {
	if err := e.Header.validate(e.Kind()); err != nil {
		return err
	}
	if e.PlotID == "" {
		return fmt.Errorf("weekly_entry: missing plot id")
	}
	if e.Label == "" {
		return fmt.Errorf("weekly_entry: missing label")
	}
	if e.Content == "" {
		return fmt.Errorf("weekly_entry: missing content")
	}
	return nil
}

// LeafCreated records a new saga. Purely additive; leaves have no
// terminal state.
type LeafCreated struct {
	Header
	LeafID string
	PlotID string
	Name   string
}

func (e LeafCreated) Kind() Type     { return TypeLeafCreated }
func (e LeafCreated) Entity() string { return e.LeafID }

func (e LeafCreated) Validate() error {
	if err := e.Header.validate(e.Kind()); err != nil {
		return err
	}
	if e.LeafID == "" {
		return fmt.Errorf("leaf_created: missing leaf id")
	}
	if e.PlotID == "" {
		return fmt.Errorf("leaf_created: missing plot id")
	}
	if e.Name == "" {
		return fmt.Errorf("leaf_created: missing name")
	}
	return nil
}
