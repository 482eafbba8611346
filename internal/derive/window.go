package derive

import (
	"time"

	"github.com/grove-sh/grove/internal/event"
)

// ResetHour is the local hour at which the daily and weekly windows
// reset.
const ResetHour = 4

// DailyBoundary returns the most recent daily reset boundary at or
// before now: today at ResetHour in now's location, rolled back one day
// when now precedes that hour.
func DailyBoundary(now time.Time) time.Time {
	b := time.Date(now.Year(), now.Month(), now.Day(), ResetHour, 0, 0, 0, now.Location())
	if now.Before(b) {
		b = b.AddDate(0, 0, -1)
	}
	return b
}

// WeeklyBoundary returns the most recent weekly reset boundary at or
// before now: Monday of the current ISO week at ResetHour. A Monday
// earlier than ResetHour still belongs to the previous week.
func WeeklyBoundary(now time.Time) time.Time {
	day := DailyBoundary(now)
	// Monday = 0 ... Sunday = 6
	back := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -back)
}

// inWindow reports whether ts belongs to the window opened at boundary.
// An event exactly at the boundary instant counts as after it; one
// millisecond earlier belongs to the previous window.
func inWindow(ts, boundary time.Time) bool {
	return !ts.Before(boundary)
}

// WaterAvailable returns how many daily journal entries remain in the
// current daily window: WaterCapacity minus qualifying entries since
// the boundary, floored at zero.
func WaterAvailable(events []event.Event, now time.Time) int {
	return remaining(events, event.TypeDailyEntry, WaterCapacity, DailyBoundary(now))
}

// SunAvailable returns how many weekly reflections remain in the
// current ISO week window.
func SunAvailable(events []event.Event, now time.Time) int {
	return remaining(events, event.TypeWeeklyEntry, SunCapacity, WeeklyBoundary(now))
}

func remaining(events []event.Event, kind event.Type, capacity int, boundary time.Time) int {
	used := 0
	for _, e := range event.Dedupe(events) {
		if e.Kind() != kind || e.Validate() != nil {
			continue
		}
		if inWindow(e.At(), boundary) {
			used++
		}
	}
	if used >= capacity {
		return 0
	}
	return capacity - used
}
