package derive

import (
	"math"

	"github.com/grove-sh/grove/internal/event"
)

// Resource tuning. Capacity accumulates as a continuous value and is
// only rounded for display.
const (
	// MaxSoilCapacity bounds total soil capacity.
	MaxSoilCapacity = 100.0

	// InitialSoilCapacity seeds a fresh garden.
	InitialSoilCapacity = 10.0

	// WaterCapacity is the number of daily journal entries the daily
	// window refills to.
	WaterCapacity = 3

	// SunCapacity is the number of weekly reflections the weekly
	// window refills to.
	SunCapacity = 2

	// DailySoilBonus is the available-soil increment a counted daily
	// entry grants. Entries beyond WaterCapacity in one day window
	// grant nothing.
	DailySoilBonus = 0.5

	// MaxDailyEntries caps the daily journal kept per sprout;
	// the oldest entry is evicted first.
	MaxDailyEntries = 30

	// MaxWeeklyEntries caps the weekly journal kept per plot.
	MaxWeeklyEntries = 26

	// AbandonRefundRate is the fraction of the creation cost returned
	// when a sprout is abandoned.
	AbandonRefundRate = 0.25
)

// BaseCost returns the soil cost base for a duration class.
func BaseCost(d event.Duration) int {
	switch d {
	case event.DurationDay:
		return 2
	case event.DurationWeek:
		return 4
	case event.DurationMonth:
		return 6
	case event.DurationSeason:
		return 9
	}
	return 0
}

// CostMultiplier scales the creation cost by difficulty.
func CostMultiplier(d event.Difficulty) float64 {
	switch d {
	case event.DifficultyGentle:
		return 0.75
	case event.DifficultyTough:
		return 1.5
	default:
		return 1.0
	}
}

// CreationCost is the soil paid when a sprout is created:
// ceil(baseCost(duration) × difficulty cost multiplier).
func CreationCost(dur event.Duration, diff event.Difficulty) int {
	return int(math.Ceil(float64(BaseCost(dur)) * CostMultiplier(diff)))
}

// BaseReward returns the capacity reward base for a duration class.
func BaseReward(d event.Duration) float64 {
	switch d {
	case event.DurationDay:
		return 2
	case event.DurationWeek:
		return 4
	case event.DurationMonth:
		return 7
	case event.DurationSeason:
		return 12
	}
	return 0
}

// RewardMultiplier scales the completion reward by difficulty.
func RewardMultiplier(d event.Difficulty) float64 {
	switch d {
	case event.DifficultyGentle:
		return 0.8
	case event.DifficultyTough:
		return 1.3
	default:
		return 1.0
	}
}

// OutcomeMultiplier maps the 1..5 completion self-assessment onto a
// reward factor. Out-of-range outcomes return 0.
func OutcomeMultiplier(outcome int) float64 {
	switch outcome {
	case 1:
		return 0.25
	case 2:
		return 0.6
	case 3:
		return 1.0
	case 4:
		return 1.3
	case 5:
		return 1.6
	}
	return 0
}

// Diminishing returns the soft-cap factor applied to completion
// rewards: max(0, 1 − capacityBefore/MaxSoilCapacity)^1.5. Rewards
// strictly decrease as capacity grows and approach zero at the cap.
func Diminishing(capacityBefore float64) float64 {
	base := 1 - capacityBefore/MaxSoilCapacity
	if base < 0 {
		base = 0
	}
	return math.Pow(base, 1.5)
}

// CompletionReward computes the capacity gained by completing a sprout,
// given the capacity in effect before the completion. The result is
// recorded on the completion event; derivation replays the recorded
// value, never this formula.
func CompletionReward(dur event.Duration, diff event.Difficulty, outcome int, capacityBefore float64) float64 {
	return BaseReward(dur) * RewardMultiplier(diff) * OutcomeMultiplier(outcome) * Diminishing(capacityBefore)
}

// AbandonRefund computes the soil returned when a sprout is abandoned.
// Like the completion reward, the result is recorded on the abandonment
// event and replayed from there.
func AbandonRefund(soilCost int) float64 {
	return float64(soilCost) * AbandonRefundRate
}
