package derive

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/grove-sh/grove/internal/event"
)

func TestBaseCost(t *testing.T) {
	assert.Equal(t, 2, BaseCost(event.DurationDay))
	assert.Equal(t, 4, BaseCost(event.DurationWeek))
	assert.Equal(t, 6, BaseCost(event.DurationMonth))
	assert.Equal(t, 9, BaseCost(event.DurationSeason))
}

func TestCreationCost_RoundsUp(t *testing.T) {
	// month × gentle = 6 × 0.75 = 4.5, charged as 5
	assert.Equal(t, 5, CreationCost(event.DurationMonth, event.DifficultyGentle))
	// week × steady = 4 × 1.0
	assert.Equal(t, 4, CreationCost(event.DurationWeek, event.DifficultySteady))
	// season × tough = 9 × 1.5 = 13.5, charged as 14
	assert.Equal(t, 14, CreationCost(event.DurationSeason, event.DifficultyTough))
	// day × gentle = 2 × 0.75 = 1.5, charged as 2
	assert.Equal(t, 2, CreationCost(event.DurationDay, event.DifficultyGentle))
}

func TestOutcomeMultiplier(t *testing.T) {
	assert.Equal(t, 0.25, OutcomeMultiplier(1))
	assert.Equal(t, 0.6, OutcomeMultiplier(2))
	assert.Equal(t, 1.0, OutcomeMultiplier(3))
	assert.Equal(t, 1.3, OutcomeMultiplier(4))
	assert.Equal(t, 1.6, OutcomeMultiplier(5))
	assert.Equal(t, 0.0, OutcomeMultiplier(0))
	assert.Equal(t, 0.0, OutcomeMultiplier(6))
}

func TestDiminishing_StrictlyDecreasing(t *testing.T) {
	prev := Diminishing(0)
	assert.Equal(t, 1.0, prev)

	for c := 5.0; c <= MaxSoilCapacity; c += 5 {
		cur := Diminishing(c)
		assert.Less(t, cur, prev, "Diminishing(%v) should be below Diminishing(%v)", c, c-5)
		prev = cur
	}
}

func TestDiminishing_ZeroAtAndBeyondCap(t *testing.T) {
	assert.Equal(t, 0.0, Diminishing(MaxSoilCapacity))
	assert.Equal(t, 0.0, Diminishing(MaxSoilCapacity+10))
}

func TestCompletionReward_FreshGarden(t *testing.T) {
	// week × gentle, outcome 4, at the initial capacity of 10:
	// 4 × 0.8 × 1.3 × 0.9^1.5
	got := CompletionReward(event.DurationWeek, event.DifficultyGentle, 4, InitialSoilCapacity)
	assert.InDelta(t, 3.552, got, 0.001)
	assert.Greater(t, got, 0.0)
}

func TestCompletionReward_NearCapApproachesZero(t *testing.T) {
	nearCap := CompletionReward(event.DurationSeason, event.DifficultyTough, 5, 99)
	assert.Less(t, nearCap, 0.05)
	atCap := CompletionReward(event.DurationSeason, event.DifficultyTough, 5, MaxSoilCapacity)
	assert.Equal(t, 0.0, atCap)
}

func TestAbandonRefund(t *testing.T) {
	assert.Equal(t, 1.0, AbandonRefund(4))
	assert.Equal(t, 1.25, AbandonRefund(5))
	assert.Equal(t, 0.0, AbandonRefund(0))
}
