package priceguess

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

var allTiers = []Tier{Easy, Medium, Hard, Cruel}

func TestScore_PerfectGuessPerTier(t *testing.T) {
	t.Parallel()

	want := map[Tier]int{Easy: 1000, Medium: 1500, Hard: 2000, Cruel: 3000}

	for _, tier := range allTiers {
		for _, actual := range []float64{0.01, 1, 99.99, 100, 2500000} {
			assert.Equal(t, want[tier], Score(actual, actual, tier), "tier %s actual %v", tier, actual)
			assert.Equal(t, int(tier.Multiplier()*PerfectScore), Score(actual, actual, tier))
		}
	}
}

func TestScore_MonotonicInError(t *testing.T) {
	t.Parallel()

	const actual = 250.0

	for _, tier := range allTiers {
		prevOver, prevUnder := Score(actual, actual, tier), Score(actual, actual, tier)

		for step := 1; step <= 300; step++ {
			e := float64(step) / 100

			over := Score(actual*(1+e), actual, tier)
			assert.LessOrEqual(t, over, prevOver, "tier %s error %.2f (over)", tier, e)
			prevOver = over

			if e <= 1 {
				under := Score(actual*(1-e), actual, tier)
				assert.LessOrEqual(t, under, prevUnder, "tier %s error %.2f (under)", tier, e)
				prevUnder = under
			}
		}
	}
}

func TestScore_Bounds(t *testing.T) {
	t.Parallel()

	guesses := []float64{0, 0.001, 1, 49, 50, 99.5, 100, 150, 199, 200, 1e9, -1, math.NaN(), math.Inf(1), math.Inf(-1)}

	for _, tier := range allTiers {
		for _, actual := range []float64{0, 1, 100, 1e6} {
			for _, g := range guesses {
				s := Score(g, actual, tier)
				assert.GreaterOrEqual(t, s, 0)
				assert.LessOrEqual(t, s, MaxScore)
			}
		}
	}
}

func TestScore_MediumScenario(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 1500, Score(100, 100, Medium))

	b := Score(50, 100, Medium)
	assert.Greater(t, b, 0)
	assert.Less(t, b, 1500)
	assert.Equal(t, 318, b)

	assert.Equal(t, 0, Score(0, 100, Medium))
}

func TestScore_Saturation(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, Score(200, 100, Cruel))
	assert.Equal(t, 0, Score(5000, 100, Easy))
	assert.Positive(t, Score(199, 100, Cruel))
}

func TestScore_ZeroActual(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 2000, Score(0, 0, Hard))
	assert.Equal(t, 0, Score(0.01, 0, Hard))
}

func TestScore_InvalidGuess(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, Score(-100, 100, Easy))
	assert.Equal(t, 0, Score(math.NaN(), 100, Easy))
	assert.Equal(t, 0, Score(math.Inf(1), 100, Easy))
}

func TestBaseScore_TenPercent(t *testing.T) {
	t.Parallel()

	s := BaseScore(110, 100)
	assert.Equal(t, s, BaseScore(90, 100))
	assert.InDelta(t, 640, s, 5)
}
