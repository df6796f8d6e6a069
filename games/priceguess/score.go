/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package priceguess

import "math"

const (
	// PerfectScore is the base score of an exact guess.
	PerfectScore = 1000

	// MaxScore is the best possible score for a single item.
	MaxScore = 3000

	// decay shapes the logarithmic falloff. With k = 20, a 10% miss keeps
	// about 64% of the base score and a 50% miss about 21%. A miss of 100%
	// or more scores nothing.
	decay = 20.0
)

// relativeError returns |guess-actual|/actual, with an actual price of zero
// treated as exact only for a zero guess.
func relativeError(guess, actual float64) float64 {
	if guess == actual {
		return 0
	}
	if actual == 0 {
		return math.Inf(1)
	}
	return math.Abs(guess-actual) / math.Abs(actual)
}

// BaseScore is the tier-independent score in [0, PerfectScore].
func BaseScore(guess, actual float64) int {
	if math.IsNaN(guess) || math.IsInf(guess, 0) || guess < 0 {
		return 0
	}

	e := relativeError(guess, actual)
	if math.IsInf(e, 1) || math.IsNaN(e) {
		return 0
	}

	base := math.Round(PerfectScore * (1 - math.Log1p(e*decay)/math.Log1p(decay)))
	if base < 0 {
		return 0
	}
	return int(base)
}

// Score maps a guess against the actual price to points for the given tier.
func Score(guess, actual float64, tier Tier) int {
	points := int(math.Round(float64(BaseScore(guess, actual)) * tier.Multiplier()))

	switch {
	case points < 0:
		return 0
	case points > MaxScore:
		return MaxScore
	}
	return points
}
