// internal/rating/elo.go
package rating

import (
	"math"

	"github.com/danverac/swissladder/internal/models"
)

const (
	// DefaultDivisor is the standard Elo spread: a player rated 400 points
	// above their opponent is expected to win ten times as often. Smaller
	// rating pools configure a smaller divisor so ratings still spread.
	DefaultDivisor = 400.0

	// Base k-factors by tournament flavor.
	BaseK    = 32.0
	PremiumK = 48.0
	CasualK  = 16.0

	// ProvisionalMultiplier boosts k while a player has fewer than
	// ProvisionalTournaments finalized tournaments on record.
	ProvisionalMultiplier  = 3.0
	ProvisionalTournaments = 3
)

// Engine computes post-match ratings. It is a pure value type: no I/O, no
// persisted state, identical output for identical input, so it is safe to
// call speculatively for previews and again during recalculation replays.
type Engine struct {
	Divisor float64
}

// NewEngine returns an Engine with the given divisor, falling back to
// DefaultDivisor for non-positive values.
func NewEngine(divisor float64) Engine {
	if divisor <= 0 {
		divisor = DefaultDivisor
	}
	return Engine{Divisor: divisor}
}

// Expected is the logistic expected score for side A.
func (e Engine) Expected(ratingA, ratingB int) float64 {
	return 1.0 / (1.0 + math.Pow(10, float64(ratingB-ratingA)/e.Divisor))
}

// Apply returns both players' new ratings after one match. The outcome's
// embedded game score decides the result pair: strictly higher score wins
// (1, 0), anything else is a draw (0.5, 0.5). New ratings round to the
// nearest integer, halves away from zero (math.Round), which unit tests
// assert exactly.
//
// Byes never reach Apply; callers skip them entirely.
func (e Engine) Apply(ratingA, ratingB int, outcome models.Outcome, kA, kB float64) (int, int) {
	sa, sb := score(outcome)
	ea := e.Expected(ratingA, ratingB)
	eb := 1.0 - ea

	newA := int(math.Round(float64(ratingA) + kA*(sa-ea)))
	newB := int(math.Round(float64(ratingB) + kB*(sb-eb)))
	return newA, newB
}

// score maps an outcome to the (Sa, Sb) result pair.
func score(outcome models.Outcome) (float64, float64) {
	a, b := outcome.Scores()
	switch {
	case a > b:
		return 1, 0
	case a < b:
		return 0, 1
	default:
		return 0.5, 0.5
	}
}

// KFactor selects the k for one side of a match: the tournament's base k,
// tripled while the player is provisional. Each side is evaluated
// independently.
func KFactor(casual, premium bool, priorFinalized int) float64 {
	k := BaseK
	switch {
	case premium:
		k = PremiumK
	case casual:
		k = CasualK
	}
	if priorFinalized < ProvisionalTournaments {
		k *= ProvisionalMultiplier
	}
	return k
}
