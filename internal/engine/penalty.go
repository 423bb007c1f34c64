package engine

import (
	"math"

	"github.com/lazypower/freshnote/internal/store"
)

// Decay timer bounds and penalty rules.
const (
	// DefaultDecayMinutes is the TTL used when a note is created without one (24h).
	DefaultDecayMinutes = 1440
	// MinDecayMinutes and MaxDecayMinutes bound the baseline TTL (1 minute to 1 week).
	MinDecayMinutes = 1
	MaxDecayMinutes = 10080

	// PenaltyStep is the baseline fraction lost per wrong answer.
	PenaltyStep = 0.125
	// MaxPenalty caps the cumulative reduction at 5 wrong answers.
	MaxPenalty = 0.625
	// MinDecayAfterPenalty is the floor for a penalized timer, in minutes.
	MinDecayAfterPenalty = 30
)

// PenaltyResult reports the state after a penalty mutation. The values are
// returned verbatim to the caller for user feedback.
type PenaltyResult struct {
	WrongAnswers    int
	PenaltyPct      float64 // cumulative fraction of the baseline lost
	NewDecayMinutes int
}

// PenaltyPct returns the cumulative penalty fraction for a wrong-answer count:
// min(0.125 × w, 0.625).
func PenaltyPct(wrongAnswers int) float64 {
	pct := PenaltyStep * float64(wrongAnswers)
	if pct > MaxPenalty {
		return MaxPenalty
	}
	return pct
}

// AdjustedDecay computes the penalized TTL: baseline × (1 − penaltyPct),
// rounded half away from zero, floored at MinDecayAfterPenalty. The floor
// always wins over the computed value.
func AdjustedDecay(wrongAnswers, baselineMinutes int) int {
	adjusted := int(math.Round(float64(baselineMinutes) * (1 - PenaltyPct(wrongAnswers))))
	if adjusted < MinDecayAfterPenalty {
		return MinDecayAfterPenalty
	}
	return adjusted
}

// ApplyWrongAnswer increments the wrong-answer count and recomputes the
// note's decay timer from its original baseline.
func ApplyWrongAnswer(n *store.Note) PenaltyResult {
	n.WrongAnswers++
	n.DecayMinutes = AdjustedDecay(n.WrongAnswers, n.OriginalDecayMinutes)
	n.PenaltyApplied = true
	return PenaltyResult{
		WrongAnswers:    n.WrongAnswers,
		PenaltyPct:      PenaltyPct(n.WrongAnswers),
		NewDecayMinutes: n.DecayMinutes,
	}
}

// ResetPenalties clears all penalty state and restores the baseline timer.
// Idempotent.
func ResetPenalties(n *store.Note) {
	n.WrongAnswers = 0
	n.PenaltyApplied = false
	n.DecayMinutes = n.OriginalDecayMinutes
}

// ApplyPerfectScoreBonus forgives one wrong answer after a perfect revision
// session. Only applies when a penalty is standing. A partial reversal:
// earning trust back is slower than losing it. Returns true if the bonus
// was applied.
func ApplyPerfectScoreBonus(n *store.Note) bool {
	if !n.PenaltyApplied {
		return false
	}
	if n.WrongAnswers > 0 {
		n.WrongAnswers--
	}
	if n.WrongAnswers == 0 {
		ResetPenalties(n)
	} else {
		n.DecayMinutes = AdjustedDecay(n.WrongAnswers, n.OriginalDecayMinutes)
	}
	return true
}
