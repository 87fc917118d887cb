// Package fsrs implements the FSRS-6 spaced-repetition forgetting-curve
// model used to schedule memory review and identify archival candidates.
package fsrs

import (
	"math"
	"time"

	"rook/internal/types"
)

// Default decay exponent for the forgetting curve.
const DefaultDecay = 0.2

// ArchivalConfig controls the archival candidate predicate.
type ArchivalConfig struct {
	ArchiveThreshold float64
	MinAgeDays       int
	ArchiveLimit     int
}

// DefaultArchivalConfig returns the spec defaults (threshold 0.1, min age 30
// days, limit 100).
func DefaultArchivalConfig() ArchivalConfig {
	return ArchivalConfig{ArchiveThreshold: 0.1, MinAgeDays: 30, ArchiveLimit: 100}
}

// IsCandidate reports whether a memory with the given retrievability and
// creation time is an archival candidate under cfg. is_key must be checked
// by the caller (the store's query already filters it).
func (cfg ArchivalConfig) IsCandidate(retrievability float64, createdAt, now time.Time) bool {
	if retrievability >= cfg.ArchiveThreshold {
		return false
	}
	minAge := time.Duration(cfg.MinAgeDays) * 24 * time.Hour
	return now.Sub(createdAt) >= minAge
}

// Scheduler computes state transitions and retrievability.
//
// Update is a simplified stability/difficulty transition with hand-set
// per-grade constants (initial stability 0.4/1/3/8, stability growth boosts
// 1.1/1.4/1.9, fixed difficulty steps). It does not use the FSRS-6
// parameter vector or the FSRS-6 next-stability and next-difficulty
// formulas.
type Scheduler struct {
	Decay float64
}

// NewScheduler returns a scheduler using the standard decay = 0.2.
func NewScheduler() Scheduler {
	return Scheduler{Decay: DefaultDecay}
}

// Retrievability returns retrievability at `now` for state:
//
//	(1 + days_since_last_review/stability)^(-1/decay)
//
// clamped to [0,1]. A nil LastReview (brand new memory) returns 1.0.
func (s Scheduler) Retrievability(state types.FsrsState, now time.Time) float64 {
	if state.LastReview == nil {
		return 1.0
	}
	if state.Stability <= 0 {
		return 0.0
	}
	daysSince := now.Sub(*state.LastReview).Hours() / 24.0
	if daysSince < 0 {
		daysSince = 0
	}
	r := math.Pow(1+daysSince/state.Stability, -1/s.Decay)
	if r < 0 {
		return 0
	}
	if r > 1 {
		return 1
	}
	return r
}

// factorForDecay is the FSRS forgetting-curve constant derived from decay:
// F = 0.9^(-1/decay) - 1. Retrievability does not apply it; its curve
// (1 + t/S)^(-1/decay) gives 2^-5 ≈ 0.031 at t = S with decay 0.2.
func factorForDecay(decay float64) float64 {
	return math.Pow(0.9, -1/decay) - 1
}

// clampDifficulty keeps difficulty within the spec's [1,10] range.
func clampDifficulty(d float64) float64 {
	if d < 1 {
		return 1
	}
	if d > 10 {
		return 10
	}
	return d
}

// initialStability returns the first-review stability seed per grade,
// following FSRS-6's initial-stability table shape (higher grade, higher
// starting stability).
func initialStability(grade types.Grade) float64 {
	switch grade {
	case types.GradeAgain:
		return 0.4
	case types.GradeHard:
		return 1.0
	case types.GradeGood:
		return 3.0
	case types.GradeEasy:
		return 8.0
	default:
		return 1.0
	}
}

// initialDifficulty returns the first-review difficulty seed per grade,
// 7 - 2*grade clamped to [1,10]: Again 5, Hard 3, Good and Easy 1.
func initialDifficulty(grade types.Grade) float64 {
	d := 7.0 - 2.0*float64(grade)
	return clampDifficulty(d)
}

// Update applies one review of the given grade and returns the new state.
// elapsedDays is not read: the elapsed time comes from state.LastReview and
// now. reps increments on every grade; lapses increments only on Again.
// last_review is set to now.
func (s Scheduler) Update(state types.FsrsState, grade types.Grade, elapsedDays float64, now time.Time) types.FsrsState {
	next := state
	next.LastReview = &now

	if state.LastReview == nil || state.Stability <= 0 {
		next.Stability = initialStability(grade)
		next.Difficulty = initialDifficulty(grade)
		next.Reps = state.Reps + 1
		if grade == types.GradeAgain {
			next.Lapses = state.Lapses + 1
		}
		return next
	}

	r := s.Retrievability(state, now)
	d := state.Difficulty
	stab := state.Stability

	if grade == types.GradeAgain {
		// Post-lapse stability shrinks, scaled by difficulty and retrievability:
		// memories that were highly retrievable yet still failed lapse harder.
		next.Stability = math.Max(0.1, stab*(1-0.2*(d/10)-0.3*r))
		next.Difficulty = clampDifficulty(d + 2*(1-r))
		next.Lapses = state.Lapses + 1
	} else {
		gradeBoost := map[types.Grade]float64{
			types.GradeHard: 1.1,
			types.GradeGood: 1.4,
			types.GradeEasy: 1.9,
		}[grade]
		// Stability growth is larger when retrievability was low at review
		// time (spacing effect) and smaller for already-high difficulty.
		growth := 1 + gradeBoost*(1-r)*(11-d)/9
		next.Stability = stab * growth
		// Difficulty moves by a per-grade step (Hard +0.5, Good 0, Easy
		// -0.7) plus a pull of 10% of its distance toward the default 5.0.
		deltaD := map[types.Grade]float64{
			types.GradeHard: 0.5,
			types.GradeGood: 0.0,
			types.GradeEasy: -0.7,
		}[grade]
		next.Difficulty = clampDifficulty(d + deltaD - 0.1*(d-5.0))
	}
	next.Reps = state.Reps + 1
	return next
}

// ArchivalCandidateInput bundles what the archival predicate needs beyond
// the store's own is_key/age filtering.
type ArchivalCandidateInput struct {
	MemoryID  string
	State     types.FsrsState
	CreatedAt time.Time
}

// FilterArchivalCandidates evaluates the full predicate (including the
// retrievability check the cognitive store cannot perform on its own) over
// candidates already narrowed by is_key and age.
func (s Scheduler) FilterArchivalCandidates(cfg ArchivalConfig, candidates []ArchivalCandidateInput, now time.Time) []string {
	var out []string
	for _, c := range candidates {
		r := s.Retrievability(c.State, now)
		if cfg.IsCandidate(r, c.CreatedAt, now) {
			out = append(out, c.MemoryID)
		}
	}
	return out
}
