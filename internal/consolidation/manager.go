package consolidation

import (
	"fmt"
	"time"

	"rook/internal/cognitive"
	"rook/internal/types"
)

// Config controls phase-advancement behavior during a consolidate() run.
type Config struct {
	// TagThreshold is the minimum tag strength considered for consolidation.
	TagThreshold float64
	// StorageBoost is the stability multiplier bonus applied on successful
	// consolidation (Immediate -> Early with PRP captured).
	StorageBoost float64
	// BatchSize caps how many memories are processed per phase per run.
	BatchSize int
	// PenalizeUnconsolidated marks memories whose tag expired without PRP
	// for faster decay instead of leaving their stability untouched.
	PenalizeUnconsolidated bool
	// UnconsolidatedPenalty is the stability multiplier penalty applied in
	// that case.
	UnconsolidatedPenalty float64
}

// DefaultConfig returns the spec defaults.
func DefaultConfig() Config {
	return Config{
		TagThreshold:           0.1,
		StorageBoost:           0.15,
		BatchSize:              100,
		PenalizeUnconsolidated: true,
		UnconsolidatedPenalty:  0.05,
	}
}

// Result summarizes one consolidate() run.
type Result struct {
	Consolidated  int
	Unconsolidated int
	Advanced      int
	Skipped       int
	Errors        []string
	StartedAt     time.Time
	CompletedAt   *time.Time
}

// TotalProcessed is the sum of every outcome bucket.
func (r Result) TotalProcessed() int {
	return r.Consolidated + r.Unconsolidated + r.Advanced + r.Skipped
}

// DurationMS is the wall-clock length of the run in milliseconds, or -1 if
// the run hasn't completed.
func (r Result) DurationMS() int64 {
	if r.CompletedAt == nil {
		return -1
	}
	return r.CompletedAt.Sub(r.StartedAt).Milliseconds()
}

// Manager processes memories through consolidation phases based on
// synaptic-tagging-and-capture theory: Immediate memories with a valid tag
// and captured PRP consolidate to Early; Early and Late memories advance on
// a fixed schedule (24h, then 72h) regardless of tag state.
type Manager struct {
	store *cognitive.Store
	cfg   Config
}

// NewManager returns a Manager backed by store using cfg.
func NewManager(store *cognitive.Store, cfg Config) *Manager {
	return &Manager{store: store, cfg: cfg}
}

// NewManagerWithDefaults returns a Manager using DefaultConfig.
func NewManagerWithDefaults(store *cognitive.Store) *Manager {
	return NewManager(store, DefaultConfig())
}

// Consolidate runs one full pass: Immediate phase tag/PRP evaluation, then
// time-based Early and Late phase advancement, in that order.
func (m *Manager) Consolidate(now time.Time) (Result, error) {
	result := Result{StartedAt: now}

	if err := m.processImmediatePhase(&result, now); err != nil {
		return result, err
	}
	if err := m.processTimeBasedPhase(&result, types.PhaseEarly, 24*time.Hour, now); err != nil {
		return result, err
	}
	if err := m.processTimeBasedPhase(&result, types.PhaseLate, 72*time.Hour, now); err != nil {
		return result, err
	}

	completed := now
	result.CompletedAt = &completed
	return result, nil
}

func (m *Manager) processImmediatePhase(result *Result, now time.Time) error {
	ids, err := m.store.GetMemoriesInPhase(types.PhaseImmediate)
	if err != nil {
		return err
	}
	for i, id := range ids {
		if i >= m.cfg.BatchSize {
			break
		}
		outcome, err := m.processImmediateMemory(id, now)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", id, err))
			continue
		}
		switch outcome {
		case outcomeConsolidated:
			result.Consolidated++
		case outcomeUnconsolidated:
			result.Unconsolidated++
		case outcomeSkipped:
			result.Skipped++
		}
	}
	return nil
}

type immediateOutcome int

const (
	outcomeSkipped immediateOutcome = iota
	outcomeConsolidated
	outcomeUnconsolidated
)

func (m *Manager) processImmediateMemory(memoryID string, now time.Time) (immediateOutcome, error) {
	tag, err := m.store.GetSynapticTag(memoryID)
	if err != nil {
		return outcomeSkipped, err
	}
	if tag == nil {
		return outcomeSkipped, nil
	}

	if tag.CanConsolidateAt(now, m.cfg.TagThreshold) {
		if err := m.boostStorageStrength(memoryID); err != nil {
			return outcomeSkipped, err
		}
		if _, err := m.store.UpdateConsolidationPhase(memoryID, types.PhaseEarly); err != nil {
			return outcomeSkipped, err
		}
		if _, err := m.store.DeleteSynapticTag(memoryID); err != nil {
			return outcomeSkipped, err
		}
		return outcomeConsolidated, nil
	}

	if !tag.IsValidAt(now, m.cfg.TagThreshold) {
		if m.cfg.PenalizeUnconsolidated {
			if err := m.penalizeStorageStrength(memoryID); err != nil {
				return outcomeSkipped, err
			}
		}
		if _, err := m.store.UpdateConsolidationPhase(memoryID, types.PhaseEarly); err != nil {
			return outcomeSkipped, err
		}
		if _, err := m.store.DeleteSynapticTag(memoryID); err != nil {
			return outcomeSkipped, err
		}
		return outcomeUnconsolidated, nil
	}

	// Tag still valid but PRP not yet captured: leave in Immediate and
	// reassess on the next run.
	return outcomeSkipped, nil
}

func (m *Manager) processTimeBasedPhase(result *Result, phase types.ConsolidationPhase, minAge time.Duration, now time.Time) error {
	ids, err := m.store.GetMemoriesInPhase(phase)
	if err != nil {
		return err
	}
	for i, id := range ids {
		if i >= m.cfg.BatchSize {
			break
		}
		advanced, err := m.advanceIfOldEnough(id, phase, minAge, now)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", id, err))
			continue
		}
		if advanced {
			result.Advanced++
		} else {
			result.Skipped++
		}
	}
	return nil
}

func (m *Manager) advanceIfOldEnough(memoryID string, phase types.ConsolidationPhase, minAge time.Duration, now time.Time) (bool, error) {
	row, err := m.store.GetState(memoryID)
	if err != nil {
		return false, err
	}
	if row == nil {
		return false, nil
	}
	if now.Sub(row.CreatedAt) < minAge {
		return false, nil
	}
	next := phase.Next()
	if next == phase {
		return false, nil
	}
	if _, err := m.store.UpdateConsolidationPhase(memoryID, next); err != nil {
		return false, err
	}
	return true, nil
}

func (m *Manager) boostStorageStrength(memoryID string) error {
	row, err := m.store.GetState(memoryID)
	if err != nil || row == nil {
		return err
	}
	state := row.State
	state.Stability *= 1.0 + m.cfg.StorageBoost
	return m.store.SaveState(memoryID, state, row.IsKey, &row.CreatedAt)
}

func (m *Manager) penalizeStorageStrength(memoryID string) error {
	row, err := m.store.GetState(memoryID)
	if err != nil || row == nil {
		return err
	}
	state := row.State
	state.Stability *= 1.0 - m.cfg.UnconsolidatedPenalty
	return m.store.SaveState(memoryID, state, row.IsKey, &row.CreatedAt)
}
