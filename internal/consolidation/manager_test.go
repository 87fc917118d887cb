package consolidation

import (
	"testing"
	"time"

	"rook/internal/cognitive"
	"rook/internal/types"
)

func newTestManager(t *testing.T) (*cognitive.Store, *Manager) {
	t.Helper()
	store, err := cognitive.Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store, NewManagerWithDefaults(store)
}

func TestConfigDefaults(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.TagThreshold != 0.1 {
		t.Errorf("TagThreshold = %v, want 0.1", cfg.TagThreshold)
	}
	if cfg.StorageBoost != 0.15 {
		t.Errorf("StorageBoost = %v, want 0.15", cfg.StorageBoost)
	}
	if cfg.BatchSize != 100 {
		t.Errorf("BatchSize = %v, want 100", cfg.BatchSize)
	}
}

func TestResultTracking(t *testing.T) {
	result := Result{StartedAt: time.Now()}
	result.Consolidated = 5
	result.Unconsolidated = 2
	result.Advanced = 3
	result.Skipped = 10

	if got := result.TotalProcessed(); got != 20 {
		t.Errorf("TotalProcessed = %d, want 20", got)
	}

	completed := time.Now()
	result.CompletedAt = &completed
	if result.DurationMS() < 0 {
		t.Errorf("DurationMS = %d, want >= 0", result.DurationMS())
	}
}

func TestConsolidateEmptyStore(t *testing.T) {
	_, manager := newTestManager(t)

	result, err := manager.Consolidate(time.Now())
	if err != nil {
		t.Fatalf("Consolidate: %v", err)
	}
	if result.Consolidated != 0 || result.Unconsolidated != 0 || result.Advanced != 0 {
		t.Errorf("expected all-zero result, got %+v", result)
	}
}

func TestConsolidateMemoryWithPRP(t *testing.T) {
	store, manager := newTestManager(t)
	now := time.Now()

	state := types.FsrsState{Stability: 10.0, Difficulty: 5.0, LastReview: &now, Reps: 1}
	if err := store.SaveState("mem-1", state, false, nil); err != nil {
		t.Fatalf("SaveState: %v", err)
	}

	tag := types.NewSynapticTag("mem-1", now.Add(-30*time.Minute)).WithPRPAvailable(now)
	if err := store.SaveSynapticTag(tag); err != nil {
		t.Fatalf("SaveSynapticTag: %v", err)
	}

	result, err := manager.Consolidate(now)
	if err != nil {
		t.Fatalf("Consolidate: %v", err)
	}

	if result.Consolidated != 1 {
		t.Errorf("Consolidated = %d, want 1", result.Consolidated)
	}
	if result.Unconsolidated != 0 {
		t.Errorf("Unconsolidated = %d, want 0", result.Unconsolidated)
	}

	phase, err := store.GetConsolidationPhase("mem-1")
	if err != nil || phase == nil {
		t.Fatalf("GetConsolidationPhase: %v", err)
	}
	if *phase != types.PhaseEarly {
		t.Errorf("phase = %v, want Early", *phase)
	}

	if gotTag, _ := store.GetSynapticTag("mem-1"); gotTag != nil {
		t.Error("expected tag to be deleted")
	}

	row, err := store.GetState("mem-1")
	if err != nil || row == nil {
		t.Fatalf("GetState: %v", err)
	}
	if row.State.Stability <= 10.0 {
		t.Errorf("Stability = %v, want > 10.0", row.State.Stability)
	}
}

func TestConsolidateMemoryWithExpiredTag(t *testing.T) {
	store, manager := newTestManager(t)
	now := time.Now()

	state := types.FsrsState{Stability: 10.0, Difficulty: 5.0, LastReview: &now, Reps: 1}
	if err := store.SaveState("mem-1", state, false, nil); err != nil {
		t.Fatalf("SaveState: %v", err)
	}

	tag := types.NewSynapticTag("mem-1", now.Add(-4*time.Hour))
	if err := store.SaveSynapticTag(tag); err != nil {
		t.Fatalf("SaveSynapticTag: %v", err)
	}

	result, err := manager.Consolidate(now)
	if err != nil {
		t.Fatalf("Consolidate: %v", err)
	}

	if result.Consolidated != 0 {
		t.Errorf("Consolidated = %d, want 0", result.Consolidated)
	}
	if result.Unconsolidated != 1 {
		t.Errorf("Unconsolidated = %d, want 1", result.Unconsolidated)
	}

	phase, err := store.GetConsolidationPhase("mem-1")
	if err != nil || phase == nil || *phase != types.PhaseEarly {
		t.Fatalf("expected Early phase, got %v err=%v", phase, err)
	}

	row, err := store.GetState("mem-1")
	if err != nil || row == nil {
		t.Fatalf("GetState: %v", err)
	}
	if row.State.Stability >= 10.0 {
		t.Errorf("Stability = %v, want < 10.0 (penalized)", row.State.Stability)
	}
}

func TestConsolidateMemoryWithValidTagNoPRP(t *testing.T) {
	store, manager := newTestManager(t)
	now := time.Now()

	state := types.FsrsState{Stability: 10.0, Difficulty: 5.0, LastReview: &now, Reps: 1}
	if err := store.SaveState("mem-1", state, false, nil); err != nil {
		t.Fatalf("SaveState: %v", err)
	}

	tag := types.NewSynapticTag("mem-1", now.Add(-10*time.Minute))
	if err := store.SaveSynapticTag(tag); err != nil {
		t.Fatalf("SaveSynapticTag: %v", err)
	}

	result, err := manager.Consolidate(now)
	if err != nil {
		t.Fatalf("Consolidate: %v", err)
	}

	if result.Consolidated != 0 || result.Unconsolidated != 0 || result.Skipped != 1 {
		t.Errorf("expected only skipped=1, got %+v", result)
	}

	phase, err := store.GetConsolidationPhase("mem-1")
	if err != nil || phase == nil || *phase != types.PhaseImmediate {
		t.Fatalf("expected Immediate phase, got %v err=%v", phase, err)
	}
}

func TestTimeBasedAdvancementEarlyToLate(t *testing.T) {
	store, manager := newTestManager(t)
	now := time.Now()
	oldDate := now.Add(-30 * time.Hour)

	state := types.FsrsState{Stability: 10.0, Difficulty: 5.0, LastReview: &now, Reps: 1}
	if err := store.SaveState("mem-1", state, false, &oldDate); err != nil {
		t.Fatalf("SaveState: %v", err)
	}
	if _, err := store.UpdateConsolidationPhase("mem-1", types.PhaseEarly); err != nil {
		t.Fatalf("UpdateConsolidationPhase: %v", err)
	}

	result, err := manager.Consolidate(now)
	if err != nil {
		t.Fatalf("Consolidate: %v", err)
	}
	if result.Advanced != 1 {
		t.Errorf("Advanced = %d, want 1", result.Advanced)
	}

	phase, err := store.GetConsolidationPhase("mem-1")
	if err != nil || phase == nil || *phase != types.PhaseLate {
		t.Fatalf("expected Late phase, got %v err=%v", phase, err)
	}
}

func TestTimeBasedAdvancementLateToConsolidated(t *testing.T) {
	store, manager := newTestManager(t)
	now := time.Now()
	oldDate := now.Add(-80 * time.Hour)

	state := types.FsrsState{Stability: 10.0, Difficulty: 5.0, LastReview: &now, Reps: 1}
	if err := store.SaveState("mem-1", state, false, &oldDate); err != nil {
		t.Fatalf("SaveState: %v", err)
	}
	if _, err := store.UpdateConsolidationPhase("mem-1", types.PhaseLate); err != nil {
		t.Fatalf("UpdateConsolidationPhase: %v", err)
	}

	result, err := manager.Consolidate(now)
	if err != nil {
		t.Fatalf("Consolidate: %v", err)
	}
	if result.Advanced != 1 {
		t.Errorf("Advanced = %d, want 1", result.Advanced)
	}

	phase, err := store.GetConsolidationPhase("mem-1")
	if err != nil || phase == nil || *phase != types.PhaseConsolidated {
		t.Fatalf("expected Consolidated phase, got %v err=%v", phase, err)
	}
}
