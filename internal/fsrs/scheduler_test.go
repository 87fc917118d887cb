package fsrs

import (
	"testing"
	"time"

	"rook/internal/types"
)

func TestRetrievability_NewMemory(t *testing.T) {
	s := NewScheduler()
	state := types.NewFsrsState()
	if got := s.Retrievability(state, time.Now()); got != 1.0 {
		t.Errorf("Retrievability(new) = %v, want 1.0", got)
	}
}

func TestRetrievability_InRange(t *testing.T) {
	s := NewScheduler()
	lastReview := time.Now().Add(-10 * 24 * time.Hour)
	state := types.FsrsState{Stability: 5.0, Difficulty: 5.0, LastReview: &lastReview}
	r := s.Retrievability(state, time.Now())
	if r < 0 || r > 1 {
		t.Errorf("Retrievability = %v, want in [0,1]", r)
	}
	// Elapsed > stability should push retrievability below 0.9.
	if r >= 0.9 {
		t.Errorf("Retrievability = %v, want < 0.9 for elapsed > stability", r)
	}
}

func TestRetrievability_DecaysOverTime(t *testing.T) {
	s := NewScheduler()
	now := time.Now()
	recent := now.Add(-1 * 24 * time.Hour)
	distant := now.Add(-30 * 24 * time.Hour)
	state := types.FsrsState{Stability: 10.0, Difficulty: 5.0}

	stateRecent := state
	stateRecent.LastReview = &recent
	stateDistant := state
	stateDistant.LastReview = &distant

	rRecent := s.Retrievability(stateRecent, now)
	rDistant := s.Retrievability(stateDistant, now)
	if rDistant >= rRecent {
		t.Errorf("expected retrievability to decay: recent=%v distant=%v", rRecent, rDistant)
	}
}

func TestUpdate_FirstReview_Again(t *testing.T) {
	s := NewScheduler()
	state := types.NewFsrsState()
	next := s.Update(state, types.GradeAgain, 0, time.Now())
	if next.Reps != 1 {
		t.Errorf("Reps = %d, want 1", next.Reps)
	}
	if next.Lapses != 1 {
		t.Errorf("Lapses = %d, want 1", next.Lapses)
	}
	if next.LastReview == nil {
		t.Error("expected LastReview to be set")
	}
}

func TestUpdate_FirstReview_Good(t *testing.T) {
	s := NewScheduler()
	state := types.NewFsrsState()
	next := s.Update(state, types.GradeGood, 0, time.Now())
	if next.Reps != 1 {
		t.Errorf("Reps = %d, want 1", next.Reps)
	}
	if next.Lapses != 0 {
		t.Errorf("Lapses = %d, want 0", next.Lapses)
	}
	if next.Stability <= 0 {
		t.Errorf("Stability = %v, want > 0", next.Stability)
	}
}

func TestUpdate_SuccessGrowsStability(t *testing.T) {
	s := NewScheduler()
	lastReview := time.Now().Add(-3 * 24 * time.Hour)
	state := types.FsrsState{Stability: 5.0, Difficulty: 5.0, LastReview: &lastReview, Reps: 2}

	next := s.Update(state, types.GradeGood, 3, time.Now())
	if next.Stability <= state.Stability {
		t.Errorf("Stability did not grow: before=%v after=%v", state.Stability, next.Stability)
	}
}

func TestUpdate_LapseShrinksStability(t *testing.T) {
	s := NewScheduler()
	lastReview := time.Now().Add(-3 * 24 * time.Hour)
	state := types.FsrsState{Stability: 5.0, Difficulty: 5.0, LastReview: &lastReview, Reps: 2}

	next := s.Update(state, types.GradeAgain, 3, time.Now())
	if next.Stability >= state.Stability {
		t.Errorf("Stability did not shrink on lapse: before=%v after=%v", state.Stability, next.Stability)
	}
	if next.Lapses != state.Lapses+1 {
		t.Errorf("Lapses = %d, want %d", next.Lapses, state.Lapses+1)
	}
}

func TestUpdate_DifficultyStaysInRange(t *testing.T) {
	s := NewScheduler()
	state := types.NewFsrsState()
	now := time.Now()
	for i := 0; i < 50; i++ {
		state = s.Update(state, types.GradeAgain, 1, now)
		if state.Difficulty < 1 || state.Difficulty > 10 {
			t.Fatalf("difficulty out of range: %v", state.Difficulty)
		}
		now = now.Add(24 * time.Hour)
	}
}

func TestArchivalConfig_ThresholdBoundary(t *testing.T) {
	cfg := DefaultArchivalConfig()
	now := time.Now()
	createdAt := now.AddDate(0, 0, -60)

	if cfg.IsCandidate(0.1, createdAt, now) {
		t.Error("exactly at threshold should not be a candidate")
	}
	if !cfg.IsCandidate(0.099, createdAt, now) {
		t.Error("just below threshold should be a candidate")
	}
}

func TestArchivalConfig_AgeBoundary(t *testing.T) {
	cfg := DefaultArchivalConfig()
	now := time.Now()

	created30 := now.AddDate(0, 0, -30)
	if !cfg.IsCandidate(0.05, created30, now) {
		t.Error("exactly 30 days old should be a candidate")
	}

	created29 := now.AddDate(0, 0, -29)
	if cfg.IsCandidate(0.05, created29, now) {
		t.Error("29 days old should not be a candidate")
	}
}

func TestUpdateStorage_DiminishingReturns(t *testing.T) {
	dual := types.NewDualStrength()
	dual.StorageStrength = 0
	dual = UpdateStorage(dual, types.GradeGood, 0)
	afterFirst := dual.StorageStrength

	dual2 := UpdateStorage(dual, types.GradeGood, 1)
	incrementSecond := dual2.StorageStrength - afterFirst

	dual3 := UpdateStorage(dual2, types.GradeGood, 2)
	incrementThird := dual3.StorageStrength - dual2.StorageStrength

	if incrementThird >= incrementSecond {
		t.Errorf("expected diminishing returns: second=%v third=%v", incrementSecond, incrementThird)
	}
}

func TestUpdateStorage_GradeOrdering(t *testing.T) {
	zero := types.DualStrength{}
	again := UpdateStorage(zero, types.GradeAgain, 0)
	hard := UpdateStorage(zero, types.GradeHard, 0)
	good := UpdateStorage(zero, types.GradeGood, 0)
	easy := UpdateStorage(zero, types.GradeEasy, 0)

	if !(again.StorageStrength < hard.StorageStrength &&
		hard.StorageStrength < good.StorageStrength &&
		good.StorageStrength < easy.StorageStrength) {
		t.Errorf("grade ordering violated: again=%v hard=%v good=%v easy=%v",
			again.StorageStrength, hard.StorageStrength, good.StorageStrength, easy.StorageStrength)
	}
}

func TestUpdateRetrieval_GradeDrivesReset(t *testing.T) {
	dual := types.NewDualStrength()

	easyDual := UpdateRetrieval(dual, 0.5, types.GradeEasy)
	if easyDual.RetrievalStrength <= 0.8 {
		t.Errorf("expected high retrieval after Easy, got %v", easyDual.RetrievalStrength)
	}

	againDual := UpdateRetrieval(dual, 0.5, types.GradeAgain)
	if againDual.RetrievalStrength >= 0.5 {
		t.Errorf("expected low retrieval after Again, got %v", againDual.RetrievalStrength)
	}
}
