package fsrs

import (
	"testing"

	"rook/internal/types"
)

func TestSignalProcessor_RecordContradictionEnqueuesBoth(t *testing.T) {
	p := NewSignalProcessor()
	p.RecordContradiction("winner-id", "loser-id")

	if p.Len() != 2 {
		t.Fatalf("expected 2 pending signals, got %d", p.Len())
	}

	signals := p.DrainPending()
	if len(signals) != 2 {
		t.Fatalf("expected 2 drained signals, got %d", len(signals))
	}
	if signals[0].MemoryID != "loser-id" || signals[0].Grade != types.GradeAgain {
		t.Errorf("first signal = %+v, want loser-id/Again", signals[0])
	}
	if signals[1].MemoryID != "winner-id" || signals[1].Grade != types.GradeGood {
		t.Errorf("second signal = %+v, want winner-id/Good", signals[1])
	}
}

func TestSignalProcessor_DrainClearsQueue(t *testing.T) {
	p := NewSignalProcessor()
	p.Record("m1", types.GradeHard)
	p.DrainPending()

	if p.Len() != 0 {
		t.Errorf("expected queue empty after drain, got %d", p.Len())
	}
	if got := p.DrainPending(); len(got) != 0 {
		t.Errorf("expected second drain to be empty, got %v", got)
	}
}

func TestSignalProcessor_RecordArbitraryGrade(t *testing.T) {
	p := NewSignalProcessor()
	p.Record("m1", types.GradeEasy)

	signals := p.DrainPending()
	if len(signals) != 1 || signals[0].Grade != types.GradeEasy {
		t.Errorf("signals = %+v, want one Easy grade for m1", signals)
	}
}
