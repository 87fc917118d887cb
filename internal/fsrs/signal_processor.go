package fsrs

import (
	"sync"

	"rook/internal/types"
)

// StrengthSignal is a pending FSRS grade update for the named memory.
// DrainPending hands queued signals to its caller; nothing in this module
// drains the queue or applies the grades to scheduler state.
type StrengthSignal struct {
	MemoryID string
	Grade    types.Grade
}

// SignalProcessor queues strength signals produced by façade-level events
// (most notably a contradiction resolution) for a consumer to drain and
// apply, rather than updating FSRS state inline during the write that
// discovered the signal.
type SignalProcessor struct {
	mu      sync.Mutex
	pending []StrengthSignal
}

// NewSignalProcessor returns an empty processor.
func NewSignalProcessor() *SignalProcessor {
	return &SignalProcessor{}
}

// RecordContradiction enqueues the pair of grade updates a resolved
// contradiction implies: the superseded memory is graded Again (it was
// wrong), the winning memory is graded Good (it was reinforced).
func (p *SignalProcessor) RecordContradiction(winner, loser string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending = append(p.pending, StrengthSignal{MemoryID: loser, Grade: types.GradeAgain})
	p.pending = append(p.pending, StrengthSignal{MemoryID: winner, Grade: types.GradeGood})
}

// Record enqueues an arbitrary strength signal.
func (p *SignalProcessor) Record(memoryID string, grade types.Grade) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending = append(p.pending, StrengthSignal{MemoryID: memoryID, Grade: grade})
}

// DrainPending returns and clears every queued signal.
func (p *SignalProcessor) DrainPending() []StrengthSignal {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := p.pending
	p.pending = nil
	return out
}

// Len reports how many signals are currently queued.
func (p *SignalProcessor) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}
