package cognitive

import (
	"time"

	"rook/internal/fsrs"
)

// Retrievability adapts a Store to the retrieval engine's Retrievability
// port by looking up the stored FSRS state and running it through the
// forgetting-curve scheduler at the requested instant.
type Retrievability struct {
	store     *Store
	scheduler fsrs.Scheduler
}

// NewRetrievability returns a Retrievability backed by store, using
// scheduler to evaluate the forgetting curve.
func NewRetrievability(store *Store, scheduler fsrs.Scheduler) *Retrievability {
	return &Retrievability{store: store, scheduler: scheduler}
}

// RetrievabilityAt satisfies retrieval.Retrievability. now is a unix
// timestamp (seconds); a missing or unreadable state reports ok=false so
// the caller drops the FSRS signal for that memory rather than treating it
// as maximally retrievable.
func (r *Retrievability) RetrievabilityAt(memoryID string, now int64) (float64, bool) {
	row, err := r.store.GetState(memoryID)
	if err != nil || row == nil {
		return 0, false
	}
	return r.scheduler.Retrievability(row.State, time.Unix(now, 0).UTC()), true
}
