package intentions

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

type recordingHandler struct {
	mu    sync.Mutex
	fired []string
	fail  map[string]bool
}

func (h *recordingHandler) handle(ctx context.Context, in Intention) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.fired = append(h.fired, in.Name)
	if h.fail[in.Name] {
		return fmt.Errorf("handler failed for %s", in.Name)
	}
	return nil
}

func TestScheduler_TickFiresDueIntentions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	s.Create(ctx, Intention{Name: "due-now", TriggerType: "at", Trigger: TriggerData{DueAt: now.Add(-time.Minute)}, ActionType: "notify"})
	s.Create(ctx, Intention{Name: "not-yet", TriggerType: "at", Trigger: TriggerData{DueAt: now.Add(time.Hour)}, ActionType: "notify"})

	h := &recordingHandler{fail: map[string]bool{}}
	sched := NewScheduler(s, h.handle)

	fired, err := sched.Tick(ctx, now)
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if fired != 1 {
		t.Errorf("fired = %d, want 1", fired)
	}
	if len(h.fired) != 1 || h.fired[0] != "due-now" {
		t.Errorf("handler invoked for %v, want [due-now]", h.fired)
	}
}

func TestScheduler_TickRecordsHandlerFailureButContinues(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	s.Create(ctx, Intention{Name: "fails", TriggerType: "at", Trigger: TriggerData{DueAt: now}, ActionType: "notify"})
	s.Create(ctx, Intention{Name: "succeeds", TriggerType: "at", Trigger: TriggerData{DueAt: now}, ActionType: "notify"})

	h := &recordingHandler{fail: map[string]bool{"fails": true}}
	sched := NewScheduler(s, h.handle)

	fired, err := sched.Tick(ctx, now)
	if fired != 2 {
		t.Errorf("fired = %d, want 2 (both attempted)", fired)
	}
	if err == nil {
		t.Error("expected the handler error to be surfaced")
	}
}

func TestScheduler_NoHandlerMarksFireAsFailed(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	in, _ := s.Create(ctx, Intention{Name: "unhandled", TriggerType: "at", Trigger: TriggerData{DueAt: now}, ActionType: "notify"})

	sched := NewScheduler(s, nil)
	if _, err := sched.Tick(ctx, now); err == nil {
		t.Error("expected an error when no handler is configured")
	}

	fires, err := s.Fires(ctx, in.ID)
	if err != nil {
		t.Fatalf("Fires: %v", err)
	}
	if len(fires) != 1 || fires[0].Success {
		t.Errorf("fires = %+v, want one failed fire", fires)
	}
}

func TestScheduler_TickWithNoDueIntentionsIsNoop(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	s.Create(ctx, Intention{Name: "future", TriggerType: "at", Trigger: TriggerData{DueAt: now.Add(time.Hour)}, ActionType: "notify"})

	h := &recordingHandler{fail: map[string]bool{}}
	sched := NewScheduler(s, h.handle)

	fired, err := sched.Tick(ctx, now)
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if fired != 0 {
		t.Errorf("fired = %d, want 0", fired)
	}
}
