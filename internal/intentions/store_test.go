package intentions

import (
	"context"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_CreateAssignsIDAndDefaults(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	due := time.Now().UTC().Add(time.Hour)
	in, err := s.Create(ctx, Intention{
		Name:        "follow up",
		TriggerType: "at",
		Trigger:     TriggerData{DueAt: due},
		ActionType:  "notify",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if in.ID == "" {
		t.Error("expected an assigned ID")
	}
	if !in.Active {
		t.Error("expected new intention to be active")
	}
}

func TestStore_DueReturnsOnlyPastTriggers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	past, _ := s.Create(ctx, Intention{Name: "past", TriggerType: "at", Trigger: TriggerData{DueAt: now.Add(-time.Minute)}, ActionType: "notify"})
	_, _ = s.Create(ctx, Intention{Name: "future", TriggerType: "at", Trigger: TriggerData{DueAt: now.Add(time.Hour)}, ActionType: "notify"})

	due, err := s.Due(ctx, now)
	if err != nil {
		t.Fatalf("Due: %v", err)
	}
	if len(due) != 1 || due[0].ID != past.ID {
		t.Errorf("Due = %+v, want only %q", due, past.ID)
	}
}

func TestStore_DueExcludesExpired(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	expiry := now.Add(-time.Minute)
	_, _ = s.Create(ctx, Intention{
		Name:        "expired",
		TriggerType: "at",
		Trigger:     TriggerData{DueAt: now.Add(-2 * time.Minute)},
		ActionType:  "notify",
		ExpiresAt:   &expiry,
	})

	due, err := s.Due(ctx, now)
	if err != nil {
		t.Fatalf("Due: %v", err)
	}
	if len(due) != 0 {
		t.Errorf("expected no due intentions, got %+v", due)
	}
}

func TestStore_MarkFiredDeactivatesOneShot(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	in, _ := s.Create(ctx, Intention{Name: "once", TriggerType: "at", Trigger: TriggerData{DueAt: now}, ActionType: "notify"})

	if err := s.MarkFired(ctx, in.ID, now, true, ""); err != nil {
		t.Fatalf("MarkFired: %v", err)
	}

	due, err := s.Due(ctx, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("Due: %v", err)
	}
	if len(due) != 0 {
		t.Errorf("expected one-shot intention to be deactivated, still due: %+v", due)
	}

	fires, err := s.Fires(ctx, in.ID)
	if err != nil {
		t.Fatalf("Fires: %v", err)
	}
	if len(fires) != 1 || !fires[0].Success {
		t.Errorf("fires = %+v, want one successful fire", fires)
	}
}

func TestStore_MarkFiredAdvancesRecurringTrigger(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	in, _ := s.Create(ctx, Intention{
		Name:        "recurring",
		TriggerType: "interval",
		Trigger:     TriggerData{DueAt: now, IntervalMinutes: 15},
		ActionType:  "notify",
	})

	if err := s.MarkFired(ctx, in.ID, now, true, ""); err != nil {
		t.Fatalf("MarkFired: %v", err)
	}

	stillDue, err := s.Due(ctx, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("Due: %v", err)
	}
	if len(stillDue) != 0 {
		t.Errorf("expected recurring intention not due yet, got %+v", stillDue)
	}

	laterDue, err := s.Due(ctx, now.Add(16*time.Minute))
	if err != nil {
		t.Fatalf("Due: %v", err)
	}
	if len(laterDue) != 1 || laterDue[0].ID != in.ID {
		t.Errorf("expected recurring intention due after interval, got %+v", laterDue)
	}
}

func TestStore_MarkFiredDeactivatesAtMaxFires(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	in, _ := s.Create(ctx, Intention{
		Name:        "limited",
		TriggerType: "interval",
		Trigger:     TriggerData{DueAt: now, IntervalMinutes: 1},
		ActionType:  "notify",
		MaxFires:    2,
	})

	if err := s.MarkFired(ctx, in.ID, now, true, ""); err != nil {
		t.Fatalf("MarkFired (1st): %v", err)
	}
	if err := s.MarkFired(ctx, in.ID, now.Add(2*time.Minute), true, ""); err != nil {
		t.Fatalf("MarkFired (2nd): %v", err)
	}

	due, err := s.Due(ctx, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("Due: %v", err)
	}
	if len(due) != 0 {
		t.Errorf("expected intention deactivated after reaching max_fires, still due: %+v", due)
	}

	fires, err := s.Fires(ctx, in.ID)
	if err != nil {
		t.Fatalf("Fires: %v", err)
	}
	if len(fires) != 2 {
		t.Errorf("expected 2 recorded fires, got %d", len(fires))
	}
}

func TestStore_MarkFiredRecordsFailureDetail(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	in, _ := s.Create(ctx, Intention{Name: "flaky", TriggerType: "at", Trigger: TriggerData{DueAt: now}, ActionType: "notify"})

	if err := s.MarkFired(ctx, in.ID, now, false, "handler unreachable"); err != nil {
		t.Fatalf("MarkFired: %v", err)
	}

	fires, err := s.Fires(ctx, in.ID)
	if err != nil {
		t.Fatalf("Fires: %v", err)
	}
	if len(fires) != 1 || fires[0].Success || fires[0].Detail != "handler unreachable" {
		t.Errorf("fires = %+v, want one failed fire with detail", fires)
	}
}
