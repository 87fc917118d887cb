package runtime

import (
	"context"
	"testing"
	"time"

	"rook/internal/cognitive"
	"rook/internal/consolidation"
	"rook/internal/intentions"
)

func TestRuntime_RunsConsolidationOnStartThenStopsOnCancel(t *testing.T) {
	store, err := cognitive.Open(":memory:")
	if err != nil {
		t.Fatalf("cognitive.Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	manager := consolidation.NewManagerWithDefaults(store)

	rt := New(Config{
		ConsolidationEnabled:  true,
		RunConsolidationNow:   true,
		ConsolidationInterval: time.Hour,
	}, manager, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := rt.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestRuntime_SkipsDisabledLoops(t *testing.T) {
	rt := New(Config{}, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := rt.Run(ctx); err != nil {
		t.Fatalf("Run with no enabled loops should return nil promptly, got: %v", err)
	}
}

func TestRuntime_IntentionLoopFiresDueIntentions(t *testing.T) {
	store, err := intentions.Open(":memory:")
	if err != nil {
		t.Fatalf("intentions.Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	now := time.Now().UTC()
	if _, err := store.Create(ctx, intentions.Intention{
		Name:        "ping",
		TriggerType: "at",
		Trigger:     intentions.TriggerData{DueAt: now.Add(-time.Minute)},
		ActionType:  "notify",
	}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	fired := make(chan string, 1)
	scheduler := intentions.NewScheduler(store, func(ctx context.Context, in intentions.Intention) error {
		fired <- in.Name
		return nil
	})

	rt := New(Config{
		IntentionsEnabled: true,
		IntentionInterval: 10 * time.Millisecond,
	}, nil, scheduler)

	runCtx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- rt.Run(runCtx) }()

	select {
	case name := <-fired:
		if name != "ping" {
			t.Errorf("fired intention = %q, want ping", name)
		}
	case <-time.After(150 * time.Millisecond):
		t.Fatal("timed out waiting for intention to fire")
	}

	cancel()
	<-done
}
