package history

import (
	"context"
	"testing"
	"time"

	"rook/internal/types"
)

func newTestHistoryStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestVersionStore(t *testing.T) *VersionStore {
	t.Helper()
	v, err := OpenVersions(":memory:")
	if err != nil {
		t.Fatalf("OpenVersions: %v", err)
	}
	t.Cleanup(func() { v.Close() })
	return v
}

func TestHistoryStore_AppendAndForMemory(t *testing.T) {
	s := newTestHistoryStore(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	if err := s.Append(ctx, types.HistoryRecord{MemoryID: "m1", Event: types.EventAdd, CreatedAt: now}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := s.Append(ctx, types.HistoryRecord{MemoryID: "m1", Event: types.EventUpdate, CreatedAt: now.Add(time.Minute)}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	records, err := s.ForMemory(ctx, "m1")
	if err != nil {
		t.Fatalf("ForMemory: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].Event != types.EventAdd || records[1].Event != types.EventUpdate {
		t.Errorf("records out of order: %+v", records)
	}
}

func TestHistoryStore_EventSequenceMatchesConservationPattern(t *testing.T) {
	s := newTestHistoryStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	s.Append(ctx, types.HistoryRecord{MemoryID: "m1", Event: types.EventAdd, CreatedAt: now})
	s.Append(ctx, types.HistoryRecord{MemoryID: "m1", Event: types.EventUpdate, CreatedAt: now.Add(time.Minute)})
	s.Append(ctx, types.HistoryRecord{MemoryID: "m1", Event: types.EventUpdate, CreatedAt: now.Add(2 * time.Minute)})
	s.Append(ctx, types.HistoryRecord{MemoryID: "m1", Event: types.EventDelete, CreatedAt: now.Add(3 * time.Minute)})

	seq, err := s.EventSequence(ctx, "m1")
	if err != nil {
		t.Fatalf("EventSequence: %v", err)
	}
	want := []types.HistoryEventType{types.EventAdd, types.EventUpdate, types.EventUpdate, types.EventDelete}
	if len(seq) != len(want) {
		t.Fatalf("sequence = %v, want %v", seq, want)
	}
	for i := range want {
		if seq[i] != want[i] {
			t.Errorf("sequence[%d] = %v, want %v", i, seq[i], want[i])
		}
	}
}

func TestHistoryStore_ScopeIsolationAcrossMemories(t *testing.T) {
	s := newTestHistoryStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	s.Append(ctx, types.HistoryRecord{MemoryID: "m1", Event: types.EventAdd, CreatedAt: now})
	s.Append(ctx, types.HistoryRecord{MemoryID: "m2", Event: types.EventAdd, CreatedAt: now})

	records, err := s.ForMemory(ctx, "m1")
	if err != nil {
		t.Fatalf("ForMemory: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("expected only m1's record, got %d", len(records))
	}
}

func TestVersionStore_SaveAutoAssignsVersionNumber(t *testing.T) {
	v := newTestVersionStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	first, err := v.Save(ctx, types.MemoryVersion{MemoryID: "m1", Content: "v1", CreatedAt: now, EventType: types.EventAdd})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	second, err := v.Save(ctx, types.MemoryVersion{MemoryID: "m1", Content: "v2", CreatedAt: now.Add(time.Minute), EventType: types.EventUpdate})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	if first.VersionNumber != 1 || second.VersionNumber != 2 {
		t.Errorf("version numbers = %d, %d, want 1, 2", first.VersionNumber, second.VersionNumber)
	}
}

func TestVersionStore_ForMemoryOrdersByVersionNumber(t *testing.T) {
	v := newTestVersionStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	v.Save(ctx, types.MemoryVersion{MemoryID: "m1", Content: "v1", CreatedAt: now, EventType: types.EventAdd})
	v.Save(ctx, types.MemoryVersion{MemoryID: "m1", Content: "v2", CreatedAt: now.Add(time.Minute), EventType: types.EventUpdate})

	versions, err := v.ForMemory(ctx, "m1")
	if err != nil {
		t.Fatalf("ForMemory: %v", err)
	}
	if len(versions) != 2 || versions[0].Content != "v1" || versions[1].Content != "v2" {
		t.Errorf("versions = %+v, want ordered v1, v2", versions)
	}
}

func TestVersionStore_AtReturnsPointInTimeSnapshot(t *testing.T) {
	v := newTestVersionStore(t)
	ctx := context.Background()
	t0 := time.Now().UTC().Truncate(time.Second)

	v.Save(ctx, types.MemoryVersion{MemoryID: "m1", Content: "v1", CreatedAt: t0, EventType: types.EventAdd})
	v.Save(ctx, types.MemoryVersion{MemoryID: "m1", Content: "v2", CreatedAt: t0.Add(time.Hour), EventType: types.EventUpdate})

	snapshot, ok, err := v.At(ctx, "m1", t0.Add(30*time.Minute))
	if err != nil {
		t.Fatalf("At: %v", err)
	}
	if !ok || snapshot.Content != "v1" {
		t.Errorf("snapshot = %+v, ok=%v, want v1", snapshot, ok)
	}

	latest, ok, err := v.At(ctx, "m1", t0.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("At: %v", err)
	}
	if !ok || latest.Content != "v2" {
		t.Errorf("latest snapshot = %+v, ok=%v, want v2", latest, ok)
	}
}

func TestVersionStore_AtBeforeAnyVersionReturnsFalse(t *testing.T) {
	v := newTestVersionStore(t)
	ctx := context.Background()
	t0 := time.Now().UTC()

	v.Save(ctx, types.MemoryVersion{MemoryID: "m1", Content: "v1", CreatedAt: t0, EventType: types.EventAdd})

	_, ok, err := v.At(ctx, "m1", t0.Add(-time.Hour))
	if err != nil {
		t.Fatalf("At: %v", err)
	}
	if ok {
		t.Error("expected no snapshot before the first version")
	}
}

func TestVersionStore_MetadataAndFsrsSnapshotRoundTrip(t *testing.T) {
	v := newTestVersionStore(t)
	ctx := context.Background()

	snap := types.NewFsrsState()
	snap.Stability = 4.2
	saved, err := v.Save(ctx, types.MemoryVersion{
		MemoryID:     "m1",
		Content:      "v1",
		Metadata:     map[string]any{"source": "test"},
		FsrsSnapshot: &snap,
		CreatedAt:    time.Now().UTC(),
		EventType:    types.EventAdd,
	})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	versions, err := v.ForMemory(ctx, "m1")
	if err != nil {
		t.Fatalf("ForMemory: %v", err)
	}
	if len(versions) != 1 {
		t.Fatalf("expected 1 version, got %d", len(versions))
	}
	got := versions[0]
	if got.Metadata["source"] != "test" {
		t.Errorf("metadata = %v, want source=test", got.Metadata)
	}
	if got.FsrsSnapshot == nil || got.FsrsSnapshot.Stability != 4.2 {
		t.Errorf("fsrs snapshot = %+v, want stability 4.2", got.FsrsSnapshot)
	}
	_ = saved
}
