package facade

import (
	"context"
	"testing"

	"rook/internal/retrieval"
	"rook/internal/types"
)

func TestSearch_ReturnsMatchingMemory(t *testing.T) {
	m, _ := newMemory(t, &scriptedLLM{})
	m.deps.Engine = retrieval.NewEngine(m.deps.VectorStore, nil, nil, nil)
	scope := types.Scope{UserID: "u1"}

	added, err := m.Add(context.Background(), []Message{{Role: "user", Content: "likes jazz"}}, scope, nil, false, "")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	results, err := m.Search(context.Background(), "music taste", scope, SearchOptions{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("results = %d, want 1", len(results))
	}
	if results[0].Memory.ID != added.Created[0].ID {
		t.Errorf("returned memory ID = %q, want %q", results[0].Memory.ID, added.Created[0].ID)
	}
}

func TestSearch_NoEngineConfigured(t *testing.T) {
	m, _ := newMemory(t, &scriptedLLM{})
	_, err := m.Search(context.Background(), "q", types.Scope{UserID: "u1"}, SearchOptions{})
	if err == nil {
		t.Error("expected error with no retrieval engine configured")
	}
}

func TestSearch_ThresholdFiltersLowScores(t *testing.T) {
	m, _ := newMemory(t, &scriptedLLM{})
	m.deps.Engine = retrieval.NewEngine(m.deps.VectorStore, nil, nil, nil)
	scope := types.Scope{UserID: "u1"}

	if _, err := m.Add(context.Background(), []Message{{Role: "user", Content: "likes jazz"}}, scope, nil, false, ""); err != nil {
		t.Fatalf("Add: %v", err)
	}

	results, err := m.Search(context.Background(), "q", scope, SearchOptions{Threshold: 2.0})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("results = %d, want 0 above impossible threshold", len(results))
	}
}
