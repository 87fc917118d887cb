package retrieval

import "testing"

func TestDedup_DropsNearDuplicateOfHigherScored(t *testing.T) {
	results := []Result{
		{MemoryID: "a", Score: 0.9, Embedding: []float32{1, 0, 0}},
		{MemoryID: "b", Score: 0.8, Embedding: []float32{1, 0.01, 0}},
	}
	kept := Dedup(results, 0.95)
	if len(kept) != 1 || kept[0].MemoryID != "a" {
		t.Errorf("expected only a to survive, got %+v", kept)
	}
}

func TestDedup_KeepsDissimilarCandidates(t *testing.T) {
	results := []Result{
		{MemoryID: "a", Score: 0.9, Embedding: []float32{1, 0, 0}},
		{MemoryID: "b", Score: 0.8, Embedding: []float32{0, 1, 0}},
	}
	kept := Dedup(results, 0.95)
	if len(kept) != 2 {
		t.Errorf("expected both to survive (orthogonal), got %+v", kept)
	}
}

func TestDedup_KeepsCandidatesWithoutEmbeddings(t *testing.T) {
	results := []Result{
		{MemoryID: "a", Score: 0.9},
		{MemoryID: "b", Score: 0.8},
	}
	kept := Dedup(results, 0.95)
	if len(kept) != 2 {
		t.Errorf("expected candidates without embeddings to always be kept, got %+v", kept)
	}
}

func TestDedup_ZeroThresholdIsNoop(t *testing.T) {
	results := []Result{
		{MemoryID: "a", Score: 0.9, Embedding: []float32{1, 0, 0}},
		{MemoryID: "b", Score: 0.8, Embedding: []float32{1, 0, 0}},
	}
	kept := Dedup(results, 0)
	if len(kept) != 2 {
		t.Errorf("zero threshold should disable dedup, got %+v", kept)
	}
}
