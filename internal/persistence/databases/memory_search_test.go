package databases

import (
	"context"
	"testing"
)

func TestMemorySearch_IndexAndSearch(t *testing.T) {
	ctx := context.Background()
	s := NewMemorySearch()

	if err := s.Index(ctx, "1", "the quick brown fox jumps over the lazy dog", nil); err != nil {
		t.Fatalf("Index: %v", err)
	}
	if err := s.Index(ctx, "2", "completely unrelated text about oceans", nil); err != nil {
		t.Fatalf("Index: %v", err)
	}

	hits, err := s.Search(ctx, "quick fox", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 || hits[0].MemoryID != "1" {
		t.Fatalf("hits = %+v", hits)
	}
}

func TestMemorySearch_RemoveDropsFromIndex(t *testing.T) {
	ctx := context.Background()
	s := NewMemorySearch()
	_ = s.Index(ctx, "1", "hello world", nil)

	if err := s.Remove(ctx, "1"); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	hits, err := s.Search(ctx, "hello", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("hits = %+v, want none", hits)
	}
}

func TestMemorySearch_NoMatchesReturnsEmpty(t *testing.T) {
	ctx := context.Background()
	s := NewMemorySearch()
	_ = s.Index(ctx, "1", "hello world", nil)

	hits, err := s.Search(ctx, "nonexistent", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("hits = %+v, want none", hits)
	}
}
