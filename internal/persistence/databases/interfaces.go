// Package databases wires the pluggable vector-store and full-text-search
// backends a deployment picks by configuration: in-process maps for local
// development, Postgres (pgvector / tsvector) or Qdrant for anything that
// needs to survive a restart. Both backend families implement the engine's
// ports directly (ports.VectorStore, retrieval.BM25Searcher) rather than a
// narrower local interface, so NewManager's result plugs straight into the
// façade and retrieval engine with no further adaptation. The legacy
// GraphDB abstraction this package used to carry is gone: internal/graph's
// SQLite-backed store plus its ports.GraphStore adapter already cover every
// graph operation the engine needs.
package databases

import (
	"context"

	"rook/internal/ports"
	"rook/internal/retrieval"
)

// FullTextSearch is the pluggable full-text indexing/search backend. Its
// Search method also satisfies retrieval.BM25Searcher.
type FullTextSearch interface {
	Index(ctx context.Context, id string, text string, metadata map[string]string) error
	Remove(ctx context.Context, id string) error
	Search(ctx context.Context, query string, limit int) ([]retrieval.BM25Hit, error)
}

// Manager holds the concrete backends resolved from configuration.
type Manager struct {
	Search FullTextSearch
	Vector ports.VectorStore
}

// Close shuts down any pooled backend connections. A no-op for memory
// backends.
func (m Manager) Close() {
	if c, ok := any(m.Search).(interface{ Close() }); ok {
		c.Close()
	}
	if c, ok := any(m.Vector).(interface{ Close() }); ok {
		c.Close()
	}
}
