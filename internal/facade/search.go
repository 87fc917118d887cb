package facade

import (
	"context"
	"fmt"

	"rook/internal/ports"
	"rook/internal/retrieval"
	"rook/internal/types"
)

// SearchResult pairs a retrieved memory with the score and per-signal
// breakdown that produced its rank.
type SearchResult struct {
	Memory  types.MemoryItem
	Score   float64
	Signals retrieval.Signals
}

// SearchOptions configures one Search call. Rerank is accepted for
// signature parity with callers that pass it unconditionally, but this
// engine has no reranking stage wired in: no cross-encoder or LLM-judge
// port exists in this deployment, so the flag is a documented no-op rather
// than silently dropped.
type SearchOptions struct {
	Limit     int
	Filters   *ports.Filter
	Threshold float64
	Rerank    bool
	Mode      retrieval.Mode
}

// Search runs query through the retrieval engine scoped to scope, applying
// opts.Filters as an additional constraint and opts.Threshold as a
// post-fusion score cutoff.
func (m *Memory) Search(ctx context.Context, query string, scope types.Scope, opts SearchOptions) ([]SearchResult, error) {
	if m.deps.Engine == nil {
		return nil, fmt.Errorf("facade: search: no retrieval engine configured")
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = m.cfg.DefaultSearchLimit
	}
	mode := opts.Mode
	if mode == "" {
		mode = retrieval.ModeStandard
	}

	vec, err := m.deps.Embedder.Embed(ctx, query, ports.EmbedActionQuery)
	if err != nil {
		return nil, fmt.Errorf("facade: embed search query: %w", err)
	}

	cfg := retrieval.DefaultConfig(mode)
	cfg.Limit = limit
	cfg.Scope = combinedFilter(scope, opts.Filters)

	results, err := m.deps.Engine.Retrieve(ctx, query, vec, cfg)
	if err != nil {
		return nil, fmt.Errorf("facade: retrieve: %w", err)
	}

	out := make([]SearchResult, 0, len(results))
	for _, r := range results {
		if opts.Threshold > 0 && r.Score < opts.Threshold {
			continue
		}
		item, ok, err := m.deps.VectorStore.Get(ctx, r.MemoryID)
		if err != nil {
			return nil, fmt.Errorf("facade: fetch search hit %s: %w", r.MemoryID, err)
		}
		if !ok {
			continue
		}
		mi := recordToItem(item)
		score := r.Score
		mi.Score = &score
		out = append(out, SearchResult{Memory: mi, Score: r.Score, Signals: r.Signals})
	}
	return out, nil
}

func combinedFilter(scope types.Scope, extra *ports.Filter) ports.Filter {
	scopeF := scopeFilter(scope)
	switch {
	case scopeF == nil && extra == nil:
		return ports.Filter{}
	case scopeF == nil:
		return *extra
	case extra == nil:
		return *scopeF
	default:
		return ports.And(*scopeF, *extra)
	}
}
