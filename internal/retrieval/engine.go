package retrieval

import (
	"context"
	"fmt"
	"time"

	"rook/internal/graph"
	"rook/internal/ports"
)

// Retrieve runs the configured mode end-to-end: fetch each enabled signal,
// fuse, dedup, and truncate to cfg.Limit.
func (e *Engine) Retrieve(ctx context.Context, queryText string, queryEmbedding []float32, cfg Config) ([]Result, error) {
	if cfg.Limit <= 0 {
		cfg.Limit = 10
	}
	if cfg.OversampleFactor <= 0 {
		cfg.OversampleFactor = 3
	}
	fetchLimit := cfg.Limit * cfg.OversampleFactor

	wantVector, wantBM25, wantActivation, wantFSRS := enabledSignals(cfg.Mode)

	var (
		vectorHits []ports.VectorSearchResult
		bm25Hits   []BM25Hit
		activated  []graph.Activated
	)

	if wantVector {
		if e.Vector == nil {
			return nil, fmt.Errorf("retrieval: vector store required for mode %q", cfg.Mode)
		}
		hits, err := e.Vector.Search(ctx, queryEmbedding, fetchLimit, &cfg.Scope)
		if err != nil {
			return nil, fmt.Errorf("retrieval: vector search: %w", err)
		}
		vectorHits = hits
	}

	if wantBM25 && e.BM25 != nil {
		hits, err := e.BM25.Search(ctx, queryText, fetchLimit)
		if err != nil {
			return nil, fmt.Errorf("retrieval: bm25 search: %w", err)
		}
		bm25Hits = hits
	}

	if wantActivation && e.Graph != nil {
		seedCount := activationSeedCount(cfg.Mode)
		if seedCount > len(vectorHits) {
			seedCount = len(vectorHits)
		}
		seeds := make([]graph.Activated, 0, seedCount)
		for i := 0; i < seedCount; i++ {
			seeds = append(seeds, graph.Activated{ID: vectorHits[i].ID, Activation: vectorHits[i].Score})
		}
		if len(seeds) > 0 {
			activated = graph.Spread(e.Graph, seeds, e.SpreadCfg)
		}
	}

	normalizedBM25 := normalizeByMax(bm25Hits)

	candidates := mergeSignals(vectorHits, normalizedBM25, activated)

	if wantFSRS && e.Retrievability != nil {
		now := time.Now().Unix()
		for id, c := range candidates {
			if r, ok := e.Retrievability.RetrievabilityAt(id, now); ok {
				v := r
				c.Signals.FSRS = &v
				candidates[id] = c
			}
		}
	}

	var fused []Result
	switch cfg.Mode {
	case ModeStandard:
		fused = FuseRRF(candidates, cfg.RRFK)
	case ModePrecise, ModeCognitive:
		wv, wb, wa, wf := defaultLinearWeights(cfg.Mode)
		fused = FuseLinear(candidates, wv, wb, wa, wf)
	default:
		fused = FuseIdentity(candidates)
	}

	if cfg.DedupThreshold > 0 {
		fused = Dedup(fused, cfg.DedupThreshold)
	}

	if len(fused) > cfg.Limit {
		fused = fused[:cfg.Limit]
	}
	return fused, nil
}

func normalizeByMax(hits []BM25Hit) []BM25Hit {
	if len(hits) == 0 {
		return hits
	}
	max := hits[0].Score
	for _, h := range hits {
		if h.Score > max {
			max = h.Score
		}
	}
	if max <= 0 {
		return hits
	}
	out := make([]BM25Hit, len(hits))
	for i, h := range hits {
		out[i] = BM25Hit{MemoryID: h.MemoryID, Score: h.Score / max}
	}
	return out
}

func mergeSignals(vector []ports.VectorSearchResult, bm25 []BM25Hit, activated []graph.Activated) map[string]Result {
	out := make(map[string]Result)

	get := func(id string) Result {
		if r, ok := out[id]; ok {
			return r
		}
		return Result{MemoryID: id}
	}

	for i, v := range vector {
		r := get(v.ID)
		score := v.Score
		r.Signals.Vector = &score
		r.Embedding = v.Vector
		r.vectorRank = i + 1
		out[v.ID] = r
	}
	for i, b := range bm25 {
		r := get(b.MemoryID)
		score := b.Score
		r.Signals.BM25 = &score
		r.bm25Rank = i + 1
		out[b.MemoryID] = r
	}
	for i, a := range activated {
		r := get(a.ID)
		score := a.Activation
		r.Signals.Activation = &score
		r.activationRank = i + 1
		out[a.ID] = r
	}
	return out
}
