// Package retrieval implements the multi-signal retrieval engine: vector
// KNN, BM25 full-text, graph spreading activation, and FSRS retrievability
// combined under one of four modes, fused into a single ranked result list.
package retrieval

import (
	"context"

	"rook/internal/graph"
	"rook/internal/ports"
)

// Mode selects which signals are enabled and how they're fused.
type Mode string

const (
	ModeQuick     Mode = "quick"
	ModeStandard  Mode = "standard"
	ModePrecise   Mode = "precise"
	ModeCognitive Mode = "cognitive"
)

// Config tunes one retrieve call.
type Config struct {
	Mode             Mode
	Limit            int
	OversampleFactor int
	RRFK             int
	DedupThreshold   float64
	Scope            ports.Filter
}

// DefaultConfig returns engine-wide defaults for mode.
func DefaultConfig(mode Mode) Config {
	return Config{
		Mode:             mode,
		Limit:            10,
		OversampleFactor: 3,
		RRFK:             60,
		DedupThreshold:   0.95,
	}
}

// Signals carries each component score for one candidate, so callers can
// explain a ranking. A nil pointer means that signal was not computed.
type Signals struct {
	Vector     *float64
	BM25       *float64
	Activation *float64
	FSRS       *float64
}

// Result is one fused, ranked memory.
type Result struct {
	MemoryID  string
	Score     float64
	Signals   Signals
	Embedding []float32

	// ranks are 1-based source rank positions, 0 if absent from that
	// source; used by RRF fusion, not part of the public contract.
	vectorRank     int
	bm25Rank       int
	activationRank int
}

// BM25Searcher is the full-text search port the engine consults for the
// BM25 signal (Standard/Precise modes).
type BM25Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]BM25Hit, error)
}

// BM25Hit is one full-text search hit, already rank-ordered by the searcher.
type BM25Hit struct {
	MemoryID string
	Score    float64
}

// Retrievability looks up the FSRS retrievability of a memory at now.
type Retrievability interface {
	RetrievabilityAt(memoryID string, now int64) (float64, bool)
}

// Engine composes the vector store, graph store, BM25 searcher, and
// retrievability source into the four retrieval modes.
type Engine struct {
	Vector         ports.VectorStore
	Graph          *graph.Store
	BM25           BM25Searcher
	Retrievability Retrievability
	SpreadCfg      graph.SpreadingConfig
}

// NewEngine returns an Engine wired to its collaborators. bm25 and
// retrievability may be nil: modes that need them then silently drop that
// signal, same as an empty result set from a live source would.
func NewEngine(vector ports.VectorStore, g *graph.Store, bm25 BM25Searcher, retrievability Retrievability) *Engine {
	return &Engine{
		Vector:         vector,
		Graph:          g,
		BM25:           bm25,
		Retrievability: retrievability,
		SpreadCfg:      graph.DefaultSpreadingConfig(),
	}
}

func enabledSignals(mode Mode) (vector, bm25, activation, fsrs bool) {
	switch mode {
	case ModeQuick:
		return true, false, false, false
	case ModeStandard:
		return true, true, true, false
	case ModePrecise:
		return true, true, true, true
	case ModeCognitive:
		return true, false, true, true
	default:
		return true, false, false, false
	}
}

func defaultLinearWeights(mode Mode) (wv, wb, wa, wf float64) {
	switch mode {
	case ModePrecise:
		return 0.4, 0.25, 0.2, 0.15
	case ModeCognitive:
		return 0.3, 0, 0.4, 0.3
	default:
		return 1, 0, 0, 0
	}
}

func activationSeedCount(mode Mode) int {
	if mode == ModeCognitive {
		return 10
	}
	return 5
}
