// Package ingest decides, for a new utterance, whether it duplicates,
// refines, contradicts, or is genuinely novel relative to a scope's existing
// memories. This is the prediction-error framing from the original engine:
// surprise is a scalar approximation of how much a new observation violates
// what's already stored, and that surprise drives the downstream decision.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"

	"gonum.org/v1/gonum/floats"

	"rook/internal/ports"
	"rook/internal/types"
)

// Decision is the gate's classification of a new utterance.
type Decision string

const (
	DecisionSkip      Decision = "skip"
	DecisionCreate    Decision = "create"
	DecisionUpdate    Decision = "update"
	DecisionSupersede Decision = "supersede"
)

// Layer records which detection layer produced the decision.
type Layer string

const (
	LayerExact        Layer = "exact"
	LayerSemantic     Layer = "semantic"
	LayerContradiction Layer = "contradiction"
	LayerNovel        Layer = "novel"
)

// Config tunes the gate's thresholds.
type Config struct {
	SemanticDupThreshold float64
	RefineThreshold      float64
}

// DefaultConfig returns the gate's default thresholds.
func DefaultConfig() Config {
	return Config{SemanticDupThreshold: 0.92, RefineThreshold: 0.80}
}

// Candidate is an existing memory the gate compares against, carrying its
// cached embedding so Layer 2 never needs to re-embed stored content.
type Candidate struct {
	MemoryID  string
	Content   string
	Embedding []float32
}

// Result is the gate's verdict on one piece of new content.
type Result struct {
	Decision        Decision
	Surprise        float64
	Layer           Layer
	RelatedMemoryID string
	Reason          string
}

// Deps are the gate's external collaborators. Contradiction is optional: a
// nil value degrades Layer 3 to "no contradiction detected" rather than
// failing the evaluation.
type Deps struct {
	Embedder      ports.Embedder
	Contradiction ports.LLM
}

// Gate implements the three-layer novelty/contradiction detector.
type Gate struct {
	cfg  Config
	deps Deps
}

// New returns a Gate with cfg and deps.
func New(cfg Config, deps Deps) Gate {
	return Gate{cfg: cfg, deps: deps}
}

// WithDefaults returns a Gate using DefaultConfig.
func WithDefaults(deps Deps) Gate {
	return New(DefaultConfig(), deps)
}

// Evaluate classifies content against existing, scope-filtered memories.
// Embedder failure is propagated (fatal); a contradiction-check failure (or
// a nil Contradiction dependency) degrades Layer 3 rather than failing the
// whole evaluation.
func (g Gate) Evaluate(ctx context.Context, content string, existing []Candidate) (Result, error) {
	hash := types.ContentHash(content)
	for _, c := range existing {
		if types.ContentHash(c.Content) == hash {
			return Result{
				Decision:        DecisionSkip,
				Surprise:        0,
				Layer:           LayerExact,
				RelatedMemoryID: c.MemoryID,
				Reason:          "exact content match",
			}, nil
		}
	}

	if g.deps.Embedder == nil {
		return Result{}, fmt.Errorf("ingest: no embedder configured")
	}
	vec, err := g.deps.Embedder.Embed(ctx, content, ports.EmbedActionAdd)
	if err != nil {
		return Result{}, fmt.Errorf("ingest: embed content: %w", err)
	}

	var topSim float64 = -1
	var topCandidate Candidate
	for _, c := range existing {
		if len(c.Embedding) == 0 {
			continue
		}
		sim := cosineSimilarity(vec, c.Embedding)
		if sim > topSim {
			topSim = sim
			topCandidate = c
		}
	}

	if topSim < 0 {
		return Result{
			Decision: DecisionCreate,
			Surprise: 1.0,
			Layer:    LayerNovel,
			Reason:   "no existing memories in scope",
		}, nil
	}

	if topSim >= g.cfg.SemanticDupThreshold {
		return Result{
			Decision:        DecisionSkip,
			Surprise:        1 - topSim,
			Layer:           LayerSemantic,
			RelatedMemoryID: topCandidate.MemoryID,
			Reason:          "semantic near-duplicate",
		}, nil
	}

	if topSim >= g.cfg.RefineThreshold {
		contradicts, checked := g.checkContradiction(ctx, content, topCandidate.Content)
		if checked && contradicts {
			surprise := 1 - topSim
			if surprise < 0.5 {
				surprise = 0.5
			}
			return Result{
				Decision:        DecisionSupersede,
				Surprise:        surprise,
				Layer:           LayerContradiction,
				RelatedMemoryID: topCandidate.MemoryID,
				Reason:          "contradicts existing memory",
			}, nil
		}
		return Result{
			Decision:        DecisionUpdate,
			Surprise:        1 - topSim,
			Layer:           LayerContradiction,
			RelatedMemoryID: topCandidate.MemoryID,
			Reason:          "refines existing memory",
		}, nil
	}

	return Result{
		Decision: DecisionCreate,
		Surprise: 1 - topSim,
		Layer:    LayerNovel,
		Reason:   "novel relative to existing memories",
	}, nil
}

const contradictionPrompt = `Does the NEW statement contradict the EXISTING statement? Answer with a JSON
object: {"contradicts": true|false, "rationale": "..."}.

EXISTING: %s
NEW: %s`

// checkContradiction asks the LLM whether newContent contradicts
// existingContent. The second return value is false when no contradiction
// dependency is configured or the call fails, signalling the caller to treat
// the check as "not performed" rather than "no".
func (g Gate) checkContradiction(ctx context.Context, newContent, existingContent string) (contradicts bool, checked bool) {
	if g.deps.Contradiction == nil {
		return false, false
	}
	result, err := g.deps.Contradiction.Generate(ctx, []ports.GenerateMessage{
		{Role: "user", Content: fmt.Sprintf(contradictionPrompt, existingContent, newContent)},
	}, ports.GenerateOptions{ResponseFormat: ports.ResponseFormat{Kind: "json"}})
	if err != nil {
		return false, false
	}
	var parsed struct {
		Contradicts bool `json:"contradicts"`
	}
	if err := json.Unmarshal([]byte(result.Content), &parsed); err != nil {
		return false, false
	}
	return parsed.Contradicts, true
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	af := make([]float64, len(a))
	bf := make([]float64, len(b))
	for i := range a {
		af[i] = float64(a[i])
		bf[i] = float64(b[i])
	}
	dot := floats.Dot(af, bf)
	normA := floats.Norm(af, 2)
	normB := floats.Norm(bf, 2)
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (normA * normB)
}
