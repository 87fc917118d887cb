package facade

import (
	"context"
	"fmt"
	"time"

	"rook/internal/ingest"
	"rook/internal/types"
)

// IngestOutcome reports which path SmartIngest took.
type IngestOutcome string

const (
	IngestSkipped    IngestOutcome = "skipped"
	IngestCreated    IngestOutcome = "created"
	IngestUpdated    IngestOutcome = "updated"
	IngestSuperseded IngestOutcome = "superseded"
)

// IngestResult is SmartIngest's verdict plus whichever memory resulted.
type IngestResult struct {
	Outcome  IngestOutcome
	Memory   types.MemoryItem
	Gate     ingest.Result
	RelatedID string
}

// SmartIngest runs content through the novelty/contradiction gate and
// applies whichever of skip/create/update/supersede the gate decides,
// rather than unconditionally creating a new memory. Unlike Add, it takes
// one piece of content directly rather than extracting facts from a
// conversation.
func (m *Memory) SmartIngest(ctx context.Context, content string, scope types.Scope, metadata map[string]any) (IngestResult, error) {
	if err := scope.Validate(); err != nil {
		return IngestResult{}, err
	}

	candidates, err := m.scopeCandidates(ctx, scope)
	if err != nil {
		return IngestResult{}, err
	}

	verdict, err := m.deps.Gate.Evaluate(ctx, content, candidates)
	if err != nil {
		return IngestResult{}, fmt.Errorf("facade: smart_ingest gate: %w", err)
	}

	switch verdict.Decision {
	case ingest.DecisionSkip:
		return IngestResult{Outcome: IngestSkipped, Gate: verdict, RelatedID: verdict.RelatedMemoryID}, nil

	case ingest.DecisionCreate:
		item, err := m.createMemory(ctx, content, scope, metadata, FactualMemory)
		if err != nil {
			return IngestResult{}, err
		}
		if err := m.processNoveltyBoost(item.ID, verdict.Surprise, item.CreatedAt); err != nil {
			return IngestResult{}, err
		}
		return IngestResult{Outcome: IngestCreated, Memory: item, Gate: verdict}, nil

	case ingest.DecisionUpdate:
		item, err := m.Update(ctx, verdict.RelatedMemoryID, content)
		if err != nil {
			return IngestResult{}, err
		}
		return IngestResult{Outcome: IngestUpdated, Memory: item, Gate: verdict, RelatedID: verdict.RelatedMemoryID}, nil

	case ingest.DecisionSupersede:
		return m.supersede(ctx, content, scope, metadata, verdict)

	default:
		return IngestResult{}, fmt.Errorf("facade: smart_ingest: unknown gate decision %q", verdict.Decision)
	}
}

func (m *Memory) supersede(ctx context.Context, content string, scope types.Scope, metadata map[string]any, verdict ingest.Result) (IngestResult, error) {
	newItem, err := m.createMemory(ctx, content, scope, metadata, FactualMemory)
	if err != nil {
		return IngestResult{}, err
	}
	if err := m.processNoveltyBoost(newItem.ID, verdict.Surprise, newItem.CreatedAt); err != nil {
		return IngestResult{}, err
	}

	old, ok, err := m.deps.VectorStore.Get(ctx, verdict.RelatedMemoryID)
	if err != nil {
		return IngestResult{}, fmt.Errorf("facade: get superseded memory: %w", err)
	}
	if ok {
		payload := cloneMap(old.Payload)
		now := time.Now().UTC()
		payload["superseded_by"] = newItem.ID
		payload["superseded_at"] = now.Format(time.RFC3339)
		if err := m.deps.VectorStore.Update(ctx, verdict.RelatedMemoryID, old.Vector, payload); err != nil {
			return IngestResult{}, fmt.Errorf("facade: mark memory superseded: %w", err)
		}
	}

	if m.deps.Strength != nil {
		m.deps.Strength.RecordContradiction(newItem.ID, verdict.RelatedMemoryID)
	}

	return IngestResult{
		Outcome:   IngestSuperseded,
		Memory:    newItem,
		Gate:      verdict,
		RelatedID: verdict.RelatedMemoryID,
	}, nil
}

// scopeCandidates fetches every memory in scope as ingest.Candidate,
// carrying its stored embedding so the gate's semantic-duplicate layer
// never needs to re-embed existing content.
func (m *Memory) scopeCandidates(ctx context.Context, scope types.Scope) ([]ingest.Candidate, error) {
	records, err := m.deps.VectorStore.List(ctx, scopeFilter(scope), 0)
	if err != nil {
		return nil, fmt.Errorf("facade: list candidates for smart_ingest: %w", err)
	}
	out := make([]ingest.Candidate, len(records))
	for i, r := range records {
		content, _ := r.Payload["content"].(string)
		out[i] = ingest.Candidate{MemoryID: r.ID, Content: content, Embedding: r.Vector}
	}
	return out, nil
}
