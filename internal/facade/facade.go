// Package facade exposes the whole memory engine as a single composed API:
// add, smart_ingest, search, and the CRUD/history/reset operations a host
// application actually calls. It owns fact extraction, the opaque-index
// memory-update decision, and wiring every write through history so
// versioning stays consistent regardless of which operation touched a
// memory.
package facade

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"rook/internal/cognitive"
	"rook/internal/consolidation"
	"rook/internal/coreerr"
	"rook/internal/fsrs"
	"rook/internal/history"
	"rook/internal/ingest"
	"rook/internal/ports"
	"rook/internal/retrieval"
	"rook/internal/types"
)

// Message is one conversational turn passed to Add.
type Message struct {
	Role    string // "user" | "assistant" | "system"
	Content string
}

// MemoryType distinguishes the two kinds of durable memory the façade
// writes: general factual memories, and an agent's stored procedures.
type MemoryType string

const (
	FactualMemory    MemoryType = "factual_memory"
	ProceduralMemory MemoryType = "procedural_memory"
)

// Deps are the façade's external collaborators. GraphStore is optional: a
// nil value disables graph extraction on add and the graph wipe on reset,
// degrading gracefully rather than failing. Search does not use it.
type Deps struct {
	LLM         ports.LLM
	Embedder    ports.Embedder
	VectorStore ports.VectorStore
	GraphStore  ports.GraphStore

	Cognitive *cognitive.Store
	History   *history.Store
	Versions  *history.VersionStore
	Strength  *fsrs.SignalProcessor
	Tagger    consolidation.Tagger

	Engine *retrieval.Engine
	Gate   ingest.Gate
}

// Config tunes façade-level behavior.
type Config struct {
	// DefaultSearchLimit is used when a Search call passes limit <= 0.
	DefaultSearchLimit int
	// IncludeAgentFacts enables the second extraction pass over assistant
	// turns when Add's scope carries an AgentID.
	IncludeAgentFacts bool
}

// DefaultConfig returns the façade's default tuning.
func DefaultConfig() Config {
	return Config{DefaultSearchLimit: 10, IncludeAgentFacts: true}
}

// Memory is the composed memory engine: every public operation a host
// application calls goes through this type.
type Memory struct {
	cfg  Config
	deps Deps
}

// New returns a Memory composed from deps using cfg. A zero-value
// deps.Tagger is replaced with consolidation.WithDefaults() so callers that
// don't care about tuning novelty detection don't have to wire it by hand.
func New(cfg Config, deps Deps) *Memory {
	if deps.Tagger == (consolidation.Tagger{}) {
		deps.Tagger = consolidation.WithDefaults()
	}
	return &Memory{cfg: cfg, deps: deps}
}

// NewWithDefaults returns a Memory using DefaultConfig.
func NewWithDefaults(deps Deps) *Memory {
	return New(DefaultConfig(), deps)
}

// AddResult summarizes the outcome of one Add call: which memories were
// created, updated, or deleted as a result of reconciling extracted facts
// against what's already stored.
type AddResult struct {
	Created []types.MemoryItem
	Updated []types.MemoryItem
	Deleted []string
}

// Add extracts facts from messages (when infer is true) or stores the
// concatenated conversation verbatim (when infer is false), reconciles
// extracted facts against existing memories in scope via an opaque-index
// LLM decision, and applies the resulting ADD/UPDATE/DELETE actions.
func (m *Memory) Add(ctx context.Context, messages []Message, scope types.Scope, metadata map[string]any, infer bool, memoryType MemoryType) (AddResult, error) {
	if err := scope.Validate(); err != nil {
		return AddResult{}, err
	}
	if memoryType == "" {
		memoryType = FactualMemory
	}

	if !infer {
		content := joinMessages(messages)
		if content == "" {
			return AddResult{}, nil
		}
		item, err := m.createMemory(ctx, content, scope, metadata, memoryType)
		if err != nil {
			return AddResult{}, err
		}
		return AddResult{Created: []types.MemoryItem{item}}, nil
	}

	facts, err := extractFacts(ctx, m.deps.LLM, messages, m.cfg.IncludeAgentFacts && scope.AgentID != "")
	if err != nil {
		return AddResult{}, err
	}
	if len(facts) == 0 {
		return AddResult{}, nil
	}

	if m.deps.GraphStore != nil {
		gmsgs := make([]ports.GraphMessage, len(messages))
		for i, msg := range messages {
			gmsgs[i] = ports.GraphMessage{Role: msg.Role, Content: msg.Content}
		}
		if err := m.deps.GraphStore.Add(ctx, gmsgs, scopeFilters(scope)); err != nil {
			return AddResult{}, fmt.Errorf("facade: graph add: %w", err)
		}
	}

	existing, err := m.existingIndexed(ctx, scope)
	if err != nil {
		return AddResult{}, err
	}

	actions, err := getMemoryUpdateActions(ctx, m.deps.LLM, existing, facts)
	if err != nil {
		return AddResult{}, err
	}

	var result AddResult
	for _, action := range actions {
		switch action.Event {
		case actionAdd:
			item, err := m.createMemory(ctx, action.Text, scope, metadata, memoryType)
			if err != nil {
				return result, err
			}
			result.Created = append(result.Created, item)
		case actionUpdate:
			if action.ID == "" {
				continue
			}
			item, err := m.Update(ctx, action.ID, action.Text)
			if err != nil {
				return result, err
			}
			result.Updated = append(result.Updated, item)
		case actionDelete:
			if action.ID == "" {
				continue
			}
			if err := m.Delete(ctx, action.ID); err != nil {
				return result, err
			}
			result.Deleted = append(result.Deleted, action.ID)
		case actionNone:
			// nothing to do
		}
	}
	return result, nil
}

// existingIndexed fetches every memory in scope and assigns each an opaque
// index, the form getMemoryUpdateActions hands the LLM.
func (m *Memory) existingIndexed(ctx context.Context, scope types.Scope) ([]indexedMemory, error) {
	records, err := m.deps.VectorStore.List(ctx, scopeFilter(scope), 0)
	if err != nil {
		return nil, fmt.Errorf("facade: list existing memories: %w", err)
	}
	out := make([]indexedMemory, 0, len(records))
	for _, r := range records {
		content, _ := r.Payload["content"].(string)
		out = append(out, indexedMemory{RealID: r.ID, Data: content})
	}
	return out, nil
}

func joinMessages(messages []Message) string {
	var out string
	for i, m := range messages {
		if i > 0 {
			out += "\n"
		}
		out += m.Role + ": " + m.Content
	}
	return out
}

// createMemory embeds content, inserts it into the vector store, seeds its
// cognitive state, and appends the Add history event, returning the
// resulting item.
func (m *Memory) createMemory(ctx context.Context, content string, scope types.Scope, metadata map[string]any, memoryType MemoryType) (types.MemoryItem, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	vec, err := m.deps.Embedder.Embed(ctx, content, ports.EmbedActionAdd)
	if err != nil {
		return types.MemoryItem{}, fmt.Errorf("facade: embed new memory: %w", err)
	}

	payload := map[string]any{
		"content":      content,
		"content_hash": types.ContentHash(content),
		"user_id":      scope.UserID,
		"agent_id":     scope.AgentID,
		"run_id":       scope.RunID,
		"memory_type":  string(memoryType),
		"created_at":   now.Format(time.RFC3339),
		"updated_at":   now.Format(time.RFC3339),
	}
	for k, v := range metadata {
		payload[k] = v
	}

	if err := m.deps.VectorStore.Insert(ctx, []ports.VectorRecord{{ID: id, Vector: vec, Payload: payload}}); err != nil {
		return types.MemoryItem{}, fmt.Errorf("facade: insert memory: %w", err)
	}

	if m.deps.Cognitive != nil {
		state := types.NewFsrsState()
		if err := m.deps.Cognitive.SaveState(id, state, false, &now); err != nil {
			return types.MemoryItem{}, fmt.Errorf("facade: seed cognitive state: %w", err)
		}
		if err := m.deps.Cognitive.SaveSynapticTag(types.NewSynapticTag(id, now)); err != nil {
			return types.MemoryItem{}, fmt.Errorf("facade: tag new memory: %w", err)
		}
	}

	if m.deps.History != nil {
		if err := m.deps.History.Append(ctx, types.HistoryRecord{
			MemoryID:  id,
			Event:     types.EventAdd,
			Next:      &content,
			CreatedAt: now,
		}); err != nil {
			return types.MemoryItem{}, fmt.Errorf("facade: append history: %w", err)
		}
	}
	if m.deps.Versions != nil {
		if _, err := m.deps.Versions.Save(ctx, types.MemoryVersion{
			MemoryID:  id,
			Content:   content,
			Metadata:  metadata,
			CreatedAt: now,
			EventType: types.EventAdd,
		}); err != nil {
			return types.MemoryItem{}, fmt.Errorf("facade: save version: %w", err)
		}
	}

	return types.MemoryItem{
		ID:          id,
		Content:     content,
		ContentHash: payload["content_hash"].(string),
		Scope:       scope,
		Metadata:    metadata,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// processNoveltyBoost runs the behavioral-tagging novelty pass for a memory
// just created at now with the given encoding surprise: when surprise
// exceeds the tagger's novelty threshold, every other valid tag in the
// window around now gets PRP marked available, giving it a shot at
// consolidating on the next run regardless of its own encoding strength.
// A nil Cognitive store is a no-op, matching createMemory's degrade-without-
// a-cognitive-store behavior.
func (m *Memory) processNoveltyBoost(memoryID string, surprise float64, now time.Time) error {
	if m.deps.Cognitive == nil || !m.deps.Tagger.IsNovelEvent(surprise) {
		return nil
	}
	start, end := m.deps.Tagger.TaggingWindow(now)
	tags, err := m.deps.Cognitive.GetTagsInTimeRange(start, end)
	if err != nil {
		return fmt.Errorf("facade: load tags for novelty boost: %w", err)
	}

	outcome, updated := m.deps.Tagger.ProcessNovelEvent(surprise, now, memoryID, tags)
	if !outcome.Novel || len(outcome.BoostedIDs) == 0 {
		return nil
	}

	boosted := make(map[string]bool, len(outcome.BoostedIDs))
	for _, id := range outcome.BoostedIDs {
		boosted[id] = true
	}
	for _, tag := range updated {
		if !boosted[tag.MemoryID] {
			continue
		}
		if err := m.deps.Cognitive.SaveSynapticTag(tag); err != nil {
			return fmt.Errorf("facade: save PRP-boosted tag for %s: %w", tag.MemoryID, err)
		}
	}
	return nil
}

// AddProcedural asks the LLM to summarize messages as a stored procedure
// (a named sequence of steps an agent follows), then stores the result as
// a ProceduralMemory. Both agentID and the resulting metadata["memory_type"]
// mark the record so retrieval and Add's fact-extraction pass can
// distinguish it from ordinary factual memories.
func (m *Memory) AddProcedural(ctx context.Context, messages []Message, scope types.Scope, metadata map[string]any) (types.MemoryItem, error) {
	if scope.AgentID == "" {
		return types.MemoryItem{}, fmt.Errorf("facade: procedural memory requires an agent_id scope")
	}
	if err := scope.Validate(); err != nil {
		return types.MemoryItem{}, err
	}

	llmMessages := make([]ports.GenerateMessage, 0, len(messages)+2)
	llmMessages = append(llmMessages, ports.GenerateMessage{Role: "system", Content: proceduralMemoryPrompt})
	for _, msg := range messages {
		llmMessages = append(llmMessages, ports.GenerateMessage{Role: msg.Role, Content: msg.Content})
	}
	llmMessages = append(llmMessages, ports.GenerateMessage{
		Role:    "user",
		Content: "Summarize the above as a procedure this assistant should follow in similar situations.",
	})

	result, err := m.deps.LLM.Generate(ctx, llmMessages, ports.GenerateOptions{})
	if err != nil {
		return types.MemoryItem{}, fmt.Errorf("facade: generate procedural memory: %w", err)
	}
	content := stripCodeFences(result.Content)

	if metadata == nil {
		metadata = map[string]any{}
	}
	metadata["memory_type"] = string(ProceduralMemory)

	return m.createMemory(ctx, content, scope, metadata, ProceduralMemory)
}

const proceduralMemoryPrompt = `You are a Procedure Organizer for an AI assistant. Given a conversation, extract a
clear, reusable procedure: the steps the assistant took (or should take) to accomplish the task at
hand, written so it can be followed again in a similar situation. Respond with plain text, no
preamble.`

func scopeFilters(scope types.Scope) map[string]string {
	out := map[string]string{}
	if scope.UserID != "" {
		out["user_id"] = scope.UserID
	}
	if scope.AgentID != "" {
		out["agent_id"] = scope.AgentID
	}
	if scope.RunID != "" {
		out["run_id"] = scope.RunID
	}
	return out
}

func scopeFilter(scope types.Scope) *ports.Filter {
	var conds []ports.Filter
	if scope.UserID != "" {
		conds = append(conds, ports.Cond("user_id", ports.OpEq, scope.UserID))
	}
	if scope.AgentID != "" {
		conds = append(conds, ports.Cond("agent_id", ports.OpEq, scope.AgentID))
	}
	if scope.RunID != "" {
		conds = append(conds, ports.Cond("run_id", ports.OpEq, scope.RunID))
	}
	if len(conds) == 0 {
		return nil
	}
	f := ports.And(conds...)
	return &f
}

func notFoundErr(id string) error {
	return coreerr.NotFound("memory", id)
}
