package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"rook/internal/ports"
	"rook/internal/types"
)

// LLMStore adapts Store to the ports.GraphStore contract: it extracts
// entities and relationships from conversational text via an LLM and
// persists them, so the memory façade can depend on the narrow port rather
// than this package's concrete type.
type LLMStore struct {
	store *Store
	llm   ports.LLM
}

// NewLLMStore returns an LLMStore backed by store, extracting triples with
// llm.
func NewLLMStore(store *Store, llm ports.LLM) *LLMStore {
	return &LLMStore{store: store, llm: llm}
}

// Store returns the underlying concrete Store, for callers (the retrieval
// engine) that need direct entity/relationship/adjacency access beyond the
// narrow ports.GraphStore contract.
func (l *LLMStore) Store() *Store { return l.store }

type extractedTriple struct {
	Source       string `json:"source"`
	Relationship string `json:"relationship"`
	Destination  string `json:"destination"`
}

const extractionPrompt = `Extract entities and the relationships between them from the conversation below.
Return a JSON object: {"triples": [{"source": "...", "relationship": "...", "destination": "..."}]}.
Use short, normalized entity names (lowercase, singular). Only extract relationships explicitly
stated or strongly implied; do not invent facts. If nothing can be extracted, return {"triples": []}.

Conversation:
%s`

// Add extracts (source, relationship, destination) triples from messages
// via the LLM and upserts the resulting entities and relationships scoped
// by filters ("user_id"/"agent_id"/"run_id").
func (l *LLMStore) Add(ctx context.Context, messages []ports.GraphMessage, filters map[string]string) error {
	if l.llm == nil {
		return nil
	}
	scope := scopeFromFilters(filters)

	var sb strings.Builder
	for _, m := range messages {
		fmt.Fprintf(&sb, "%s: %s\n", m.Role, m.Content)
	}

	result, err := l.llm.Generate(ctx, []ports.GenerateMessage{
		{Role: "user", Content: fmt.Sprintf(extractionPrompt, sb.String())},
	}, ports.GenerateOptions{ResponseFormat: ports.ResponseFormat{Kind: "json"}})
	if err != nil {
		return fmt.Errorf("graph: extraction generate: %w", err)
	}

	var parsed struct {
		Triples []extractedTriple `json:"triples"`
	}
	if err := json.Unmarshal([]byte(result.Content), &parsed); err != nil {
		return fmt.Errorf("graph: parse extraction response: %w", err)
	}

	for _, triple := range parsed.Triples {
		if triple.Source == "" || triple.Destination == "" || triple.Relationship == "" {
			continue
		}
		srcID := l.ensureEntity(ctx, triple.Source, scope)
		dstID := l.ensureEntity(ctx, triple.Destination, scope)
		rel := types.GraphRelationship{
			SourceID: srcID,
			TargetID: dstID,
			Type:     types.GraphRelationType(normalizeRelation(triple.Relationship)),
			Weight:   1.0,
			Scope:    scope,
		}
		if err := l.store.UpsertRelationship(ctx, rel); err != nil {
			return err
		}
	}
	return nil
}

func (l *LLMStore) ensureEntity(ctx context.Context, name string, scope types.Scope) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if existing, ok := l.store.FindEntityByName(name, scope); ok {
		return existing.DBID
	}
	entity := types.GraphEntity{
		DBID:  uuid.New().String(),
		Name:  name,
		Type:  types.EntityConcept,
		Scope: scope,
	}
	_ = l.store.UpsertEntity(ctx, entity)
	return entity.DBID
}

func normalizeRelation(rel string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(rel)), " ", "_")
}

// Search returns formatted "source -[relationship]-> destination" triples
// whose source or destination name contains query (case-insensitive),
// scoped by filters, in the order GetAllScope returns relationships,
// capped at limit.
func (l *LLMStore) Search(ctx context.Context, query string, filters map[string]string, limit int) ([]string, error) {
	scope := scopeFromFilters(filters)
	_, rels := l.store.GetAllScope(scope)

	needle := strings.ToLower(query)
	var out []string
	for _, r := range rels {
		src, _ := l.store.GetEntity(r.SourceID)
		dst, _ := l.store.GetEntity(r.TargetID)
		if !strings.Contains(strings.ToLower(src.Name), needle) && !strings.Contains(strings.ToLower(dst.Name), needle) {
			continue
		}
		out = append(out, formatTriple(src.Name, string(r.Type), dst.Name))
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// DeleteAll removes every entity and relationship scoped by filters.
func (l *LLMStore) DeleteAll(ctx context.Context, filters map[string]string) error {
	return l.store.DeleteAllScope(ctx, scopeFromFilters(filters))
}

// GetAll returns every relationship scoped by filters as formatted triples.
func (l *LLMStore) GetAll(ctx context.Context, filters map[string]string) ([]string, error) {
	scope := scopeFromFilters(filters)
	_, rels := l.store.GetAllScope(scope)
	out := make([]string, 0, len(rels))
	for _, r := range rels {
		src, _ := l.store.GetEntity(r.SourceID)
		dst, _ := l.store.GetEntity(r.TargetID)
		out = append(out, formatTriple(src.Name, string(r.Type), dst.Name))
	}
	return out, nil
}

func formatTriple(source, relationship, destination string) string {
	return fmt.Sprintf("%s -[%s]-> %s", source, relationship, destination)
}

func scopeFromFilters(filters map[string]string) types.Scope {
	return types.Scope{
		UserID:  filters["user_id"],
		AgentID: filters["agent_id"],
		RunID:   filters["run_id"],
	}
}
