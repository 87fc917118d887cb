// Package ports defines the narrow abstract interfaces to the engine's
// external collaborators: the embedding model, the LLM, the vector-store
// backend, and the graph-store backend. Concrete providers are out of this
// package's scope; it specifies shape only.
package ports

import "context"

// EmbedAction is advisory: it routes to task-specific models where the
// provider supports it (e.g. separate "add" vs "search" embedding models).
type EmbedAction string

const (
	EmbedActionAdd    EmbedAction = "add"
	EmbedActionUpdate EmbedAction = "update"
	EmbedActionSearch EmbedAction = "search"
	EmbedActionQuery  EmbedAction = "query"
)

// Embedder embeds text into a fixed-dimension vector space.
type Embedder interface {
	Embed(ctx context.Context, text string, action EmbedAction) ([]float32, error)
	Dimensions() int
}

// ResponseFormat constrains the LLM's output shape.
type ResponseFormat struct {
	Kind       string // "text" | "json" | "json_schema"
	JSONSchema map[string]any
}

// GenerateOptions configures one LLM call.
type GenerateOptions struct {
	Temperature    float64
	MaxTokens      int
	TopP           float64
	ResponseFormat ResponseFormat
}

// GenerateMessage is one turn of the LLM conversation.
type GenerateMessage struct {
	Role    string // "system" | "user" | "assistant"
	Content string
}

// ToolCall is a tool invocation the LLM requested.
type ToolCall struct {
	Name string
	Args string // raw JSON
	ID   string
}

// Usage reports token accounting for a generate call.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// GenerateResult is the LLM's response to a Generate call.
type GenerateResult struct {
	Content   string
	ToolCalls []ToolCall
	Usage     *Usage
}

// LLM is the narrow contract the gate (contradiction detection) and the
// façade (fact extraction) use. Streaming/tool-enabled variants are
// specified the same way the teacher's llm.Provider does it, generalized to
// a plain content+tool-call contract rather than a specific provider SDK.
type LLM interface {
	Generate(ctx context.Context, messages []GenerateMessage, opts GenerateOptions) (GenerateResult, error)
}

// Op is a filter comparison operator.
type Op string

const (
	OpEq         Op = "eq"
	OpNe         Op = "ne"
	OpGt         Op = "gt"
	OpGte        Op = "gte"
	OpLt         Op = "lt"
	OpLte        Op = "lte"
	OpIn         Op = "in"
	OpNin        Op = "nin"
	OpContains   Op = "contains"
	OpIcontains  Op = "icontains"
	OpBetween    Op = "between"
	OpIsNull     Op = "is_null"
	OpIsNotNull  Op = "is_not_null"
	OpExists     Op = "exists"
	OpNotExists  Op = "not_exists"
	OpWildcard   Op = "wildcard"
)

// Filter is the vector/graph store port's filter grammar:
//
//	Filter ::= Condition(field, Op, Value) | And([Filter]) | Or([Filter]) | Not(Filter)
//
// Exactly one of the fields below is populated per node, selected by Kind.
type Filter struct {
	Kind string // "condition" | "and" | "or" | "not"

	// Condition fields.
	Field string
	Op    Op
	Value any // for Between, a [2]any{min, max}

	// Combinator fields.
	Filters []Filter // And/Or operands, or the single Not operand at index 0
}

// Cond builds a leaf condition filter.
func Cond(field string, op Op, value any) Filter {
	return Filter{Kind: "condition", Field: field, Op: op, Value: value}
}

// Between builds a leaf range condition.
func Between(field string, min, max any) Filter {
	return Filter{Kind: "condition", Field: field, Op: OpBetween, Value: [2]any{min, max}}
}

// And combines filters conjunctively.
func And(filters ...Filter) Filter { return Filter{Kind: "and", Filters: filters} }

// Or combines filters disjunctively.
func Or(filters ...Filter) Filter { return Filter{Kind: "or", Filters: filters} }

// Not negates a filter.
func Not(f Filter) Filter { return Filter{Kind: "not", Filters: []Filter{f}} }

// VectorRecord is one row to upsert into the vector store.
type VectorRecord struct {
	ID       string
	Vector   []float32
	Payload  map[string]any
}

// VectorSearchResult is one KNN hit.
type VectorSearchResult struct {
	ID      string
	Score   float64 // similarity, higher is closer
	Payload map[string]any
	Vector  []float32 // populated when the caller needs it for dedup
}

// CollectionInfo reports backend-side collection metadata.
type CollectionInfo struct {
	Name       string
	Dimensions int
	Count      int
}

// VectorStore is the CRUD + KNN port over an opaque backend.
type VectorStore interface {
	CreateCollection(ctx context.Context, name string, dimensions int) error
	Insert(ctx context.Context, records []VectorRecord) error
	Search(ctx context.Context, vector []float32, limit int, filter *Filter) ([]VectorSearchResult, error)
	Get(ctx context.Context, id string) (VectorRecord, bool, error)
	Update(ctx context.Context, id string, vector []float32, payload map[string]any) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter *Filter, limit int) ([]VectorRecord, error)
	DeleteCollection(ctx context.Context, name string) error
	CollectionInfo(ctx context.Context, name string) (CollectionInfo, error)
	Reset(ctx context.Context) error
	CollectionName() string
}

// GraphMessage is one utterance the graph-store port extracts entities from.
// Entity/relationship extraction itself is an external collaborator; this
// port only specifies the request/response shape.
type GraphMessage struct {
	Role    string
	Content string
}

// GraphStore is the port over the entity/relationship extraction and
// storage backend.
type GraphStore interface {
	Add(ctx context.Context, messages []GraphMessage, filters map[string]string) error
	Search(ctx context.Context, query string, filters map[string]string, limit int) ([]string, error)
	DeleteAll(ctx context.Context, filters map[string]string) error
	GetAll(ctx context.Context, filters map[string]string) ([]string, error)
}
