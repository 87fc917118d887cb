// Package types holds the data model shared across the memory engine:
// memory items, their FSRS/STC cognitive state, graph entities and
// relationships, and the history/versioning records.
package types

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"math"
	"strings"
	"time"
)

// Scope identifies the owning session of a memory. At least one field must
// be set; isolation is by this tuple, never by process.
type Scope struct {
	UserID  string `json:"user_id,omitempty"`
	AgentID string `json:"agent_id,omitempty"`
	RunID   string `json:"run_id,omitempty"`
}

// Validate enforces that at least one scope field is set.
func (s Scope) Validate() error {
	if s.UserID == "" && s.AgentID == "" && s.RunID == "" {
		return fmt.Errorf("scope: at least one of user_id, agent_id, run_id must be set")
	}
	return nil
}

// Intersect returns the scope shared by two endpoints; a relationship's
// scope is the intersection of its endpoints' scopes.
func (s Scope) Intersect(o Scope) Scope {
	out := Scope{}
	if s.UserID == o.UserID {
		out.UserID = s.UserID
	}
	if s.AgentID == o.AgentID {
		out.AgentID = s.AgentID
	}
	if s.RunID == o.RunID {
		out.RunID = s.RunID
	}
	return out
}

// Matches reports whether m is within scope s: every field s sets must be
// equal on m; fields s leaves blank are wildcards.
func (s Scope) Matches(m Scope) bool {
	if s.UserID != "" && s.UserID != m.UserID {
		return false
	}
	if s.AgentID != "" && s.AgentID != m.AgentID {
		return false
	}
	if s.RunID != "" && s.RunID != m.RunID {
		return false
	}
	return true
}

// NormalizeContent trims and case-folds content for exact-hash comparison.
func NormalizeContent(content string) string {
	return strings.ToLower(strings.TrimSpace(content))
}

// ContentHash returns the MD5 hex digest of the normalized content. MD5 is
// used here as a cheap exact-duplicate fingerprint, not a security hash.
func ContentHash(content string) string {
	sum := md5.Sum([]byte(NormalizeContent(content)))
	return hex.EncodeToString(sum[:])
}

// MemoryItem is the durable unit of long-term memory.
type MemoryItem struct {
	ID            string                 `json:"id"`
	Content       string                 `json:"content"`
	ContentHash   string                 `json:"content_hash"`
	Scope         Scope                  `json:"scope"`
	Metadata      map[string]any         `json:"metadata,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
	UpdatedAt     time.Time              `json:"updated_at"`
	Score         *float64               `json:"score,omitempty"`
	DualStrength  *DualStrength          `json:"dual_strength,omitempty"`
	FsrsState     *FsrsState             `json:"fsrs_state,omitempty"`
	IsKey         bool                   `json:"is_key"`
	SupersededBy  string                 `json:"superseded_by,omitempty"`
	SupersededAt  *time.Time             `json:"superseded_at,omitempty"`
	Embedding     []float32              `json:"-"`
}

// Grade is the FSRS review outcome.
type Grade int

const (
	GradeAgain Grade = 1
	GradeHard  Grade = 2
	GradeGood  Grade = 3
	GradeEasy  Grade = 4
)

func (g Grade) String() string {
	switch g {
	case GradeAgain:
		return "again"
	case GradeHard:
		return "hard"
	case GradeGood:
		return "good"
	case GradeEasy:
		return "easy"
	default:
		return "unknown"
	}
}

// FsrsState is the per-memory FSRS-6 scheduling state.
type FsrsState struct {
	Stability  float64    `json:"stability"`
	Difficulty float64    `json:"difficulty"`
	LastReview *time.Time `json:"last_review,omitempty"`
	Reps       uint32     `json:"reps"`
	Lapses     uint32     `json:"lapses"`
}

// NewFsrsState returns the default brand-new state (difficulty default 5).
func NewFsrsState() FsrsState {
	return FsrsState{Stability: 0.0, Difficulty: 5.0}
}

// DualStrength is Bjork's storage/retrieval strength pair.
type DualStrength struct {
	StorageStrength   float64 `json:"storage_strength"`
	RetrievalStrength float64 `json:"retrieval_strength"`
}

// NewDualStrength returns the default (0.5, 1.0) pair.
func NewDualStrength() DualStrength {
	return DualStrength{StorageStrength: 0.5, RetrievalStrength: 1.0}
}

// ConsolidationPhase is the ordered post-encoding lifecycle stage. Ordered as
// an int so phase comparisons (monotonicity checks) are plain int compares.
type ConsolidationPhase int

const (
	PhaseImmediate ConsolidationPhase = iota
	PhaseEarly
	PhaseLate
	PhaseConsolidated
)

func (p ConsolidationPhase) String() string {
	switch p {
	case PhaseImmediate:
		return "immediate"
	case PhaseEarly:
		return "early"
	case PhaseLate:
		return "late"
	case PhaseConsolidated:
		return "consolidated"
	default:
		return "unknown"
	}
}

// ParsePhase parses the string form stored in SQLite.
func ParsePhase(s string) (ConsolidationPhase, error) {
	switch s {
	case "immediate":
		return PhaseImmediate, nil
	case "early":
		return PhaseEarly, nil
	case "late":
		return PhaseLate, nil
	case "consolidated":
		return PhaseConsolidated, nil
	default:
		return 0, fmt.Errorf("unknown consolidation phase %q", s)
	}
}

// Next returns the next phase in the state machine, or the same phase if
// already terminal (Consolidated).
func (p ConsolidationPhase) Next() ConsolidationPhase {
	if p >= PhaseConsolidated {
		return PhaseConsolidated
	}
	return p + 1
}

// SynapticTag is the STC tag attached to a memory in its Immediate phase.
type SynapticTag struct {
	MemoryID        string     `json:"memory_id"`
	InitialStrength float64    `json:"initial_strength"`
	Tau             float64    `json:"tau"` // minutes
	TaggedAt        time.Time  `json:"tagged_at"`
	PrpAvailable    bool       `json:"prp_available"`
	PrpAvailableAt  *time.Time `json:"prp_available_at,omitempty"`
}

// NewSynapticTag returns a tag with the spec defaults (strength 0.8, tau 60m).
func NewSynapticTag(memoryID string, taggedAt time.Time) SynapticTag {
	return SynapticTag{
		MemoryID:        memoryID,
		InitialStrength: 0.8,
		Tau:             60,
		TaggedAt:        taggedAt,
	}
}

// StrengthAt returns the tag's strength at time t:
// initial_strength * exp(-(t - tagged_at_minutes)/tau).
func (t SynapticTag) StrengthAt(at time.Time) float64 {
	elapsedMinutes := at.Sub(t.TaggedAt).Minutes()
	if elapsedMinutes < 0 {
		elapsedMinutes = 0
	}
	return t.InitialStrength * expDecay(elapsedMinutes/t.Tau)
}

// IsValidAt reports whether the tag's strength at t is at least threshold.
func (t SynapticTag) IsValidAt(at time.Time, threshold float64) bool {
	return t.StrengthAt(at) >= threshold
}

// CanConsolidateAt reports whether the tag is both valid and PRP-captured.
func (t SynapticTag) CanConsolidateAt(at time.Time, threshold float64) bool {
	return t.IsValidAt(at, threshold) && t.PrpAvailable
}

// WithPRPAvailable returns a copy of the tag with PRP marked available at t.
func (t SynapticTag) WithPRPAvailable(at time.Time) SynapticTag {
	t.PrpAvailable = true
	t.PrpAvailableAt = &at
	return t
}

func expDecay(x float64) float64 {
	return math.Exp(-x)
}

// GraphEntityType enumerates the entity kinds the graph store recognizes.
type GraphEntityType string

const (
	EntityPerson       GraphEntityType = "person"
	EntityOrganization GraphEntityType = "organization"
	EntityLocation     GraphEntityType = "location"
	EntityProject      GraphEntityType = "project"
	EntityConcept      GraphEntityType = "concept"
	EntityEvent        GraphEntityType = "event"
	EntityCategory     GraphEntityType = "category"
)

// GraphEntity is a node in the knowledge graph.
type GraphEntity struct {
	DBID       string          `json:"db_id"`
	Name       string          `json:"name"`
	Type       GraphEntityType `json:"type"`
	Properties map[string]any  `json:"properties,omitempty"`
	Scope      Scope           `json:"scope"`
}

// GraphRelationType enumerates the relationship kinds the graph store
// recognizes.
type GraphRelationType string

const (
	RelKnows               GraphRelationType = "knows"
	RelWorksAt             GraphRelationType = "works_at"
	RelLivesIn             GraphRelationType = "lives_in"
	RelLocatedIn           GraphRelationType = "located_in"
	RelPartOf              GraphRelationType = "part_of"
	RelRelatedTo           GraphRelationType = "related_to"
	RelCreatedBy           GraphRelationType = "created_by"
	RelParticipatedIn      GraphRelationType = "participated_in"
	RelMentionedIn         GraphRelationType = "mentioned_in"
	RelBelongsToCategory   GraphRelationType = "belongs_to_category"
	RelSubcategoryOf       GraphRelationType = "subcategory_of"
)

// GraphRelationship is a directed, weighted edge between two entities. Both
// endpoints must exist; scope is the intersection of endpoint scopes.
type GraphRelationship struct {
	SourceID string            `json:"source_id"`
	TargetID string            `json:"target_id"`
	Type     GraphRelationType `json:"type"`
	Weight   float64           `json:"weight"`
	Scope    Scope             `json:"scope"`
}

// HistoryEventType enumerates the append-only history log's event kinds.
type HistoryEventType string

const (
	EventAdd    HistoryEventType = "Add"
	EventUpdate HistoryEventType = "Update"
	EventDelete HistoryEventType = "Delete"
)

// HistoryRecord is one append-only log entry for a memory.
type HistoryRecord struct {
	ID        string           `json:"id"`
	MemoryID  string           `json:"memory_id"`
	Event     HistoryEventType `json:"event"`
	Prev      *string          `json:"prev,omitempty"`
	Next      *string          `json:"next,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt *time.Time       `json:"updated_at,omitempty"`
	ActorID   string           `json:"actor_id,omitempty"`
	Role      string           `json:"role,omitempty"`
}

// MemoryVersion is a point-in-time snapshot of a memory.
type MemoryVersion struct {
	VersionID         string           `json:"version_id"`
	MemoryID          string           `json:"memory_id"`
	VersionNumber     int              `json:"version_number"`
	Content           string           `json:"content"`
	Metadata          map[string]any   `json:"metadata,omitempty"`
	FsrsSnapshot      *FsrsState       `json:"fsrs_snapshot,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
	EventType         HistoryEventType `json:"event_type"`
	ChangeDescription string           `json:"change_description,omitempty"`
	ChangedBy         string           `json:"changed_by,omitempty"`
}
