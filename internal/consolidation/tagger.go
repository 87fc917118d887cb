// Package consolidation implements synaptic-tagging-and-capture-based
// memory consolidation: a behavioral tagger that boosts nearby memories
// around a novel event, and a phase manager that advances memories through
// Immediate -> Early -> Late -> Consolidated.
package consolidation

import (
	"time"

	"rook/internal/types"
)

// TagConfig controls behavioral tagging window and novelty detection.
type TagConfig struct {
	WindowBefore     time.Duration
	WindowAfter      time.Duration
	NoveltyThreshold float64
	MinTagStrength   float64
}

// DefaultTagConfig returns the spec defaults: 30 minutes before a novel
// event, 2 hours after, novelty threshold 0.7, minimum tag strength 0.05.
func DefaultTagConfig() TagConfig {
	return TagConfig{
		WindowBefore:     30 * time.Minute,
		WindowAfter:      2 * time.Hour,
		NoveltyThreshold: 0.7,
		MinTagStrength:   0.05,
	}
}

// Tagger applies PRP (plasticity-related-protein) boosts to synaptic tags
// near a novel event, per the PMC4562088 behavioral-tagging model.
type Tagger struct {
	Config TagConfig
}

// NewTagger returns a Tagger with the given config.
func NewTagger(cfg TagConfig) Tagger {
	return Tagger{Config: cfg}
}

// WithDefaults returns a Tagger using DefaultTagConfig.
func WithDefaults() Tagger {
	return NewTagger(DefaultTagConfig())
}

// IsNovelEvent reports whether encodingSurprise exceeds the novelty
// threshold. Strictly greater than: exactly-at-threshold is not novel.
func (t Tagger) IsNovelEvent(encodingSurprise float64) bool {
	return encodingSurprise > t.Config.NoveltyThreshold
}

// TaggingWindow returns the (start, end) window around a novel event: the
// window is asymmetric, extending further forward than back.
func (t Tagger) TaggingWindow(novelEventTime time.Time) (time.Time, time.Time) {
	return novelEventTime.Add(-t.Config.WindowBefore), novelEventTime.Add(t.Config.WindowAfter)
}

// FilterTagsInWindow returns the tags that fall within the behavioral
// tagging window around novelEventTime and are still valid (strength at or
// above MinTagStrength at that time).
func (t Tagger) FilterTagsInWindow(tags []types.SynapticTag, novelEventTime time.Time) []types.SynapticTag {
	start, end := t.TaggingWindow(novelEventTime)
	var out []types.SynapticTag
	for _, tag := range tags {
		if tag.TaggedAt.Before(start) || tag.TaggedAt.After(end) {
			continue
		}
		if !tag.IsValidAt(novelEventTime, t.Config.MinTagStrength) {
			continue
		}
		out = append(out, tag)
	}
	return out
}

// ApplyPRPBoost marks PRP available on every tag in tags that falls within
// the tagging window around novelEventTime, is still valid, doesn't already
// have PRP, and isn't excludeMemoryID (the novel memory itself never boosts
// its own tag). Returns the updated tags (same order, same length) and the
// memory IDs that were boosted.
func (t Tagger) ApplyPRPBoost(tags []types.SynapticTag, novelEventTime time.Time, excludeMemoryID string) ([]types.SynapticTag, []string) {
	start, end := t.TaggingWindow(novelEventTime)
	var boosted []string

	out := make([]types.SynapticTag, len(tags))
	copy(out, tags)

	for i, tag := range out {
		if excludeMemoryID != "" && tag.MemoryID == excludeMemoryID {
			continue
		}
		if tag.TaggedAt.Before(start) || tag.TaggedAt.After(end) {
			continue
		}
		if !tag.IsValidAt(novelEventTime, t.Config.MinTagStrength) {
			continue
		}
		if tag.PrpAvailable {
			continue
		}
		out[i] = tag.WithPRPAvailable(novelEventTime)
		boosted = append(boosted, tag.MemoryID)
	}
	return out, boosted
}

// NoveltyOutcome describes the result of processing a potential novel event.
type NoveltyOutcome struct {
	// Novel is false when encodingSurprise did not exceed the threshold;
	// BoostedIDs is always empty in that case.
	Novel      bool
	BoostedIDs []string
}

// ProcessNovelEvent is the tagger's main entry point: checks novelty, and if
// novel, applies PRP boost to tags in the window (excluding the novel memory
// itself) and reports which memories were boosted.
func (t Tagger) ProcessNovelEvent(encodingSurprise float64, novelEventTime time.Time, novelMemoryID string, tags []types.SynapticTag) (NoveltyOutcome, []types.SynapticTag) {
	if !t.IsNovelEvent(encodingSurprise) {
		return NoveltyOutcome{Novel: false}, tags
	}
	updated, boosted := t.ApplyPRPBoost(tags, novelEventTime, novelMemoryID)
	return NoveltyOutcome{Novel: true, BoostedIDs: boosted}, updated
}
