package consolidation

import (
	"testing"
	"time"

	"rook/internal/types"
)

func tagAt(memoryID string, at time.Time) types.SynapticTag {
	return types.NewSynapticTag(memoryID, at)
}

func TestIsNovelEvent(t *testing.T) {
	tagger := WithDefaults()

	if tagger.IsNovelEvent(0.5) {
		t.Error("0.5 should not be novel")
	}
	if tagger.IsNovelEvent(0.7) {
		t.Error("exactly at threshold should not be novel")
	}
	if !tagger.IsNovelEvent(0.71) {
		t.Error("0.71 should be novel")
	}
	if !tagger.IsNovelEvent(0.9) {
		t.Error("0.9 should be novel")
	}
}

func TestTaggingWindowAsymmetric(t *testing.T) {
	tagger := WithDefaults()
	now := time.Now()

	start, end := tagger.TaggingWindow(now)

	if got := now.Sub(start); got != 30*time.Minute {
		t.Errorf("window before = %v, want 30m", got)
	}
	if got := end.Sub(now); got != 2*time.Hour {
		t.Errorf("window after = %v, want 2h", got)
	}
}

func TestFilterTagsInWindow(t *testing.T) {
	tagger := WithDefaults()
	novelTime := time.Now()

	tags := []types.SynapticTag{
		tagAt("too-old", novelTime.Add(-1*time.Hour)),
		tagAt("in-before", novelTime.Add(-15*time.Minute)),
		tagAt("at-novel", novelTime),
		tagAt("in-after", novelTime.Add(30*time.Minute)),
		tagAt("too-new", novelTime.Add(3*time.Hour)),
	}

	filtered := tagger.FilterTagsInWindow(tags, novelTime)
	ids := map[string]bool{}
	for _, tag := range filtered {
		ids[tag.MemoryID] = true
	}

	if !ids["in-before"] {
		t.Error("should include memory 15min before")
	}
	if !ids["at-novel"] {
		t.Error("should include memory at novel time")
	}
	if ids["too-old"] {
		t.Error("should exclude memory 1hr before (outside 30min window)")
	}
	if ids["too-new"] {
		t.Error("should exclude memory 3hr after (outside 2hr window)")
	}
}

func TestApplyPRPBoostExcludesNovelMemory(t *testing.T) {
	tagger := WithDefaults()
	novelTime := time.Now()

	tags := []types.SynapticTag{
		tagAt("mem-1", novelTime.Add(-10*time.Minute)),
		tagAt("novel-mem", novelTime),
		tagAt("mem-2", novelTime.Add(-5*time.Minute)),
	}

	updated, boosted := tagger.ApplyPRPBoost(tags, novelTime, "novel-mem")

	boostedSet := map[string]bool{}
	for _, id := range boosted {
		boostedSet[id] = true
	}
	if !boostedSet["mem-1"] || !boostedSet["mem-2"] {
		t.Errorf("expected mem-1 and mem-2 boosted, got %v", boosted)
	}
	if boostedSet["novel-mem"] {
		t.Error("novel-mem should not be boosted")
	}

	for _, tag := range updated {
		switch tag.MemoryID {
		case "mem-1":
			if !tag.PrpAvailable {
				t.Error("mem-1 should have PRP available")
			}
		case "novel-mem":
			if tag.PrpAvailable {
				t.Error("novel-mem should not have PRP available")
			}
		}
	}
}

func TestApplyPRPBoostSkipsAlreadyBoosted(t *testing.T) {
	tagger := WithDefaults()
	novelTime := time.Now()

	tag1 := tagAt("mem-1", novelTime.Add(-10*time.Minute)).WithPRPAvailable(novelTime.Add(-5 * time.Minute))
	tags := []types.SynapticTag{tag1, tagAt("mem-2", novelTime.Add(-5*time.Minute))}

	_, boosted := tagger.ApplyPRPBoost(tags, novelTime, "")

	if len(boosted) != 1 || boosted[0] != "mem-2" {
		t.Errorf("expected only mem-2 boosted, got %v", boosted)
	}
}

func TestApplyPRPBoostSkipsDecayedTags(t *testing.T) {
	tagger := NewTagger(TagConfig{
		WindowBefore:     3 * time.Hour,
		WindowAfter:      2 * time.Hour,
		NoveltyThreshold: 0.7,
		MinTagStrength:   0.1,
	})
	novelTime := time.Now()

	tags := []types.SynapticTag{
		tagAt("decayed", novelTime.Add(-150*time.Minute)),
		tagAt("fresh", novelTime.Add(-10*time.Minute)),
	}

	_, boosted := tagger.ApplyPRPBoost(tags, novelTime, "")

	if len(boosted) != 1 || boosted[0] != "fresh" {
		t.Errorf("expected only fresh boosted, got %v", boosted)
	}
}

func TestProcessNovelEventNotNovel(t *testing.T) {
	tagger := WithDefaults()
	novelTime := time.Now()

	tags := []types.SynapticTag{tagAt("mem-1", novelTime.Add(-10*time.Minute))}

	outcome, updated := tagger.ProcessNovelEvent(0.5, novelTime, "novel-mem", tags)

	if outcome.Novel {
		t.Error("expected Novel=false")
	}
	if len(outcome.BoostedIDs) != 0 {
		t.Errorf("expected no boosted ids, got %v", outcome.BoostedIDs)
	}
	if updated[0].PrpAvailable {
		t.Error("tag should not have been boosted")
	}
}

func TestProcessNovelEventBoosted(t *testing.T) {
	tagger := WithDefaults()
	novelTime := time.Now()

	tags := []types.SynapticTag{
		tagAt("mem-1", novelTime.Add(-10*time.Minute)),
		tagAt("mem-2", novelTime.Add(-20*time.Minute)),
	}

	outcome, updated := tagger.ProcessNovelEvent(0.9, novelTime, "novel-mem", tags)

	if !outcome.Novel {
		t.Fatal("expected Novel=true")
	}
	if len(outcome.BoostedIDs) != 2 {
		t.Errorf("expected 2 boosted, got %v", outcome.BoostedIDs)
	}
	for _, tag := range updated {
		if !tag.PrpAvailable {
			t.Errorf("expected %s to have PRP available", tag.MemoryID)
		}
	}
}
