package retrieval

import "sort"

// FuseRRF combines candidates by Reciprocal Rank Fusion: each source
// contributes 1/(k+rank) for its rank position, summed across sources that
// saw the candidate at all. Generalizes the teacher's two-source FuseRRF
// (full-text + vector) to the vector/BM25/activation triple Standard mode
// enables.
func FuseRRF(candidates map[string]Result, k int) []Result {
	if k <= 0 {
		k = 60
	}
	out := make([]Result, 0, len(candidates))
	for id, c := range candidates {
		var score float64
		if c.vectorRank > 0 {
			score += 1.0 / float64(k+c.vectorRank)
		}
		if c.bm25Rank > 0 {
			score += 1.0 / float64(k+c.bm25Rank)
		}
		if c.activationRank > 0 {
			score += 1.0 / float64(k+c.activationRank)
		}
		c.MemoryID = id
		c.Score = score
		out = append(out, c)
	}
	sortResults(out)
	return out
}

// FuseLinear combines candidates by a weighted sum of raw signal scores,
// normalizing the supplied weights over the signals that were actually
// requested (the non-zero weights) so they sum to 1.
func FuseLinear(candidates map[string]Result, wVector, wBM25, wActivation, wFSRS float64) []Result {
	total := wVector + wBM25 + wActivation + wFSRS
	if total <= 0 {
		total = 1
	}
	wVector /= total
	wBM25 /= total
	wActivation /= total
	wFSRS /= total

	out := make([]Result, 0, len(candidates))
	for id, c := range candidates {
		var score float64
		if c.Signals.Vector != nil {
			score += wVector * *c.Signals.Vector
		}
		if c.Signals.BM25 != nil {
			score += wBM25 * *c.Signals.BM25
		}
		if c.Signals.Activation != nil {
			score += wActivation * *c.Signals.Activation
		}
		if c.Signals.FSRS != nil {
			score += wFSRS * *c.Signals.FSRS
		}
		c.MemoryID = id
		c.Score = score
		out = append(out, c)
	}
	sortResults(out)
	return out
}

// FuseIdentity is Quick mode's "fusion": the vector score passes through
// unchanged.
func FuseIdentity(candidates map[string]Result) []Result {
	out := make([]Result, 0, len(candidates))
	for id, c := range candidates {
		c.MemoryID = id
		if c.Signals.Vector != nil {
			c.Score = *c.Signals.Vector
		}
		out = append(out, c)
	}
	sortResults(out)
	return out
}

func sortResults(results []Result) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].MemoryID < results[j].MemoryID
	})
}
