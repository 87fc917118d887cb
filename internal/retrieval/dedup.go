package retrieval

import "gonum.org/v1/gonum/floats"

// Dedup drops, in descending-score order, any candidate whose embedding is
// cosine-similar (>= threshold) to an already-kept candidate. This is a
// correctness pass, distinct from the teacher's count-based Diversify
// reranker: a dropped candidate's signals are discarded, not merged into
// the kept one. Candidates without an embedding are always kept, since
// similarity can't be computed for them.
func Dedup(results []Result, threshold float64) []Result {
	if threshold <= 0 {
		return results
	}
	kept := make([]Result, 0, len(results))
	for _, candidate := range results {
		if len(candidate.Embedding) == 0 {
			kept = append(kept, candidate)
			continue
		}
		duplicate := false
		for _, existing := range kept {
			if len(existing.Embedding) == 0 {
				continue
			}
			if cosineSimilarity(candidate.Embedding, existing.Embedding) >= threshold {
				duplicate = true
				break
			}
		}
		if !duplicate {
			kept = append(kept, candidate)
		}
	}
	return kept
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
