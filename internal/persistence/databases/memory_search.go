package databases

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"

	"rook/internal/retrieval"
)

// memorySearch is a process-local inverted-index full-text search backend.
// No BM25 or full-text library appears anywhere in the reference corpus this
// module was built from, so term frequency / inverse document frequency
// scoring is implemented directly here rather than adapted from a library.
type memorySearch struct {
	mu       sync.RWMutex
	docs     map[string]searchDoc
	postings map[string]map[string]int // term -> docID -> term frequency
}

type searchDoc struct {
	text     string
	metadata map[string]string
	terms    int
}

// NewMemorySearch returns an empty in-memory full-text index.
func NewMemorySearch() FullTextSearch {
	return &memorySearch{
		docs:     make(map[string]searchDoc),
		postings: make(map[string]map[string]int),
	}
}

func (s *memorySearch) Index(_ context.Context, id string, text string, metadata map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(id)
	terms := tokenize(text)
	freq := make(map[string]int)
	for _, t := range terms {
		freq[t]++
	}
	for t, f := range freq {
		if s.postings[t] == nil {
			s.postings[t] = make(map[string]int)
		}
		s.postings[t][id] = f
	}
	s.docs[id] = searchDoc{text: text, metadata: metadata, terms: len(terms)}
	return nil
}

func (s *memorySearch) Remove(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(id)
	return nil
}

func (s *memorySearch) removeLocked(id string) {
	if _, ok := s.docs[id]; !ok {
		return
	}
	delete(s.docs, id)
	for t, postings := range s.postings {
		delete(postings, id)
		if len(postings) == 0 {
			delete(s.postings, t)
		}
	}
}

// Search scores documents with a BM25-style ranking function (k1=1.2, b=0.75)
// over the term postings.
func (s *memorySearch) Search(_ context.Context, query string, limit int) ([]retrieval.BM25Hit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 {
		limit = 10
	}
	queryTerms := tokenize(query)
	if len(queryTerms) == 0 || len(s.docs) == 0 {
		return nil, nil
	}
	const k1 = 1.2
	const b = 0.75
	avgLen := s.averageDocLength()
	scores := make(map[string]float64)
	for _, term := range queryTerms {
		postings, ok := s.postings[term]
		if !ok {
			continue
		}
		idf := inverseDocFreq(len(s.docs), len(postings))
		for docID, tf := range postings {
			doc := s.docs[docID]
			denom := float64(tf) + k1*(1-b+b*float64(doc.terms)/avgLen)
			scores[docID] += idf * (float64(tf) * (k1 + 1)) / denom
		}
	}
	out := make([]retrieval.BM25Hit, 0, len(scores))
	for id, score := range scores {
		out = append(out, retrieval.BM25Hit{MemoryID: id, Score: score})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memorySearch) averageDocLength() float64 {
	if len(s.docs) == 0 {
		return 1
	}
	total := 0
	for _, d := range s.docs {
		total += d.terms
	}
	avg := float64(total) / float64(len(s.docs))
	if avg == 0 {
		return 1
	}
	return avg
}

func inverseDocFreq(totalDocs, docFreq int) float64 {
	if docFreq == 0 {
		return 0
	}
	// +1 smoothing keeps the weight positive even when a term appears in
	// every document.
	n := float64(totalDocs)
	df := float64(docFreq)
	x := (n-df+0.5)/(df+0.5) + 1
	if x <= 0 {
		return 0
	}
	return math.Log(x)
}

func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9')
	})
	return fields
}
