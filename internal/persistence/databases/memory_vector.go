package databases

import (
	"context"
	"math"
	"sort"
	"sync"

	"rook/internal/coreerr"
	"rook/internal/ports"
)

// memoryVector is a process-local, mutex-guarded ports.VectorStore: the
// default backend for development and for anything that doesn't need its
// memories to survive a restart.
type memoryVector struct {
	mu         sync.RWMutex
	collection string
	dimensions int
	records    map[string]ports.VectorRecord
}

// NewMemoryVector returns an empty in-memory vector store named collection.
func NewMemoryVector(collection string, dimensions int) ports.VectorStore {
	return &memoryVector{collection: collection, dimensions: dimensions, records: make(map[string]ports.VectorRecord)}
}

func (m *memoryVector) CreateCollection(_ context.Context, name string, dimensions int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.collection = name
	m.dimensions = dimensions
	return nil
}

func (m *memoryVector) Insert(_ context.Context, records []ports.VectorRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range records {
		m.records[r.ID] = cloneRecord(r)
	}
	return nil
}

func (m *memoryVector) Search(_ context.Context, vector []float32, limit int, filter *ports.Filter) ([]ports.VectorSearchResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if limit <= 0 {
		limit = 10
	}
	qnorm := norm(vector)
	out := make([]ports.VectorSearchResult, 0, len(m.records))
	for id, r := range m.records {
		if !evaluateFilter(filter, r.Payload) {
			continue
		}
		out = append(out, ports.VectorSearchResult{
			ID:      id,
			Score:   cosine(vector, r.Vector, qnorm),
			Payload: cloneMap(r.Payload),
			Vector:  cloneVector(r.Vector),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memoryVector) Get(_ context.Context, id string) (ports.VectorRecord, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.records[id]
	if !ok {
		return ports.VectorRecord{}, false, nil
	}
	return cloneRecord(r), true, nil
}

func (m *memoryVector) Update(_ context.Context, id string, vector []float32, payload map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[id]; !ok {
		return coreerr.NotFound("vector_record", id)
	}
	m.records[id] = cloneRecord(ports.VectorRecord{ID: id, Vector: vector, Payload: payload})
	return nil
}

func (m *memoryVector) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, id)
	return nil
}

func (m *memoryVector) List(_ context.Context, filter *ports.Filter, limit int) ([]ports.VectorRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ports.VectorRecord, 0, len(m.records))
	for _, r := range m.records {
		if !evaluateFilter(filter, r.Payload) {
			continue
		}
		out = append(out, cloneRecord(r))
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *memoryVector) DeleteCollection(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if name != m.collection {
		return nil
	}
	m.records = make(map[string]ports.VectorRecord)
	return nil
}

func (m *memoryVector) CollectionInfo(_ context.Context, name string) (ports.CollectionInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return ports.CollectionInfo{Name: m.collection, Dimensions: m.dimensions, Count: len(m.records)}, nil
}

func (m *memoryVector) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = make(map[string]ports.VectorRecord)
	return nil
}

func (m *memoryVector) CollectionName() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.collection
}

func cloneRecord(r ports.VectorRecord) ports.VectorRecord {
	return ports.VectorRecord{ID: r.ID, Vector: cloneVector(r.Vector), Payload: cloneMap(r.Payload)}
}

func cloneVector(v []float32) []float32 {
	cp := make([]float32, len(v))
	copy(cp, v)
	return cp
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func norm(a []float32) float64 {
	var s float64
	for _, x := range a {
		s += float64(x) * float64(x)
	}
	return math.Sqrt(s)
}

func dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var s float64
	for i := 0; i < n; i++ {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

func cosine(a, b []float32, anorm float64) float64 {
	if anorm == 0 {
		anorm = norm(a)
	}
	bnorm := norm(b)
	if anorm == 0 || bnorm == 0 {
		return 0
	}
	return dot(a, b) / (anorm * bnorm)
}
