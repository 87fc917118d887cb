package databases

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"rook/internal/config"
	"rook/internal/ports"
	"rook/internal/retrieval"
)

// NewManager constructs the full-text search and vector store backends
// named by configuration. Graph storage isn't wired here: internal/graph
// owns its own SQLite-backed store and ports.GraphStore adapter, keyed off
// cfg.Graph.DSN as a filesystem path rather than a database connection
// string.
func NewManager(ctx context.Context, cfg config.DBConfig) (Manager, error) {
	var m Manager
	searchDSN := firstNonEmpty(cfg.Search.DSN, cfg.DefaultDSN)
	vectorDSN := firstNonEmpty(cfg.Vector.DSN, cfg.DefaultDSN)

	switch cfg.Search.Backend {
	case "", "memory":
		m.Search = NewMemorySearch()
	case "auto":
		if searchDSN != "" {
			if p, err := newPgPool(ctx, searchDSN); err == nil {
				if s, err := NewPostgresSearch(p); err == nil {
					m.Search = s
				} else {
					m.Search = NewMemorySearch()
				}
			} else {
				m.Search = NewMemorySearch()
			}
		} else {
			m.Search = NewMemorySearch()
		}
	case "postgres", "pg":
		if searchDSN == "" {
			return Manager{}, fmt.Errorf("search backend postgres requires DSN")
		}
		p, err := newPgPool(ctx, searchDSN)
		if err != nil {
			return Manager{}, fmt.Errorf("connect postgres (search): %w", err)
		}
		s, err := NewPostgresSearch(p)
		if err != nil {
			return Manager{}, fmt.Errorf("init postgres search: %w", err)
		}
		m.Search = s
	case "none", "disabled":
		m.Search = noopSearch{}
	default:
		return Manager{}, fmt.Errorf("unsupported search backend: %s", cfg.Search.Backend)
	}

	switch cfg.Vector.Backend {
	case "", "memory":
		m.Vector = NewMemoryVector("rook_memories", cfg.Vector.Dimensions)
	case "auto":
		if vectorDSN != "" {
			if p, err := newPgPool(ctx, vectorDSN); err == nil {
				if v, err := NewPostgresVector(p, "rook_memories", cfg.Vector.Dimensions, cfg.Vector.Metric); err == nil {
					m.Vector = v
				} else {
					m.Vector = NewMemoryVector("rook_memories", cfg.Vector.Dimensions)
				}
			} else {
				m.Vector = NewMemoryVector("rook_memories", cfg.Vector.Dimensions)
			}
		} else {
			m.Vector = NewMemoryVector("rook_memories", cfg.Vector.Dimensions)
		}
	case "postgres", "pgvector", "pg":
		if vectorDSN == "" {
			return Manager{}, fmt.Errorf("vector backend postgres requires DSN")
		}
		p, err := newPgPool(ctx, vectorDSN)
		if err != nil {
			return Manager{}, fmt.Errorf("connect postgres (vector): %w", err)
		}
		v, err := NewPostgresVector(p, "rook_memories", cfg.Vector.Dimensions, cfg.Vector.Metric)
		if err != nil {
			return Manager{}, fmt.Errorf("init postgres vector: %w", err)
		}
		m.Vector = v
	case "qdrant":
		if vectorDSN == "" {
			return Manager{}, fmt.Errorf("vector backend qdrant requires DSN")
		}
		v, err := NewQdrantVector(vectorDSN, "rook_memories", cfg.Vector.Dimensions, cfg.Vector.Metric)
		if err != nil {
			return Manager{}, fmt.Errorf("init qdrant vector: %w", err)
		}
		m.Vector = v
	case "none", "disabled":
		m.Vector = noopVector{}
	default:
		return Manager{}, fmt.Errorf("unsupported vector backend: %s", cfg.Vector.Backend)
	}
	return m, nil
}

// noopSearch and noopVector back "none" configuration, so callers don't
// need to nil-check the manager's fields.
type noopSearch struct{}

func (noopSearch) Index(context.Context, string, string, map[string]string) error { return nil }
func (noopSearch) Remove(context.Context, string) error                           { return nil }
func (noopSearch) Search(context.Context, string, int) ([]retrieval.BM25Hit, error) {
	return nil, nil
}

type noopVector struct{}

func (noopVector) CreateCollection(context.Context, string, int) error { return nil }
func (noopVector) Insert(context.Context, []ports.VectorRecord) error  { return nil }
func (noopVector) Search(context.Context, []float32, int, *ports.Filter) ([]ports.VectorSearchResult, error) {
	return nil, nil
}
func (noopVector) Get(context.Context, string) (ports.VectorRecord, bool, error) {
	return ports.VectorRecord{}, false, nil
}
func (noopVector) Update(context.Context, string, []float32, map[string]any) error { return nil }
func (noopVector) Delete(context.Context, string) error                            { return nil }
func (noopVector) List(context.Context, *ports.Filter, int) ([]ports.VectorRecord, error) {
	return nil, nil
}
func (noopVector) DeleteCollection(context.Context, string) error { return nil }
func (noopVector) CollectionInfo(context.Context, string) (ports.CollectionInfo, error) {
	return ports.CollectionInfo{}, nil
}
func (noopVector) Reset(context.Context) error { return nil }
func (noopVector) CollectionName() string      { return "" }

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func newPgPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	cfg.MaxConns = 8
	cfg.MinConns = 0
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 5 * time.Minute
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	cctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := pool.Ping(cctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}
