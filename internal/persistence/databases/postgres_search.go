package databases

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"rook/internal/retrieval"
)

// pgSearch is a Postgres tsvector-backed full-text search index, for
// deployments that would rather not run a separate search engine alongside
// their vector store.
type pgSearch struct {
	pool *pgxpool.Pool
}

// NewPostgresSearch opens (creating if necessary) a tsvector search table.
func NewPostgresSearch(pool *pgxpool.Pool) (FullTextSearch, error) {
	ctx := context.Background()
	_, err := pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS fulltext_docs (
  id TEXT PRIMARY KEY,
  body TEXT NOT NULL,
  metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
  tsv TSVECTOR GENERATED ALWAYS AS (to_tsvector('english', body)) STORED
);
`)
	if err != nil {
		return nil, fmt.Errorf("create fulltext_docs table: %w", err)
	}
	if _, err := pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS fulltext_docs_tsv ON fulltext_docs USING GIN(tsv)`); err != nil {
		return nil, fmt.Errorf("create tsvector index: %w", err)
	}
	return &pgSearch{pool: pool}, nil
}

func (p *pgSearch) Index(ctx context.Context, id string, text string, metadata map[string]string) error {
	_, err := p.pool.Exec(ctx, `
INSERT INTO fulltext_docs(id, body, metadata) VALUES($1, $2, $3)
ON CONFLICT (id) DO UPDATE SET body=EXCLUDED.body, metadata=EXCLUDED.metadata
`, id, text, metadata)
	return err
}

func (p *pgSearch) Remove(ctx context.Context, id string) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM fulltext_docs WHERE id=$1`, id)
	return err
}

func (p *pgSearch) Search(ctx context.Context, query string, limit int) ([]retrieval.BM25Hit, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := p.pool.Query(ctx, `
SELECT id, ts_rank(tsv, plainto_tsquery('english', $1)) AS score
FROM fulltext_docs
WHERE tsv @@ plainto_tsquery('english', $1)
ORDER BY score DESC
LIMIT $2
`, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]retrieval.BM25Hit, 0, limit)
	for rows.Next() {
		var hit retrieval.BM25Hit
		if err := rows.Scan(&hit.MemoryID, &hit.Score); err != nil {
			return nil, err
		}
		out = append(out, hit)
	}
	return out, rows.Err()
}

func (p *pgSearch) Close() {
	p.pool.Close()
}
