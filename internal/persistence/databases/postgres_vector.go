package databases

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"rook/internal/ports"
)

// pgVector is a pgvector-backed ports.VectorStore: the durable option for
// deployments that already run Postgres and would rather not stand up a
// dedicated vector database.
type pgVector struct {
	pool       *pgxpool.Pool
	collection string
	dimensions int
	metric     string // cosine|l2|ip
}

// NewPostgresVector opens (creating if necessary) a pgvector-backed
// collection table named by collection.
func NewPostgresVector(pool *pgxpool.Pool, collection string, dimensions int, metric string) (ports.VectorStore, error) {
	ctx := context.Background()
	if _, err := pool.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		return nil, fmt.Errorf("enable pgvector extension: %w", err)
	}
	p := &pgVector{pool: pool, collection: collection, dimensions: dimensions, metric: strings.ToLower(strings.TrimSpace(metric))}
	if err := p.CreateCollection(ctx, collection, dimensions); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *pgVector) tableName() string {
	return "embeddings_" + sanitizeIdent(p.collection)
}

func sanitizeIdent(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "default"
	}
	return b.String()
}

func (p *pgVector) CreateCollection(ctx context.Context, name string, dimensions int) error {
	p.collection = name
	p.dimensions = dimensions
	vecType := "vector"
	if dimensions > 0 {
		vecType = fmt.Sprintf("vector(%d)", dimensions)
	}
	_, err := p.pool.Exec(ctx, fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
  id TEXT PRIMARY KEY,
  vec %s,
  payload JSONB NOT NULL DEFAULT '{}'::jsonb
);
`, p.tableName(), vecType))
	return err
}

func (p *pgVector) Insert(ctx context.Context, records []ports.VectorRecord) error {
	for _, r := range records {
		payload, err := json.Marshal(r.Payload)
		if err != nil {
			return fmt.Errorf("marshal payload for %s: %w", r.ID, err)
		}
		_, err = p.pool.Exec(ctx, fmt.Sprintf(`
INSERT INTO %s(id, vec, payload) VALUES($1, $2::vector, $3)
ON CONFLICT (id) DO UPDATE SET vec=EXCLUDED.vec, payload=EXCLUDED.payload
`, p.tableName()), r.ID, toVectorLiteral(r.Vector), payload)
		if err != nil {
			return err
		}
	}
	return nil
}

func (p *pgVector) Update(ctx context.Context, id string, vector []float32, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload for %s: %w", id, err)
	}
	tag, err := p.pool.Exec(ctx, fmt.Sprintf(`UPDATE %s SET vec=$2::vector, payload=$3 WHERE id=$1`, p.tableName()), id, toVectorLiteral(vector), body)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("vector record %s not found", id)
	}
	return nil
}

func (p *pgVector) Delete(ctx context.Context, id string) error {
	_, err := p.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id=$1`, p.tableName()), id)
	return err
}

func (p *pgVector) Get(ctx context.Context, id string) (ports.VectorRecord, bool, error) {
	row := p.pool.QueryRow(ctx, fmt.Sprintf(`SELECT id, vec, payload FROM %s WHERE id=$1`, p.tableName()), id)
	var gotID string
	var vecLit string
	var payload []byte
	if err := row.Scan(&gotID, &vecLit, &payload); err != nil {
		if strings.Contains(err.Error(), "no rows") {
			return ports.VectorRecord{}, false, nil
		}
		return ports.VectorRecord{}, false, err
	}
	rec, err := rowToRecord(gotID, vecLit, payload)
	return rec, true, err
}

func (p *pgVector) Search(ctx context.Context, vector []float32, limit int, filter *ports.Filter) ([]ports.VectorSearchResult, error) {
	if limit <= 0 {
		limit = 10
	}
	vecLit := toVectorLiteral(vector)
	op := "<=>"
	scoreExpr := "1 - (vec <=> $1::vector)"
	switch p.metric {
	case "l2", "euclidean":
		op = "<->"
		scoreExpr = "-(vec <-> $1::vector)"
	case "ip", "dot":
		op = "<#>"
		scoreExpr = "-(vec <#> $1::vector)"
	}
	query := fmt.Sprintf(`SELECT id, %s AS score, vec, payload FROM %s ORDER BY vec %s $1::vector LIMIT $2`, scoreExpr, p.tableName(), op)
	rows, err := p.pool.Query(ctx, query, vecLit, limit*4)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]ports.VectorSearchResult, 0, limit)
	for rows.Next() {
		var id string
		var score float64
		var vecOut string
		var payloadRaw []byte
		if err := rows.Scan(&id, &score, &vecOut, &payloadRaw); err != nil {
			return nil, err
		}
		var payload map[string]any
		if err := json.Unmarshal(payloadRaw, &payload); err != nil {
			return nil, fmt.Errorf("unmarshal payload for %s: %w", id, err)
		}
		if !evaluateFilter(filter, payload) {
			continue
		}
		out = append(out, ports.VectorSearchResult{ID: id, Score: score, Payload: payload, Vector: parseVectorLiteral(vecOut)})
		if len(out) >= limit {
			break
		}
	}
	return out, rows.Err()
}

func (p *pgVector) List(ctx context.Context, filter *ports.Filter, limit int) ([]ports.VectorRecord, error) {
	query := fmt.Sprintf(`SELECT id, vec, payload FROM %s`, p.tableName())
	if limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, limit*4)
	}
	rows, err := p.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]ports.VectorRecord, 0)
	for rows.Next() {
		var id, vecLit string
		var payloadRaw []byte
		if err := rows.Scan(&id, &vecLit, &payloadRaw); err != nil {
			return nil, err
		}
		rec, err := rowToRecord(id, vecLit, payloadRaw)
		if err != nil {
			return nil, err
		}
		if !evaluateFilter(filter, rec.Payload) {
			continue
		}
		out = append(out, rec)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, rows.Err()
}

func (p *pgVector) DeleteCollection(ctx context.Context, name string) error {
	_, err := p.pool.Exec(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s`, "embeddings_"+sanitizeIdent(name)))
	return err
}

func (p *pgVector) CollectionInfo(ctx context.Context, name string) (ports.CollectionInfo, error) {
	var count int
	if err := p.pool.QueryRow(ctx, fmt.Sprintf(`SELECT count(*) FROM %s`, p.tableName())).Scan(&count); err != nil {
		return ports.CollectionInfo{}, err
	}
	return ports.CollectionInfo{Name: p.collection, Dimensions: p.dimensions, Count: count}, nil
}

func (p *pgVector) Reset(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, fmt.Sprintf(`TRUNCATE TABLE %s`, p.tableName()))
	return err
}

func (p *pgVector) CollectionName() string { return p.collection }

func (p *pgVector) Close() {
	p.pool.Close()
}

func rowToRecord(id, vecLit string, payloadRaw []byte) (ports.VectorRecord, error) {
	var payload map[string]any
	if len(payloadRaw) > 0 {
		if err := json.Unmarshal(payloadRaw, &payload); err != nil {
			return ports.VectorRecord{}, fmt.Errorf("unmarshal payload for %s: %w", id, err)
		}
	}
	return ports.VectorRecord{ID: id, Vector: parseVectorLiteral(vecLit), Payload: payload}, nil
}

func toVectorLiteral(v []float32) string {
	if len(v) == 0 {
		return "[]"
	}
	b := strings.Builder{}
	b.WriteByte('[')
	for i, x := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(fmt.Sprintf("%g", x))
	}
	b.WriteByte(']')
	return b.String()
}

func parseVectorLiteral(s string) []float32 {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]float32, 0, len(parts))
	for _, p := range parts {
		var f float64
		fmt.Sscanf(strings.TrimSpace(p), "%g", &f)
		out = append(out, float32(f))
	}
	return out
}
